package watcher

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overseer/internal/launcher"
	"overseer/internal/testing/mock"
)

type recorder struct {
	mu         sync.Mutex
	terminated []string
	all        atomic.Int32
	allCh      chan struct{}
}

func newRecorder() *recorder {
	return &recorder{allCh: make(chan struct{}, 8)}
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnProcessTerminated: func(p launcher.Process) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.terminated = append(r.terminated, p.ID())
		},
		OnAllTerminated: func() {
			r.all.Add(1)
			r.allCh <- struct{}{}
		},
	}
}

func (r *recorder) terminatedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.terminated...)
}

func TestWatcher_ProcessExits(t *testing.T) {
	a, b := mock.NewFakeProcess("a", 1), mock.NewFakeProcess("b", 2)
	rec := newRecorder()
	w := New(launcher.NewLaunch(launcher.KindStart, "run", a, b), rec.callbacks())
	w.Start()
	defer w.Close()

	b.Exit(nil)
	require.Eventually(t, func() bool { return len(rec.terminatedIDs()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"b"}, rec.terminatedIDs())
	assert.Equal(t, int32(0), rec.all.Load())

	a.Exit(nil)
	select {
	case <-rec.allCh:
	case <-time.After(time.Second):
		t.Fatal("aggregate callback did not fire")
	}
	assert.ElementsMatch(t, []string{"a", "b"}, rec.terminatedIDs())
	assert.Equal(t, 0, w.Remaining())
}

func TestWatcher_DuplicateAndOutOfOrderNotifications(t *testing.T) {
	a, b, c := mock.NewFakeProcess("a", 1), mock.NewFakeProcess("b", 2), mock.NewFakeProcess("c", 3)
	rec := newRecorder()
	w := New(launcher.NewLaunch(launcher.KindStart, "run", a, b, c), rec.callbacks())

	assert.True(t, w.Notify("c"))
	assert.False(t, w.Notify("c"))
	assert.True(t, w.Notify("a"))
	assert.False(t, w.Notify("unknown"))
	assert.False(t, w.Notify("a"))
	assert.Equal(t, int32(0), rec.all.Load())

	assert.True(t, w.Notify("b"))
	assert.False(t, w.Notify("b"))
	assert.Equal(t, int32(1), rec.all.Load())
	assert.Equal(t, []string{"c", "a", "b"}, rec.terminatedIDs())

	w.Start()
	a.Exit(nil)
	b.Exit(nil)
	c.Exit(nil)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), rec.all.Load(), "aggregate fires exactly once")
	assert.Len(t, rec.terminatedIDs(), 3)
	w.Close()
}

func TestWatcher_ConcurrentNotifications(t *testing.T) {
	procs := make([]launcher.Process, 0, 20)
	for i := 0; i < 20; i++ {
		procs = append(procs, mock.NewFakeProcess(string(rune('a'+i)), i))
	}
	rec := newRecorder()
	w := New(launcher.NewLaunch(launcher.KindStart, "run", procs...), rec.callbacks())
	w.Start()

	var wg sync.WaitGroup
	for _, p := range procs {
		for j := 0; j < 3; j++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				w.Notify(id)
			}(p.ID())
		}
		p.(*mock.FakeProcess).Exit(nil)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return rec.all.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), rec.all.Load())
	assert.Len(t, rec.terminatedIDs(), 20)
	w.Close()
}

func TestWatcher_AlreadyExitedProcess(t *testing.T) {
	a := mock.NewFakeProcess("a", 1)
	a.Exit(nil)
	rec := newRecorder()
	w := New(launcher.NewLaunch(launcher.KindStart, "run", a), rec.callbacks())
	w.Start()
	defer w.Close()

	select {
	case <-rec.allCh:
	case <-time.After(time.Second):
		t.Fatal("already exited process was not reported")
	}
}

func TestWatcher_ProcesslessLaunchNeverFires(t *testing.T) {
	rec := newRecorder()
	w := New(launcher.NewLaunch(launcher.KindStart, "run"), rec.callbacks())
	w.Start()
	time.Sleep(20 * time.Millisecond)
	w.Close()
	assert.Equal(t, int32(0), rec.all.Load())

	w = New(nil, rec.callbacks())
	w.Start()
	w.Close()
	assert.Equal(t, int32(0), rec.all.Load())
}

func TestWatcher_Close(t *testing.T) {
	a := mock.NewFakeProcess("a", 1)
	rec := newRecorder()
	w := New(launcher.NewLaunch(launcher.KindStart, "run", a), rec.callbacks())
	w.Start()
	w.Close()
	w.Close()

	a.Exit(nil)
	assert.False(t, w.Notify("a"))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.terminatedIDs())
	assert.Equal(t, int32(0), rec.all.Load())
}
