package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overseer/internal/api"
	"overseer/internal/config"
	"overseer/internal/events"
	"overseer/internal/launcher"
	"overseer/internal/testing/mock"
)

type transition struct {
	from, to api.ServerState
}

type transitionRecorder struct {
	mu  sync.Mutex
	all []transition
}

func (r *transitionRecorder) listener(from, to api.ServerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, transition{from, to})
}

func (r *transitionRecorder) get() []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transition(nil), r.all...)
}

type harness struct {
	inst     *Instance
	launcher *mock.FakeLauncher
	probe    *mock.FakeProbe
	rec      *transitionRecorder
	events   *events.Dispatcher
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		launcher: mock.NewFakeLauncher(),
		probe:    mock.NewFakeProbe(true),
		rec:      &transitionRecorder{},
		events:   events.NewDispatcher(),
	}
	opts := Options{
		Name:            "test",
		Type:            "generic",
		Attributes:      config.NewAttributes(nil),
		Starter:         h.launcher,
		Stopper:         h.launcher,
		Probe:           h.probe.Up,
		Events:          h.events,
		StartupTimeout:  2 * time.Second,
		ShutdownTimeout: 2 * time.Second,
		PollInterval:    5 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.inst = New(opts)
	h.inst.AddStateListener(h.rec.listener)
	t.Cleanup(func() {
		for _, tr := range h.rec.get() {
			assert.True(t, api.CanTransition(tr.from, tr.to), "illegal transition %s -> %s", tr.from, tr.to)
		}
	})
	return h
}

// terminatedCounter counts process terminated events per process ID.
type terminatedCounter struct {
	mu   sync.Mutex
	byID  map[string]int
}

func (h *harness) countTerminated() *terminatedCounter {
	c := &terminatedCounter{byID: make(map[string]int)}
	h.events.AddListener(func(e events.Event) {
		if e.Reason != events.ReasonServerProcessTerminated {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.byID[e.Data.ProcessID]++
	})
	return c
}

func (c *terminatedCounter) get(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byID[id]
}

func (h *harness) waitFor(t *testing.T, state api.ServerState) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.inst.WaitForState(ctx, state))
}

func (h *harness) startAndWait(t *testing.T) *launcher.Launch {
	t.Helper()
	res := h.inst.Start(context.Background(), api.ModeRun)
	require.True(t, res.Status.IsOK(), res.Status.String())
	h.waitFor(t, api.StateStarted)
	return h.inst.StartLaunch()
}

func TestNew_Defaults(t *testing.T) {
	inst := New(Options{Name: "a", Attributes: config.NewAttributes(map[string]interface{}{
		config.AttrStartupTimeout: "5s",
		config.AttrModes:          "run,profile",
	})})

	assert.Equal(t, api.StateStopped, inst.State())
	assert.Equal(t, 5*time.Second, inst.startupTimeout)
	assert.Equal(t, config.DefaultShutdownTimeout, inst.shutdownTimeout)
	assert.Equal(t, []string{"run", "profile"}, inst.Modes())
	assert.NotNil(t, inst.probe)
	assert.Empty(t, inst.Mode())
	assert.Nil(t, inst.StartLaunch())
}

func TestStart_Reached(t *testing.T) {
	h := newHarness(t)

	res := h.inst.Start(context.Background(), api.ModeRun)
	require.True(t, res.Status.IsOK())
	require.NotNil(t, res.Details)
	assert.Equal(t, "run", res.Details.Properties["mode"])

	h.waitFor(t, api.StateStarted)
	assert.Equal(t, api.ModeRun, h.inst.Mode())
	assert.NotNil(t, h.inst.StartLaunch())
	assert.NoError(t, h.inst.LastError())
	assert.Equal(t, []transition{
		{api.StateStopped, api.StateStarting},
		{api.StateStarting, api.StateStarted},
	}, h.rec.get())

	snap := h.inst.Snapshot()
	assert.Equal(t, api.StateStarted, snap.State)
	assert.Equal(t, 1, snap.Processes)
	assert.NotEmpty(t, snap.LaunchID)
}

func TestStart_UnsupportedMode(t *testing.T) {
	h := newHarness(t)

	res := h.inst.Start(context.Background(), "profile")
	assert.Equal(t, api.SeverityError, res.Status.Severity)
	assert.True(t, api.IsValidation(res.Status.Err))
	assert.Contains(t, res.Status.Message, "may not be launched in mode profile")
	assert.Equal(t, api.StateStopped, h.inst.State())
	assert.Empty(t, h.inst.Mode())
	assert.Equal(t, 0, h.launcher.StartCalls())
	assert.Empty(t, h.rec.get())
}

func TestStart_ValidationFails(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Validate = func() error { return errors.New("server.home is not set") }
	})

	st := h.inst.CanStart(api.ModeRun)
	assert.True(t, api.IsValidation(st.Err))

	res := h.inst.Start(context.Background(), api.ModeRun)
	assert.True(t, api.IsValidation(res.Status.Err))
	assert.Contains(t, res.Status.Message, "server.home is not set")
	assert.Equal(t, api.StateStopped, h.inst.State())
	assert.Equal(t, 0, h.launcher.StartCalls())
}

func TestStart_OnlyFromStopped(t *testing.T) {
	h := newHarness(t)
	h.startAndWait(t)

	assert.Equal(t, api.SeverityCancel, h.inst.CanStart(api.ModeRun).Severity)
	res := h.inst.Start(context.Background(), api.ModeDebug)
	assert.Equal(t, api.SeverityCancel, res.Status.Severity)
	assert.Equal(t, api.ModeRun, h.inst.Mode())
	assert.Equal(t, 1, h.launcher.StartCalls())
}

func TestStart_LaunchErrorPortInUse(t *testing.T) {
	h := newHarness(t)
	a, b := mock.NewFakeProcess("a", 1), mock.NewFakeProcess("b", 2)
	b.SetTerminateError(errors.New("operation not permitted"))
	h.launcher.StartFunc = func(_ context.Context, mode string) (*launcher.Launch, *launcher.CommandLineDetails, error) {
		return launcher.NewLaunch(launcher.KindStart, mode, a, b), nil,
			api.NewLaunchError("start", errors.New("port in use"))
	}

	res := h.inst.Start(context.Background(), api.ModeRun)

	assert.Equal(t, api.SeverityError, res.Status.Severity)
	assert.Equal(t, "port in use", res.Status.Message)
	assert.Equal(t, api.StateStopped, h.inst.State())
	assert.Empty(t, h.inst.Mode())
	assert.Nil(t, h.inst.StartLaunch())
	assert.True(t, api.IsLaunch(h.inst.LastError()))
	assert.Equal(t, 1, a.TerminateCalls())
	assert.Equal(t, 1, b.TerminateCalls(), "terminate failures are not escalated")
}

func TestStart_LaunchErrorReportsPartialProcesses(t *testing.T) {
	h := newHarness(t)
	terminated := h.countTerminated()
	a, b := mock.NewFakeProcess("a", 1), mock.NewFakeProcess("b", 2)
	b.SetExitOnTerminate(false)
	h.launcher.StartFunc = func(_ context.Context, mode string) (*launcher.Launch, *launcher.CommandLineDetails, error) {
		return launcher.NewLaunch(launcher.KindStart, mode, a, b), nil,
			api.NewLaunchError("start", errors.New("port in use"))
	}

	res := h.inst.Start(context.Background(), api.ModeRun)
	require.Equal(t, api.SeverityError, res.Status.Severity)

	assert.Eventually(t, func() bool { return terminated.get("a") == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, terminated.get("b"))

	b.Exit(nil)
	assert.Eventually(t, func() bool { return terminated.get("b") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, api.StateStopped, h.inst.State(), "partial processes never drive state")
}

func TestStart_LaunchErrorAfterProbeReached(t *testing.T) {
	h := newHarness(t)
	h.launcher.StartFunc = func(context.Context, string) (*launcher.Launch, *launcher.CommandLineDetails, error) {
		time.Sleep(100 * time.Millisecond)
		return nil, nil, errors.New("port in use")
	}

	res := h.inst.Start(context.Background(), api.ModeRun)

	assert.Equal(t, "port in use", res.Status.Message)
	assert.Equal(t, api.StateStopped, h.inst.State())
	assert.Equal(t, []transition{
		{api.StateStopped, api.StateStarting},
		{api.StateStarting, api.StateStarted},
		{api.StateStarted, api.StateStopping},
		{api.StateStopping, api.StateStopped},
	}, h.rec.get())
}

func TestStart_PollTimeout(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.StartupTimeout = 50 * time.Millisecond })
	h.probe.Set(false)

	res := h.inst.Start(context.Background(), api.ModeRun)
	require.True(t, res.Status.IsOK())
	proc := mock.FakeProcessOf(h.launcher.LastStart(), 0)

	h.waitFor(t, api.StateStopped)
	assert.True(t, api.IsPollTimeout(h.inst.LastError()))
	assert.Empty(t, h.inst.Mode())
	assert.Nil(t, h.inst.StartLaunch())
	require.Eventually(t, proc.Terminated, time.Second, 5*time.Millisecond)
	assert.Equal(t, []transition{
		{api.StateStopped, api.StateStarting},
		{api.StateStarting, api.StateStopped},
	}, h.rec.get())
}

func TestStart_PollTimeoutReportsTerminatedProcess(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.StartupTimeout = 50 * time.Millisecond })
	h.probe.Set(false)
	terminated := h.countTerminated()

	res := h.inst.Start(context.Background(), api.ModeRun)
	require.True(t, res.Status.IsOK())
	proc := mock.FakeProcessOf(h.launcher.LastStart(), 0)

	h.waitFor(t, api.StateStopped)
	require.Eventually(t, proc.Terminated, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return terminated.get(proc.ID()) == 1 }, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, terminated.get(proc.ID()), "reported exactly once")
	assert.Equal(t, api.StateStopped, h.inst.State())
}

func TestStart_PollTimesOutBeforeLauncherReturns(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.StartupTimeout = 20 * time.Millisecond })
	h.probe.Set(false)
	proc := mock.NewFakeProcess("late", 1)
	h.launcher.StartFunc = func(_ context.Context, mode string) (*launcher.Launch, *launcher.CommandLineDetails, error) {
		time.Sleep(200 * time.Millisecond)
		return launcher.NewLaunch(launcher.KindStart, mode, proc), nil, nil
	}

	res := h.inst.Start(context.Background(), api.ModeRun)

	assert.Equal(t, api.SeverityError, res.Status.Severity)
	assert.True(t, api.IsPollTimeout(res.Status.Err))
	assert.Equal(t, api.StateStopped, h.inst.State())
	assert.Nil(t, h.inst.StartLaunch())
	assert.True(t, proc.Terminated())
}

func TestProcessExitWhileStarted(t *testing.T) {
	h := newHarness(t)
	launch := h.startAndWait(t)
	proc := mock.FakeProcessOf(launch, 0)

	terminated, cancel := h.events.Subscribe(8)
	defer cancel()

	h.inst.mu.Lock()
	w := h.inst.watcher
	h.inst.mu.Unlock()
	require.NotNil(t, w)

	var wg sync.WaitGroup
	for n := 0; n < 5; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Notify(proc.ID())
		}()
	}
	proc.Exit(errors.New("exit status 1"))
	wg.Wait()

	h.waitFor(t, api.StateStopped)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.inst.Mode())
	assert.Nil(t, h.inst.StartLaunch())

	stopped := 0
	for _, tr := range h.rec.get() {
		if tr.to == api.StateStopped {
			stopped++
		}
	}
	assert.Equal(t, 1, stopped)
	assert.Equal(t, transition{api.StateStarted, api.StateStopping}, h.rec.get()[2])

	processEvents := 0
	for len(terminated) > 0 {
		if e := <-terminated; e.Reason == events.ReasonServerProcessTerminated {
			processEvents++
			assert.Equal(t, proc.ID(), e.Data.ProcessID)
		}
	}
	assert.Equal(t, 1, processEvents)
}

func TestProcessExitWhileStarting(t *testing.T) {
	h := newHarness(t)
	h.probe.Set(false)

	require.True(t, h.inst.Start(context.Background(), api.ModeRun).Status.IsOK())
	assert.Equal(t, api.StateStarting, h.inst.State())

	mock.FakeProcessOf(h.launcher.LastStart(), 0).Exit(nil)
	h.waitFor(t, api.StateStopped)
	assert.Empty(t, h.inst.Mode())

	h.probe.Set(true)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, api.StateStopped, h.inst.State(), "cancelled start poll must not fire")
}

func TestStop_SelfTerminatingServer(t *testing.T) {
	h := newHarness(t)
	launch := h.startAndWait(t)
	h.launcher.StopFunc = func(context.Context, launcher.StopRequest) (*launcher.Launch, error) {
		return nil, nil
	}

	h.probe.Set(false)
	st := h.inst.Stop(context.Background(), false)
	require.True(t, st.IsOK())
	assert.Equal(t, api.StateStopping, h.inst.State())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, api.StateStopping, h.inst.State(), "absence alone does not stop a server with processes")

	mock.FakeProcessOf(launch, 0).Exit(nil)
	h.waitFor(t, api.StateStopped)

	assert.Equal(t, []transition{
		{api.StateStopped, api.StateStarting},
		{api.StateStarting, api.StateStarted},
		{api.StateStarted, api.StateStopping},
		{api.StateStopping, api.StateStopped},
	}, h.rec.get())
	assert.Empty(t, h.inst.Mode())
}

func TestStop_PassesForceAndRunningLaunch(t *testing.T) {
	h := newHarness(t)
	launch := h.startAndWait(t)

	require.True(t, h.inst.Stop(context.Background(), true).IsOK())
	h.waitFor(t, api.StateStopped)

	req := h.launcher.LastStop()
	assert.True(t, req.Force)
	assert.Same(t, launch, req.Running)
	assert.Equal(t, 1, mock.FakeProcessOf(launch, 0).ForcedTerminateCalls())
}

func TestStop_WatchesStopLaunch(t *testing.T) {
	h := newHarness(t)
	launch := h.startAndWait(t)
	stopProc := mock.NewFakeProcess("stopper", 99)
	h.launcher.StopFunc = func(_ context.Context, req launcher.StopRequest) (*launcher.Launch, error) {
		return launcher.NewLaunch(launcher.KindStop, req.Running.Mode, stopProc), nil
	}
	sub, cancel := h.events.Subscribe(16)
	defer cancel()

	require.True(t, h.inst.Stop(context.Background(), false).IsOK())
	stopProc.Exit(nil)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, api.StateStopping, h.inst.State(), "stop launch exit does not stop the server")

	mock.FakeProcessOf(launch, 0).Exit(nil)
	h.waitFor(t, api.StateStopped)

	var ids []string
	for len(sub) > 0 {
		if e := <-sub; e.Reason == events.ReasonServerProcessTerminated {
			ids = append(ids, e.Data.ProcessID)
		}
	}
	assert.Contains(t, ids, "stopper")
}

func TestStop_LaunchErrorRollsBack(t *testing.T) {
	h := newHarness(t)
	h.startAndWait(t)
	h.launcher.StopFunc = func(context.Context, launcher.StopRequest) (*launcher.Launch, error) {
		return nil, api.NewLaunchError("stop", errors.New("shutdown port refused"))
	}

	st := h.inst.Stop(context.Background(), false)

	assert.Equal(t, api.SeverityError, st.Severity)
	assert.Equal(t, "shutdown port refused", st.Message)
	assert.Equal(t, api.StateStarted, h.inst.State())
	assert.Equal(t, api.ModeRun, h.inst.Mode())
	assert.NotNil(t, h.inst.StartLaunch())
}

func TestStop_LaunchErrorWhileStartingRestartsPoll(t *testing.T) {
	h := newHarness(t)
	h.probe.Set(false)
	require.True(t, h.inst.Start(context.Background(), api.ModeRun).Status.IsOK())
	h.launcher.StopFunc = func(context.Context, launcher.StopRequest) (*launcher.Launch, error) {
		return nil, errors.New("no stop command")
	}

	st := h.inst.Stop(context.Background(), false)
	assert.True(t, api.IsLaunch(st.Err))
	assert.Equal(t, api.StateStarting, h.inst.State())

	h.probe.Set(true)
	h.waitFor(t, api.StateStarted)
}

func TestStop_AbsentPollTimeout(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.ShutdownTimeout = 50 * time.Millisecond })
	h.startAndWait(t)
	h.launcher.StopFunc = func(context.Context, launcher.StopRequest) (*launcher.Launch, error) {
		return nil, nil
	}

	require.True(t, h.inst.Stop(context.Background(), false).IsOK())
	h.waitFor(t, api.StateStarted)
	assert.True(t, api.IsPollTimeout(h.inst.LastError()))
	assert.NotNil(t, h.inst.StartLaunch())
}

func TestProcesslessLaunch(t *testing.T) {
	h := newHarness(t)
	h.launcher.StartFunc = func(_ context.Context, mode string) (*launcher.Launch, *launcher.CommandLineDetails, error) {
		return launcher.NewLaunch(launcher.KindStart, mode), nil, nil
	}

	launch := h.startAndWait(t)
	require.NotNil(t, launch)
	assert.False(t, launch.HasProcesses())

	h.inst.mu.Lock()
	assert.Nil(t, h.inst.watcher, "processless launches are not watched")
	h.inst.mu.Unlock()

	h.probe.Set(false)
	require.True(t, h.inst.Stop(context.Background(), false).IsOK())
	h.waitFor(t, api.StateStopped)
	assert.Empty(t, h.inst.Mode())
}

func TestStop_WhenStopped(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, api.SeverityCancel, h.inst.CanStop().Severity)
	assert.Equal(t, api.SeverityCancel, h.inst.Stop(context.Background(), false).Severity)
	assert.Equal(t, 0, h.launcher.StopCalls())
}

func TestShutdown(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.inst.Shutdown(context.Background()))

	h.startAndWait(t)
	h.probe.Set(false)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.inst.Shutdown(ctx))
	assert.Equal(t, api.StateStopped, h.inst.State())
}

func TestShutdown_ForcesWhenGracefulStopHangs(t *testing.T) {
	h := newHarness(t)
	launch := h.startAndWait(t)
	proc := mock.FakeProcessOf(launch, 0)
	proc.SetExitOnTerminate(false)
	h.launcher.StopFunc = func(_ context.Context, req launcher.StopRequest) (*launcher.Launch, error) {
		if req.Force {
			proc.Exit(nil)
		}
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, h.inst.Shutdown(ctx))
	assert.Equal(t, api.StateStopped, h.inst.State())
	assert.True(t, h.launcher.LastStop().Force)
}

func TestStartStopCycles(t *testing.T) {
	h := newHarness(t)
	for n := 0; n < 3; n++ {
		h.startAndWait(t)
		require.True(t, h.inst.Stop(context.Background(), false).IsOK())
		h.waitFor(t, api.StateStopped)
	}
	assert.Equal(t, 3, h.launcher.StartCalls())
	assert.Len(t, h.rec.get(), 12)
}
