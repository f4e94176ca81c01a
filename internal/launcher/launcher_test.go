package launcher

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
)

type stubProcess struct {
	id string

	mu         sync.Mutex
	done       chan struct{}
	terminated bool
	failWith   error
	calls      int
}

func newStub(id string) *stubProcess {
	return &stubProcess{id: id, done: make(chan struct{})}
}

func (p *stubProcess) ID() string            { return p.id }
func (p *stubProcess) PID() int              { return 1 }
func (p *stubProcess) Done() <-chan struct{} { return p.done }
func (p *stubProcess) ExitErr() error        { return nil }

func (p *stubProcess) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

func (p *stubProcess) Terminate(bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failWith != nil {
		return p.failWith
	}
	if !p.terminated {
		p.terminated = true
		close(p.done)
	}
	return nil
}

func TestLaunch_AllTerminated(t *testing.T) {
	var nilLaunch *Launch
	assert.False(t, nilLaunch.AllTerminated())
	assert.False(t, NewLaunch(KindStart, "run").AllTerminated(), "processless launches never terminate")

	a, b := newStub("a"), newStub("b")
	l := NewLaunch(KindStart, "run", a, b)
	assert.NotEmpty(t, l.ID)
	assert.False(t, l.AllTerminated())

	require.NoError(t, a.Terminate(false))
	assert.False(t, l.AllTerminated())
	require.NoError(t, b.Terminate(false))
	assert.True(t, l.AllTerminated())
}

func TestLaunch_TerminateAllIsBestEffort(t *testing.T) {
	a, b, c := newStub("a"), newStub("b"), newStub("c")
	b.failWith = errors.New("permission denied")

	err := NewLaunch(KindStart, "run", a, b, c).TerminateAll(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.True(t, a.Terminated())
	assert.True(t, c.Terminated(), "remaining processes are still terminated")

	require.NoError(t, a.Terminate(false))
	assert.Equal(t, 2, a.calls)
	require.NoError(t, NewLaunch(KindStart, "run", a).TerminateAll(false))
	assert.Equal(t, 2, a.calls, "terminated processes are skipped")
}

func newTestLauncher(start, stop []config.CommandConfig, spawned *[]CommandSpec, failAt int) *CommandLauncher {
	attrs := config.NewAttributes(map[string]interface{}{
		config.AttrServerHome: "/opt/tomcat",
		config.AttrServerPort: 8080,
	})
	l := NewCommandLauncher("tomcat", attrs, start, stop)
	count := 0
	l.spawn = func(id, _ string, spec CommandSpec, _ time.Duration) (Process, error) {
		count++
		if count == failAt {
			return nil, errors.New("port in use")
		}
		*spawned = append(*spawned, spec)
		return newStub(id), nil
	}
	return l
}

func TestCommandLauncher_Render(t *testing.T) {
	start := []config.CommandConfig{{
		Command: `{{ .Attr "server.home" }}/bin/catalina.sh`,
		Args:    []string{`{{ if .Debug }}jpda{{ end }}`, "run"},
		Dir:     `{{ .Attr "server.home" }}`,
		Env:     map[string]string{"CATALINA_OPTS": `-Dport={{ .Attr "server.port" }}`, "NAME": `{{ .Name | upper }}`},
	}}
	var spawned []CommandSpec
	l := newTestLauncher(start, nil, &spawned, 0)

	specs, err := l.Render(start, api.ModeRun)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "/opt/tomcat/bin/catalina.sh", specs[0].Command)
	assert.Equal(t, []string{"run"}, specs[0].Args)
	assert.Equal(t, "/opt/tomcat", specs[0].Dir)
	assert.Equal(t, []string{"CATALINA_OPTS=-Dport=8080", "NAME=TOMCAT"}, specs[0].Env)

	specs, err = l.Render(start, api.ModeDebug)
	require.NoError(t, err)
	assert.Equal(t, []string{"jpda", "run"}, specs[0].Args)

	_, err = l.Render([]config.CommandConfig{{Command: "{{ .Broken"}}, api.ModeRun)
	assert.Error(t, err)

	_, err = l.Render([]config.CommandConfig{{Command: `{{ .Attr "missing" }}`}}, api.ModeRun)
	assert.ErrorContains(t, err, "rendered empty")
}

func TestCommandLauncher_LaunchStart(t *testing.T) {
	var spawned []CommandSpec
	start := []config.CommandConfig{{Command: "a"}, {Command: "b"}}
	l := newTestLauncher(start, nil, &spawned, 0)

	launch, details, err := l.LaunchStart(context.Background(), api.ModeRun)
	require.NoError(t, err)
	assert.Equal(t, KindStart, launch.Kind)
	assert.Equal(t, api.ModeRun, launch.Mode)
	assert.Len(t, launch.Processes, 2)
	assert.Equal(t, "a", details.Command)
	assert.Equal(t, "run", details.Properties["mode"])
}

func TestCommandLauncher_LaunchStartPartialFailure(t *testing.T) {
	var spawned []CommandSpec
	start := []config.CommandConfig{{Command: "a"}, {Command: "b"}}
	l := newTestLauncher(start, nil, &spawned, 2)

	launch, _, err := l.LaunchStart(context.Background(), api.ModeRun)
	require.Error(t, err)
	assert.True(t, api.IsLaunch(err))
	assert.Equal(t, "port in use", err.Error())
	require.NotNil(t, launch, "partial launch is returned")
	assert.Len(t, launch.Processes, 1)
}

func TestCommandLauncher_LaunchStartFirstFailure(t *testing.T) {
	var spawned []CommandSpec
	l := newTestLauncher([]config.CommandConfig{{Command: "a"}}, nil, &spawned, 1)

	launch, _, err := l.LaunchStart(context.Background(), api.ModeRun)
	assert.True(t, api.IsLaunch(err))
	assert.Nil(t, launch)

	l = newTestLauncher(nil, nil, &spawned, 0)
	_, _, err = l.LaunchStart(context.Background(), api.ModeRun)
	assert.True(t, api.IsLaunch(err))
}

func TestCommandLauncher_LaunchStop(t *testing.T) {
	var spawned []CommandSpec
	stop := []config.CommandConfig{{Command: "catalina.sh", Args: []string{"stop"}}}
	l := newTestLauncher([]config.CommandConfig{{Command: "a"}}, stop, &spawned, 0)

	running := NewLaunch(KindStart, api.ModeDebug, newStub("srv"))
	launch, err := l.LaunchStop(context.Background(), StopRequest{Running: running})
	require.NoError(t, err)
	require.NotNil(t, launch)
	assert.Equal(t, KindStop, launch.Kind)
	assert.Equal(t, api.ModeDebug, launch.Mode)
	assert.False(t, running.AllTerminated())

	launch, err = l.LaunchStop(context.Background(), StopRequest{Force: true, Running: running})
	require.NoError(t, err)
	assert.Nil(t, launch)
	assert.True(t, running.AllTerminated(), "forced stop terminates the running launch")
}

func TestSignalShutdown(t *testing.T) {
	launch, err := SignalShutdown{}.LaunchStop(context.Background(), StopRequest{})
	assert.NoError(t, err)
	assert.Nil(t, launch)

	p := newStub("a")
	p.failWith = errors.New("nope")
	_, err = SignalShutdown{}.LaunchStop(context.Background(), StopRequest{Running: NewLaunch(KindStart, "run", p)})
	assert.True(t, api.IsLaunch(err))
}
