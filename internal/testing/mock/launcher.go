package mock

import (
	"context"
	"fmt"
	"sync"

	"overseer/internal/launcher"
)

// FakeLauncher implements launcher.StartLauncher and launcher.ShutdownLauncher.
//
// Without StartFunc, LaunchStart returns a launch with one FakeProcess. Without
// StopFunc, LaunchStop terminates the running launch and returns no launch.
type FakeLauncher struct {
	StartFunc func(ctx context.Context, mode string) (*launcher.Launch, *launcher.CommandLineDetails, error)
	StopFunc  func(ctx context.Context, req launcher.StopRequest) (*launcher.Launch, error)

	mu         sync.Mutex
	startCalls int
	stopCalls  int
	lastStart  *launcher.Launch
	lastStop   launcher.StopRequest
	nextPID    int
}

// NewFakeLauncher creates a launcher with default behavior.
func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{nextPID: 1000}
}

// LaunchStart implements launcher.StartLauncher.
func (l *FakeLauncher) LaunchStart(ctx context.Context, mode string) (*launcher.Launch, *launcher.CommandLineDetails, error) {
	l.mu.Lock()
	l.startCalls++
	fn := l.StartFunc
	pid := l.nextPID
	l.nextPID++
	l.mu.Unlock()

	var (
		launch  *launcher.Launch
		details *launcher.CommandLineDetails
		err     error
	)
	if fn != nil {
		launch, details, err = fn(ctx, mode)
	} else {
		launch = launcher.NewLaunch(launcher.KindStart, mode, NewFakeProcess(fmt.Sprintf("proc-%d", pid), pid))
		details = &launcher.CommandLineDetails{Command: "fake", Properties: map[string]string{"mode": mode}}
	}

	l.mu.Lock()
	l.lastStart = launch
	l.mu.Unlock()
	return launch, details, err
}

// LaunchStop implements launcher.ShutdownLauncher.
func (l *FakeLauncher) LaunchStop(ctx context.Context, req launcher.StopRequest) (*launcher.Launch, error) {
	l.mu.Lock()
	l.stopCalls++
	l.lastStop = req
	fn := l.StopFunc
	l.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if req.Running != nil {
		_ = req.Running.TerminateAll(req.Force)
	}
	return nil, nil
}

// StartCalls returns how often LaunchStart was called.
func (l *FakeLauncher) StartCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startCalls
}

// StopCalls returns how often LaunchStop was called.
func (l *FakeLauncher) StopCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopCalls
}

// LastStart returns the launch produced by the last LaunchStart call.
func (l *FakeLauncher) LastStart() *launcher.Launch {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastStart
}

// LastStop returns the request of the last LaunchStop call.
func (l *FakeLauncher) LastStop() launcher.StopRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastStop
}

// FakeProcessOf returns the i-th process of launch as a FakeProcess.
func FakeProcessOf(launch *launcher.Launch, i int) *FakeProcess {
	if launch == nil || i >= len(launch.Processes) {
		return nil
	}
	p, _ := launch.Processes[i].(*FakeProcess)
	return p
}
