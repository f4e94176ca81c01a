package mock

import (
	"sync"
)

// FakeProcess implements launcher.Process. By default Terminate makes the process
// exit immediately; SetExitOnTerminate(false) simulates a process that ignores it.
type FakeProcess struct {
	id  string
	pid int

	mu              sync.Mutex
	done            chan struct{}
	terminated      bool
	exitErr         error
	exitOnTerminate bool
	terminateErr    error
	terminateCalls  int
	forcedCalls     int
}

// NewFakeProcess creates a running fake process.
func NewFakeProcess(id string, pid int) *FakeProcess {
	return &FakeProcess{
		id:              id,
		pid:             pid,
		done:            make(chan struct{}),
		exitOnTerminate: true,
	}
}

// ID implements launcher.Process.
func (p *FakeProcess) ID() string { return p.id }

// PID implements launcher.Process.
func (p *FakeProcess) PID() int { return p.pid }

// Done implements launcher.Process.
func (p *FakeProcess) Done() <-chan struct{} { return p.done }

// Terminated implements launcher.Process.
func (p *FakeProcess) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// ExitErr implements launcher.Process.
func (p *FakeProcess) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Terminate implements launcher.Process.
func (p *FakeProcess) Terminate(force bool) error {
	p.mu.Lock()
	p.terminateCalls++
	if force {
		p.forcedCalls++
	}
	err := p.terminateErr
	exit := p.exitOnTerminate
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if exit {
		p.Exit(nil)
	}
	return nil
}

// Exit marks the process as exited. Calling it again is a no-op.
func (p *FakeProcess) Exit(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminated {
		return
	}
	p.terminated = true
	p.exitErr = err
	close(p.done)
}

// SetExitOnTerminate controls whether Terminate makes the process exit.
func (p *FakeProcess) SetExitOnTerminate(exit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitOnTerminate = exit
}

// SetTerminateError makes Terminate fail with err.
func (p *FakeProcess) SetTerminateError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminateErr = err
}

// TerminateCalls returns how often Terminate was called.
func (p *FakeProcess) TerminateCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminateCalls
}

// ForcedTerminateCalls returns how often Terminate was called with force.
func (p *FakeProcess) ForcedTerminateCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.forcedCalls
}
