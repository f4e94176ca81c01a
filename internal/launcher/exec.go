package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"overseer/pkg/logging"
)

// waitDelay bounds how long Wait keeps reading output after the process exited,
// for grandchildren that inherited stdout.
const waitDelay = 5 * time.Second

// CommandSpec is a fully rendered command.
type CommandSpec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// ExecProcess is a Process backed by os/exec. The command runs in its own process
// group so that terminating it also reaches the children it forked.
type ExecProcess struct {
	id          string
	cmd         *exec.Cmd
	gracePeriod time.Duration

	done    chan struct{}
	mu      sync.Mutex
	exitErr error
}

// StartProcess spawns spec and returns once the process is running. Output is
// streamed line by line into the logger under the given subsystem.
func StartProcess(id, subsystem string, spec CommandSpec, gracePeriod time.Duration) (*ExecProcess, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	configureProcAttr(cmd)
	cmd.WaitDelay = waitDelay

	stdout := logging.Writer(subsystem, logging.LevelInfo)
	stderr := logging.Writer(subsystem, logging.LevelWarn)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start %s: %w", spec.Command, err)
	}

	p := &ExecProcess{
		id:          id,
		cmd:         cmd,
		gracePeriod: gracePeriod,
		done:        make(chan struct{}),
	}
	logging.Debug("Launcher", "Started process %s (pid %d): %s", id, cmd.Process.Pid, spec.Command)

	go func() {
		err := cmd.Wait()
		stdout.Close()
		stderr.Close()

		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(p.done)

		if err != nil {
			logging.Debug("Launcher", "Process %s (pid %d) exited: %v", id, cmd.Process.Pid, err)
		} else {
			logging.Debug("Launcher", "Process %s (pid %d) exited", id, cmd.Process.Pid)
		}
	}()

	return p, nil
}

// ID implements Process.
func (p *ExecProcess) ID() string { return p.id }

// PID implements Process.
func (p *ExecProcess) PID() int { return p.cmd.Process.Pid }

// Done implements Process.
func (p *ExecProcess) Done() <-chan struct{} { return p.done }

// Terminated implements Process.
func (p *ExecProcess) Terminated() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitErr implements Process.
func (p *ExecProcess) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// Terminate sends SIGTERM to the process group and SIGKILL once the grace period
// elapsed. With force, SIGKILL is sent right away. Terminate does not wait for exit.
func (p *ExecProcess) Terminate(force bool) error {
	if p.Terminated() {
		return nil
	}
	pid := p.PID()

	if force || p.gracePeriod <= 0 {
		logging.Debug("Launcher", "Killing process group of %s (pid %d)", p.id, pid)
		return killProcessGroup(pid, syscall.SIGKILL)
	}

	logging.Debug("Launcher", "Sending SIGTERM to process group of %s (pid %d)", p.id, pid)
	if err := killProcessGroup(pid, syscall.SIGTERM); err != nil {
		return err
	}

	go func() {
		timer := time.NewTimer(p.gracePeriod)
		defer timer.Stop()
		select {
		case <-p.done:
		case <-timer.C:
			logging.Warn("Launcher", "Process %s (pid %d) did not exit within %s, sending SIGKILL", p.id, pid, p.gracePeriod)
			if err := killProcessGroup(pid, syscall.SIGKILL); err != nil {
				logging.Error("Launcher", err, "Failed to kill process %s", p.id)
			}
		}
	}()
	return nil
}
