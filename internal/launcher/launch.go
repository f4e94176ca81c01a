package launcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"overseer/pkg/logging"
)

// Kind tells start launches from stop launches.
type Kind string

const (
	KindStart Kind = "start"
	KindStop  Kind = "stop"
)

// Launch is the handle of one start or stop attempt: the processes it spawned and
// the mode it ran with. A Launch without processes is valid and describes a server
// that is managed outside of overseer.
type Launch struct {
	ID        string
	Kind      Kind
	Mode      string
	Processes []Process
	CreatedAt time.Time
}

// NewLaunch creates a launch with a fresh ID.
func NewLaunch(kind Kind, mode string, processes ...Process) *Launch {
	return &Launch{
		ID:        uuid.NewString(),
		Kind:      kind,
		Mode:      mode,
		Processes: processes,
		CreatedAt: time.Now(),
	}
}

// HasProcesses reports whether the launch owns at least one process.
func (l *Launch) HasProcesses() bool {
	return l != nil && len(l.Processes) > 0
}

// AllTerminated reports whether every process of the launch has terminated.
// A launch without processes is never considered terminated.
func (l *Launch) AllTerminated() bool {
	if !l.HasProcesses() {
		return false
	}
	for _, p := range l.Processes {
		if !p.Terminated() {
			return false
		}
	}
	return true
}

// TerminateAll asks every live process of the launch to terminate. Failures are
// logged and joined; they never stop the remaining processes from being terminated.
func (l *Launch) TerminateAll(force bool) error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, p := range l.Processes {
		if p.Terminated() {
			continue
		}
		if err := p.Terminate(force); err != nil {
			logging.Warn("Launcher", "Failed to terminate process %s (pid %d): %v", p.ID(), p.PID(), err)
			errs = append(errs, fmt.Errorf("process %s: %w", p.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func (l *Launch) String() string {
	if l == nil {
		return "<no launch>"
	}
	return fmt.Sprintf("%s launch %s (%d processes)", l.Kind, l.ID, len(l.Processes))
}

// CommandLineDetails describes the command line actually used for a start launch.
type CommandLineDetails struct {
	Command    string            `json:"command"`
	Args       []string          `json:"args,omitempty"`
	WorkingDir string            `json:"workingDir,omitempty"`
	Env        []string          `json:"env,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// StopRequest carries the inputs of a shutdown launch.
type StopRequest struct {
	Force bool

	// Running is the start launch currently tracked by the server, or nil.
	Running *Launch
}

// StartLauncher spawns the server process for a mode. On failure it may return the
// partial launch it managed to create together with an *api.LaunchError.
type StartLauncher interface {
	LaunchStart(ctx context.Context, mode string) (*Launch, *CommandLineDetails, error)
}

// ShutdownLauncher requests the server to stop. A nil launch with a nil error is a
// valid result for servers that stop without a dedicated stop process.
type ShutdownLauncher interface {
	LaunchStop(ctx context.Context, req StopRequest) (*Launch, error)
}

// StartLauncherFunc adapts a function to StartLauncher.
type StartLauncherFunc func(ctx context.Context, mode string) (*Launch, *CommandLineDetails, error)

// LaunchStart implements StartLauncher.
func (f StartLauncherFunc) LaunchStart(ctx context.Context, mode string) (*Launch, *CommandLineDetails, error) {
	return f(ctx, mode)
}

// ShutdownLauncherFunc adapts a function to ShutdownLauncher.
type ShutdownLauncherFunc func(ctx context.Context, req StopRequest) (*Launch, error)

// LaunchStop implements ShutdownLauncher.
func (f ShutdownLauncherFunc) LaunchStop(ctx context.Context, req StopRequest) (*Launch, error) {
	return f(ctx, req)
}
