package launcher

// Process is a handle to one OS process spawned by a launcher.
type Process interface {
	// ID identifies the process within overseer. It is stable and unique per launch.
	ID() string

	// PID is the operating system process id, 0 when unknown.
	PID() int

	// Terminate asks the process to exit. force skips the graceful phase.
	// Terminating an already terminated process is a no-op.
	Terminate(force bool) error

	// Terminated reports whether the process has exited.
	Terminated() bool

	// Done is closed once the process has exited.
	Done() <-chan struct{}

	// ExitErr is the error returned by wait once the process exited.
	ExitErr() error
}
