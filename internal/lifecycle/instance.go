package lifecycle

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"overseer/internal/api"
	"overseer/internal/config"
	"overseer/internal/events"
	"overseer/internal/launcher"
	"overseer/internal/metrics"
	"overseer/internal/poller"
	"overseer/internal/watcher"
)

// StateListener is notified after every state change, outside the instance lock.
type StateListener func(from, to api.ServerState)

// Options configures an Instance. Zero durations are read from the attributes.
type Options struct {
	Name       string
	Type       string
	Attributes config.Attributes

	// Modes overrides the supported launch modes (server.modes attribute by default).
	Modes []string

	// Validate is the configuration validation predicate checked before starting.
	Validate func() error

	Starter launcher.StartLauncher
	Stopper launcher.ShutdownLauncher
	// Probe answers the readiness polls. Defaults to a TCP probe of server.host:server.port.
	Probe poller.Probe

	Events events.Sink

	StartupTimeout  time.Duration
	ShutdownTimeout time.Duration
	PollInterval    time.Duration
}

// StartResult is returned by Start.
type StartResult struct {
	Status  api.Status
	Details *launcher.CommandLineDetails
}

// Snapshot is a consistent copy of the instance state.
type Snapshot struct {
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	State     api.ServerState `json:"state"`
	Mode      string          `json:"mode,omitempty"`
	LaunchID  string          `json:"launchId,omitempty"`
	Processes int             `json:"processes"`
	LastError string          `json:"lastError,omitempty"`
	Since     time.Time       `json:"since"`
}

// Instance is the lifecycle state machine of one managed server.
//
// Start and Stop are serialized by opMu. All state lives under mu; poll results and
// watcher callbacks take mu and re-check the poll generation or launch identity
// before acting, so a superseded signal never changes state.
type Instance struct {
	name            string
	typ             string
	attrs           config.Attributes
	modes           []string
	validate        func() error
	starter         launcher.StartLauncher
	stopper         launcher.ShutdownLauncher
	probe           poller.Probe
	sink            events.Sink
	startupTimeout  time.Duration
	shutdownTimeout time.Duration
	pollInterval    time.Duration

	opMu sync.Mutex

	mu          sync.Mutex
	state       api.ServerState
	since       time.Time
	mode        string
	launch      *launcher.Launch
	watcher     *watcher.Watcher
	stopWatcher *watcher.Watcher
	poll        *poller.Handle
	pollGen     uint64
	lastErr     error
	changed     chan struct{}
	listeners   []StateListener
}

// New creates a STOPPED instance.
func New(opts Options) *Instance {
	i := &Instance{
		name:            opts.Name,
		typ:             opts.Type,
		attrs:           opts.Attributes,
		modes:           opts.Modes,
		validate:        opts.Validate,
		starter:         opts.Starter,
		stopper:         opts.Stopper,
		probe:           opts.Probe,
		sink:            opts.Events,
		startupTimeout:  opts.StartupTimeout,
		shutdownTimeout: opts.ShutdownTimeout,
		pollInterval:    opts.PollInterval,
		state:           api.StateStopped,
		since:           time.Now(),
		changed:         make(chan struct{}),
	}
	if i.modes == nil {
		i.modes = opts.Attributes.StringSlice(config.AttrModes, config.DefaultModes)
	}
	if i.startupTimeout == 0 {
		i.startupTimeout = opts.Attributes.Duration(config.AttrStartupTimeout, config.DefaultStartupTimeout)
	}
	if i.shutdownTimeout == 0 {
		i.shutdownTimeout = opts.Attributes.Duration(config.AttrShutdownTimeout, config.DefaultShutdownTimeout)
	}
	if i.pollInterval == 0 {
		i.pollInterval = opts.Attributes.Duration(config.AttrPollInterval, config.DefaultPollInterval)
	}
	if i.probe == nil {
		addr := net.JoinHostPort(
			opts.Attributes.String(config.AttrServerHost, config.DefaultServerHost),
			strconv.Itoa(opts.Attributes.Int(config.AttrServerPort, config.DefaultServerPort)))
		i.probe = poller.TCPProbe(addr)
	}
	if i.sink == nil {
		i.sink = events.NopSink{}
	}
	if i.stopper == nil {
		i.stopper = launcher.SignalShutdown{}
	}
	metrics.SetState(i.name, string(i.state))
	return i
}

// Name returns the server name.
func (i *Instance) Name() string { return i.name }

// Type returns the server type id.
func (i *Instance) Type() string { return i.typ }

// Attributes returns the attribute store.
func (i *Instance) Attributes() config.Attributes { return i.attrs }

// Modes returns the supported launch modes.
func (i *Instance) Modes() []string { return slices.Clone(i.modes) }

// State returns the current lifecycle state.
func (i *Instance) State() api.ServerState {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Mode returns the mode of the current start attempt, empty when stopped.
func (i *Instance) Mode() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.mode
}

// StartLaunch returns the tracked start launch, nil when none.
func (i *Instance) StartLaunch() *launcher.Launch {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.launch
}

// LastError returns the last asynchronous or synchronous failure. It is cleared by Start.
func (i *Instance) LastError() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}

// Snapshot returns a consistent copy of the instance state.
func (i *Instance) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	s := Snapshot{
		Name:  i.name,
		Type:  i.typ,
		State: i.state,
		Mode:  i.mode,
		Since: i.since,
	}
	if i.launch != nil {
		s.LaunchID = i.launch.ID
		s.Processes = len(i.launch.Processes)
	}
	if i.lastErr != nil {
		s.LastError = i.lastErr.Error()
	}
	return s
}

// AddStateListener registers l for every subsequent state change.
func (i *Instance) AddStateListener(l StateListener) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listeners = append(i.listeners, l)
}

// WaitForState blocks until the instance is in one of states or ctx ends.
func (i *Instance) WaitForState(ctx context.Context, states ...api.ServerState) error {
	for {
		i.mu.Lock()
		current := i.state
		changed := i.changed
		i.mu.Unlock()

		if slices.Contains(states, current) {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("server %s is %s: %w", i.name, current, ctx.Err())
		}
	}
}

// CanStart reports whether Start(mode) would be accepted, without side effects.
func (i *Instance) CanStart(mode string) api.Status {
	if !slices.Contains(i.modes, mode) {
		return api.ErrorStatus(api.NewValidationError(i.name, "server may not be launched in mode %s", mode))
	}
	if state := i.State(); state != api.StateStopped {
		return api.CancelStatus("server %s is %s", i.name, state)
	}
	if i.validate != nil {
		if err := i.validate(); err != nil {
			return api.ErrorStatus(api.NewValidationError(i.name, "invalid configuration: %v", err))
		}
	}
	return api.OKStatus()
}

// CanStop reports whether Stop would be accepted.
func (i *Instance) CanStop() api.Status {
	if state := i.State(); state == api.StateStopped {
		return api.CancelStatus("server %s is %s", i.name, state)
	}
	return api.OKStatus()
}
