package servertype

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"overseer/internal/api"
	"overseer/internal/config"
	"overseer/internal/events"
	"overseer/internal/launcher"
	"overseer/internal/lifecycle"
	"overseer/internal/poller"
	"overseer/internal/publish"
	"overseer/pkg/logging"
)

// Options injects collaborators into a Generic server. Zero values select the
// production implementations.
type Options struct {
	Fs      afero.Fs
	Events  events.Sink
	Starter launcher.StartLauncher
	Stopper launcher.ShutdownLauncher
	Probe   poller.Probe
}

// Generic is a managed server built from a Preset and a server configuration.
type Generic struct {
	cfg    config.ServerConfig
	preset Preset
	attrs  config.Attributes

	instance   *lifecycle.Instance
	model      *publish.Model
	controller *publish.Controller
	publisher  *publish.Publisher

	mu   sync.Mutex
	auto *publish.AutoPublisher
}

var _ Server = (*Generic)(nil)

// New creates the server described by cfg. Deployables listed in cfg are registered;
// a deployable that cannot be added is logged and skipped.
func New(cfg config.ServerConfig, opts Options) (*Generic, error) {
	typ := cfg.Type
	if typ == "" {
		typ = config.DefaultServerType
	}
	preset, ok := Lookup(typ)
	if !ok {
		return nil, fmt.Errorf("server %s: unknown server type %q", cfg.Name, typ)
	}
	cfg.Type = typ
	if len(cfg.Start) == 0 {
		cfg.Start = preset.Start
	}
	if len(cfg.Stop) == 0 {
		cfg.Stop = preset.Stop
	}

	g := &Generic{
		cfg:    cfg,
		preset: preset,
		attrs:  config.NewAttributes(cfg.Attributes),
	}

	sink := opts.Events
	if sink == nil {
		sink = events.NopSink{}
	}

	cmd := launcher.NewCommandLauncher(cfg.Name, g.attrs, cfg.Start, cfg.Stop)
	starter, stopper := opts.Starter, opts.Stopper
	if starter == nil {
		starter = cmd
	}
	if stopper == nil {
		stopper = cmd
	}
	probe := opts.Probe
	if probe == nil && preset.Probe != nil {
		probe = preset.Probe(g.attrs)
	}

	g.instance = lifecycle.New(lifecycle.Options{
		Name:       cfg.Name,
		Type:       typ,
		Attributes: g.attrs,
		Validate:   g.validate,
		Starter:    starter,
		Stopper:    stopper,
		Probe:      probe,
		Events:     sink,
	})

	g.model = publish.NewModel(cfg.Name, sink)
	g.controller = publish.NewController(publish.ControllerOptions{
		Server:       cfg.Name,
		Fs:           opts.Fs,
		Patterns:     preset.Patterns,
		Exploded:     preset.Exploded,
		DeployFolder: g.deployFolder,
		ServerState:  g.instance.State,
		Model:        g.model,
	})
	g.publisher = publish.NewPublisher(cfg.Name, g.controller, g.model, sink, g.instance.State)
	g.instance.AddStateListener(g.publisher.OnServerStateChange)

	for _, d := range cfg.Deployables {
		ref := publish.Reference{Label: d.Label, Path: d.Path, Options: d.Options}
		if st := g.publisher.AddDeployable(ref); !st.IsOK() {
			logging.Warn("Server", "Skipping deployable %s of server %s: %s", d.Label, cfg.Name, st.Message)
		}
	}
	return g, nil
}

func (g *Generic) validate() error {
	var errs []error
	if err := config.ValidateServer(g.cfg); err != nil {
		errs = append(errs, err)
	}
	if len(g.cfg.Start) == 0 {
		errs = append(errs, errors.New("no start command configured"))
	}
	for _, key := range g.preset.Required {
		if strings.TrimSpace(g.attrs.String(key, "")) == "" {
			errs = append(errs, fmt.Errorf("attribute %s is required by server type %s", key, g.preset.ID))
		}
	}
	return errors.Join(errs...)
}

func (g *Generic) deployFolder() (string, error) {
	if g.preset.DeployFolder == nil {
		return "", fmt.Errorf("server type %s does not support publishing", g.preset.ID)
	}
	return g.preset.DeployFolder(g.attrs)
}

// Config returns the effective server configuration.
func (g *Generic) Config() config.ServerConfig { return g.cfg }

// Instance returns the underlying lifecycle instance.
func (g *Generic) Instance() *lifecycle.Instance { return g.instance }

// Publisher returns the underlying publisher.
func (g *Generic) Publisher() *publish.Publisher { return g.publisher }

func (g *Generic) Name() string                 { return g.instance.Name() }
func (g *Generic) Type() string                 { return g.instance.Type() }
func (g *Generic) State() api.ServerState       { return g.instance.State() }
func (g *Generic) Mode() string                 { return g.instance.Mode() }
func (g *Generic) Snapshot() lifecycle.Snapshot { return g.instance.Snapshot() }
func (g *Generic) CanStart(mode string) api.Status {
	return g.instance.CanStart(mode)
}
func (g *Generic) CanStop() api.Status { return g.instance.CanStop() }

func (g *Generic) Start(ctx context.Context, mode string) lifecycle.StartResult {
	return g.instance.Start(ctx, mode)
}

func (g *Generic) Stop(ctx context.Context, force bool) api.Status {
	return g.instance.Stop(ctx, force)
}

func (g *Generic) Shutdown(ctx context.Context) error { return g.instance.Shutdown(ctx) }

func (g *Generic) WaitForState(ctx context.Context, states ...api.ServerState) error {
	return g.instance.WaitForState(ctx, states...)
}

func (g *Generic) AddStateListener(l lifecycle.StateListener) { g.instance.AddStateListener(l) }

// CanAddDeployable reports whether ref is an artifact this server type accepts.
func (g *Generic) CanAddDeployable(ref publish.Reference) api.Status {
	if _, ok := g.model.Get(ref.Label); ok && g.model.State(ref.Label) != api.PublishStateRemove {
		return api.ErrorStatus(api.NewPublishError(ref.Label, "add", errors.New("already registered")))
	}
	return g.controller.CanAdd(ref)
}

// CanRemoveDeployable reports whether label has a publish record to remove.
func (g *Generic) CanRemoveDeployable(label string) api.Status {
	d, ok := g.model.Get(label)
	if !ok {
		return api.ErrorStatus(fmt.Errorf("%w: %s", api.ErrDeployableNotFound, label))
	}
	return g.controller.CanRemove(d.Reference)
}

// CanPublish reports whether a publish may run now. Servers in transition are
// not published to.
func (g *Generic) CanPublish() api.Status {
	if state := g.instance.State(); state == api.StateStarting || state == api.StateStopping {
		return api.CancelStatus("server %s is %s", g.cfg.Name, state)
	}
	return g.controller.CanPublish()
}

func (g *Generic) AddDeployable(ref publish.Reference) api.Status {
	st := g.publisher.AddDeployable(ref)
	if st.IsOK() {
		g.mu.Lock()
		auto := g.auto
		g.mu.Unlock()
		if auto != nil {
			if err := auto.Watch(ref); err != nil {
				logging.Warn("Server", "Failed to watch deployable %s: %v", ref.Label, err)
			}
		}
	}
	return st
}

func (g *Generic) RemoveDeployable(label string) api.Status {
	return g.publisher.RemoveDeployable(label)
}

func (g *Generic) Deployables() []publish.DeployableState { return g.model.List() }

func (g *Generic) PublishStart(kind api.PublishKind) error {
	return g.controller.PublishStart(kind)
}

func (g *Generic) PublishFinish(kind api.PublishKind) error {
	return g.controller.PublishFinish(kind)
}

func (g *Generic) PublishModule(ctx context.Context, ref publish.Reference, req api.RequestType, current api.PublishState) (api.PublishState, error) {
	return g.controller.PublishModule(ctx, ref, req, current)
}

// Publish runs a whole publish cycle when CanPublish allows it.
func (g *Generic) Publish(ctx context.Context, kind api.PublishKind) error {
	if st := g.CanPublish(); !st.IsOK() {
		if st.Err != nil {
			return st.Err
		}
		return api.NewPublishError("", string(kind), errors.New(st.Message))
	}
	return g.publisher.Publish(ctx, kind)
}

// StartAutoPublish republishes deployables whose sources change while the server
// is started. It is a no-op when already running.
func (g *Generic) StartAutoPublish(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.auto != nil {
		return nil
	}
	auto := publish.NewAutoPublisher(g.publisher, g.instance.State, 0)
	if err := auto.Start(ctx); err != nil {
		return err
	}
	g.auto = auto
	return nil
}

// Close stops the auto publisher. It does not stop the server.
func (g *Generic) Close() error {
	g.mu.Lock()
	auto := g.auto
	g.auto = nil
	g.mu.Unlock()
	if auto == nil {
		return nil
	}
	return auto.Stop()
}
