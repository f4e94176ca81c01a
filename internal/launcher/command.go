package launcher

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"

	"overseer/internal/api"
	"overseer/internal/config"
	"overseer/pkg/logging"
)

// TemplateData is the value command templates are executed against:
//
//	{{ .Attr "server.home" }}/bin/catalina.sh
//	{{ if .Debug }}jpda {{ end }}run
type TemplateData struct {
	Name  string
	Mode  string
	Debug bool
	attrs config.Attributes
}

// Attr returns the attribute as a string, empty when unset.
func (d TemplateData) Attr(key string) string {
	return d.attrs.String(key, "")
}

// AttrOr returns the attribute as a string or def when unset.
func (d TemplateData) AttrOr(key, def string) string {
	return d.attrs.String(key, def)
}

// spawnFunc starts one rendered command.
type spawnFunc func(id, subsystem string, spec CommandSpec, grace time.Duration) (Process, error)

func spawnExec(id, subsystem string, spec CommandSpec, grace time.Duration) (Process, error) {
	return StartProcess(id, subsystem, spec, grace)
}

// CommandLauncher launches a server from templated command lines. It implements
// both StartLauncher and ShutdownLauncher. Without stop commands it falls back to
// terminating the running start launch.
type CommandLauncher struct {
	server      string
	attrs       config.Attributes
	start       []config.CommandConfig
	stop        []config.CommandConfig
	gracePeriod time.Duration
	spawn       spawnFunc
}

// NewCommandLauncher creates a launcher for the named server.
func NewCommandLauncher(server string, attrs config.Attributes, start, stop []config.CommandConfig) *CommandLauncher {
	return &CommandLauncher{
		server:      server,
		attrs:       attrs,
		start:       start,
		stop:        stop,
		gracePeriod: attrs.Duration(config.AttrGracePeriod, config.DefaultGracePeriod),
		spawn:       spawnExec,
	}
}

// Render renders the commands for mode without running them.
func (l *CommandLauncher) Render(commands []config.CommandConfig, mode string) ([]CommandSpec, error) {
	data := TemplateData{
		Name:  l.server,
		Mode:  mode,
		Debug: mode == api.ModeDebug,
		attrs: l.attrs,
	}
	specs := make([]CommandSpec, 0, len(commands))
	for i, c := range commands {
		spec, err := renderCommand(fmt.Sprintf("%s-%d", l.server, i), c, data)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// LaunchStart implements StartLauncher. Commands are spawned in order; if one fails
// the processes spawned so far are returned as a partial launch with the error.
func (l *CommandLauncher) LaunchStart(ctx context.Context, mode string) (*Launch, *CommandLineDetails, error) {
	if len(l.start) == 0 {
		return nil, nil, api.NewLaunchError("start", fmt.Errorf("server %s has no start command", l.server))
	}
	specs, err := l.Render(l.start, mode)
	if err != nil {
		return nil, nil, api.NewLaunchError("start", err)
	}
	details := detailsFor(specs[0], mode)

	launch, err := l.spawnAll(ctx, KindStart, mode, specs)
	if err != nil {
		return launch, details, api.NewLaunchError("start", err)
	}
	logging.Info("Launcher", "Launched %s for server %s in %s mode", launch, l.server, mode)
	return launch, details, nil
}

// LaunchStop implements ShutdownLauncher. A forced stop, or a server without stop
// commands, terminates the running launch directly and returns no launch.
func (l *CommandLauncher) LaunchStop(ctx context.Context, req StopRequest) (*Launch, error) {
	if req.Force || len(l.stop) == 0 {
		return SignalShutdown{}.LaunchStop(ctx, req)
	}
	mode := ""
	if req.Running != nil {
		mode = req.Running.Mode
	}
	specs, err := l.Render(l.stop, mode)
	if err != nil {
		return nil, api.NewLaunchError("stop", err)
	}
	launch, err := l.spawnAll(ctx, KindStop, mode, specs)
	if err != nil {
		if launch != nil {
			_ = launch.TerminateAll(true)
		}
		return nil, api.NewLaunchError("stop", err)
	}
	logging.Info("Launcher", "Launched %s for server %s", launch, l.server)
	return launch, nil
}

func (l *CommandLauncher) spawnAll(ctx context.Context, kind Kind, mode string, specs []CommandSpec) (*Launch, error) {
	launch := NewLaunch(kind, mode)
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return partial(launch), err
		}
		id := fmt.Sprintf("%s-%s-%d", l.server, kind, i)
		p, err := l.spawn(id, "Server:"+l.server, spec, l.gracePeriod)
		if err != nil {
			return partial(launch), err
		}
		launch.Processes = append(launch.Processes, p)
	}
	return launch, nil
}

// partial returns the launch only if it spawned something.
func partial(l *Launch) *Launch {
	if l.HasProcesses() {
		return l
	}
	return nil
}

func renderCommand(name string, c config.CommandConfig, data TemplateData) (CommandSpec, error) {
	render := func(field, text string) (string, error) {
		if !strings.Contains(text, "{{") {
			return text, nil
		}
		tmpl, err := template.New(name + "/" + field).Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(text)
		if err != nil {
			return "", fmt.Errorf("failed to parse %s template %q: %w", field, text, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("failed to render %s template %q: %w", field, text, err)
		}
		return buf.String(), nil
	}

	var spec CommandSpec
	var err error
	if spec.Command, err = render("command", c.Command); err != nil {
		return spec, err
	}
	if strings.TrimSpace(spec.Command) == "" {
		return spec, fmt.Errorf("command %q rendered empty", c.Command)
	}
	for i, a := range c.Args {
		v, err := render(fmt.Sprintf("args[%d]", i), a)
		if err != nil {
			return spec, err
		}
		if v != "" {
			spec.Args = append(spec.Args, v)
		}
	}
	if spec.Dir, err = render("dir", c.Dir); err != nil {
		return spec, err
	}

	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, err := render("env."+k, c.Env[k])
		if err != nil {
			return spec, err
		}
		spec.Env = append(spec.Env, k+"="+v)
	}
	return spec, nil
}

func detailsFor(spec CommandSpec, mode string) *CommandLineDetails {
	return &CommandLineDetails{
		Command:    spec.Command,
		Args:       spec.Args,
		WorkingDir: spec.Dir,
		Env:        spec.Env,
		Properties: map[string]string{"mode": mode},
	}
}

// SignalShutdown stops a server by terminating the processes of its running start
// launch. It never produces a stop launch.
type SignalShutdown struct{}

// LaunchStop implements ShutdownLauncher.
func (SignalShutdown) LaunchStop(_ context.Context, req StopRequest) (*Launch, error) {
	if req.Running == nil {
		return nil, nil
	}
	if err := req.Running.TerminateAll(req.Force); err != nil {
		return nil, api.NewLaunchError("stop", err)
	}
	return nil, nil
}
