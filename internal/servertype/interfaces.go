package servertype

import (
	"context"

	"overseer/internal/api"
	"overseer/internal/config"
	"overseer/internal/lifecycle"
	"overseer/internal/publish"
)

// Lifecycle is the start/stop capability of a managed server.
type Lifecycle interface {
	Name() string
	Type() string
	State() api.ServerState
	Mode() string
	Snapshot() lifecycle.Snapshot

	CanStart(mode string) api.Status
	CanStop() api.Status
	Start(ctx context.Context, mode string) lifecycle.StartResult
	Stop(ctx context.Context, force bool) api.Status
	Shutdown(ctx context.Context) error
	WaitForState(ctx context.Context, states ...api.ServerState) error
	AddStateListener(l lifecycle.StateListener)
}

// Publishable is the deployable reconciliation capability of a managed server.
type Publishable interface {
	CanAddDeployable(ref publish.Reference) api.Status
	CanRemoveDeployable(label string) api.Status
	CanPublish() api.Status

	AddDeployable(ref publish.Reference) api.Status
	RemoveDeployable(label string) api.Status
	Deployables() []publish.DeployableState

	PublishStart(kind api.PublishKind) error
	PublishFinish(kind api.PublishKind) error
	PublishModule(ctx context.Context, ref publish.Reference, req api.RequestType, current api.PublishState) (api.PublishState, error)
	Publish(ctx context.Context, kind api.PublishKind) error
}

// Server is a managed server with both capabilities.
type Server interface {
	Lifecycle
	Publishable

	Config() config.ServerConfig
	StartAutoPublish(ctx context.Context) error
	Close() error
}
