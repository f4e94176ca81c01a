package publish

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"overseer/internal/api"
	"overseer/internal/events"
	"overseer/internal/metrics"
	"overseer/pkg/logging"
)

// defaultConcurrency bounds the deployables processed in parallel within one cycle.
const defaultConcurrency = 4

// Publisher runs complete publish cycles over a model.
type Publisher struct {
	server      string
	controller  *Controller
	model       *Model
	sink        events.Sink
	serverState func() api.ServerState
	concurrency int

	// runMu serializes whole cycles so that a second Publish waits instead of
	// failing on the controller's overlap check.
	runMu sync.Mutex
}

// NewPublisher creates a publisher. serverState may be nil.
func NewPublisher(server string, controller *Controller, model *Model, sink events.Sink, serverState func() api.ServerState) *Publisher {
	if sink == nil {
		sink = events.NopSink{}
	}
	if serverState == nil {
		serverState = func() api.ServerState { return api.StateStopped }
	}
	return &Publisher{
		server:      server,
		controller:  controller,
		model:       model,
		sink:        sink,
		serverState: serverState,
		concurrency: defaultConcurrency,
	}
}

// Model returns the deployable model.
func (p *Publisher) Model() *Model { return p.model }

// Controller returns the publish controller.
func (p *Publisher) Controller() *Controller { return p.controller }

// AddDeployable registers ref after checking the controller accepts it.
func (p *Publisher) AddDeployable(ref Reference) api.Status {
	if st := p.controller.CanAdd(ref); !st.IsOK() {
		return st
	}
	kind, err := p.controller.ArtifactKind(ref)
	if err != nil {
		return api.ErrorStatus(err)
	}
	if err := p.model.Add(ref, kind); err != nil {
		return api.ErrorStatus(err)
	}
	return api.OKStatus()
}

// RemoveDeployable schedules label for removal on the next cycle.
func (p *Publisher) RemoveDeployable(label string) api.Status {
	d, ok := p.model.Get(label)
	if !ok {
		return api.ErrorStatus(api.ErrDeployableNotFound)
	}
	if d.PublishState != api.PublishStateAdd {
		if st := p.controller.CanRemove(d.Reference); !st.IsOK() {
			return st
		}
	}
	if err := p.model.Remove(label); err != nil {
		return api.ErrorStatus(err)
	}
	return api.OKStatus()
}

// Publish runs one cycle of the given kind over every deployable of the model.
// Failing deployables do not stop the others; all errors are joined.
func (p *Publisher) Publish(ctx context.Context, kind api.PublishKind) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if err := p.controller.PublishStart(kind); err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, d := range p.model.List() {
		req := RequestFor(kind, d.PublishState)
		g.Go(func() error {
			state, err := p.controller.PublishModule(gctx, d.Reference, req, d.PublishState)
			if err != nil {
				metrics.RecordPublish(p.server, string(req), "error")
				p.sink.Emit(events.ReasonDeployablePublishFailed, events.EventData{
					Server:     p.server,
					Deployable: d.Reference.Label,
					Error:      err.Error(),
				})
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			if req != api.RequestNone {
				metrics.RecordPublish(p.server, string(req), "ok")
			}
			p.model.SetPublishState(d.Reference.Label, state)
			if state.IsPlaced() {
				p.model.SetRunState(d.Reference.Label, p.serverState())
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := p.controller.PublishFinish(kind); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		logging.Warn("Publish", "%s publish on server %s finished with %d errors", kind, p.server, len(errs))
	}
	return errors.Join(errs...)
}

// OnServerStateChange mirrors the server state onto placed deployables. Deployables
// PUBLISHED while the server was down become IN_SYNC once it is STARTED.
func (p *Publisher) OnServerStateChange(_, to api.ServerState) {
	p.model.SetPlacedRunStates(to)
	if to != api.StateStarted {
		return
	}
	for _, d := range p.model.List() {
		if d.PublishState == api.PublishStatePublished {
			p.model.SetPublishState(d.Reference.Label, api.PublishStateInSync)
		}
	}
}

// RequestFor derives the request type for a deployable in state during a cycle of kind.
func RequestFor(kind api.PublishKind, state api.PublishState) api.RequestType {
	full := kind == api.PublishFull || kind == api.PublishClean
	switch state {
	case api.PublishStateAdd:
		return api.RequestAdd
	case api.PublishStateRemove:
		return api.RequestRemove
	case api.PublishStateFull:
		return api.RequestFull
	case api.PublishStateIncremental:
		if full {
			return api.RequestFull
		}
		return api.RequestIncremental
	case api.PublishStateInSync, api.PublishStatePublished:
		if full {
			return api.RequestFull
		}
		return api.RequestNone
	default:
		return api.RequestNone
	}
}
