package publish

import (
	"fmt"
	"sort"
	"sync"

	"overseer/internal/api"
	"overseer/internal/events"
)

// Reference identifies a deployable and its source.
type Reference struct {
	Label   string            `json:"label"`
	Path    string            `json:"path"`
	Options map[string]string `json:"options,omitempty"`
}

// DeployableState is the tracked state of one deployable.
type DeployableState struct {
	Reference    Reference        `json:"reference"`
	Kind         api.ArtifactKind `json:"kind"`
	PublishState api.PublishState `json:"publishState"`
	RunState     api.ServerState  `json:"runState"`
}

// Model is the registry of deployables of one server. Every publish state change is
// reported as a DeployableStateChanged event.
type Model struct {
	server string
	sink   events.Sink

	mu    sync.Mutex
	items map[string]*DeployableState
}

// NewModel creates an empty model.
func NewModel(server string, sink events.Sink) *Model {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &Model{
		server: server,
		sink:   sink,
		items:  make(map[string]*DeployableState),
	}
}

// Add registers ref in ADD state. A deployable pending removal is re-added.
func (m *Model) Add(ref Reference, kind api.ArtifactKind) error {
	m.mu.Lock()
	existing, ok := m.items[ref.Label]
	if ok && existing.PublishState != api.PublishStateRemove {
		m.mu.Unlock()
		return fmt.Errorf("deployable %s is already registered on server %s", ref.Label, m.server)
	}
	previous := api.PublishStateNone
	if ok {
		previous = existing.PublishState
	}
	m.items[ref.Label] = &DeployableState{
		Reference:    ref,
		Kind:         kind,
		PublishState: api.PublishStateAdd,
		RunState:     api.StateStopped,
	}
	m.mu.Unlock()

	m.changed(ref.Label, previous, api.PublishStateAdd)
	return nil
}

// Remove schedules the deployable for removal. A deployable that was never placed is
// dropped right away.
func (m *Model) Remove(label string) error {
	m.mu.Lock()
	d, ok := m.items[label]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", api.ErrDeployableNotFound, label)
	}
	previous := d.PublishState
	next := api.PublishStateRemove
	if previous == api.PublishStateAdd {
		delete(m.items, label)
		next = api.PublishStateNone
	} else {
		d.PublishState = next
	}
	m.mu.Unlock()

	m.changed(label, previous, next)
	return nil
}

// MarkChanged flags a placed deployable for republishing with the given state
// (INCREMENTAL or FULL). Deployables that are not placed are left alone.
func (m *Model) MarkChanged(label string, state api.PublishState) bool {
	m.mu.Lock()
	d, ok := m.items[label]
	if !ok || !d.PublishState.IsPlaced() || d.PublishState == state || d.PublishState == api.PublishStateFull {
		m.mu.Unlock()
		return false
	}
	previous := d.PublishState
	d.PublishState = state
	m.mu.Unlock()

	m.changed(label, previous, state)
	return true
}

// SetPublishState records the result of a publish operation. NONE drops the deployable.
func (m *Model) SetPublishState(label string, state api.PublishState) {
	m.mu.Lock()
	d, ok := m.items[label]
	if !ok || d.PublishState == state {
		m.mu.Unlock()
		return
	}
	previous := d.PublishState
	if state == api.PublishStateNone {
		delete(m.items, label)
	} else {
		d.PublishState = state
	}
	m.mu.Unlock()

	m.changed(label, previous, state)
}

// SetRunState sets the run state of one deployable.
func (m *Model) SetRunState(label string, state api.ServerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.items[label]; ok {
		d.RunState = state
	}
}

// SetPlacedRunStates mirrors the server state onto every placed deployable.
func (m *Model) SetPlacedRunStates(state api.ServerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.items {
		if d.PublishState.IsPlaced() {
			d.RunState = state
		}
	}
}

// Sweep drops every deployable left in REMOVE and returns their labels.
func (m *Model) Sweep() []string {
	m.mu.Lock()
	var swept []string
	for label, d := range m.items {
		if d.PublishState == api.PublishStateRemove {
			delete(m.items, label)
			swept = append(swept, label)
		}
	}
	m.mu.Unlock()

	sort.Strings(swept)
	for _, label := range swept {
		m.changed(label, api.PublishStateRemove, api.PublishStateNone)
	}
	return swept
}

// Get returns a copy of the deployable state.
func (m *Model) Get(label string) (DeployableState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[label]
	if !ok {
		return DeployableState{}, false
	}
	return *d, true
}

// State returns the publish state of label, NONE when unknown.
func (m *Model) State(label string) api.PublishState {
	if d, ok := m.Get(label); ok {
		return d.PublishState
	}
	return api.PublishStateNone
}

// List returns copies of all deployables sorted by label.
func (m *Model) List() []DeployableState {
	m.mu.Lock()
	out := make([]DeployableState, 0, len(m.items))
	for _, d := range m.items {
		out = append(out, *d)
	}
	m.mu.Unlock()

	sort.Slice(out, func(a, b int) bool { return out[a].Reference.Label < out[b].Reference.Label })
	return out
}

func (m *Model) changed(label string, from, to api.PublishState) {
	m.sink.Emit(events.ReasonDeployableStateChanged, events.EventData{
		Server:        m.server,
		Deployable:    label,
		PreviousState: string(from),
		State:         string(to),
	})
}
