package events

import (
	"sync"
	"time"

	"overseer/pkg/logging"
)

// Sink receives events from the lifecycle and publish components.
type Sink interface {
	Emit(reason EventReason, data EventData)
}

// NopSink discards every event.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(EventReason, EventData) {}

// Listener is called synchronously for every emitted event.
type Listener func(Event)

// Dispatcher renders events and fans them out to listeners and channel subscribers.
// Emit never blocks on a slow subscriber: when a subscriber's buffer is full the
// event is dropped for that subscriber.
type Dispatcher struct {
	templates *MessageTemplateEngine
	now       func() time.Time

	mu          sync.RWMutex
	listeners   []Listener
	subscribers map[int]chan Event
	nextID      int
}

// NewDispatcher creates a dispatcher with the default message templates.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		templates:   NewMessageTemplateEngine(),
		now:         time.Now,
		subscribers: make(map[int]chan Event),
	}
}

// Templates returns the template engine used to render messages.
func (d *Dispatcher) Templates() *MessageTemplateEngine {
	return d.templates
}

// AddListener registers a function called for every event.
func (d *Dispatcher) AddListener(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Subscribe returns a buffered channel receiving every subsequent event and a
// function that cancels the subscription and closes the channel.
func (d *Dispatcher) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subscribers[id] = ch
	d.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, id)
			d.mu.Unlock()
			close(ch)
		})
	}
}

// Emit renders and delivers an event.
func (d *Dispatcher) Emit(reason EventReason, data EventData) {
	event := Event{
		Reason:    reason,
		Type:      getEventType(reason),
		Message:   d.templates.Render(reason, data),
		Data:      data,
		Timestamp: d.now(),
	}

	if event.Type == EventTypeWarning {
		logging.Warn("Events", "%s: %s", reason, event.Message)
	} else {
		logging.Debug("Events", "%s: %s", reason, event.Message)
	}

	d.mu.RLock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	for id, ch := range d.subscribers {
		select {
		case ch <- event:
		default:
			logging.Debug("Events", "Subscriber %d is full, dropping %s event", id, reason)
		}
	}
	d.mu.RUnlock()

	for _, l := range listeners {
		l(event)
	}
}
