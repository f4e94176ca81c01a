// Package watcher observes the processes of a launch and reports their termination.
package watcher

import (
	"sync"

	"overseer/internal/launcher"
	"overseer/pkg/logging"
)

// Callbacks are invoked from the watcher's goroutines, never under its lock.
type Callbacks struct {
	// OnProcessTerminated fires exactly once per process of the launch.
	OnProcessTerminated func(p launcher.Process)

	// OnAllTerminated fires exactly once, after the last outstanding process terminated.
	// It never fires for a launch without processes.
	OnAllTerminated func()
}

// Watcher tracks termination of every process of one launch.
type Watcher struct {
	launch *launcher.Launch
	cb     Callbacks
	byID   map[string]launcher.Process

	mu        sync.Mutex
	seen      map[string]bool
	remaining int
	closed    bool
	started   bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for launch. Call Start to subscribe to process exits.
func New(launch *launcher.Launch, cb Callbacks) *Watcher {
	w := &Watcher{
		launch: launch,
		cb:     cb,
		byID:   make(map[string]launcher.Process),
		seen:   make(map[string]bool),
		stop:   make(chan struct{}),
	}
	if launch != nil {
		for _, p := range launch.Processes {
			if _, dup := w.byID[p.ID()]; dup {
				continue
			}
			w.byID[p.ID()] = p
		}
	}
	w.remaining = len(w.byID)
	return w
}

// Launch returns the watched launch.
func (w *Watcher) Launch() *launcher.Launch {
	return w.launch
}

// Start subscribes to the Done channel of every process. Processes that already
// exited are reported right away.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started || w.closed {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	for id, p := range w.byID {
		w.wg.Add(1)
		go func(id string, p launcher.Process) {
			defer w.wg.Done()
			select {
			case <-p.Done():
				w.Notify(id)
			case <-w.stop:
			}
		}(id, p)
	}
}

// Notify reports that the process with the given ID terminated. Unknown IDs,
// duplicates and notifications after Close are ignored. It returns true if the
// notification was new.
func (w *Watcher) Notify(id string) bool {
	w.mu.Lock()
	p, known := w.byID[id]
	if w.closed || !known || w.seen[id] {
		w.mu.Unlock()
		return false
	}
	w.seen[id] = true
	w.remaining--
	last := w.remaining == 0
	w.mu.Unlock()

	logging.Debug("Watcher", "Process %s of %s terminated", id, w.launch)
	if w.cb.OnProcessTerminated != nil {
		w.cb.OnProcessTerminated(p)
	}
	if last {
		logging.Debug("Watcher", "All processes of %s terminated", w.launch)
		if w.cb.OnAllTerminated != nil {
			w.cb.OnAllTerminated()
		}
	}
	return true
}

// Remaining returns the number of processes not reported as terminated yet.
func (w *Watcher) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.remaining
}

// Close unsubscribes from the processes. Callbacks already running complete; no new
// callbacks start afterwards.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stop)
}
