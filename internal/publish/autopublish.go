package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"overseer/internal/api"
	"overseer/pkg/logging"
)

// DefaultDebounce is how long the auto publisher waits for further changes.
const DefaultDebounce = 500 * time.Millisecond

// AutoPublisher watches deployable sources and republishes incrementally when they
// change while the server is STARTED.
type AutoPublisher struct {
	publisher   *Publisher
	serverState func() api.ServerState
	debounce    time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending map[string]bool
	timer   *time.Timer
	stopCh  chan struct{}
	running bool
	ctx     context.Context
}

// NewAutoPublisher creates an auto publisher for the deployables of publisher.
func NewAutoPublisher(publisher *Publisher, serverState func() api.ServerState, debounce time.Duration) *AutoPublisher {
	if debounce == 0 {
		debounce = DefaultDebounce
	}
	return &AutoPublisher{
		publisher:   publisher,
		serverState: serverState,
		debounce:    debounce,
		pending:     make(map[string]bool),
	}
}

// Start watches the sources of all deployables currently in the model.
func (a *AutoPublisher) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.watcher = w
	a.running = true
	a.stopCh = make(chan struct{})
	a.ctx = ctx
	a.mu.Unlock()

	for _, d := range a.publisher.Model().List() {
		if err := a.Watch(d.Reference); err != nil {
			logging.Warn("AutoPublish", "Failed to watch %s: %v", d.Reference.Path, err)
		}
	}

	go a.processEvents(ctx, w, a.stopCh)
	logging.Info("AutoPublish", "Watching deployable sources of server %s", a.publisher.server)
	return nil
}

// Watch adds the source of ref. Archives are watched through their parent directory;
// exploded directories are watched recursively.
func (a *AutoPublisher) Watch(ref Reference) error {
	a.mu.Lock()
	w := a.watcher
	a.mu.Unlock()
	if w == nil {
		return nil
	}

	info, err := os.Stat(ref.Path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.Add(filepath.Dir(ref.Path))
	}
	return filepath.WalkDir(ref.Path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}

func (a *AutoPublisher) processEvents(ctx context.Context, w *fsnotify.Watcher, stopCh chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			a.cancelPending()
			return
		case <-stopCh:
			a.cancelPending()
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			a.handleFsEvent(event)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.Error("AutoPublish", err, "Filesystem watcher error")
		}
	}
}

func (a *AutoPublisher) handleFsEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	labels := a.labelsFor(event.Name)
	if len(labels) == 0 {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			a.mu.Lock()
			if a.watcher != nil {
				_ = a.watcher.Add(event.Name)
			}
			a.mu.Unlock()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, l := range labels {
		a.pending[l] = true
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.flush)
}

// labelsFor returns the deployables whose source contains p.
func (a *AutoPublisher) labelsFor(p string) []string {
	var labels []string
	for _, d := range a.publisher.Model().List() {
		src := filepath.Clean(d.Reference.Path)
		if p == src || strings.HasPrefix(p, src+string(filepath.Separator)) {
			labels = append(labels, d.Reference.Label)
		}
	}
	return labels
}

func (a *AutoPublisher) flush() {
	a.mu.Lock()
	labels := make([]string, 0, len(a.pending))
	for l := range a.pending {
		labels = append(labels, l)
	}
	a.pending = make(map[string]bool)
	a.timer = nil
	ctx := a.ctx
	a.mu.Unlock()

	changed := false
	for _, l := range labels {
		if a.publisher.Model().MarkChanged(l, api.PublishStateIncremental) {
			changed = true
		}
	}
	if !changed {
		return
	}
	if a.serverState() != api.StateStarted {
		logging.Debug("AutoPublish", "Sources changed for %v, server %s is not started", labels, a.publisher.server)
		return
	}
	logging.Info("AutoPublish", "Sources changed for %v, publishing server %s", labels, a.publisher.server)
	if err := a.publisher.Publish(ctx, api.PublishIncremental); err != nil {
		logging.Error("AutoPublish", err, "Incremental publish of server %s failed", a.publisher.server)
	}
}

func (a *AutoPublisher) cancelPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.pending = make(map[string]bool)
}

// Stop stops watching.
func (a *AutoPublisher) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	close(a.stopCh)

	var err error
	if a.watcher != nil {
		err = a.watcher.Close()
		a.watcher = nil
	}
	logging.Info("AutoPublish", "Stopped watching deployable sources of server %s", a.publisher.server)
	return err
}
