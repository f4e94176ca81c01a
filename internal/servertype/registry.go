package servertype

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"overseer/internal/api"
	"overseer/internal/config"
)

// Registry holds the servers of one overseer process.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]Server
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{servers: make(map[string]Server)}
}

// Build creates and registers a server for every entry of cfg.
func Build(cfg config.Config, opts Options) (*Registry, error) {
	r := NewRegistry()
	for _, sc := range cfg.Servers {
		s, err := New(sc, opts)
		if err != nil {
			return nil, err
		}
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a server.
func (r *Registry) Register(s Server) error {
	if s == nil {
		return errors.New("cannot register nil server")
	}
	name := s.Name()
	if name == "" {
		return errors.New("server has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.servers[name]; exists {
		return fmt.Errorf("server %s already registered", name)
	}
	r.servers[name] = s
	return nil
}

// Get returns a server by name.
func (r *Registry) Get(name string) (Server, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.servers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", api.ErrServerNotFound, name)
	}
	return s, nil
}

// All returns every server sorted by name.
func (r *Registry) All() []Server {
	r.mu.RLock()
	out := make([]Server, 0, len(r.servers))
	for _, s := range r.servers {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].Name() < out[b].Name() })
	return out
}

// ShutdownAll stops every server concurrently and closes it.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	servers := r.All()
	errs := make([]error, len(servers))

	var wg sync.WaitGroup
	for i, s := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Shutdown(ctx); err != nil {
				errs[i] = fmt.Errorf("server %s: %w", s.Name(), err)
			}
			if err := s.Close(); err != nil && errs[i] == nil {
				errs[i] = fmt.Errorf("server %s: %w", s.Name(), err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
