package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/querysense/querysense/config"
	"github.com/querysense/querysense/types"
)

// Registry holds the open connectors keyed by source name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*Connector
	logger  *zap.Logger
}

// NewRegistry opens every configured source. Sources that fail to open
// fail the whole registry: a half-configured service is worse than a
// loud startup error.
func NewRegistry(cfgs []config.SourceConfig, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{sources: make(map[string]*Connector, len(cfgs)), logger: logger}
	for _, cfg := range cfgs {
		if _, dup := r.sources[cfg.Name]; dup {
			r.closeAll()
			return nil, types.NewError(types.ErrInvalidRequest,
				fmt.Sprintf("duplicate source name %q", cfg.Name))
		}
		c, err := Open(cfg, logger)
		if err != nil {
			r.closeAll()
			return nil, err
		}
		r.sources[cfg.Name] = c
		logger.Info("data source opened",
			zap.String("source", cfg.Name),
			zap.String("driver", cfg.Driver),
			zap.Bool("read_only", cfg.ReadOnly))
	}
	return r, nil
}

// Get returns the connector for the named source.
func (r *Registry) Get(name string) (*Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sources[name]
	if !ok {
		return nil, types.NewError(types.ErrSourceNotFound,
			fmt.Sprintf("unknown data source %q", name)).WithHTTPStatus(404)
	}
	return c, nil
}

// Names lists the registered source names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PingAll probes every source concurrently and returns per-source
// results. The error is non-nil when any source is down.
func (r *Registry) PingAll(ctx context.Context) (map[string]error, error) {
	r.mu.RLock()
	connectors := make([]*Connector, 0, len(r.sources))
	for _, c := range r.sources {
		connectors = append(connectors, c)
	}
	r.mu.RUnlock()

	var mu sync.Mutex
	results := make(map[string]error, len(connectors))
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range connectors {
		g.Go(func() error {
			err := c.Ping(ctx)
			mu.Lock()
			results[c.Name()] = err
			mu.Unlock()
			return err
		})
	}
	return results, g.Wait()
}

// Close closes every connector.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAllLocked()
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.closeAllLocked()
}

func (r *Registry) closeAllLocked() error {
	var firstErr error
	for name, c := range r.sources {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.sources, name)
	}
	return firstErr
}
