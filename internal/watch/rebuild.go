package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fielddoc/fielddoc/internal/catalog"
	"github.com/fielddoc/fielddoc/internal/manifest"
)

// PublishFunc receives every catalog a Rebuilder builds.
type PublishFunc func(ctx context.Context, cat *catalog.Catalog) error

// Rebuilder loads a manifest directory, builds its catalog and hands the
// result to the publishers. Rebuilds are serialized.
type Rebuilder struct {
	Dir     string
	Service catalog.Service

	Publishers []PublishFunc

	// Reload, when set, is told about every rebuild.
	Reload *ReloadServer

	Debounce time.Duration
	Logger   *zap.Logger

	mu sync.Mutex
}

// Build loads the manifests and publishes a fresh catalog. The action index
// and type hierarchy of the loaded manifests replace those of Service.
func (r *Rebuilder) Build(ctx context.Context) (*catalog.Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := manifest.LoadDir(r.Dir)
	if err != nil {
		return nil, err
	}
	endpoints, err := m.CatalogEndpoints()
	if err != nil {
		return nil, err
	}

	svc := r.Service
	svc.Actions = m.Actions()
	svc.Request.Hierarchy = m.Hierarchy
	svc.Response.Hierarchy = m.Hierarchy
	if svc.Logger == nil {
		svc.Logger = r.logger()
	}
	cat := svc.Build(ctx, endpoints)

	for _, publish := range r.Publishers {
		if err := publish(ctx, cat); err != nil {
			return cat, fmt.Errorf("failed to publish catalog: %w", err)
		}
	}
	return cat, nil
}

// Watch rebuilds on every manifest change until ctx is done. The initial
// build is left to the caller.
func (r *Rebuilder) Watch(ctx context.Context) error {
	fw, err := NewFileWatcher(WatcherConfig{
		Dirs:     []string{r.Dir},
		Match:    manifest.IsManifestFile,
		Debounce: r.Debounce,
		Logger:   r.logger(),
	}, func(files []string) error {
		return r.rebuild(ctx, files)
	})
	if err != nil {
		return err
	}
	if err := fw.Start(); err != nil {
		fw.Stop()
		return err
	}

	<-ctx.Done()
	return fw.Stop()
}

func (r *Rebuilder) rebuild(ctx context.Context, files []string) error {
	logger := r.logger()
	logger.Info("manifests changed", zap.Strings("files", files))
	if r.Reload != nil {
		r.Reload.NotifyBuilding(files)
	}

	start := time.Now()
	cat, err := r.Build(ctx)
	if err != nil {
		if r.Reload != nil {
			r.Reload.NotifyError(files, err)
		}
		return err
	}

	if r.Reload != nil {
		r.Reload.NotifyRebuilt(len(cat.Entries), len(cat.Errors), time.Since(start))
	}
	return nil
}

func (r *Rebuilder) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
