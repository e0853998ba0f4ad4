package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fielddoc/fielddoc/internal/catalog"
	apidocs "github.com/fielddoc/fielddoc/internal/docs"
	"github.com/fielddoc/fielddoc/internal/projection"
	"github.com/fielddoc/fielddoc/internal/store"
	"github.com/fielddoc/fielddoc/internal/watch"
	"github.com/fielddoc/fielddoc/internal/web/auth"
	"github.com/fielddoc/fielddoc/internal/web/cache"
	"github.com/fielddoc/fielddoc/internal/web/ratelimit"
	"github.com/fielddoc/fielddoc/internal/web/server"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var (
		addr      string
		watchMode bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the documentation catalog over HTTP",
		Long: `Build the catalog and serve it:

  GET /docs                      list endpoints (q, sort, page, per_page, filter[...])
  GET /docs/endpoints/{action}   one endpoint
  GET /docs/errors               endpoints that could not be documented
  GET /docs/openapi.json         OpenAPI document (docs.openapi)
  POST /auth/token               client credentials for a bearer token (auth.clients)
  GET /healthz                   readiness
  GET /metrics                   Prometheus metrics
  GET /ws                        rebuild notifications (with --watch)

With --watch the catalog is rebuilt whenever a manifest changes.
When a store DSN is configured every build is also published to it.

Examples:
  fielddoc serve
  fielddoc serve --addr :9000 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Address = addr
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Manifests.Watch = watchMode
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides server.address)")
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "Rebuild when manifests change")

	return cmd
}

func (a *app) serve(ctx context.Context) (err error) {
	collector := a.collector()

	// hooks release what has been opened so far; they run at shutdown, or
	// right away if startup fails.
	var hooks []server.ShutdownHook
	defer func() {
		if err != nil {
			for i := len(hooks) - 1; i >= 0; i-- {
				hooks[i](context.Background())
			}
		}
	}()

	c, err := cache.New(ctx, a.cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	if c != nil {
		hooks = append(hooks, func(context.Context) error { return c.Close() })
	}
	docs := server.NewDocs(a.cfg.Query.Naming, c, a.logger)

	limiter, err := ratelimit.New(ctx, a.cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("failed to open rate limiter: %w", err)
	}
	if limiter != nil {
		hooks = append(hooks, func(context.Context) error { return limiter.Close() })
	}

	publishers := []watch.PublishFunc{
		func(ctx context.Context, cat *catalog.Catalog) error {
			docs.Publish(ctx, cat)
			return nil
		},
	}

	if a.cfg.Store.Enabled() {
		st, err := store.Open(ctx, a.cfg.Store.Config)
		if err != nil {
			return err
		}
		hooks = append(hooks, func(context.Context) error { return st.Close() })
		if err := st.Initialize(ctx); err != nil {
			return err
		}
		publishers = append(publishers, func(ctx context.Context, cat *catalog.Catalog) error {
			b, err := st.Publish(ctx, cat)
			if err != nil {
				return err
			}
			a.logger.Info("catalog stored", zap.String("build", b.ID))
			return nil
		})
	}

	rb := a.rebuilder(collector, publishers...)

	var reload *watch.ReloadServer
	if a.cfg.Manifests.Watch {
		reload = watch.NewReloadServer(a.logger)
		rb.Reload = reload
		hooks = append(hooks, func(context.Context) error {
			reload.Close()
			return nil
		})
	}

	cat, err := a.build(ctx, rb)
	if err != nil {
		return err
	}
	a.warnings(cat)
	a.logger.Info("catalog built",
		zap.Int("endpoints", len(cat.Entries)),
		zap.Int("failed", len(cat.Errors)),
		zap.String("dir", rb.Dir),
	)

	routes := server.RouterConfig{
		Docs:        docs,
		Naming:      a.cfg.Query.Naming,
		Projector:   projection.New(a.cfg.Query.Config),
		Metrics:     collector,
		MetricsPath: a.cfg.Metrics.Path,
		Logger:      a.logger,
		Limiter:     limiter,
		Profiling:   a.cfg.Profiling,
	}
	if a.cfg.Auth.Enabled {
		routes.Tokens = auth.NewTokenService(a.cfg.Auth.Secret, a.cfg.Auth.TokenTTL)
		routes.Scope = a.cfg.Auth.Scope
		routes.Clients = a.cfg.Auth.Clients
	}
	if reload != nil {
		routes.Reload = reload
	}
	if a.cfg.Docs.OpenAPI {
		routes.OpenAPI = apidocs.NewOpenAPIGenerator(a.cfg.Exporter())
	}

	srv, err := server.New(a.cfg.Server, server.NewRouter(routes))
	if err != nil {
		return err
	}

	gs := server.NewGracefulShutdown(srv, server.ShutdownConfig{
		Timeout: a.cfg.Server.ShutdownTimeout,
		Logger:  a.logger,
	})
	// Reverse order: the watcher stops first, the store last.
	for i := len(hooks) - 1; i >= 0; i-- {
		gs.RegisterHook(hooks[i])
	}
	hooks = nil

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Manifests.Watch {
		go func() {
			if err := rb.Watch(ctx); err != nil {
				a.logger.Error("manifest watcher stopped", zap.Error(err))
			}
		}()
		a.logger.Info("watching manifests", zap.String("dir", rb.Dir))
	}

	return gs.Run(ctx)
}
