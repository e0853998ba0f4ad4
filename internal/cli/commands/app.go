package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fielddoc/fielddoc/internal/catalog"
	"github.com/fielddoc/fielddoc/internal/cli/config"
	"github.com/fielddoc/fielddoc/internal/cli/ui"
	"github.com/fielddoc/fielddoc/internal/logging"
	"github.com/fielddoc/fielddoc/internal/metrics"
	"github.com/fielddoc/fielddoc/internal/resolve"
	"github.com/fielddoc/fielddoc/internal/watch"
)

// app is the state shared by the commands of one invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	noColor bool
	out     io.Writer
	errOut  io.Writer
}

// newApp loads the configuration named by --config and builds the logger.
// Configuration errors are printed before returning errReported.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	noColor, _ := cmd.Flags().GetBool("no-color")

	a := &app{
		noColor: noColor,
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprint(a.errOut, ui.ConfigError(err, noColor))
		return nil, errReported
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	return a, nil
}

// collector returns the metrics collector, or nil when metrics are off.
func (a *app) collector() *metrics.Collector {
	if !a.cfg.Metrics.Enabled {
		return nil
	}
	return metrics.NewCollector(a.cfg.Metrics.Namespace, nil)
}

// rebuilder wires the catalog service for the configured manifest directory.
func (a *app) rebuilder(collector *metrics.Collector, publishers ...watch.PublishFunc) *watch.Rebuilder {
	return &watch.Rebuilder{
		Dir: a.cfg.ManifestDir(),
		Service: catalog.Service{
			Request: resolve.RequestResolver{Naming: a.cfg.Query.Naming},
			Workers: a.cfg.Catalog.Workers,
			Logger:  a.logger,
			Metrics: collector,
		},
		Publishers: publishers,
		Logger:     a.logger,
	}
}

// build loads the manifests and builds the catalog, printing manifest
// errors in the CLI format.
func (a *app) build(ctx context.Context, rb *watch.Rebuilder) (*catalog.Catalog, error) {
	cat, err := rb.Build(ctx)
	if err != nil {
		if cat == nil {
			fmt.Fprint(a.errOut, ui.ManifestError(rb.Dir, err, a.noColor))
			return nil, errReported
		}
		return cat, err
	}
	return cat, nil
}

// warnings prints the endpoints left out of cat.
func (a *app) warnings(cat *catalog.Catalog) {
	if len(cat.Errors) == 0 {
		return
	}
	messages := make([]string, len(cat.Errors))
	for i, e := range cat.Errors {
		messages[i] = e.Message
	}
	fmt.Fprint(a.errOut, ui.EndpointWarnings(messages, a.noColor))
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
