package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fielddoc/fielddoc/internal/cli/ui"
	"github.com/fielddoc/fielddoc/internal/store"
)

// NewPublishCommand creates the publish command
func NewPublishCommand() *cobra.Command {
	var (
		driver string
		dsn    string
		keep   int
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish the catalog to a SQL database",
		Long: `Build the catalog and store it as a new build in the configured database
(sqlite3 or pgx). Builds beyond --keep are pruned, oldest first.

Examples:
  fielddoc publish --dsn docs.db
  fielddoc publish --driver pgx --dsn postgres://localhost/docs --keep 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.cfg.Store
			if cmd.Flags().Changed("driver") {
				cfg.Driver = driver
			}
			if cmd.Flags().Changed("dsn") {
				cfg.DSN = dsn
			}
			if cmd.Flags().Changed("keep") {
				cfg.Keep = keep
			}
			if !cfg.Enabled() {
				return fmt.Errorf("no database configured: set store.dsn or pass --dsn")
			}
			if cfg.Keep < 0 {
				return fmt.Errorf("--keep must not be negative, got: %d", cfg.Keep)
			}

			ctx := cmd.Context()
			cat, err := a.build(ctx, a.rebuilder(nil))
			if err != nil {
				return err
			}
			a.warnings(cat)

			st, err := store.Open(ctx, cfg.Config)
			if err != nil {
				return err
			}
			defer st.Close()

			var (
				b      store.Build
				pruned int64
			)
			err = ui.WithSpinner(a.errOut, "Storing build", a.noColor, func() error {
				if err := st.Initialize(ctx); err != nil {
					return err
				}
				var err error
				if b, err = st.Publish(ctx, cat); err != nil {
					return err
				}
				if cfg.Keep > 0 {
					pruned, err = st.Prune(ctx, cfg.Keep)
				}
				return err
			})
			if err != nil {
				return err
			}

			kv := ui.NewKeyValueTable(a.out, a.noColor)
			kv.AddRow("Build", b.ID)
			kv.AddRow("Endpoints", strconv.Itoa(b.Entries))
			kv.AddRow("Failures", strconv.Itoa(b.Failures))
			kv.AddRow("Pruned", strconv.FormatInt(pruned, 10))
			kv.Render()
			ui.WriteSuccess(a.out, "Catalog published", a.noColor)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "Database driver: sqlite3 or pgx (overrides store.driver)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "Database DSN (overrides store.dsn)")
	cmd.Flags().IntVar(&keep, "keep", 0, "Builds to retain, 0 keeps all (overrides store.keep)")

	return cmd
}
