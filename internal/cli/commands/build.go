package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fielddoc/fielddoc/internal/catalog"
	"github.com/fielddoc/fielddoc/internal/cli/ui"
)

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	var (
		jsonOut bool
		output  string
		keyword string
		strict  bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the documentation catalog",
		Long: `Load every manifest in the manifests directory, resolve each endpoint
into input and output field descriptors, and list the result.

Endpoints that cannot be documented are reported as warnings; use --strict
to fail the command instead.

Examples:
  fielddoc build
  fielddoc build --query users
  fielddoc build --json > catalog.json
  fielddoc build --output catalog.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			cat, err := a.build(cmd.Context(), a.rebuilder(nil))
			if err != nil {
				return err
			}

			switch {
			case output != "":
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				if err := writeJSON(f, cat); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				ui.WriteSuccess(a.out, fmt.Sprintf("Wrote %d endpoint(s) to %s", len(cat.Entries), output), a.noColor)
			case jsonOut:
				if err := writeJSON(a.out, cat); err != nil {
					return err
				}
			default:
				printEntries(a.out, cat.Filter(keyword), a.noColor)
				ui.WriteSuccess(a.out, fmt.Sprintf("Documented %d endpoint(s)", len(cat.Entries)), a.noColor)
			}

			a.warnings(cat)
			if strict && len(cat.Errors) > 0 {
				return fmt.Errorf("%d endpoint(s) could not be documented", len(cat.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the catalog as JSON")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the catalog as JSON to a file")
	cmd.Flags().StringVarP(&keyword, "query", "q", "", "Only list endpoints matching a keyword")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any endpoint cannot be documented")

	return cmd
}

func printEntries(w io.Writer, entries []catalog.Entry, noColor bool) {
	table := ui.NewTable(w, noColor, "ACTION", "METHODS", "URI", "TITLE")
	for _, e := range entries {
		title := e.Title
		if e.Deprecation.Deprecated {
			title += " (deprecated)"
		}
		table.AddRow(e.Action, strings.Join(e.Methods, ","), e.URI, title)
	}
	table.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
