package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fielddoc/fielddoc/internal/cli/ui"
	apidocs "github.com/fielddoc/fielddoc/internal/docs"
)

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	var (
		formats []string
		out     string
		title   string
		version string
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as Markdown or OpenAPI",
		Long: `Build the catalog and write it as static documentation:

  markdown   README.md and one page per controller under <out>/markdown
  openapi    an OpenAPI 3.0 document at <out>/openapi.json
  zip        <out>.zip holding everything written to <out>; on its own it
             writes markdown and openapi first

The title, version and base URL default to the docs section of the config.

Examples:
  fielddoc export
  fielddoc export --format openapi --out public
  fielddoc export --format markdown,openapi,zip
  fielddoc export --title "Shop API" --version 2.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			selected := make([]apidocs.Format, 0, len(formats))
			for _, name := range formats {
				f, err := apidocs.ParseFormat(name)
				if err != nil {
					return err
				}
				selected = append(selected, f)
			}

			exp := a.cfg.Exporter()
			flags := cmd.Flags()
			if flags.Changed("out") {
				exp.OutputDir = out
			}
			if flags.Changed("title") {
				exp.Title = title
			}
			if flags.Changed("version") {
				exp.Version = version
			}
			if flags.Changed("base-url") {
				exp.BaseURL = baseURL
			}

			cat, err := a.build(cmd.Context(), a.rebuilder(nil))
			if err != nil {
				return err
			}

			written, err := apidocs.NewGenerator(exp).Generate(cat, selected...)
			for _, path := range written {
				fmt.Fprintf(a.out, "  created %s\n", path)
			}
			if err != nil {
				return err
			}

			a.warnings(cat)
			ui.WriteSuccess(a.out, fmt.Sprintf("Exported %d endpoint(s) to %s", len(cat.Entries), exp.OutputDir), a.noColor)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&formats, "format", "f", []string{"markdown", "openapi"}, "Formats to write (markdown, openapi, zip)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output directory (overrides docs.output_dir)")
	cmd.Flags().StringVar(&title, "title", "", "API title (overrides docs.title)")
	cmd.Flags().StringVar(&version, "version", "", "API version (overrides docs.version)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL in the OpenAPI document (overrides docs.base_url)")

	return cmd
}
