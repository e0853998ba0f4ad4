package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/projection"
)

// NewProjectCommand creates the project command
func NewProjectCommand() *cobra.Command {
	var (
		fields  string
		wrapper string
	)

	cmd := &cobra.Command{
		Use:   "project [FILE]",
		Short: "Project a JSON document to selected fields",
		Long: `Filter a JSON response body to the dotted field paths listed in --fields,
exactly as the server does for the field selector query parameter.
The document is read from FILE, or from stdin when FILE is omitted or "-".

Examples:
  fielddoc project --fields id,name users.json
  curl -s localhost:8080/users | fielddoc project --fields id,profile.bio
  fielddoc project --fields id --wrapper data response.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			body, err := ordered.DecodeJSON(data)
			if err != nil {
				return fmt.Errorf("invalid JSON document: %w", err)
			}

			cfg := a.cfg.Query.Config
			if cmd.Flags().Changed("wrapper") {
				cfg.WrapperKey = wrapper
			}

			result := projection.New(cfg).Project(body, fields)
			out := result.Body
			if result.Unwrapped != "" {
				envelope := ordered.New[any](1)
				envelope.Set(result.Unwrapped, out)
				out = envelope
			}
			return writeJSON(a.out, out)
		},
	}

	cmd.Flags().StringVarP(&fields, "fields", "f", "", "Comma separated field paths to keep")
	cmd.Flags().StringVar(&wrapper, "wrapper", "", "Envelope key to look through (overrides query.response_wrapper)")
	_ = cmd.MarkFlagRequired("fields")

	return cmd
}
