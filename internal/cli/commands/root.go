// Package commands implements the fielddoc command line.
package commands

import (
	"context"
	"errors"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// errReported is returned by commands that already printed their failure.
var errReported = errors.New("reported")

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fielddoc",
		Short: "Field-level API documentation from validation rules",
		Long: color.CyanString(`fielddoc - field-level API documentation

fielddoc reads endpoint manifests, resolves their validation rules and
sample responses into typed field descriptors, and serves the result.

  fielddoc build          Build the catalog and list what was documented
  fielddoc show ACTION    Print the input and output fields of one endpoint
  fielddoc serve          Serve the catalog over HTTP
  fielddoc project        Project a JSON document to selected fields
  fielddoc export         Write Markdown and OpenAPI documentation`),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: fielddoc.yaml in the working directory or a parent)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewShowCommand())
	rootCmd.AddCommand(NewProjectCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewPublishCommand())
	rootCmd.AddCommand(NewTokenCommand())
	rootCmd.AddCommand(NewHashSecretCommand())
	rootCmd.AddCommand(NewExportCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the fielddoc version, Git commit, build date, and Go version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			noColor, _ := cmd.Flags().GetBool("no-color")
			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)
			if noColor {
				titleColor.DisableColor()
				valueColor.DisableColor()
			}

			out := cmd.OutOrStdout()
			for _, line := range [][2]string{
				{"fielddoc version: ", Version},
				{"Git commit: ", GitCommit},
				{"Build date: ", BuildDate},
				{"Go version: ", goVer},
			} {
				titleColor.Fprint(out, line[0])
				valueColor.Fprintln(out, line[1])
			}
		},
	}
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			errorColor := color.New(color.FgRed, color.Bold)
			errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		}
		return err
	}
	return nil
}
