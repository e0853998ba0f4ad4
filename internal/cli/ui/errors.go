package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions configures a formatted message.
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Details      []string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders a message with optional details, suggestions and
// follow-up commands:
//
//	✗ ACTION NOT FOUND: Cannot find action 'UserController@shw'.
//
//	   Did you mean: UserController@show?
//
//	   → List endpoints: fielddoc build
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var header, body *color.Color
	var symbol string
	switch opts.Level {
	case ErrorLevelWarning:
		header, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "!"
	case ErrorLevelInfo:
		header, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "i"
	default:
		header, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "✗"
	}
	hint := color.New(color.FgYellow)
	help := color.New(color.FgCyan)
	if opts.NoColor {
		for _, c := range []*color.Color{header, body, hint, help} {
			c.DisableColor()
		}
	}

	if opts.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}

	if len(opts.Details) > 0 {
		b.WriteString("\n")
		for _, d := range opts.Details {
			body.Fprintf(&b, "   %s\n", d)
		}
	}

	if len(opts.Suggestions) > 0 {
		b.WriteString("\n")
		hint.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}

	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			help.Fprintf(&b, "   → %s\n", cmd)
		}
	}

	return b.String()
}

// WriteError writes a formatted message to w.
func WriteError(w io.Writer, opts ErrorOptions) {
	fmt.Fprint(w, FormatError(opts))
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// ActionNotFoundError reports an action missing from the catalog.
func ActionNotFoundError(action string, suggestions []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:       ErrorLevelError,
		Context:     "action not found",
		Problem:     fmt.Sprintf("Cannot find action '%s'.", action),
		Suggestions: suggestions,
		HelpCommands: []string{
			"List endpoints: fielddoc build",
		},
		NoColor: noColor,
	})
}

// ManifestError reports manifests that could not be loaded.
func ManifestError(dir string, err error, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "manifest error",
		Problem: fmt.Sprintf("Cannot load manifests from %s.", dir),
		Details: strings.Split(err.Error(), "\n"),
		HelpCommands: []string{
			"Create a starter manifest: fielddoc init",
		},
		NoColor: noColor,
	})
}

// ConfigError reports an invalid configuration.
func ConfigError(err error, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelError,
		Context: "configuration error",
		Problem: "The configuration is invalid.",
		Details: strings.Split(err.Error(), "\n"),
		HelpCommands: []string{
			"Settings are read from fielddoc.yaml and FIELDDOC_* variables",
		},
		NoColor: noColor,
	})
}

// EndpointWarnings lists endpoints left out of a catalog.
func EndpointWarnings(messages []string, noColor bool) string {
	return FormatError(ErrorOptions{
		Level:   ErrorLevelWarning,
		Context: "endpoints skipped",
		Problem: fmt.Sprintf("%d endpoint(s) could not be documented.", len(messages)),
		Details: messages,
		NoColor: noColor,
	})
}
