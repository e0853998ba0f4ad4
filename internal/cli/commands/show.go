package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/fielddoc/fielddoc/internal/catalog"
	"github.com/fielddoc/fielddoc/internal/cli/ui"
	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/resolve"
)

// NewShowCommand creates the show command
func NewShowCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show ACTION",
		Short: "Show the fields of one endpoint",
		Long: `Print the URI parameters, input fields, output fields and relations of
the endpoint handled by ACTION.

Examples:
  fielddoc show UserController@index
  fielddoc show UserController@show --json`,
		Args: cobra.ExactArgs(1),
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

			action := args[0]
			entry, ok := cat.Lookup(action)
			if !ok {
				if msg, failed := cat.ErrorMap()[action]; failed {
					return fmt.Errorf("%s could not be documented: %s", action, msg)
				}
				actions := make([]string, len(cat.Entries))
				for i, e := range cat.Entries {
					actions[i] = e.Action
				}
				fmt.Fprint(a.errOut, ui.ActionNotFoundError(action, ui.FindSimilar(action, actions, nil), a.noColor))
				return errReported
			}

			if jsonOut {
				return writeJSON(a.out, entry)
			}
			printEntry(a.out, entry, a.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the entry as JSON")

	return cmd
}

func printEntry(w io.Writer, e catalog.Entry, noColor bool) {
	ui.Header(w, e.Action, noColor)

	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("URI", e.URI)
	kv.AddRow("Methods", strings.Join(e.Methods, ", "))
	if e.Title != "" {
		kv.AddRow("Title", e.Title)
	}
	if e.Desc != "" {
		kv.AddRow("Description", e.Desc)
	}
	if e.Controller.Title != "" {
		kv.AddRow("Controller", e.Controller.Title)
	}
	if len(e.Authors) > 0 {
		names := make([]string, len(e.Authors))
		for i, au := range e.Authors {
			names[i] = au.Name
		}
		kv.AddRow("Authors", strings.Join(names, ", "))
	}
	if e.Deprecation.Deprecated {
		kv.AddRow("Deprecated", e.Deprecation.Note)
	}
	if e.RequestClass != "" {
		kv.AddRow("Request", e.RequestClass)
	}
	if e.ResourceClass != "" {
		kv.AddRow("Resource", e.ResourceClass)
	}
	kv.Render()

	printFields(w, "URI parameters", e.URIParams, noColor)
	printFields(w, "Input", e.Document.Input, noColor)
	printFields(w, "Output", e.Document.Output, noColor)
	printRelations(w, e.Document.Relations, noColor)
}

func printFields(w io.Writer, title string, fields *ordered.Map[field.Descriptor], noColor bool) {
	if fields == nil || fields.Len() == 0 {
		return
	}

	fmt.Fprintln(w)
	ui.Header(w, title, noColor)
	table := ui.NewTable(w, noColor, "FIELD", "TYPE", "REQUIRED", "DEFAULT", "COMMENT")
	fields.Range(func(name string, d field.Descriptor) bool {
		typ := d.Type
		if d.TypeDetail != "" {
			typ += "<" + d.TypeDetail + ">"
		}
		comment := d.Comment
		if len(d.Options) > 0 {
			comment = strings.TrimSpace(comment + " [" + strings.Join(d.Options, ", ") + "]")
		}
		required := ""
		if d.Required {
			required = "yes"
		}
		table.AddRow(name, typ, required, cast.ToString(d.Default), comment)
		return true
	})
	table.Render()
}

func printRelations(w io.Writer, relations *ordered.Map[resolve.Relation], noColor bool) {
	if relations == nil || relations.Len() == 0 {
		return
	}

	fmt.Fprintln(w)
	ui.Header(w, "Relations", noColor)
	table := ui.NewTable(w, noColor, "RELATION", "TYPE", "COMMENT")
	relations.Range(func(name string, r resolve.Relation) bool {
		table.AddRow(name, r.Type, r.Comment)
		return true
	})
	table.Render()
}
