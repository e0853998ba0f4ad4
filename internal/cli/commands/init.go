package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/fielddoc/fielddoc/internal/cli/config"
	"github.com/fielddoc/fielddoc/internal/cli/ui"
)

// initOptions are the answers that shape the generated files.
type initOptions struct {
	Dir        string
	Controller string
	Model      string
	URI        string
}

func defaultInitOptions() initOptions {
	return initOptions{
		Dir:        "api",
		Controller: "PostController",
		Model:      "Post",
		URI:        "/posts",
	}
}

var (
	controllerPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)
	uriPattern        = regexp.MustCompile(`^(/[A-Za-z0-9_.-]+)+$`)
)

// validateManifestDir rejects absolute paths and parent traversal.
func validateManifestDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("manifests directory is required")
	}
	if filepath.IsAbs(dir) {
		return fmt.Errorf("manifests directory must be relative to the project")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("manifests directory cannot leave the project")
		}
	}
	return nil
}

func validateIdentifier(kind, name string) error {
	if !controllerPattern.MatchString(name) {
		return fmt.Errorf("%s name must start with an uppercase letter and contain only letters, numbers, and underscores", kind)
	}
	return nil
}

func validateURI(uri string) error {
	if !uriPattern.MatchString(uri) {
		return fmt.Errorf("resource URI must look like /posts or /api/posts")
	}
	return nil
}

func (o initOptions) validate() error {
	if err := validateManifestDir(o.Dir); err != nil {
		return err
	}
	if err := validateIdentifier("controller", o.Controller); err != nil {
		return err
	}
	if err := validateIdentifier("model", o.Model); err != nil {
		return err
	}
	return validateURI(o.URI)
}

// surveyValidator adapts a string check to survey.
func surveyValidator(check func(string) error) survey.Validator {
	return func(ans interface{}) error {
		s, _ := ans.(string)
		return check(s)
	}
}

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		yes   bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init [DIR]",
		Short: "Create a fielddoc.yaml and an example manifest",
		Long: `Create fielddoc.yaml in DIR (default: the working directory) and an example
endpoint manifest in its manifests directory.

You are prompted for the manifests directory, an example controller, its
model and its resource URI. Use --yes to accept the defaults.

Examples:
  fielddoc init
  fielddoc init my-api --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			noColor, _ := cmd.Flags().GetBool("no-color")
			out := cmd.OutOrStdout()

			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			opts := defaultInitOptions()
			if !yes {
				if err := askInitOptions(&opts); err != nil {
					return err
				}
			}
			if err := opts.validate(); err != nil {
				return err
			}

			written, err := writeProject(root, opts, force)
			if err != nil {
				return err
			}

			for _, path := range written {
				fmt.Fprintf(out, "  created %s\n", path)
			}
			ui.WriteSuccess(out, "Project initialized", noColor)
			fmt.Fprintln(out, "\nNext steps:")
			if root != "." {
				fmt.Fprintf(out, "  cd %s\n", root)
			}
			fmt.Fprintf(out, "  fielddoc build\n")
			fmt.Fprintf(out, "  fielddoc show %s@index\n", opts.Controller)
			fmt.Fprintf(out, "  fielddoc serve --watch\n")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the defaults without prompting")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func askInitOptions(opts *initOptions) error {
	questions := []*survey.Question{
		{
			Name:     "Dir",
			Prompt:   &survey.Input{Message: "Manifests directory:", Default: opts.Dir},
			Validate: surveyValidator(validateManifestDir),
		},
		{
			Name:   "Controller",
			Prompt: &survey.Input{Message: "Example controller:", Default: opts.Controller},
			Validate: surveyValidator(func(s string) error {
				return validateIdentifier("controller", s)
			}),
		},
		{
			Name:   "Model",
			Prompt: &survey.Input{Message: "Model it manages:", Default: opts.Model},
			Validate: surveyValidator(func(s string) error {
				return validateIdentifier("model", s)
			}),
		},
		{
			Name:     "URI",
			Prompt:   &survey.Input{Message: "Resource URI:", Default: opts.URI},
			Validate: surveyValidator(validateURI),
		},
	}
	return survey.Ask(questions, opts)
}

// writeProject writes the config file and the example manifest under root
// and returns their paths.
func writeProject(root string, opts initOptions, force bool) ([]string, error) {
	files := []struct {
		path string
		tmpl *template.Template
	}{
		{filepath.Join(root, config.FileNames[0]), configTemplate},
		{filepath.Join(root, opts.Dir, strings.ToLower(opts.Model)+".yaml"), manifestTemplate},
	}

	if !force {
		for _, f := range files {
			if _, err := os.Stat(f.path); err == nil {
				return nil, fmt.Errorf("%s already exists (use --force to overwrite)", f.path)
			}
		}
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return written, fmt.Errorf("failed to create directory: %w", err)
		}
		var b strings.Builder
		if err := f.tmpl.Execute(&b, opts); err != nil {
			return written, fmt.Errorf("failed to render %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, []byte(b.String()), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		written = append(written, f.path)
	}
	return written, nil
}

var configTemplate = template.Must(template.New("config").Parse(`log:
  level: info
  format: console

server:
  address: ":8080"

query:
  selector_field: fields
  filter_wrapper: filter
  relations_field: relations
  sort_field: sort
  response_wrapper: ""

manifests:
  dir: {{.Dir}}
  watch: false

cache:
  backend: memory
  ttl: 5m

metrics:
  enabled: true
  path: /metrics

auth:
  enabled: false
  scope: docs:read
  # clients:
  #   ci-bot: <output of fielddoc hash-secret>

docs:
  title: API
  version: 1.0.0
  output_dir: docs
  openapi: true
`))

var manifestTemplate = template.Must(template.New("manifest").Parse(`models:
  {{.Model}}:
    rules:
      title: required|string|max:120
      status: required|in:draft,published
      published_at: nullable|date
    labels:
      title: Title
      status: Status
      published_at: Publication date
    options:
      status:
        draft: Draft
        published: Published
    fillable: [title, status, published_at]

controllers:
  {{.Controller}}:
    title: {{.Model}}
    actions: [index, show, store, update]

endpoints:
  - uri: {{.URI}}
    action: {{.Controller}}@index
    title: List {{.Model}} records
    collection: true
    sorts: [title, -id]
    request:
      rules:
        status: in:draft,published
    response:
      model: {{.Model}}
      sample:
        - id: 1
          title: Hello
          status: published
          published_at: "2024-01-01"

  - uri: {{.URI}}/{id}
    action: {{.Controller}}@show
    title: Show one {{.Model}}
    params:
      id:
        type: integer
        comment: {{.Model}} id
    response:
      model: {{.Model}}
      sample:
        id: 1
        title: Hello
        status: published
        published_at: "2024-01-01"

  - uri: {{.URI}}
    methods: [POST]
    action: {{.Controller}}@store
    title: Create a {{.Model}}
    request:
      model: {{.Model}}
      rules_from: fillable

  - uri: {{.URI}}/{id}
    methods: [PUT]
    action: {{.Controller}}@update
    title: Update a {{.Model}}
    request:
      model: {{.Model}}
      rules_from: fillable_optional
`))
