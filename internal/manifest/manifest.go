// Package manifest loads the declarative YAML description of an API
// (models, validator types, controllers and endpoints) and turns it into
// catalog endpoints.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Sources accepted by Request.RulesFrom.
const (
	RulesFromRules            = "rules"
	RulesFromFillable         = "fillable"
	RulesFromFillableOptional = "fillable_optional"
)

// File is one manifest document.
type File struct {
	Hierarchy   map[string]string     `yaml:"hierarchy"`
	Models      map[string]Model      `yaml:"models"`
	Controllers map[string]Controller `yaml:"controllers"`
	Endpoints   []Endpoint            `yaml:"endpoints"`
}

// Model is a persisted entity whose rules and labels endpoints may reuse.
type Model struct {
	Rules    RuleSet           `yaml:"rules"`
	Labels   map[string]string `yaml:"labels"`
	Options  OptionTable       `yaml:"options"`
	Fillable []string          `yaml:"fillable"`
}

// Controller groups endpoints and lists the actions it implements.
type Controller struct {
	Title      string      `yaml:"title"`
	Desc       string      `yaml:"desc"`
	Authors    Authors     `yaml:"authors"`
	Deprecated Deprecation `yaml:"deprecated"`
	Actions    []string    `yaml:"actions"`
	// Prefix is the default route prefix of the controller's endpoints.
	Prefix     string      `yaml:"prefix"`
}

// Endpoint describes one route.
type Endpoint struct {
	URI        string           `yaml:"uri"`
	Prefix     string           `yaml:"prefix"`
	Name       string           `yaml:"name"`
	Methods    []string         `yaml:"methods"`
	Action     string           `yaml:"action"`
	Title      string           `yaml:"title"`
	Desc       string           `yaml:"desc"`
	CreatedAt  time.Time        `yaml:"created_at"`
	Authors    Authors          `yaml:"authors"`
	Deprecated Deprecation      `yaml:"deprecated"`
	Collection bool             `yaml:"collection"`
	Download   bool             `yaml:"download"`
	Sorts      []string         `yaml:"sorts"`
	Params     map[string]Param `yaml:"params"`
	Request    *Request         `yaml:"request"`
	Response   *Response        `yaml:"response"`
}

// Param documents a URI placeholder.
type Param struct {
	Type    string `yaml:"type"`
	Comment string `yaml:"comment"`
	Default any    `yaml:"default"`
}

// Request describes the input of an endpoint. Rules come from the model
// named by Model (selected by RulesFrom) merged with the inline Rules.
type Request struct {
	Class     string            `yaml:"class"`
	Model     string            `yaml:"model"`
	RulesFrom string            `yaml:"rules_from"`
	Rules     RuleSet           `yaml:"rules"`
	Labels    map[string]string `yaml:"labels"`
	Options   OptionTable       `yaml:"options"`
}

// Response describes the output of an endpoint.
type Response struct {
	Resource  string            `yaml:"resource"`
	Scenario  string            `yaml:"scenario"`
	Model     string            `yaml:"model"`
	Sample    *Sample           `yaml:"sample"`
	Fields    []string          `yaml:"fields"`
	Rules     RuleSet           `yaml:"rules"`
	Labels    map[string]string `yaml:"labels"`
	Options   OptionTable       `yaml:"options"`
	Relations map[string]string `yaml:"relations"`
}

// Manifest is the merge of one or more files.
type Manifest struct {
	Hierarchy   Hierarchy
	Models      map[string]Model
	Controllers map[string]Controller
	Endpoints   []Endpoint
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Hierarchy:   Hierarchy{},
		Models:      map[string]Model{},
		Controllers: map[string]Controller{},
	}
}

// Parse parses and validates one manifest document.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	applyDefaults(&f)
	if err := validate(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile loads one manifest file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Load merges the given files in order.
func Load(paths ...string) (*Manifest, error) {
	m := NewManifest()
	for _, path := range paths {
		f, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := m.Merge(f); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return m, nil
}

// LoadDir merges every *.yaml and *.yml file directly under dir in name
// order.
func LoadDir(dir string) (*Manifest, error) {
	paths, err := Files(dir)
	if err != nil {
		return nil, err
	}
	return Load(paths...)
}

// Files lists the manifest files of dir in name order.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsManifestFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// IsManifestFile reports whether name has a manifest extension.
func IsManifestFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// Merge adds f to m. Redeclaring a type, model or controller is an error.
func (m *Manifest) Merge(f *File) error {
	for child, parent := range f.Hierarchy {
		if _, dup := m.Hierarchy[child]; dup {
			return fmt.Errorf("type %q declared twice", child)
		}
		m.Hierarchy[child] = parent
	}
	for name, model := range f.Models {
		if _, dup := m.Models[name]; dup {
			return fmt.Errorf("model %q declared twice", name)
		}
		m.Models[name] = model
	}
	for name, c := range f.Controllers {
		if _, dup := m.Controllers[name]; dup {
			return fmt.Errorf("controller %q declared twice", name)
		}
		m.Controllers[name] = c
	}
	m.Endpoints = append(m.Endpoints, f.Endpoints...)
	return nil
}

func applyDefaults(f *File) {
	for i := range f.Endpoints {
		ep := &f.Endpoints[i]
		if len(ep.Methods) == 0 {
			ep.Methods = []string{"GET"}
		}
		for j, method := range ep.Methods {
			ep.Methods[j] = strings.ToUpper(strings.TrimSpace(method))
		}
		if ep.Request != nil && ep.Request.Model != "" && ep.Request.RulesFrom == "" {
			ep.Request.RulesFrom = RulesFromRules
		}
		if ep.Response != nil && ep.Response.Scenario == "" {
			ep.Response.Scenario = "default"
		}
	}
}

func validate(f *File) error {
	var errs []error
	for i, ep := range f.Endpoints {
		if ep.URI == "" {
			errs = append(errs, fmt.Errorf("endpoint %d: uri is required", i))
		}
		if controller, method, ok := strings.Cut(ep.Action, "@"); !ok || controller == "" || method == "" {
			errs = append(errs, fmt.Errorf("endpoint %d: action %q must be Controller@method", i, ep.Action))
		}
		if ep.Request != nil {
			switch ep.Request.RulesFrom {
			case "", RulesFromRules, RulesFromFillable, RulesFromFillableOptional:
			default:
				errs = append(errs, fmt.Errorf("endpoint %d: unknown rules_from %q", i, ep.Request.RulesFrom))
			}
		}
	}
	return errors.Join(errs...)
}
