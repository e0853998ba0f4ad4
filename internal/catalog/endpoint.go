// Package catalog builds the documentation of many endpoints in one pass,
// recording per-endpoint failures without aborting the batch.
package catalog

import (
	"regexp"
	"strings"
	"time"

	"github.com/fielddoc/fielddoc/internal/field"
	"github.com/fielddoc/fielddoc/internal/ordered"
	"github.com/fielddoc/fielddoc/internal/resolve"
)

// Author is a person credited on a controller or endpoint.
type Author struct {
	Name  string `json:"authorName"`
	Email string `json:"email,omitempty"`
}

// Deprecation marks documentation as deprecated.
type Deprecation struct {
	Deprecated bool   `json:"isDeprecated"`
	Note       string `json:"desc,omitempty"`
}

// Controller groups endpoints.
type Controller struct {
	Name        string      `json:"controller"`
	Title       string      `json:"title"`
	Desc        string      `json:"desc"`
	Authors     []Author    `json:"author"`
	Deprecation Deprecation `json:"deprecated"`
}

// Endpoint is everything discovered about one route.
type Endpoint struct {
	// Action is the handler identity, "Controller@method". The controller
	// may be namespaced, "Admin\UserController@index".
	Action string
	URI    string
	// Prefix is the group prefix URI starts with, e.g. "api/v1".
	Prefix string
	// Name is the route name, e.g. "admin.users.index".
	Name string

	Methods     []string
	Title       string
	Desc        string
	CreatedAt   time.Time
	Authors     []Author
	Deprecation Deprecation
	Controller  Controller

	// URIParams describes the {placeholders} of URI by name.
	URIParams map[string]field.Descriptor

	Shape resolve.Shape

	// RequestClass and Request describe the input; Request.Rules is nil when
	// no validator is bound.
	RequestClass string
	Request      resolve.RequestSource

	// HasResponse is false for endpoints without a documented body.
	HasResponse bool
	Response    resolve.ResponseSource
}

// ActionName returns the method part of Action.
func (e Endpoint) ActionName() string {
	_, method, found := strings.Cut(e.Action, "@")
	if !found {
		return e.Action
	}
	return method
}

var placeholderPattern = regexp.MustCompile(`\{([^}?]+)\??\}`)

// uriParams describes every placeholder of uri. Declared descriptors win;
// undeclared placeholders are required strings commented with their name.
func uriParams(uri string, declared map[string]field.Descriptor) *ordered.Map[field.Descriptor] {
	out := ordered.New[field.Descriptor](0)
	for _, m := range placeholderPattern.FindAllStringSubmatch(uri, -1) {
		name := m[1]
		optional := strings.HasSuffix(m[0], "?}")

		d, ok := declared[name]
		if !ok {
			d = field.Descriptor{Type: "string", TypeDetail: "string", Comment: name, Options: []string{}}
		}
		d.Required = !optional
		out.Set(name, d)
	}
	return out
}
