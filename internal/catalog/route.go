package catalog

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultModule is the module of endpoints whose URI and controller do
// not name one.
const DefaultModule = "default"

// sdkSuffix ends every generated SDK class name.
const sdkSuffix = "Api"

var versionPattern = regexp.MustCompile(`v\d+`)

// Route locates an endpoint within the API.
type Route struct {
	Prefix     string `json:"prefix,omitempty"`
	Version    string `json:"version,omitempty"`
	Module     string `json:"module"`
	Controller string `json:"controller"`
	// SDKName is the class an SDK generator emits for the endpoint, as
	// dot separated namespace parts.
	SDKName    string `json:"sdkName"`
}

// ParseRoute derives the route of an endpoint.
//
// The version is the first "v<digits>" in prefix, or a leading URI segment
// of that form when no prefix is set. The controller and module come from
// the namespaced controller of action ("Admin\UserController@index" is
// module Admin, controller User); without a namespace the module is the
// first literal URI segment below the prefix, provided another follows.
// name is the route name ("admin.users.index") the SDK name is built from;
// when empty it is derived from module, controller and action method.
func ParseRoute(prefix, uri, name, action string) Route {
	prefix = strings.Trim(prefix, "/")
	r := Route{Prefix: prefix}

	segments := pathSegments(stripPrefix(strings.Trim(uri, "/"), prefix))
	if prefix != "" {
		r.Version = versionPattern.FindString(prefix)
	} else if len(segments) > 0 && versionPattern.FindString(segments[0]) == segments[0] {
		r.Version = segments[0]
		segments = segments[1:]
	}

	class, method, _ := strings.Cut(action, "@")
	ns := namespace(class)
	switch {
	case len(ns) >= 2:
		r.Module = ns[len(ns)-2]
		r.Controller = ns[len(ns)-1]
	case len(ns) == 1:
		r.Controller = ns[0]
	}
	if r.Module == "" {
		r.Module = DefaultModule
		if len(segments) >= 2 {
			r.Module = segments[0]
		}
	}
	if r.Controller == "" && len(segments) > 0 {
		r.Controller = segments[len(segments)-1]
	}

	if name == "" {
		parts := make([]string, 0, 3)
		if r.Module != DefaultModule {
			parts = append(parts, r.Module)
		}
		if r.Controller != "" {
			parts = append(parts, r.Controller)
		}
		if method != "" {
			parts = append(parts, method)
		}
		name = strings.Join(parts, ".")
	}
	r.SDKName = SDKName(name)
	return r
}

// SDKName builds the SDK class name of a dotted route name: every part is
// camel cased, the class is the controller part followed by the last part
// and "Api", and the leading parts become its namespace.
//
//	admin.users.index -> Admin.Users.UsersIndexApi
//	index             -> IndexApi
func SDKName(routeName string) string {
	var parts []string
	for _, p := range strings.Split(routeName, ".") {
		if p = pascal(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}

	class := parts[len(parts)-1] + sdkSuffix
	if len(parts) == 1 {
		return class
	}
	controller := parts[len(parts)-2]
	return strings.Join(append(parts[:len(parts)-1], controller+class), ".")
}

func stripPrefix(uri, prefix string) string {
	if prefix == "" {
		return uri
	}
	if len(uri) >= len(prefix) && strings.EqualFold(uri[:len(prefix)], prefix) {
		return uri[len(prefix):]
	}
	return uri
}

// pathSegments returns the literal segments of uri, skipping placeholders.
func pathSegments(uri string) []string {
	var out []string
	for _, s := range strings.Split(uri, "/") {
		if s == "" || strings.Contains(s, "{") {
			continue
		}
		out = append(out, s)
	}
	return out
}

// namespace splits a controller class into its meaningful parts, dropping
// the conventional App, Http and Controllers levels and the Controller
// suffix.
func namespace(class string) []string {
	parts := strings.FieldsFunc(class, func(r rune) bool { return r == '\\' || r == '/' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "App", "Http", "Controllers":
			continue
		}
		p = strings.TrimSuffix(p, "Controller")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// pascal camel cases s and upper cases its first letter: "user_posts" and
// "user-posts" both give "UserPosts".
func pascal(s string) string {
	var b strings.Builder
	for _, word := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	}) {
		first, size := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(first))
		b.WriteString(word[size:])
	}
	return b.String()
}
