// Package projection shrinks a rendered response body to the nested fields a
// client asked for with a comma separated list of dot paths.
package projection

import "strings"

// Wildcard selects every field at its level.
const Wildcard = "*"

// Selection is an ordered, deduplicated set of dot paths.
type Selection struct {
	paths []string
}

// ParseSelector splits a raw selector such as "id,profile.name" into a
// Selection. Blank entries are dropped.
func ParseSelector(raw string) Selection {
	return NewSelection(strings.Split(raw, ",")...)
}

// NewSelection builds a Selection from individual paths.
func NewSelection(paths ...string) Selection {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return Selection{paths: out}
}

// Paths returns the selected paths in request order.
func (s Selection) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Roots returns the distinct first segments of the selected paths.
func (s Selection) Roots() []string {
	seen := make(map[string]bool, len(s.paths))
	out := make([]string, 0, len(s.paths))
	for _, p := range s.paths {
		root, _, _ := strings.Cut(p, ".")
		if !seen[root] {
			seen[root] = true
			out = append(out, root)
		}
	}
	return out
}

// IsAll reports whether the selection keeps everything: it is empty or one
// of its roots is the wildcard.
func (s Selection) IsAll() bool {
	if len(s.paths) == 0 {
		return true
	}
	for _, root := range s.Roots() {
		if root == Wildcard {
			return true
		}
	}
	return false
}

// Descend returns the paths below root with the "root." prefix removed.
func (s Selection) Descend(root string) Selection {
	prefix := root + "."
	rest := make([]string, 0, len(s.paths))
	for _, p := range s.paths {
		if tail, ok := strings.CutPrefix(p, prefix); ok {
			rest = append(rest, tail)
		}
	}
	return NewSelection(rest...)
}

func (s Selection) rootSet() map[string]bool {
	roots := s.Roots()
	set := make(map[string]bool, len(roots))
	for _, r := range roots {
		set[r] = true
	}
	return set
}

// String joins the paths back into selector form.
func (s Selection) String() string {
	return strings.Join(s.paths, ",")
}
