package manifest

// Hierarchy maps a validator type to its parent type.
type Hierarchy map[string]string

// IsSubtypeOf reports whether base is a strict ancestor of candidate.
// Cycles in the declared parents end the walk.
func (h Hierarchy) IsSubtypeOf(candidate, base string) bool {
	visited := map[string]bool{candidate: true}
	for t := candidate; ; {
		parent, ok := h[t]
		if !ok || parent == "" {
			return false
		}
		if parent == base {
			return true
		}
		if visited[parent] {
			return false
		}
		visited[parent] = true
		t = parent
	}
}
