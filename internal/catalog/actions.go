package catalog

// ActionIndex is the set of handler actions known to exist, keyed
// "Controller@method". The caller populates it once before a build; Service
// only reads it, so one index may be shared by concurrent builds.
type ActionIndex struct {
	actions map[string]struct{}
}

// NewActionIndex returns an empty index.
func NewActionIndex() *ActionIndex {
	return &ActionIndex{actions: make(map[string]struct{})}
}

// Add registers methods of controller.
func (ix *ActionIndex) Add(controller string, methods ...string) {
	for _, m := range methods {
		ix.actions[controller+"@"+m] = struct{}{}
	}
}

// Has reports whether action is registered.
func (ix *ActionIndex) Has(action string) bool {
	_, ok := ix.actions[action]
	return ok
}

// Len returns the number of registered actions.
func (ix *ActionIndex) Len() int {
	return len(ix.actions)
}
