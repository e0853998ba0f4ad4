package rules

import (
	"strings"

	"github.com/fielddoc/fielddoc/internal/ordered"
)

// StripRequired returns a copy of set with every "required" keyword removed.
// Update endpoints reuse create rules this way.
func StripRequired(set *ordered.Map[Spec]) *ordered.Map[Spec] {
	return strip(set, "required")
}

// StripNullable returns a copy of set with every "nullable" keyword removed.
func StripNullable(set *ordered.Map[Spec]) *ordered.Map[Spec] {
	return strip(set, "nullable")
}

func strip(set *ordered.Map[Spec], keyword string) *ordered.Map[Spec] {
	out := ordered.New[Spec](set.Len())
	set.Range(func(attr string, spec Spec) bool {
		kept := make(Spec, 0, len(spec))
		for _, entry := range spec {
			if s, ok := entry.(string); ok && strings.EqualFold(strings.TrimSpace(s), keyword) {
				continue
			}
			kept = append(kept, entry)
		}
		out.Set(attr, kept)
		return true
	})
	return out
}
