// Package rules parses validation rule declarations into structured
// constraints and classifies them into display and cast types.
//
// A rule declaration for one attribute is a Spec: either a pipe separated
// string such as "required|max:20|in:a,b,c" or an explicit list of entries.
// Entries are tokenized into Keyword, TypeReference or Callable tokens.
// Keywords are case-normalized; type references keep their casing.
package rules

import (
	"fmt"
	"reflect"
	"strings"
)

// BaseRule is the base capability a validator type must descend from for a
// plain string entry to be treated as a TypeReference.
const BaseRule = "rule"

// Spec is the ordered list of raw rule entries declared for one attribute.
type Spec []any

// Pipe builds a Spec from a "|" separated rule string.
func Pipe(s string) Spec {
	if strings.TrimSpace(s) == "" {
		return Spec{}
	}
	parts := strings.Split(s, "|")
	spec := make(Spec, 0, len(parts))
	for _, p := range parts {
		spec = append(spec, p)
	}
	return spec
}

// List builds a Spec from individual entries.
func List(entries ...any) Spec {
	return Spec(entries)
}

// Ref marks a rule entry as a reference to an externally defined validator
// type. Refs are never lowercased.
type Ref string

// Hierarchy answers subtype questions about externally defined types.
// Implementations own any ancestor walking.
type Hierarchy interface {
	IsSubtypeOf(candidate, base string) bool
}

// Token is one parsed rule entry: Keyword, TypeReference or Callable.
type Token interface {
	token()
	String() string
}

// Keyword is a bare or parameterized rule keyword such as "required" or
// "max:20". Name is lowercased; Params holds everything after the first ':'.
type Keyword struct {
	Name      string
	Params    string
	HasParams bool
}

func (Keyword) token() {}

func (k Keyword) String() string {
	if k.HasParams {
		return k.Name + ":" + k.Params
	}
	return k.Name
}

// TypeReference names an externally defined validator type.
type TypeReference struct {
	Identifier string
}

func (TypeReference) token() {}

func (t TypeReference) String() string { return t.Identifier }

// Callable is an inline validation function. It carries no metadata.
type Callable struct {
	Fn any
}

func (Callable) token() {}

func (Callable) String() string { return "<callable>" }

// Tokenize converts a Spec into tokens. Empty entries are skipped.
func Tokenize(spec Spec, h Hierarchy) []Token {
	tokens := make([]Token, 0, len(spec))
	for _, entry := range spec {
		switch v := entry.(type) {
		case nil:
			continue
		case Token:
			tokens = append(tokens, v)
		case Ref:
			if id := strings.TrimSpace(string(v)); id != "" {
				tokens = append(tokens, TypeReference{Identifier: id})
			}
		case string:
			if tok, ok := tokenizeString(v, h); ok {
				tokens = append(tokens, tok)
			}
		case Spec:
			tokens = append(tokens, Tokenize(v, h)...)
		default:
			if reflect.TypeOf(entry).Kind() == reflect.Func {
				tokens = append(tokens, Callable{Fn: entry})
				continue
			}
			if tok, ok := tokenizeString(fmt.Sprint(entry), h); ok {
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

func tokenizeString(raw string, h Hierarchy) (Token, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}

	if h != nil && h.IsSubtypeOf(s, BaseRule) {
		return TypeReference{Identifier: s}, true
	}

	name, params, found := strings.Cut(strings.ToLower(s), ":")
	return Keyword{
		Name:      strings.TrimSpace(name),
		Params:    params,
		HasParams: found,
	}, true
}
