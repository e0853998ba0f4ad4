package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHierarchy map[string]string

func (f fakeHierarchy) IsSubtypeOf(candidate, base string) bool {
	return f[candidate] == base
}

func TestParse_RequiredMaxIn(t *testing.T) {
	p := ParseString("required|max:20|in:a,b,c")

	assert.True(t, p.Required())

	max, ok := p.Max()
	assert.True(t, ok)
	assert.Equal(t, 20, max)

	_, ok = p.Min()
	assert.False(t, ok)

	in, ok := p.In()
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, in)

	assert.Equal(t, "string", p.Type())
	assert.Equal(t, "string(20)", p.TypeDetail())
}

func TestParse_MinMaxDetail(t *testing.T) {
	p := ParseString("min:3|max:10")
	assert.Equal(t, "string(3,10)", p.TypeDetail())
	assert.False(t, p.Required())
}

func TestParse_ZeroBoundsAreNotRendered(t *testing.T) {
	p := ParseString("string|min:0")
	min, ok := p.Min()
	assert.True(t, ok)
	assert.Equal(t, 0, min)
	assert.Equal(t, "string", p.TypeDetail())
}

func TestParse_BoundParenthesesStripped(t *testing.T) {
	p := ParseString("max:(255)")
	max, ok := p.Max()
	require.True(t, ok)
	assert.Equal(t, 255, max)
}

func TestParse_MalformedTokensIgnored(t *testing.T) {
	p := ParseString("required|max|min:abc|in")

	_, ok := p.Max()
	assert.False(t, ok)
	_, ok = p.Min()
	assert.False(t, ok)
	_, ok = p.In()
	assert.False(t, ok)
	assert.True(t, p.Required())
}

func TestParse_InValuesTrimQuotes(t *testing.T) {
	p := ParseString(`in:"draft", 'published' ,archived`)
	in, ok := p.In()
	require.True(t, ok)
	assert.Equal(t, []string{"draft", "published", "archived"}, in)
}

func TestParse_SplitsOnFirstColonOnly(t *testing.T) {
	p := ParseString("date_format:H:i|in:a:b,c")
	in, _ := p.In()
	assert.Equal(t, []string{"a:b", "c"}, in)

	var names []string
	for _, tok := range p.Tokens() {
		names = append(names, tok.String())
	}
	assert.Equal(t, []string{"date_format:h:i", "in:a:b,c"}, names)
}

func TestParse_KeywordsAreLowercased(t *testing.T) {
	p := ParseString("Required|INTEGER")
	assert.True(t, p.Required())
	assert.Equal(t, "integer", p.Type())

	p = ParseString("IN:A,B|Required|MAX:(20)")
	in, ok := p.In()
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, in)
	assert.True(t, p.Required())
	assert.Equal(t, "string(20)", p.TypeDetail())
}

func TestParse_TypePrecedence(t *testing.T) {
	tests := []struct {
		rule string
		want string
	}{
		{"required|integer", "integer"},
		{"numeric|integer", "integer"},
		{"digits:4", "numeric"},
		{"digits_between:1,5", "numeric"},
		{"string|email", "string"},
		{"email", "email"},
		{"url", "url"},
		{"array|json", "array"},
		{"json", "json"},
		{"image|file", "image"},
		{"file", "file"},
		{"nullable|date", "date"},
		{"bool", "boolean"},
		{"boolean|string", "string"},
		{"integer|bool", "integer"},
		{"boolean|numeric", "boolean"},
		{"string", "string"},
		{"required", "string"},
		{"", "mixed"},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseString(tt.rule).Type())
		})
	}
}

func TestParse_TypeReferenceKeepsCase(t *testing.T) {
	h := fakeHierarchy{"App.Rules.PhoneNumber": BaseRule}
	p := ParseString("required|App.Rules.PhoneNumber", WithHierarchy(h))

	assert.Equal(t, "App.Rules.PhoneNumber", p.Type())
	assert.Equal(t, "App.Rules.PhoneNumber", p.TypeDetail())
	require.Len(t, p.Tokens(), 2)
	assert.IsType(t, TypeReference{}, p.Tokens()[1])
}

func TestParse_MappedKeywordBeatsTypeReference(t *testing.T) {
	p := Parse(List("integer", Ref("App.Rules.Positive")))
	assert.Equal(t, "integer", p.Type())
}

func TestParse_RefWithoutHierarchy(t *testing.T) {
	p := Parse(List("required", Ref("Money")))
	assert.Equal(t, "Money", p.Type())
}

func TestParse_UnknownTypeWithoutHierarchyIsKeyword(t *testing.T) {
	p := ParseString("App.Rules.PhoneNumber")
	require.Len(t, p.Tokens(), 1)
	kw, ok := p.Tokens()[0].(Keyword)
	require.True(t, ok)
	assert.Equal(t, "app.rules.phonenumber", kw.Name)
}

func TestParse_CallablesIgnored(t *testing.T) {
	check := func(v any) bool { return v != nil }
	p := Parse(List("required", check, "max:5"))

	require.Len(t, p.Tokens(), 3)
	assert.IsType(t, Callable{}, p.Tokens()[1])
	assert.Equal(t, "string(5)", p.TypeDetail())
}

func TestParse_AttributeHeuristic(t *testing.T) {
	// Any declared rule wins over the attribute name.
	assert.Equal(t, "string", ParseString("required", WithAttribute("user_id")).Type())
	assert.Equal(t, "string(20)", ParseString("required|max:20", WithAttribute("user_id")).TypeDetail())
	assert.Equal(t, "boolean", ParseString("bool", WithAttribute("user_id")).Type())

	assert.Equal(t, "integer", Parse(Spec{}, WithAttribute("user_id")).Type())
	assert.Equal(t, "mixed", Parse(Spec{}, WithAttribute("title")).Type())
	assert.Equal(t, "mixed", Parse(Spec{}).Type())
}

func TestParse_CastType(t *testing.T) {
	tests := []struct {
		rule string
		want CastType
	}{
		{"integer", CastInt},
		{"bool", CastBool},
		{"boolean", CastBool},
		{"array", CastArray},
		{"numeric", CastFloat},
		{"digits_between:1,3", CastFloat},
		{"date", CastString},
		{"datetime", CastString},
		{"email", CastString},
		{"", CastString},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseString(tt.rule).CastType())
		})
	}
}

func TestParse_Default(t *testing.T) {
	assert.Nil(t, ParseString("required").Default())
}

func TestParse_InReturnsCopy(t *testing.T) {
	p := ParseString("in:a,b")
	in, _ := p.In()
	in[0] = "z"
	again, _ := p.In()
	assert.Equal(t, "a", again[0])
}

func TestParse_Has(t *testing.T) {
	p := ParseString("nullable|Sometimes")
	assert.True(t, p.Has("nullable"))
	assert.True(t, p.Has("SOMETIMES"))
	assert.False(t, p.Has("required"))
}

func TestPipe(t *testing.T) {
	assert.Equal(t, Spec{"a", "b:1"}, Pipe("a|b:1"))
	assert.Equal(t, Spec{}, Pipe("  "))
}

func TestGuessType(t *testing.T) {
	tests := []struct {
		attribute string
		want      string
	}{
		{"user_id", "integer"},
		{"comment_count", "integer"},
		{"order_num", "integer"},
		{"display_name", "string"},
		{"username", "string"},
		{"name", "string"},
		{"birth_date", "string"},
		{"conversion_rate", "float"},
		{"title", "mixed"},
		{"id", "mixed"},
	}

	for _, tt := range tests {
		t.Run(tt.attribute, func(t *testing.T) {
			assert.Equal(t, tt.want, GuessType(tt.attribute))
		})
	}
}
