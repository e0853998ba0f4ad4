package rules

import "strings"

// Display types produced by the classifier.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumeric = "numeric"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeEmail   = "email"
	TypeURL     = "url"
	TypeArray   = "array"
	TypeJSON    = "json"
	TypeImage   = "image"
	TypeFile    = "file"
	TypeDate    = "date"
	TypeMixed   = "mixed"
)

// CastType is the narrow runtime type a value declared by a rule is coerced to.
type CastType string

const (
	CastInt    CastType = "int"
	CastBool   CastType = "bool"
	CastArray  CastType = "array"
	CastFloat  CastType = "float"
	CastString CastType = "string"
)

type displayRule struct {
	keyword string
	display string
}

type castRule struct {
	keyword string
	cast    CastType
}

type suffixRule struct {
	suffix  string
	display string
}

// displayTable is tried top to bottom; declaration order is the tie-break.
var displayTable = []displayRule{
	{"string", TypeString},
	{"integer", TypeInteger},
	{"bool", TypeBoolean},
	{"boolean", TypeBoolean},
	{"numeric", TypeNumeric},
	{"digits", TypeNumeric},
	{"digits_between", TypeNumeric},
	{"email", TypeEmail},
	{"url", TypeURL},
	{"array", TypeArray},
	{"json", TypeJSON},
	{"image", TypeImage},
	{"file", TypeFile},
	{"date", TypeDate},
	{"datetime", TypeDate},
}

var castTable = []castRule{
	{"integer", CastInt},
	{"bool", CastBool},
	{"boolean", CastBool},
	{"array", CastArray},
	{"numeric", CastFloat},
	{"digits", CastFloat},
	{"digits_between", CastFloat},
	{"date", CastString},
	{"datetime", CastString},
}

var suffixTable = []suffixRule{
	{"_id", TypeInteger},
	{"_count", TypeInteger},
	{"_num", TypeInteger},
	{"_name", TypeString},
	{"name", TypeString},
	{"_date", TypeString},
	{"_rate", TypeFloat},
}

// GuessType infers a display type from an attribute name alone. It is used
// when no rule exists for the attribute.
func GuessType(attribute string) string {
	for _, r := range suffixTable {
		if strings.HasSuffix(attribute, r.suffix) {
			return r.display
		}
	}
	return TypeMixed
}

// displayTypeOf returns the first display type whose keyword is in names.
func displayTypeOf(names map[string]bool) (string, bool) {
	for _, r := range displayTable {
		if names[r.keyword] {
			return r.display, true
		}
	}
	return "", false
}

func castTypeOf(names map[string]bool) CastType {
	for _, r := range castTable {
		if names[r.keyword] {
			return r.cast
		}
	}
	return CastString
}
