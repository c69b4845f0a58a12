package taskwarrior

import "github.com/tidwall/gjson"

// Kind classifies a JSON value by shape.
type Kind int

const (
	KindMissing Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindMissing: "missing",
	KindNull:    "null",
	KindBool:    "boolean",
	KindNumber:  "number",
	KindString:  "string",
	KindArray:   "array",
	KindObject:  "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Scalar reports whether k is a JSON primitive.
func (k Kind) Scalar() bool {
	return k == KindBool || k == KindNumber || k == KindString
}

// KindOf returns the shape of v.
func KindOf(v gjson.Result) Kind {
	if !v.Exists() {
		return KindMissing
	}
	switch v.Type {
	case gjson.Null:
		return KindNull
	case gjson.True, gjson.False:
		return KindBool
	case gjson.Number:
		return KindNumber
	case gjson.String:
		return KindString
	}
	if v.IsArray() {
		return KindArray
	}
	if v.IsObject() {
		return KindObject
	}
	return KindNull
}

// expectKind returns a *FieldError naming key unless v has kind want.
func expectKind(key string, v gjson.Result, want Kind) error {
	if got := KindOf(v); got != want {
		return &FieldError{Key: key, Expected: want.String(), Actual: got}
	}
	return nil
}
