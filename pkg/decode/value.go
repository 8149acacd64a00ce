package decode

import (
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds
type Kind int

// A decoded field is null, a number, a boolean or a string. Absent marks a
// field that must not be written at all.
const (
	KindAbsent Kind = iota
	KindNull
	KindNumber
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a single typed field of a Row.
// Numbers keep the text they were decoded from so that identifiers such as
// "42" round-trip without float formatting.
type Value struct {
	kind Kind
	text string
	num  float64
	b    bool
}

// Absent is the sentinel for fields that the writer strips.
var Absent = Value{kind: KindAbsent}

// Null returns a null Value
func Null() Value { return Value{kind: KindNull} }

// String returns a string Value
func String(s string) Value { return Value{kind: KindString, text: s} }

// Bool returns a boolean Value
func Bool(b bool) Value { return Value{kind: KindBool, b: b, text: strconv.FormatBool(b)} }

// Number returns a numeric Value from its source text. It reports false if
// text is not a valid number.
func Number(text string) (Value, bool) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Value{}, false
	}
	return Value{kind: KindNumber, text: text, num: f}, true
}

// Kind returns the variant held by v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null or absent
func (v Value) IsNull() bool { return v.kind == KindNull || v.kind == KindAbsent }

// Float returns the numeric value; ok is false for non-numbers
func (v Value) Float() (f float64, ok bool) { return v.num, v.kind == KindNumber }

// Bool returns the boolean value; ok is false for non-booleans
func (v Value) Bool() (b bool, ok bool) { return v.b, v.kind == KindBool }

// Text renders v as text. Null and absent render as the empty string.
func (v Value) Text() string {
	if v.IsNull() {
		return ""
	}
	return v.text
}

// Native converts v to the plain Go value a document store expects.
// Integral numbers that fit in an int64 become int64, other numbers float64.
func (v Value) Native() interface{} {
	switch v.kind {
	case KindNumber:
		if !strings.Contains(v.text, ".") {
			if i, err := strconv.ParseInt(v.text, 10, 64); err == nil {
				return i
			}
		}
		return v.num
	case KindBool:
		return v.b
	case KindString:
		return v.text
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindAbsent:
		return "<absent>"
	case KindNull:
		return "<null>"
	case KindString:
		return strconv.Quote(v.text)
	default:
		return v.text
	}
}

// Row is a decoded record: column name to typed value
type Row map[string]Value

// Get returns the value for col, or Absent if the row has no such column
func (r Row) Get(col string) Value {
	v, ok := r[col]
	if !ok {
		return Absent
	}
	return v
}

// Text returns the trimmed text of col; null and missing columns are ""
func (r Row) Text(col string) string {
	return strings.TrimSpace(r.Get(col).Text())
}
