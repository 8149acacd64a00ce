package decode

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ColumnKind is the declared type of a column in a Schema
type ColumnKind string

// Supported column kinds. ColumnAuto falls back to Coerce.
const (
	ColumnAuto   ColumnKind = "auto"
	ColumnString ColumnKind = "string"
	ColumnNumber ColumnKind = "number"
	ColumnBool   ColumnKind = "bool"
)

// UnmarshalJSON accepts the kind names case-insensitively
func (k *ColumnKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind := ColumnKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case "":
		*k = ColumnAuto
	case ColumnAuto, ColumnString, ColumnNumber, ColumnBool:
		*k = kind
	default:
		return fmt.Errorf("unknown column kind %q", s)
	}
	return nil
}

// Schema declares column kinds for a table. A nil Schema applies the
// default coercion to every column.
type Schema map[string]ColumnKind

func (s Schema) coerce(col, field string) (Value, error) {
	kind, ok := s[col]
	if !ok || kind == ColumnAuto {
		return Coerce(field), nil
	}
	if field == "" {
		return Null(), nil
	}
	switch kind {
	case ColumnString:
		return String(field), nil
	case ColumnNumber:
		if !numericPattern.MatchString(field) {
			return Value{}, fmt.Errorf("%q is not a number", field)
		}
		v, ok := Number(field)
		if !ok {
			return Value{}, fmt.Errorf("%q is not a number", field)
		}
		return v, nil
	case ColumnBool:
		switch field {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return Value{}, fmt.Errorf("%q is not a boolean", field)
	default:
		return Coerce(field), nil
	}
}
