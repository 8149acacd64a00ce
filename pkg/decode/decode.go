package decode

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	separator = ';'
	quote     = '"'
)

var numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Warning is a non-fatal problem found while decoding a line
type Warning struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Column == "" {
		return fmt.Sprintf("line %d: %s", w.Line, w.Message)
	}
	return fmt.Sprintf("line %d, column %q: %s", w.Line, w.Column, w.Message)
}

// Result holds the rows and warnings produced by DecodeWithSchema
type Result struct {
	Header   []string
	Rows     []Row
	Warnings []Warning
}

// Decode parses delimited export content into rows using the default
// coercion rules for every column.
func Decode(content string) []Row {
	return DecodeWithSchema(content, nil).Rows
}

// DecodeWithSchema parses delimited export content into rows. Columns
// declared in schema are coerced to their declared kind; a row with a value
// that doesn't fit its declared kind is dropped and reported as a warning.
// Columns not in schema use the default coercion order.
func DecodeWithSchema(content string, schema Schema) *Result {
	result := &Result{Rows: make([]Row, 0)}

	lines := strings.Split(content, "\n")
	for i, raw := range lines {
		lineNum := i + 1
		line := strings.TrimSuffix(raw, "\r")
		// the emptiness check runs on the raw line, a blank last field
		// on a populated line is still a field
		if strings.TrimSpace(line) == "" {
			continue
		}

		if result.Header == nil {
			header := SplitFields(line)
			for j, h := range header {
				header[j] = strings.TrimSpace(h)
			}
			result.Header = header
			continue
		}

		fields := SplitFields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) > len(result.Header) {
			result.Warnings = append(result.Warnings, Warning{
				Line:    lineNum,
				Message: fmt.Sprintf("line has %d fields, header has %d; ignoring extra fields", len(fields), len(result.Header)),
			})
		}

		row, warn := buildRow(result.Header, fields, schema)
		if warn != nil {
			warn.Line = lineNum
			result.Warnings = append(result.Warnings, *warn)
			continue
		}
		result.Rows = append(result.Rows, row)
	}
	return result
}

func buildRow(header, fields []string, schema Schema) (Row, *Warning) {
	row := make(Row, len(header))
	for j, col := range header {
		if j >= len(fields) {
			row[col] = Null()
			continue
		}
		v, err := schema.coerce(col, fields[j])
		if err != nil {
			return nil, &Warning{Column: col, Message: err.Error()}
		}
		row[col] = v
	}
	return row, nil
}

// SplitFields splits a single line on `;`. A `"` toggles quoted mode, a
// doubled `""` inside quotes yields one literal quote, and separators inside
// quotes are kept as content. The last field is emitted at end of line.
func SplitFields(line string) []string {
	fields := make([]string, 0, 8)
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == quote:
			if inQuotes && i+1 < len(line) && line[i+1] == quote {
				cur.WriteByte(quote)
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == separator && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

// Coerce applies the default coercion order to a raw field: empty is null,
// numeric text is a number, lowercase true/false is a boolean, anything else
// stays a string. Numeric-looking identifiers therefore become numbers;
// declare such columns as KindString in a Schema to keep them textual.
func Coerce(field string) Value {
	if field == "" {
		return Null()
	}
	if numericPattern.MatchString(field) {
		if v, ok := Number(field); ok {
			return v
		}
	}
	switch field {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return String(field)
}
