package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// CSVMediaType is the media type of converted artifacts.
const CSVMediaType = "text/csv; charset=utf-8"

// ToCSV renders a JSON tree as a table.
//
//   - array: one row per object element; the header is the union of their
//     keys in first-seen order and missing keys become empty cells. Elements
//     that are not objects are skipped. An empty array is the single header
//     "value"; a non-empty array without any object element has no table
//     and fails.
//   - object: its keys in document order and one row.
//   - scalar: header "value" and one row.
//   - null: fails.
//
// Every line ends in "\n". Errors wrap ErrConversionFailed.
func ToCSV(tree Value) (string, error) {
	var header []string
	var rows []*Object

	switch t := tree.(type) {
	case []Value:
		seen := make(map[string]bool)
		for _, e := range t {
			obj, ok := e.(*Object)
			if !ok {
				continue
			}
			rows = append(rows, obj)
			for _, k := range obj.Keys {
				if !seen[k] {
					seen[k] = true
					header = append(header, k)
				}
			}
		}
		if len(t) == 0 {
			return "value\n", nil
		}
		if len(rows) == 0 {
			return "", fmt.Errorf("%w: array of %d values has no objects", ErrConversionFailed, len(t))
		}
	case *Object:
		header = t.Keys
		rows = []*Object{t}
	case nil:
		return "", fmt.Errorf("%w: null document", ErrConversionFailed)
	default:
		cell, err := stringify(t)
		if err != nil {
			return "", err
		}
		return "value\n" + escapeCSV(cell) + "\n", nil
	}

	if len(header) == 0 {
		return "", fmt.Errorf("%w: no columns", ErrConversionFailed)
	}

	var b strings.Builder
	writeRecord(&b, header)
	cells := make([]string, len(header))
	for _, obj := range rows {
		for i, k := range header {
			v, ok := obj.Get(k)
			if !ok {
				cells[i] = ""
				continue
			}
			s, err := stringify(v)
			if err != nil {
				return "", err
			}
			cells[i] = s
		}
		writeRecord(&b, cells)
	}
	return b.String(), nil
}

// CSVLine formats one CSV record, including the trailing newline.
func CSVLine(fields ...string) string {
	var b strings.Builder
	writeRecord(&b, fields)
	return b.String()
}

func writeRecord(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeCSV(f))
	}
	b.WriteByte('\n')
}

// escapeCSV quotes s only when it holds a comma, quote, CR or LF.
func escapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func stringify(v Value) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case []Value, *Object:
		var buf bytes.Buffer
		if err := AppendJSON(&buf, t); err != nil {
			return "", fmt.Errorf("%w: %w", ErrConversionFailed, err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: unsupported value %T", ErrConversionFailed, v)
	}
}
