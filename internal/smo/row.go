package smo

import (
	"fmt"
	"strconv"
	"strings"
)

// Row is one result row of a metadata query, keyed by column name.
type Row = map[string]any

// rowReader reads typed fields from a row and remembers the first failure,
// so constructors can read every field and check once.
type rowReader struct {
	typ NodeType
	row Row
	err error
}

func newRowReader(typ NodeType, row Row) *rowReader {
	return &rowReader{typ: typ, row: row}
}

func (r *rowReader) fail(field, reason string) {
	if r.err == nil {
		r.err = &MalformedMetadataError{Type: r.typ, Field: field, Reason: reason}
	}
}

// oid reads a required non-negative integer identifier.
func (r *rowReader) oid(field string) uint32 {
	v, ok := r.row[field]
	if !ok || v == nil {
		r.fail(field, "is missing")
		return 0
	}
	n, err := toInt64(v)
	if err != nil || n < 0 || n > 1<<32-1 {
		r.fail(field, fmt.Sprintf("is not an oid (%T)", v))
		return 0
	}
	return uint32(n)
}

// str reads a required non-empty string.
func (r *rowReader) str(field string) string {
	v, ok := r.row[field]
	if !ok || v == nil {
		r.fail(field, "is missing")
		return ""
	}
	s, ok := toString(v)
	if !ok || s == "" {
		r.fail(field, fmt.Sprintf("is not a non-empty string (%T)", v))
		return ""
	}
	return s
}

// optStr reads an optional string; missing and NULL read as "".
func (r *rowReader) optStr(field string) string {
	s, _ := toString(r.row[field])
	return s
}

// optBool reads an optional boolean; missing and NULL read as false.
func (r *rowReader) optBool(field string) bool {
	switch v := r.row[field].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// optInt reads an optional integer; missing and NULL read as 0.
func (r *rowReader) optInt(field string) int64 {
	v := r.row[field]
	if v == nil {
		return 0
	}
	n, _ := toInt64(v)
	return n
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}
