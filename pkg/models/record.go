// Package models contains the data types shared by the console packages.
package models

// Record is a loosely typed row as returned by list endpoints
// (departments, menus, dictionary items). Field names are the backend's
// JSON keys.
type Record map[string]any

// Clone returns a deep copy of the record. Nested maps and slices are
// copied; scalar values are shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// CloneRecords deep-copies a slice of records.
func CloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case []Record:
		return CloneRecords(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// String returns the field as a string, or "" if absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Children returns the nested records stored under field. Both []Record and
// decoded JSON ([]any of objects) are accepted.
func (r Record) Children(field string) []Record {
	switch t := r[field].(type) {
	case []Record:
		return t
	case []any:
		out := make([]Record, 0, len(t))
		for _, e := range t {
			switch m := e.(type) {
			case Record:
				out = append(out, m)
			case map[string]any:
				out = append(out, Record(m))
			}
		}
		return out
	}
	return nil
}
