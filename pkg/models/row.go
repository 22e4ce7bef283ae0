package models

import (
	"bytes"
	"encoding/json"
)

// Row is one result row that keeps its fields in result-column order.
// It marshals to a JSON object whose keys follow that order.
type Row struct {
	keys   []string
	values map[string]any
}

// NewRow creates an empty row with room for n fields.
func NewRow(n int) *Row {
	return &Row{
		keys:   make([]string, 0, n),
		values: make(map[string]any, n),
	}
}

// Set stores value under key. A repeated key overwrites the value but keeps
// its original position.
func (r *Row) Set(key string, value any) {
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under key.
func (r *Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the field names in order.
func (r *Row) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of fields.
func (r *Row) Len() int {
	return len(r.keys)
}

// Project returns a new row holding only the given keys, in the given order.
// Keys missing from r are skipped.
func (r *Row) Project(keys []string) *Row {
	out := NewRow(len(keys))
	for _, k := range keys {
		if v, ok := r.values[k]; ok {
			out.Set(k, v)
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
