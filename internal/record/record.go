// Package record models raw point-of-sale rows as ordered field sequences.
// Column position matters: alias resolution is first-match over the columns
// in their original order, so records are never represented as plain maps.
package record

import (
	"strings"
	"time"
)

// Field is a single raw column value. Keys are normalized (lower-cased,
// trimmed) when a record is built.
type Field struct {
	Key   string
	Value any
}

// Record is one raw POS row: an ordered set of scalar fields plus the time
// it arrived in the buffer. Immutable once stored.
type Record struct {
	ArrivedAt time.Time
	Fields    []Field
}

// NormalizeKey lower-cases and trims a raw column name. All downstream
// matching (resolver, classifier, canonicalizer) works on normalized keys.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// New builds a Record from ordered key/value pairs, normalizing keys.
func New(arrivedAt time.Time, fields []Field) Record {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, Field{Key: NormalizeKey(f.Key), Value: f.Value})
	}
	return Record{ArrivedAt: arrivedAt, Fields: out}
}

// Get returns the value for a normalized key. When a source row repeats a
// column name the first occurrence wins.
func (r Record) Get(key string) (any, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Columns returns the distinct column names across a record set in order of
// first appearance, scanning records in buffer order. This is the ordered
// sequence the column resolver's first-match contract depends on.
func Columns(recs []Record) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range recs {
		for _, f := range r.Fields {
			if _, ok := seen[f.Key]; ok {
				continue
			}
			seen[f.Key] = struct{}{}
			cols = append(cols, f.Key)
		}
	}
	return cols
}
