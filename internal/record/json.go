package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// DecodeObjects reads raw records from JSON: either a single flat object or
// an array of them. Objects are decoded token-wise so that key order, which
// the resolver's first-match contract depends on, survives the trip through
// JSON, unlike a map decode.
func DecodeObjects(r io.Reader, arrivedAt time.Time) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading JSON: %w", err)
	}

	switch delim, _ := tok.(json.Delim); delim {
	case '{':
		rec, err := decodeFields(dec, arrivedAt)
		if err != nil {
			return nil, err
		}
		return []Record{rec}, nil
	case '[':
		var recs []Record
		for dec.More() {
			open, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("reading JSON array: %w", err)
			}
			if d, ok := open.(json.Delim); !ok || d != '{' {
				return nil, fmt.Errorf("expected JSON object in array, got %v", open)
			}
			rec, err := decodeFields(dec, arrivedAt)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("reading JSON array end: %w", err)
		}
		return recs, nil
	default:
		return nil, fmt.Errorf("expected JSON object or array, got %v", tok)
	}
}

// DecodeObject reads exactly one flat JSON object.
func DecodeObject(data []byte, arrivedAt time.Time) (Record, error) {
	recs, err := DecodeObjects(bytes.NewReader(data), arrivedAt)
	if err != nil {
		return Record{}, err
	}
	if len(recs) != 1 {
		return Record{}, fmt.Errorf("expected a single JSON object, got %d", len(recs))
	}
	return recs[0], nil
}

// decodeFields consumes key/value pairs up to and including the closing
// brace. The opening brace has already been read.
func decodeFields(dec *json.Decoder, arrivedAt time.Time) (Record, error) {
	var fields []Field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Record{}, fmt.Errorf("reading object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return Record{}, fmt.Errorf("expected string key, got %v", keyTok)
		}

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return Record{}, fmt.Errorf("reading value for %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Value: normalizeValue(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return Record{}, fmt.Errorf("reading object end: %w", err)
	}
	return New(arrivedAt, fields), nil
}

// normalizeValue maps json.Number to float64 and leaves other scalars alone.
// Nested objects/arrays are not part of the flat-record contract; they pass
// through and coerce to defaults downstream.
func normalizeValue(v any) any {
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}

// MarshalJSON writes the record as a JSON object with fields in their
// original order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshalling field %q: %w", f.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
