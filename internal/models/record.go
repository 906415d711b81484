package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// RawRecord is one row as returned by the remote store: a loosely typed JSON object.
type RawRecord map[string]any

// Has reports whether key is present, even if its value is null.
func (r RawRecord) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// String returns the value at key when it is a non-empty string.
func (r RawRecord) String(key string) (string, bool) {
	s, ok := r[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Int returns the value at key as an int when it holds a whole number.
func (r RawRecord) Int(key string) (int, bool) {
	n, ok := r.Int64(key)
	if !ok || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, false
	}
	return int(n), true
}

// Int64 returns the value at key as an int64 when it holds a whole number.
// JSON decoders hand numbers back as float64 or json.Number; both are accepted.
func (r RawRecord) Int64(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// ID returns the record's primary key.
func (r RawRecord) ID() int64 {
	id, _ := r.Int64("id")
	return id
}

// Clone returns a shallow copy of r.
func (r RawRecord) Clone() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
