package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/oklog/ulid/v2"
)

// Encode serialises document data for byte-oriented backends.
func Encode(data map[string]any) ([]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return b, nil
}

// Decode parses document data written by Encode, normalising numbers.
func Decode(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return normalize(data).(map[string]any), nil
}

// Clone deep-copies data through its encoded form so the result has the
// same shape every backend returns.
func Clone(data map[string]any) (map[string]any, error) {
	b, err := Encode(data)
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

// Normalize converts a JSON-shaped value read from a backend into canonical
// form: json.Number and integral floats become int64 where they fit.
func Normalize(v any) any {
	return normalize(v)
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return normalize(f)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case int:
		return int64(x)
	default:
		return v
	}
}

// NewULID returns a lexically time-ordered id, monotonic within the process.
func NewULID() string {
	return ulid.Make().String()
}

// MergeFields returns base with every top-level field of patch written over it.
// base is modified in place; a nil base yields a new map.
func MergeFields(base, patch map[string]any) map[string]any {
	if base == nil {
		base = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		base[k] = v
	}
	return base
}
