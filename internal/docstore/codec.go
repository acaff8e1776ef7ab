package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// encodeFields serializes a document body.
func encodeFields(fields map[string]interface{}) ([]byte, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

// decodeFields deserializes a document body. Whole numbers decode to int64 and
// other numbers to float64 so that values round-trip the same on every backend.
func decodeFields(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	for k, v := range fields {
		fields[k] = normalize(v)
	}
	return fields, nil
}

// copyFields returns a normalized deep copy of a document body.
func copyFields(fields map[string]interface{}) (map[string]interface{}, error) {
	data, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	return decodeFields(data)
}

// mergeFields overlays patch onto base.
func mergeFields(base, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]interface{}:
		for k, inner := range val {
			val[k] = normalize(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = normalize(inner)
		}
		return val
	default:
		return v
	}
}
