package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
)

// placeholder returns the positional parameter for the given 1-based index.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns a comma-separated list of positional parameters.
func placeholders(n int) string {
	list := []string{}
	for i := 1; i <= n; i++ {
		list = append(list, placeholder(i))
	}
	return strings.Join(list, ", ")
}

// marshalJSON encodes a value as JSON, defaulting to the given literal when
// the value is empty.
func marshalJSON(v any, empty string) ([]byte, error) {
	if v == nil {
		return []byte(empty), nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// unmarshalMetadata decodes a JSONB metadata column into a map.
func unmarshalMetadata(buf []byte) map[string]any {
	if len(buf) == 0 {
		return nil
	}
	metadata := map[string]any{}
	if err := json.Unmarshal(buf, &metadata); err != nil {
		return nil
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

// unmarshalStringSlice decodes a JSONB array column into a string slice.
func unmarshalStringSlice(buf []byte) []string {
	if len(buf) == 0 {
		return nil
	}
	list := []string{}
	if err := json.Unmarshal(buf, &list); err != nil {
		return nil
	}
	if len(list) == 0 {
		return nil
	}
	return list
}
