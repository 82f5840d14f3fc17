package sqlite

import (
	"encoding/json"
	"strings"
)

// placeholder returns a placeholder for SQLite (uses ?).
func placeholder(_ int) string {
	return "?"
}

// placeholders returns n placeholders for SQLite.
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, "?")
	}
	return strings.Join(list, ", ")
}

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
