package store

import (
	"encoding/json"
	"fmt"
)

// marshalNames converts a name list to JSON TEXT for storage. A nil list
// is stored as [].
func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("marshal names: %w", err)
	}
	return string(data), nil
}

// unmarshalNames parses a JSON TEXT column written by marshalNames.
func unmarshalNames(text string) ([]string, error) {
	names := []string{}
	if err := json.Unmarshal([]byte(text), &names); err != nil {
		return nil, fmt.Errorf("unmarshal names: %w", err)
	}
	return names, nil
}
