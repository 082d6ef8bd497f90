package store

import (
	"encoding/json"
	"fmt"

	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/record"
)

// marshalStatus converts a status record to canonical JSON TEXT for storage.
func marshalStatus(status entity.Status) (string, error) {
	if status == nil {
		return "{}", nil
	}
	data, err := record.MarshalCanonical(status)
	if err != nil {
		return "", fmt.Errorf("marshal status: %w", err)
	}
	return string(data), nil
}

// unmarshalStatus parses JSON TEXT back to a status record. Numbers decode
// as float64, which is what every status field holds.
func unmarshalStatus(data string) (entity.Status, error) {
	if data == "" || data == "{}" {
		return entity.Status{}, nil
	}
	var status entity.Status
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return status, nil
}
