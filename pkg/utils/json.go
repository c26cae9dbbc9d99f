package utils

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSONFile marshals data with two-space indentation and writes it atomically
func WriteJSONFile(filePath string, data any, perm os.FileMode) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return AtomicWriteFile(filePath, jsonData, perm)
}

// ReadJSONFile reads a JSON file into target.
// A missing file keeps os.ErrNotExist in the error chain.
func ReadJSONFile(filePath string, target any) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from %s: %w", filePath, err)
	}

	return nil
}
