package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// StateManager interface for persisting and recovering engine state.
type StateManager interface {
	SaveState(state map[string]any) error
	LoadState() (map[string]any, error)
}

// FileStateManager persists state as a JSON file, written atomically.
type FileStateManager struct {
	Path string
}

func NewFileStateManager(path string) *FileStateManager {
	return &FileStateManager{Path: path}
}

func (f *FileStateManager) SaveState(state map[string]any) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// LoadState returns an empty map when no state file exists yet.
func (f *FileStateManager) LoadState() (map[string]any, error) {
	data, err := os.ReadFile(filepath.Clean(f.Path))
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state map[string]any
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return state, nil
}
