// Package state persists pipeline checkpoints as a flat JSON key-value
// file, rewritten whole on every set.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LatestUpdateKey is the key under which the extraction watermark is kept.
const LatestUpdateKey = "latest_update"

// Store is a durable string-to-string map backed by a single JSON file.
// Writes go to a temporary file in the same directory and are renamed into
// place, so a crash mid-write never leaves a half-written artifact behind.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Get returns the value for key. A missing file or missing key reports
// ok=false; callers supply their own default.
func (s *Store) Get(key string) (string, bool) {
	data, err := s.read()
	if err != nil {
		return "", false
	}
	v, ok := data[key]
	return v, ok
}

// Set writes key=value and flushes the whole state to disk.
func (s *Store) Set(key, value string) error {
	data, err := s.read()
	if err != nil {
		data = map[string]string{}
	}
	data[key] = value
	return s.write(data)
}

// Reset removes the state file entirely.
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset state %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("corrupt state file %s: %w", s.path, err)
	}
	return data, nil
}

func (s *Store) write(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
