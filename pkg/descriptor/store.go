package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Store reads and writes one deployment descriptor file.
type Store struct {
	path string
}

// NewStore creates a store for the descriptor at path.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultFileName
	}
	return &Store{path: path}
}

// Path returns the descriptor file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a descriptor file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads and validates the descriptor. A missing or unparseable file
// yields ErrNoDeployment so callers can fail fast with one message.
func (s *Store) Load() (*DeploymentConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w (looked at %s)", ErrNoDeployment, s.path)
		}
		return nil, fmt.Errorf("reading descriptor %s: %w", s.path, err)
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w (descriptor %s unparseable: %v)", ErrNoDeployment, s.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the descriptor, refusing to change the function name or
// region of an existing one.
func (s *Store) Save(cfg *DeploymentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if existing, err := s.Load(); err == nil {
		if existing.Function.Name != cfg.Function.Name || existing.Function.Region != cfg.Function.Region {
			return fmt.Errorf("descriptor %s already tracks %s in %s; function name and region are immutable",
				s.path, existing.Function.Name, existing.Function.Region)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding descriptor: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing descriptor %s: %w", s.path, err)
	}
	return nil
}

// Remove deletes the descriptor file. Missing files are not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing descriptor %s: %w", s.path, err)
	}
	return nil
}
