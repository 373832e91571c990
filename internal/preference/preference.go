// Package preference keeps small per-device settings, such as the member
// this device acts as, in a YAML file.
package preference

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// MemberKey holds the id of the last selected member.
const MemberKey = "chorewheel-member-id"

// DefaultPath is preferences.yaml under the user config directory
// ($XDG_CONFIG_HOME/chorewheel on Linux).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "chorewheel", "preferences.yaml"), nil
}

type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// read returns the stored values. A missing or unreadable file is empty.
func (s *Store) read() map[string]string {
	values := map[string]string{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return values
	}
	if err := yaml.Unmarshal(data, &values); err != nil || values == nil {
		return map[string]string{}
	}
	return values
}

func (s *Store) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preference dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.read()[key]
	return v, ok
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.read()
	values[key] = value
	return s.write(values)
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values := s.read()
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.write(values)
}

// MemberID returns the selected member. A missing or garbled value is
// reported as not set.
func (s *Store) MemberID() (int64, bool) {
	v, ok := s.Get(MemberKey)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Store) SetMemberID(id int64) error {
	return s.Set(MemberKey, strconv.FormatInt(id, 10))
}

func (s *Store) ClearMemberID() error {
	return s.Delete(MemberKey)
}

// Reset removes the preference file.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove preferences: %w", err)
	}
	return nil
}
