// Package credential persists the Gemini API key between sessions and asks
// the user for a new one when none is stored.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// KeyName is the fixed storage key for the API key.
const KeyName = "gemini_api_key"

// ErrNotFound is returned by Load when no credential is stored.
var ErrNotFound = errors.New("credential: not found")

// Store defines the interface for credential persistence.
type Store interface {
	// Load returns the stored key, or ErrNotFound.
	Load() (string, error)

	// Save stores the key, replacing any previous one.
	Save(key string) error

	// Clear removes the stored key. Clearing an empty store is not an error.
	Clear() error
}

// MemoryStore keeps the key in memory. Useful in tests.
type MemoryStore struct {
	mu  sync.Mutex
	key string
}

// NewMemoryStore creates a store, optionally seeded with a key.
func NewMemoryStore(key string) *MemoryStore {
	return &MemoryStore{key: key}
}

// Load returns the stored key.
func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == "" {
		return "", ErrNotFound
	}
	return m.key, nil
}

// Save stores the key.
func (m *MemoryStore) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("credential: empty key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	return nil
}

// Clear removes the key.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = ""
	return nil
}

// FileStore implements Store using a JSON file readable only by the owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// fileData is the JSON structure for the credentials file.
type fileData struct {
	Version   int               `json:"version"`
	UpdatedAt string            `json:"updated_at"`
	Values    map[string]string `json:"values"`
}

const currentVersion = 1

// NewFileStore creates a JSON-file store at path.
// The file is created on first Save.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// DefaultPath returns ~/.pokedex/<name>.
func DefaultPath(name string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pokedex", name), nil
}

// Load reads the key from disk.
func (s *FileStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return "", err
	}
	key := data.Values[KeyName]
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

// Save writes the key to disk atomically.
func (s *FileStore) Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("credential: empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	data.Values[KeyName] = key
	return s.write(data)
}

// Clear removes the key from disk.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	delete(data.Values, KeyName)
	return s.write(data)
}

// read loads the file. A missing file yields empty data and ErrNotFound.
func (s *FileStore) read() (*fileData, error) {
	empty := &fileData{Version: currentVersion, Values: map[string]string{}}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return empty, ErrNotFound
	}
	if err != nil {
		return empty, fmt.Errorf("failed to read file: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return empty, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if data.Values == nil {
		data.Values = map[string]string{}
	}
	return &data, nil
}

func (s *FileStore) write(data *fileData) error {
	data.Version = currentVersion
	data.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)
