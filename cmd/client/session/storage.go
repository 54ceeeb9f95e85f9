package session

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Storage persists small opaque blobs for the SDK, keyed by name. It stands
// in for whatever the host application uses: browser local storage, a
// keychain, or a plain file.
type Storage interface {
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// MemoryStorage is an in-process Storage for tests and ephemeral clients.
type MemoryStorage struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string][]byte)}
}

// Get implements Storage.
func (s *MemoryStorage) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set implements Storage.
func (s *MemoryStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.m[key] = cp
	return nil
}

// Delete implements Storage.
func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// FileStorage keeps one file per key under a directory, mode 0600.
type FileStorage struct {
	dir string
}

// NewFileStorage creates the directory if needed and returns a FileStorage
// over it.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	// Keys may contain separators; encode to keep them single-segment.
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key)))
}

// Get implements Storage.
func (s *FileStorage) Get(key string) ([]byte, bool, error) {
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set implements Storage.
func (s *FileStorage) Set(key string, value []byte) error {
	return os.WriteFile(s.path(key), value, 0o600)
}

// Delete implements Storage.
func (s *FileStorage) Delete(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
