// Package storage is the client's persistent key-value store. The session
// token and the continuous-scrape shadow state live here.
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage closed")

// Store persists string values under string keys.
type Store interface {
	Get(key string) (string, bool, error) // ok is false when key is absent
	Set(key, value string) error
	Remove(key string) error // removing an absent key is not an error
}

// DataDir returns the tgdeck-specific XDG data directory.
// Path: $XDG_DATA_HOME/tgdeck or ~/.local/share/tgdeck
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "tgdeck"), nil
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
