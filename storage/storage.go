// Package storage provides the string key-value store that backs the
// preference stores, standing in for browser local storage.
package storage

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/aluiziolira/librosync/config"
)

// Storage is a flat string key-value store. Get reports ok=false for a key
// that was never set.
type Storage interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Clear() error
}

// Store is a Storage that can enumerate its keys and holds resources until
// closed.
type Store interface {
	Storage
	Keys() ([]string, error)
	io.Closer
}

// Open returns the store selected by driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case config.StorageMemory:
		return NewMemory(), nil
	case config.StorageSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// Memory keeps values in a map. The zero value is not usable; call NewMemory.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.values)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.values)), nil
}

func (m *Memory) Close() error { return nil }
