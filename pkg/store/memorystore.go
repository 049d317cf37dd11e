// Package store implements a simple key-value store used to track published
// artifacts across jobs.
package store

import (
	"errors"
	"sync"
)

var (
	ErrKeyExists      = errors.New("store: key already exists")
	ErrKeyDoesntExist = errors.New("store: key does not exist")
)

type Store interface {
	Set(key string, value interface{}) error
	Get(key string) (interface{}, error)
	Delete(key string) error
	Update(key string, newValue interface{}) error
}

type MemStore struct {
	lock  sync.Mutex
	store map[string]interface{}
}

func NewMemStore() Store {
	return &MemStore{
		store: make(map[string]interface{}),
	}
}

// Set stores a value under a new key.
func (m *MemStore) Set(key string, value interface{}) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.store[key]; ok {
		return ErrKeyExists
	}
	m.store[key] = value
	return nil
}

// Get returns the value for a key.
func (m *MemStore) Get(key string) (interface{}, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	value, ok := m.store[key]
	if !ok {
		return nil, ErrKeyDoesntExist
	}
	return value, nil
}

// Delete removes the specified key and value.
func (m *MemStore) Delete(key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.store[key]; !ok {
		return ErrKeyDoesntExist
	}
	delete(m.store, key)
	return nil
}

// Update changes the value for an existing key.
func (m *MemStore) Update(key string, value interface{}) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.store[key]; !ok {
		return ErrKeyDoesntExist
	}
	m.store[key] = value
	return nil
}
