// Package keylock serializes work per key while letting different keys run
// concurrently. Entries are reference counted and dropped when unused.
package keylock

import (
	"fmt"
	"sync"
)

type Map[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry[K]
}

type entry[K comparable] struct {
	m    *Map[K]
	mu   sync.Mutex
	refs int
	key  K
}

type Unlocker interface {
	Unlock()
}

func New[K comparable]() *Map[K] {
	return &Map[K]{entries: make(map[K]*entry[K])}
}

// Lock blocks until key is free. The returned Unlocker must be called exactly once.
func (m *Map[K]) Lock(key K) Unlocker {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry[K]{m: m, key: key}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
	return e
}

func (m *Map[K]) IsLocked(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func (e *entry[K]) Unlock() {
	m := e.m

	m.mu.Lock()
	cur, ok := m.entries[e.key]
	if !ok {
		m.mu.Unlock()
		panic(fmt.Errorf("keylock: unlock of %v without entry", e.key))
	}
	cur.refs--
	if cur.refs < 1 {
		delete(m.entries, e.key)
	}
	m.mu.Unlock()

	e.mu.Unlock()
}
