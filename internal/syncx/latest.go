// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Latest holds the most recent value of T and remembers whether one was
// ever stored. The zero value is ready to use.
type Latest[T any] struct {
	mu    sync.RWMutex
	value T
	set   bool
}

// Store replaces the value.
func (l *Latest[T]) Store(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value, l.set = v, true
}

// Load returns the value and whether one has been stored.
func (l *Latest[T]) Load() (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.set
}
