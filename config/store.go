package config

import "sync/atomic"

// Store publishes Config snapshots by copy-on-write. Readers call Load,
// which does an atomic pointer read and never blocks on a writer; a
// reload builds a brand new Config and Publish swaps the pointer, so no
// reader ever observes a partially-updated snapshot.
type Store struct {
	ptr atomic.Pointer[Config]
}

// NewStore creates a Store already holding the given initial snapshot.
func NewStore(initial *Config) *Store {
	s := &Store{}
	s.ptr.Store(initial)
	return s
}

// Load returns the currently published snapshot. Safe for concurrent use
// without locking; callers must treat the returned value as read-only.
func (s *Store) Load() *Config {
	return s.ptr.Load()
}

// Publish atomically replaces the published snapshot.
func (s *Store) Publish(cfg *Config) {
	s.ptr.Store(cfg)
}
