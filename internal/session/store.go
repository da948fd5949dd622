package session

import (
	"encoding/json"
	"sync"

	"github.com/jwhitfield/deskauth/internal/config"
)

// Store owns the live Session and its file on disk. All access goes through
// the store's lock; callers get copies, never the live value. Saves replace
// the file in full; there is no partial-field merge.
type Store struct {
	mu   sync.RWMutex
	path string
	cur  Session
}

// NewStore creates a store backed by the file at path. The session starts
// empty; call Load to read persisted state.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// NewDefaultStore creates a store backed by the standard session file.
func NewDefaultStore() *Store {
	return NewStore(config.SessionFile())
}

// Load reads the persisted session into memory and returns it. A missing or
// corrupt file yields a fresh empty session rather than an error: a broken
// session file means "not signed in", not a crash.
func (s *Store) Load() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = Session{}
	data, err := config.ReadFileIfExists(s.path)
	if err != nil || data == nil {
		return s.cur
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return s.cur
	}
	s.cur = sess
	return s.cur
}

// Current returns a copy of the in-memory session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Replace swaps the in-memory session and persists it, overwriting the file
// in full. The in-memory state is updated even if the write fails, so the
// running process and the caller observe the same session either way.
func (s *Store) Replace(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = sess
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return config.WriteFileAtomic(s.path, data)
}

// Clear resets the session to empty and persists the cleared state.
func (s *Store) Clear() error {
	return s.Replace(Session{})
}
