package preferences

import (
	"context"
	"sync"

	"github.com/sapliy/reminder-engine/internal/reminder"
)

// Source is the remote owner of the preference document. *Client satisfies it.
type Source interface {
	Get(ctx context.Context) (reminder.Preferences, error)
	Update(ctx context.Context, patch Patch) (reminder.Preferences, error)
}

// Store is the session-scoped cache of the preference document. It fetches
// once and afterwards only changes through Update, Set or Refresh.
type Store struct {
	source Source

	mu     sync.Mutex
	prefs  reminder.Preferences
	loaded bool
}

func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Load returns the cached document, fetching it on first use. A failed fetch
// leaves the store empty so the next Load tries again.
func (s *Store) Load(ctx context.Context) (reminder.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.prefs, nil
	}
	prefs, err := s.source.Get(ctx)
	if err != nil {
		return reminder.Preferences{}, err
	}
	s.prefs, s.loaded = prefs, true
	return prefs, nil
}

// Refresh drops the cache and fetches again.
func (s *Store) Refresh(ctx context.Context) (reminder.Preferences, error) {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	return s.Load(ctx)
}

// Update pushes a partial document and caches the echoed authoritative one.
// On failure the cache is untouched.
func (s *Store) Update(ctx context.Context, patch Patch) (reminder.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.source.Update(ctx, patch)
	if err != nil {
		return reminder.Preferences{}, err
	}
	s.prefs, s.loaded = prefs, true
	return prefs, nil
}

// Set caches a document acknowledged elsewhere, e.g. from the update stream.
func (s *Store) Set(prefs reminder.Preferences) {
	s.mu.Lock()
	s.prefs, s.loaded = prefs, true
	s.mu.Unlock()
}

func (s *Store) Cached() (reminder.Preferences, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, s.loaded
}
