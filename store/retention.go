package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"visittrack/api/models"
)

// DefaultCapacity is the number of finalized visits kept when no capacity is configured.
const DefaultCapacity = 100

var (
	ErrInvalidCapacity = errors.New("retention capacity must not be negative")
	ErrNotFinalized    = errors.New("visit session is not finalized")
)

// Backend is the durable side of the retention log. Implementations may keep
// more or fewer records than the store; the store only trusts ReadAll at load.
type Backend interface {
	Append(ctx context.Context, session models.VisitSession) error
	ReadAll(ctx context.Context) ([]models.VisitSession, error)
}

type RetentionOptions struct {
	// Capacity bounds the log; zero means DefaultCapacity.
	Capacity int
	// Async hands persistence to a background writer so Append never waits on I/O.
	Async bool
	// WriteTimeout bounds each backend write. Zero means 10s.
	WriteTimeout time.Duration
}

// RetentionStore keeps the most recent finalized visits in insertion order,
// evicting the oldest first once capacity is exceeded. The in-memory log is
// authoritative; persistence is best-effort.
type RetentionStore struct {
	mu       sync.RWMutex
	sessions []models.VisitSession
	capacity int
	closed   bool

	backend      Backend
	writeTimeout time.Duration
	writes       chan models.VisitSession
	done         chan struct{}
}

// NewRetentionStore loads the backend contents and returns a ready store.
// Unreadable backend data degrades to an empty log.
func NewRetentionStore(ctx context.Context, backend Backend, opts RetentionOptions) (*RetentionStore, error) {
	if opts.Capacity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, opts.Capacity)
	}
	if opts.Capacity == 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if backend == nil {
		backend = NewMemoryBackend()
	}

	s := &RetentionStore{
		capacity:     opts.Capacity,
		backend:      backend,
		writeTimeout: opts.WriteTimeout,
	}

	loaded, err := backend.ReadAll(ctx)
	if err != nil {
		log.Printf("WARN: retention store could not read persisted visits, starting empty: %v", err)
		loaded = nil
	}
	if len(loaded) > s.capacity {
		loaded = loaded[len(loaded)-s.capacity:]
	}
	s.sessions = append(make([]models.VisitSession, 0, s.capacity), loaded...)

	if opts.Async {
		s.writes = make(chan models.VisitSession, s.capacity)
		s.done = make(chan struct{})
		go s.writeLoop()
	}

	return s, nil
}

// Append adds a finalized session to the end of the log and persists it.
// A persistence failure is returned in sync mode and logged in async mode;
// either way the in-memory append stands.
func (s *RetentionStore) Append(ctx context.Context, session models.VisitSession) error {
	if !session.Finalized() {
		return ErrNotFinalized
	}

	session = session.Clone()

	s.mu.Lock()
	s.sessions = append(s.sessions, session)
	if over := len(s.sessions) - s.capacity; over > 0 {
		s.sessions = append(s.sessions[:0:0], s.sessions[over:]...)
	}

	if s.writes != nil {
		defer s.mu.Unlock()
		if s.closed {
			log.Printf("WARN: retention store closed, visit %s kept in memory only", session.ID)
			return nil
		}
		select {
		case s.writes <- session:
		default:
			log.Printf("ERROR: retention write queue full, visit %s not persisted", session.ID)
		}
		return nil
	}
	s.mu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	if err := s.backend.Append(wctx, session); err != nil {
		return fmt.Errorf("persisting visit %s: %w", session.ID, err)
	}
	return nil
}

func (s *RetentionStore) writeLoop() {
	defer close(s.done)
	for session := range s.writes {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		if err := s.backend.Append(ctx, session); err != nil {
			log.Printf("ERROR: failed to persist visit %s: %v", session.ID, err)
		}
		cancel()
	}
}

// Recent returns up to limit sessions, most recent first. The returned
// sessions are copies.
func (s *RetentionStore) Recent(limit int) []models.VisitSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []models.VisitSession{}
	}
	if limit > len(s.sessions) {
		limit = len(s.sessions)
	}
	out := make([]models.VisitSession, 0, limit)
	for i := len(s.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.sessions[i].Clone())
	}
	return out
}

// All returns copies of every retained session, oldest first.
func (s *RetentionStore) All() []models.VisitSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.VisitSession, len(s.sessions))
	for i, session := range s.sessions {
		out[i] = session.Clone()
	}
	return out
}

func (s *RetentionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *RetentionStore) Capacity() int { return s.capacity }

// Close stops the background writer after draining queued writes.
func (s *RetentionStore) Close() {
	s.mu.Lock()
	if s.closed || s.writes == nil {
		s.closed = true
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.writes)
	s.mu.Unlock()

	<-s.done
}
