package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"visittrack/api/models"
	"visittrack/api/store"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 4, 14, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu   sync.Mutex
	sent []models.Notification
	err  error
}

func (s *recordingSink) Deliver(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) kinds() []models.NotificationKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.NotificationKind, len(s.sent))
	for i, n := range s.sent {
		out[i] = n.Kind
	}
	return out
}

func (s *recordingSink) byKind(kind models.NotificationKind) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type testTracker struct {
	*Manager
	clock     *fakeClock
	sink      *recordingSink
	retention *store.RetentionStore
}

func newTestTracker(t *testing.T) *testTracker {
	t.Helper()
	retention, err := store.NewRetentionStore(context.Background(), store.NewMemoryBackend(), store.RetentionOptions{})
	require.NoError(t, err)

	clock := newFakeClock()
	sink := &recordingSink{}
	m := NewManager(Options{
		Retention: retention,
		Sink:      sink,
		Resolver:  StaticViewer(models.ViewerInfo{ClientFingerprint: "fp-test"}),
		Now:       clock.Now,
	})
	return &testTracker{Manager: m, clock: clock, sink: sink, retention: retention}
}

var errLookup = errors.New("lookup failed")
