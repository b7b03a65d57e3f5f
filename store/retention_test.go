package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"visittrack/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finalizedVisit(i int) models.VisitSession {
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
	end := start.Add(40 * time.Second)
	dur := int64(40)
	return models.VisitSession{
		ID:              fmt.Sprintf("visit-%d", i),
		ListingID:       fmt.Sprintf("emp%d", i),
		ListingName:     fmt.Sprintf("Residencial %d", i),
		ViewerInfo:      models.ViewerInfo{OriginTag: models.DefaultOriginTag, ClientFingerprint: "fp"},
		StartedAt:       start,
		EndedAt:         &end,
		DurationSeconds: &dur,
		Actions:         []models.Action{{Kind: models.ActionView, Timestamp: start}},
	}
}

type failingBackend struct {
	mu      sync.Mutex
	readErr error
	calls   int
}

func (b *failingBackend) Append(context.Context, models.VisitSession) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return errors.New("disk full")
}

func (b *failingBackend) ReadAll(context.Context) ([]models.VisitSession, error) {
	return nil, b.readErr
}

func TestRetentionStoreEvictsOldestFirst(t *testing.T) {
	s, err := NewRetentionStore(context.Background(), NewMemoryBackend(), RetentionOptions{Capacity: 100})
	require.NoError(t, err)

	for i := 1; i <= 101; i++ {
		require.NoError(t, s.Append(context.Background(), finalizedVisit(i)))
	}

	all := s.All()
	require.Len(t, all, 100)
	assert.Equal(t, "visit-2", all[0].ID)
	assert.Equal(t, "visit-101", all[99].ID)
}

func TestRetentionStoreRecentIsNewestFirst(t *testing.T) {
	s, err := NewRetentionStore(context.Background(), nil, RetentionOptions{})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(context.Background(), finalizedVisit(i)))
	}

	recent := s.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "visit-5", recent[0].ID)
	assert.Equal(t, "visit-4", recent[1].ID)
	assert.Equal(t, "visit-3", recent[2].ID)

	assert.Len(t, s.Recent(50), 5)
	assert.Empty(t, s.Recent(0))
	// Recent is restartable.
	assert.Equal(t, recent, s.Recent(3))
}

func TestRetentionStoreReturnsCopies(t *testing.T) {
	s, err := NewRetentionStore(context.Background(), nil, RetentionOptions{})
	require.NoError(t, err)

	visit := finalizedVisit(1)
	visit.Actions[0].Details = map[string]any{"meta": map[string]any{"file": "planta.pdf"}}
	visit.Origin = &models.VisitOrigin{PreviousListingID: "emp0", NavigationKind: models.NavigationRelated}
	require.NoError(t, s.Append(context.Background(), visit))

	// Changes to the appended value do not reach the store.
	*visit.DurationSeconds = 1
	visit.Actions[0].Kind = models.ActionPause

	recent := s.Recent(1)
	require.Len(t, recent, 1)
	*recent[0].DurationSeconds = -7
	*recent[0].EndedAt = time.Time{}
	recent[0].Actions[0].Kind = "tampered"
	recent[0].Actions[0].Details["meta"].(map[string]any)["file"] = "TAMPERED"
	recent[0].Origin.PreviousListingID = "tampered"

	all := s.All()
	all[0].Actions = append(all[0].Actions, models.Action{Kind: models.ActionResume})

	stored := s.All()
	require.Len(t, stored, 1)
	assert.Equal(t, int64(40), *stored[0].DurationSeconds)
	assert.False(t, stored[0].EndedAt.IsZero())
	require.Len(t, stored[0].Actions, 1)
	assert.Equal(t, models.ActionView, stored[0].Actions[0].Kind)
	assert.Equal(t, "planta.pdf", stored[0].Actions[0].Details["meta"].(map[string]any)["file"])
	assert.Equal(t, "emp0", stored[0].Origin.PreviousListingID)
}

func TestRetentionStoreDefaultsAndInvalidCapacity(t *testing.T) {
	s, err := NewRetentionStore(context.Background(), nil, RetentionOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, s.Capacity())
	assert.Empty(t, s.All())

	_, err = NewRetentionStore(context.Background(), nil, RetentionOptions{Capacity: -1})
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestRetentionStoreRejectsActiveSession(t *testing.T) {
	s, err := NewRetentionStore(context.Background(), nil, RetentionOptions{})
	require.NoError(t, err)

	active := finalizedVisit(1)
	active.EndedAt = nil
	active.DurationSeconds = nil

	assert.ErrorIs(t, s.Append(context.Background(), active), ErrNotFinalized)
	assert.Zero(t, s.Len())
}

func TestRetentionStoreSyncPersistFailureKeepsRecord(t *testing.T) {
	backend := &failingBackend{}
	s, err := NewRetentionStore(context.Background(), backend, RetentionOptions{Capacity: 10})
	require.NoError(t, err)

	err = s.Append(context.Background(), finalizedVisit(1))
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestRetentionStoreAsyncPersistFailureIsLogged(t *testing.T) {
	backend := &failingBackend{}
	s, err := NewRetentionStore(context.Background(), backend, RetentionOptions{Capacity: 10, Async: true})
	require.NoError(t, err)

	assert.NoError(t, s.Append(context.Background(), finalizedVisit(1)))
	assert.NoError(t, s.Append(context.Background(), finalizedVisit(2)))
	s.Close()

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 2, backend.calls)
	assert.Equal(t, 2, s.Len())
}

func TestRetentionStoreAsyncPreservesOrder(t *testing.T) {
	backend := NewMemoryBackend()
	s, err := NewRetentionStore(context.Background(), backend, RetentionOptions{Capacity: 50, Async: true})
	require.NoError(t, err)

	for i := 1; i <= 20; i++ {
		require.NoError(t, s.Append(context.Background(), finalizedVisit(i)))
	}
	s.Close()
	s.Close()

	persisted, err := backend.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, persisted, 20)
	for i, v := range persisted {
		assert.Equal(t, fmt.Sprintf("visit-%d", i+1), v.ID)
	}

	// Appends after Close stay in memory.
	assert.NoError(t, s.Append(context.Background(), finalizedVisit(21)))
	assert.Equal(t, 21, s.Len())
}

func TestRetentionStoreUnreadableBackendDegradesToEmpty(t *testing.T) {
	s, err := NewRetentionStore(context.Background(), &failingBackend{readErr: errors.New("corrupt")}, RetentionOptions{})
	require.NoError(t, err)
	assert.Empty(t, s.All())
}

func TestFileBackendRoundTripThroughStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "visits.json")
	backend := NewFileBackend(path, 3)

	s, err := NewRetentionStore(context.Background(), backend, RetentionOptions{Capacity: 3})
	require.NoError(t, err)
	for i := 1; i <= 4; i++ {
		require.NoError(t, s.Append(context.Background(), finalizedVisit(i)))
	}

	reloaded, err := NewRetentionStore(context.Background(), NewFileBackend(path, 3), RetentionOptions{Capacity: 3})
	require.NoError(t, err)

	all := reloaded.All()
	require.Len(t, all, 3)
	assert.Equal(t, "visit-2", all[0].ID)
	assert.Equal(t, "visit-4", all[2].ID)
	require.NotNil(t, all[2].DurationSeconds)
	assert.Equal(t, int64(40), *all[2].DurationSeconds)
	assert.Equal(t, models.ActionView, all[2].Actions[0].Kind)
}

func TestFileBackendCorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visits.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	backend := NewFileBackend(path, 10)
	_, err := backend.ReadAll(context.Background())
	assert.Error(t, err)

	s, err := NewRetentionStore(context.Background(), backend, RetentionOptions{Capacity: 10})
	require.NoError(t, err)
	assert.Empty(t, s.All())

	// The next append replaces the corrupt log.
	require.NoError(t, s.Append(context.Background(), finalizedVisit(1)))
	records, err := backend.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFileBackendMissingFileIsEmpty(t *testing.T) {
	backend := NewFileBackend(filepath.Join(t.TempDir(), "none.json"), 10)
	records, err := backend.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}
