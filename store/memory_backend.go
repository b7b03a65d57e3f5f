package store

import (
	"context"
	"sync"

	"visittrack/api/models"
)

// MemoryBackend keeps records in process. Nothing survives a restart.
type MemoryBackend struct {
	mu      sync.Mutex
	records []models.VisitSession
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Append(_ context.Context, session models.VisitSession) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, session)
	return nil
}

func (b *MemoryBackend) ReadAll(_ context.Context) ([]models.VisitSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.VisitSession, len(b.records))
	copy(out, b.records)
	return out, nil
}
