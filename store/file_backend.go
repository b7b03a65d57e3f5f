package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"visittrack/api/models"
)

// FileBackend persists the retention log as one JSON array, trimmed to the
// last capacity records. Writes go through a temp file and a rename so a
// crash never leaves a half-written log.
type FileBackend struct {
	mu       sync.Mutex
	path     string
	capacity int
}

func NewFileBackend(path string, capacity int) *FileBackend {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FileBackend{path: path, capacity: capacity}
}

func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) ReadAll(_ context.Context) ([]models.VisitSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read()
}

func (b *FileBackend) Append(ctx context.Context, session models.VisitSession) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	records, err := b.read()
	if err != nil {
		log.Printf("WARN: discarding unreadable visit log %s: %v", b.path, err)
		records = nil
	}
	records = append(records, session)
	if over := len(records) - b.capacity; over > 0 {
		records = records[over:]
	}
	return b.write(records)
}

func (b *FileBackend) read() ([]models.VisitSession, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.VisitSession{}, nil
		}
		return nil, fmt.Errorf("reading visit log: %w", err)
	}
	if len(data) == 0 {
		return []models.VisitSession{}, nil
	}

	var records []models.VisitSession
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing visit log: %w", err)
	}
	return records, nil
}

func (b *FileBackend) write(records []models.VisitSession) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating visit log dir: %w", err)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling visit log: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".visits-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		return fmt.Errorf("renaming visit log: %w", err)
	}
	committed = true
	return nil
}
