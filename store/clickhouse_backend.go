package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"visittrack/api/database"
	"visittrack/api/models"
)

// ClickHouseBackend persists finalized visits to the visit_sessions table.
// ReadAll returns the newest capacity rows in insertion order.
type ClickHouseBackend struct {
	DB       *database.ClickHouseClient
	capacity int
}

func NewClickHouseBackend(chClient *database.ClickHouseClient, capacity int) *ClickHouseBackend {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ClickHouseBackend{DB: chClient, capacity: capacity}
}

func (b *ClickHouseBackend) Append(ctx context.Context, session models.VisitSession) error {
	actions, err := json.Marshal(session.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions for visit %s: %w", session.ID, err)
	}

	var prevListing, navKind string
	if session.Origin != nil {
		prevListing = session.Origin.PreviousListingID
		navKind = session.Origin.NavigationKind
	}

	batch, err := b.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO visit_sessions (
			session_id, listing_id, listing_name, origin_tag, client_fingerprint,
			started_at, ended_at, duration_seconds, action_count, actions,
			previous_listing_id, navigation_kind
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	err = batch.Append(
		session.ID,
		session.ListingID,
		session.ListingName,
		session.ViewerInfo.OriginTag,
		session.ViewerInfo.ClientFingerprint,
		session.StartedAt,
		*session.EndedAt,
		*session.DurationSeconds,
		uint32(len(session.Actions)),
		string(actions),
		prevListing,
		navKind,
	)
	if err != nil {
		return fmt.Errorf("failed to append visit %s to batch: %w", session.ID, err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (b *ClickHouseBackend) ReadAll(ctx context.Context) ([]models.VisitSession, error) {
	rows, err := b.DB.Conn.Query(ctx, `
		SELECT session_id, listing_id, listing_name, origin_tag, client_fingerprint,
			started_at, ended_at, duration_seconds, actions, previous_listing_id, navigation_kind
		FROM visit_sessions
		ORDER BY inserted_at DESC
		LIMIT ?
	`, uint64(b.capacity))
	if err != nil {
		return nil, fmt.Errorf("failed to query visit sessions: %w", err)
	}
	defer rows.Close()

	var newestFirst []visitRow
	for rows.Next() {
		var r visitRow
		if err := rows.Scan(
			&r.SessionID, &r.ListingID, &r.ListingName, &r.OriginTag, &r.ClientFingerprint,
			&r.StartedAt, &r.EndedAt, &r.DurationSeconds, &r.Actions, &r.PreviousListingID, &r.NavigationKind,
		); err != nil {
			log.Printf("WARN: skipping unreadable visit row: %v", err)
			continue
		}
		newestFirst = append(newestFirst, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during visit sessions query: %w", err)
	}

	return sessionsOldestFirst(newestFirst), nil
}

// visitRow is one visit_sessions row as scanned from ClickHouse.
type visitRow struct {
	SessionID         string
	ListingID         string
	ListingName       string
	OriginTag         string
	ClientFingerprint string
	StartedAt         time.Time
	EndedAt           time.Time
	DurationSeconds   int64
	Actions           string
	PreviousListingID string
	NavigationKind    string
}

func (r visitRow) session() (models.VisitSession, error) {
	s := models.VisitSession{
		ID:          r.SessionID,
		ListingID:   r.ListingID,
		ListingName: r.ListingName,
		ViewerInfo: models.ViewerInfo{
			OriginTag:         r.OriginTag,
			ClientFingerprint: r.ClientFingerprint,
		},
		StartedAt: r.StartedAt,
	}
	if err := json.Unmarshal([]byte(r.Actions), &s.Actions); err != nil {
		return models.VisitSession{}, fmt.Errorf("malformed actions: %w", err)
	}
	if r.DurationSeconds < 0 {
		return models.VisitSession{}, fmt.Errorf("negative duration %d", r.DurationSeconds)
	}
	endedAt, duration := r.EndedAt, r.DurationSeconds
	s.EndedAt = &endedAt
	s.DurationSeconds = &duration
	if r.PreviousListingID != "" {
		s.Origin = &models.VisitOrigin{PreviousListingID: r.PreviousListingID, NavigationKind: r.NavigationKind}
	}
	return s, nil
}

// sessionsOldestFirst decodes rows read newest first into retention order,
// skipping rows that do not decode.
func sessionsOldestFirst(newestFirst []visitRow) []models.VisitSession {
	out := make([]models.VisitSession, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		s, err := newestFirst[i].session()
		if err != nil {
			log.Printf("WARN: skipping visit %s: %v", newestFirst[i].SessionID, err)
			continue
		}
		out = append(out, s)
	}
	return out
}
