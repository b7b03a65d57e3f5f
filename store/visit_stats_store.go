package store

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"visittrack/api/database"
	"visittrack/api/models"
	"visittrack/api/utils"
)

// VisitStatsStore answers historical questions over every visit ever written
// to ClickHouse, beyond the bounded retention log.
type VisitStatsStore struct {
	DB *database.ClickHouseClient
}

type VisitCountByTime struct {
	Time      time.Time `json:"time"`
	ListingID *string   `json:"listingId,omitempty"`
	Count     uint64    `json:"count"`
}

func NewVisitStatsStore(chClient *database.ClickHouseClient) *VisitStatsStore {
	return &VisitStatsStore{DB: chClient}
}

func (s *VisitStatsStore) GetVisitCountsOverTime(ctx context.Context, interval string, start, end time.Time, listingFilter string) ([]VisitCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	args := []interface{}{start, end}
	selectCols := fmt.Sprintf("toStartOf%s(started_at) AS time_bucket, count() AS total_visits", interval)
	groupByCols := "time_bucket"
	whereClause := "WHERE started_at >= ? AND started_at <= ?"
	orderByCols := "time_bucket ASC"
	isFilteringByListing := listingFilter != ""

	if isFilteringByListing {
		selectCols += ", listing_id"
		groupByCols += ", listing_id"
		whereClause += " AND listing_id = ?"
		args = append(args, listingFilter)
		orderByCols += ", listing_id ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM visit_sessions
		%s
		GROUP BY %s
		ORDER BY %s
	`, selectCols, whereClause, groupByCols, orderByCols)

	rows, err := s.DB.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query visit counts over time: %w", err)
	}
	defer rows.Close()

	var results []VisitCountByTime
	for rows.Next() {
		var (
			timeBucket time.Time
			count      uint64
			listingID  string
			current    VisitCountByTime
		)

		if isFilteringByListing {
			if err := rows.Scan(&timeBucket, &count, &listingID); err != nil {
				log.Printf("Error scanning row for visit counts over time (with listing filter): %v", err)
				continue
			}
			current.ListingID = &listingID
		} else {
			if err := rows.Scan(&timeBucket, &count); err != nil {
				log.Printf("Error scanning row for visit counts over time: %v", err)
				continue
			}
		}

		current.Time = timeBucket
		current.Count = count
		results = append(results, current)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row error during visit counts over time query: %w", err)
	}

	return results, nil
}

// GetAverageVisitDuration returns the mean duration in seconds, 0 when no visit matches.
func (s *VisitStatsStore) GetAverageVisitDuration(ctx context.Context, listingFilter string, start, end time.Time) (float64, error) {
	query := `SELECT avg(duration_seconds) FROM visit_sessions WHERE started_at >= ? AND started_at <= ?`
	args := []interface{}{start, end}

	if listingFilter != "" {
		query += ` AND listing_id = ?`
		args = append(args, listingFilter)
	}

	var avgDuration float64
	if err := s.DB.Conn.QueryRow(ctx, query, args...).Scan(&avgDuration); err != nil {
		return 0.0, fmt.Errorf("failed to query average visit duration: %w", err)
	}

	// avg() over no rows yields NaN, which JSON cannot carry.
	if math.IsNaN(avgDuration) {
		return 0.0, nil
	}
	return avgDuration, nil
}

func (s *VisitStatsStore) GetUniqueViewersOverTime(ctx context.Context, interval string, start, end time.Time) ([]VisitCountByTime, error) {
	if !utils.IsValidInterval(interval) {
		return nil, fmt.Errorf("invalid interval: %s", interval)
	}

	query := fmt.Sprintf(`
		SELECT toStartOf%s(started_at) AS time_bucket, uniq(client_fingerprint) AS unique_viewers
		FROM visit_sessions
		WHERE started_at >= ? AND started_at <= ?
		GROUP BY time_bucket
		ORDER BY time_bucket ASC
	`, interval)

	rows, err := s.DB.Conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query unique viewers over time: %w", err)
	}
	defer rows.Close()

	var results []VisitCountByTime
	for rows.Next() {
		var timeBucket time.Time
		var uniqueViewers uint64
		if err := rows.Scan(&timeBucket, &uniqueViewers); err != nil {
			log.Printf("Error scanning row for unique viewers: %v", err)
			continue
		}
		results = append(results, VisitCountByTime{Time: timeBucket, Count: uniqueViewers})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for unique viewers: %w", err)
	}

	return results, nil
}

func (s *VisitStatsStore) GetTopListings(ctx context.Context, start, end time.Time, limit uint64) ([]models.TopListingResult, error) {
	if limit == 0 {
		limit = 10
	}

	query := `
		SELECT listing_id, any(listing_name) AS name, count() AS visit_count
		FROM visit_sessions
		WHERE started_at >= ? AND started_at <= ?
		GROUP BY listing_id
		ORDER BY visit_count DESC
		LIMIT ?
	`
	rows, err := s.DB.Conn.Query(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top listings: %w", err)
	}
	defer rows.Close()

	var results []models.TopListingResult
	for rows.Next() {
		var r models.TopListingResult
		if err := rows.Scan(&r.ListingID, &r.ListingName, &r.Count); err != nil {
			log.Printf("Error scanning row for top listings: %v", err)
			continue
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows for top listings: %w", err)
	}

	return results, nil
}
