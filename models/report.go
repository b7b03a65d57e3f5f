package models

import "time"

// FrequencyEntry is one key of a ranked frequency map.
type FrequencyEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Report summarizes the retained visits. Empty is set when there is no data;
// the other fields are then zero.
type Report struct {
	Empty                  bool             `json:"empty"`
	TotalSessions          int              `json:"totalSessions"`
	Listings               []FrequencyEntry `json:"listings"`
	Origins                []FrequencyEntry `json:"origins"`
	MostVisited            string           `json:"mostVisited,omitempty"`
	MostCommonOrigin       string           `json:"mostCommonOrigin,omitempty"`
	AverageDuration        string           `json:"averageDuration,omitempty"`
	AverageDurationSeconds float64          `json:"averageDurationSeconds"`
	LastVisitAt            *time.Time       `json:"lastVisitAt,omitempty"`
}

// Snapshot describes the active visit as it stands.
type Snapshot struct {
	SessionID   string       `json:"sessionId"`
	ListingID   string       `json:"listingId"`
	ListingName string       `json:"listingName"`
	Elapsed     string       `json:"elapsed"`
	ActionCount int          `json:"actionCount"`
	ActionKinds []ActionKind `json:"actionKinds"`
	OriginTag   string       `json:"originTag,omitempty"`
	Origin      *VisitOrigin `json:"origin,omitempty"`
}
