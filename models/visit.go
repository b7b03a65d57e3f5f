package models

import "time"

const (
	// DefaultOriginTag is used when neither the caller nor the viewer lookup
	// provides an origin.
	DefaultOriginTag = "direto"
	// NavigationRelated is the navigation kind recorded for cross-listing
	// navigation when no origin tag is given.
	NavigationRelated = "relacionado"
	// UnknownFingerprint is the fallback when the viewer lookup fails.
	UnknownFingerprint = "unknown"
)

// ViewerInfo describes who is viewing. It is resolved before a visit starts.
type ViewerInfo struct {
	OriginTag         string `json:"originTag,omitempty"`
	ClientFingerprint string `json:"clientFingerprint"`
}

// VisitOrigin is set when a visit was entered from another listing.
type VisitOrigin struct {
	PreviousListingID string `json:"previousListingId"`
	NavigationKind    string `json:"navigationKind"`
}

// VisitSession is one viewer browsing one listing, from start to finalize.
// EndedAt and DurationSeconds stay nil until the session is finalized.
type VisitSession struct {
	ID              string       `json:"id"`
	ListingID       string       `json:"listingId"`
	ListingName     string       `json:"listingName"`
	ViewerInfo      ViewerInfo   `json:"viewerInfo"`
	StartedAt       time.Time    `json:"startedAt"`
	EndedAt         *time.Time   `json:"endedAt,omitempty"`
	DurationSeconds *int64       `json:"durationSeconds,omitempty"`
	Actions         []Action     `json:"actions"`
	Origin          *VisitOrigin `json:"origin,omitempty"`
}

// Finalized reports whether the session has been closed.
func (s VisitSession) Finalized() bool {
	return s.EndedAt != nil && s.DurationSeconds != nil
}

// Clone returns a copy of the session that shares no memory with s.
func (s VisitSession) Clone() VisitSession {
	s.Actions = CloneActions(s.Actions)
	if s.EndedAt != nil {
		end := *s.EndedAt
		s.EndedAt = &end
	}
	if s.DurationSeconds != nil {
		d := *s.DurationSeconds
		s.DurationSeconds = &d
	}
	if s.Origin != nil {
		o := *s.Origin
		s.Origin = &o
	}
	return s
}

// SalespersonBinding routes a tracker's notifications to one salesperson.
type SalespersonBinding struct {
	SalespersonID string `json:"salespersonId"`
	ViewerID      string `json:"viewerId,omitempty"`
	SessionID     string `json:"sessionId"`
}
