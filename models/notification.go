package models

import "time"

type NotificationKind string

const (
	NotifySessionStart NotificationKind = "session_start"
	NotifyInterest     NotificationKind = "interest"
	NotifySessionEnd   NotificationKind = "session_end"
)

// Notification is the message delivered to a salesperson's sink.
type Notification struct {
	ID            string           `json:"id"`
	SalespersonID string           `json:"salespersonId"`
	ViewerID      string           `json:"viewerId,omitempty"`
	Kind          NotificationKind `json:"kind"`
	Payload       map[string]any   `json:"payload"`
	SessionID     string           `json:"sessionId"`
	Timestamp     time.Time        `json:"timestamp"`
}
