package tracker

import "visittrack/api/models"

// EventLog is the append-only action list of one visit. It is not safe for
// concurrent use on its own; the Manager serializes access.
type EventLog struct {
	actions []models.Action
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append records an action. Details are deep-copied so later changes by
// the caller do not leak into the log.
func (l *EventLog) Append(a models.Action) {
	l.actions = append(l.actions, a.Clone())
}

func (l *EventLog) Len() int { return len(l.actions) }

// Kinds lists the action kinds in insertion order.
func (l *EventLog) Kinds() []models.ActionKind {
	kinds := make([]models.ActionKind, len(l.actions))
	for i, a := range l.actions {
		kinds[i] = a.Kind
	}
	return kinds
}

// Snapshot returns a copy of the actions in insertion order.
func (l *EventLog) Snapshot() []models.Action {
	out := make([]models.Action, len(l.actions))
	for i, a := range l.actions {
		out[i] = a.Clone()
	}
	return out
}
