// api/models/event.go
package models

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// ActionKind identifies an interaction a viewer performs on a listing page.
type ActionKind string

const (
	ActionView             ActionKind = "view"
	ActionClickListingPlan ActionKind = "click_listing_plan"
	ActionClickGallery     ActionKind = "click_gallery"
	ActionClickContact     ActionKind = "click_contact"
	ActionDownloadMaterial ActionKind = "download_material"
	ActionInterestToggle   ActionKind = "interest_toggle"
	ActionNavigateRelated  ActionKind = "navigate_related"
	ActionPause            ActionKind = "pause"
	ActionResume           ActionKind = "resume"
)

var actionKinds = map[ActionKind]bool{
	ActionView:             true,
	ActionClickListingPlan: true,
	ActionClickGallery:     true,
	ActionClickContact:     true,
	ActionDownloadMaterial: true,
	ActionInterestToggle:   true,
	ActionNavigateRelated:  true,
	ActionPause:            true,
	ActionResume:           true,
}

// ParseActionKind validates a kind received from a caller.
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(s)
	if !actionKinds[k] {
		return "", fmt.Errorf("unknown action kind %q", s)
	}
	return k, nil
}

// IsInterest reports whether the kind signals buying interest and should
// reach the assigned salesperson.
func (k ActionKind) IsInterest() bool {
	switch k {
	case ActionClickContact, ActionDownloadMaterial, ActionInterestToggle:
		return true
	default:
		return false
	}
}

// Action is a single timestamped interaction within a visit.
type Action struct {
	Kind      ActionKind     `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// TopListingResult is one row of the historical top listings query.
type TopListingResult struct {
	ListingID   string `json:"listingId"`
	ListingName string `json:"listingName"`
	Count       uint64 `json:"count"`
}

// Clone returns a copy of the action whose details share no memory with a.
func (a Action) Clone() Action {
	a.Details = CloneDetails(a.Details)
	return a
}

// CloneDetails deep-copies action details. Nested maps and slices decoded
// from JSON are copied; scalar values are shared.
func CloneDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneDetails(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	case map[string]string:
		return maps.Clone(t)
	default:
		return v
	}
}

// CloneActions copies a list of actions with their details.
func CloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}
	out := make([]Action, len(actions))
	for i, a := range actions {
		out[i] = a.Clone()
	}
	return out
}
