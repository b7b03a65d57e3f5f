package store

import (
	"testing"
	"time"

	"visittrack/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chRow(id string, at time.Time) visitRow {
	return visitRow{
		SessionID:         id,
		ListingID:         "emp-" + id,
		ListingName:       "Residencial " + id,
		OriginTag:         models.DefaultOriginTag,
		ClientFingerprint: "fp",
		StartedAt:         at,
		EndedAt:           at.Add(40 * time.Second),
		DurationSeconds:   40,
		Actions:           `[{"kind":"view","timestamp":"2026-01-01T10:00:00Z"}]`,
	}
}

func TestSessionsOldestFirstReversesRows(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newest := chRow("c", base.Add(2*time.Minute))
	newest.PreviousListingID = "emp-b"
	newest.NavigationKind = models.NavigationRelated

	got := sessionsOldestFirst([]visitRow{newest, chRow("b", base.Add(time.Minute)), chRow("a", base)})
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)

	assert.True(t, got[0].Finalized())
	assert.Equal(t, int64(40), *got[0].DurationSeconds)
	assert.Equal(t, base.Add(40*time.Second), *got[0].EndedAt)
	require.Len(t, got[0].Actions, 1)
	assert.Equal(t, models.ActionView, got[0].Actions[0].Kind)
	assert.Equal(t, "fp", got[0].ViewerInfo.ClientFingerprint)

	assert.Nil(t, got[0].Origin)
	require.NotNil(t, got[2].Origin)
	assert.Equal(t, "emp-b", got[2].Origin.PreviousListingID)
	assert.Equal(t, models.NavigationRelated, got[2].Origin.NavigationKind)
}

func TestSessionsOldestFirstSkipsUndecodableRows(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	badActions := chRow("bad-json", base.Add(time.Minute))
	badActions.Actions = "{not json"
	negative := chRow("negative", base.Add(2*time.Minute))
	negative.DurationSeconds = -3

	got := sessionsOldestFirst([]visitRow{chRow("c", base.Add(3*time.Minute)), negative, badActions, chRow("a", base)})
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}

func TestSessionsOldestFirstEmpty(t *testing.T) {
	got := sessionsOldestFirst(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
