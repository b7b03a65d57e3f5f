package tracker

import (
	"math"
	"sort"
	"time"

	"visittrack/api/models"
	"visittrack/api/utils"
)

// Aggregator derives snapshots and reports. It holds no state.
type Aggregator struct{}

// Snapshot describes an active visit at instant now.
func (Aggregator) Snapshot(session models.VisitSession, events *EventLog, now time.Time) models.Snapshot {
	return models.Snapshot{
		SessionID:   session.ID,
		ListingID:   session.ListingID,
		ListingName: session.ListingName,
		Elapsed:     utils.FormatDuration(utils.DurationSeconds(now.Sub(session.StartedAt))),
		ActionCount: events.Len(),
		ActionKinds: events.Kinds(),
		OriginTag:   session.ViewerInfo.OriginTag,
		Origin:      session.Clone().Origin,
	}
}

// Report summarizes sessions given oldest first. An empty input yields
// Report{Empty: true}.
func (Aggregator) Report(sessions []models.VisitSession) models.Report {
	if len(sessions) == 0 {
		return models.Report{Empty: true, Listings: []models.FrequencyEntry{}, Origins: []models.FrequencyEntry{}}
	}

	listings := newCounter()
	origins := newCounter()
	var (
		totalSeconds int64
		withDuration int
		last         time.Time
	)

	for _, s := range sessions {
		listings.add(s.ListingName)

		origin := s.ViewerInfo.OriginTag
		if origin == "" {
			origin = models.DefaultOriginTag
		}
		origins.add(origin)

		if s.DurationSeconds != nil {
			totalSeconds += *s.DurationSeconds
			withDuration++
		}
		if s.StartedAt.After(last) {
			last = s.StartedAt
		}
	}

	r := models.Report{
		TotalSessions: len(sessions),
		Listings:      listings.ranked(),
		Origins:       origins.ranked(),
		LastVisitAt:   &last,
	}
	r.MostVisited = r.Listings[0].Key
	r.MostCommonOrigin = r.Origins[0].Key

	if withDuration > 0 {
		r.AverageDurationSeconds = float64(totalSeconds) / float64(withDuration)
		r.AverageDuration = utils.FormatDuration(int64(math.Round(r.AverageDurationSeconds)))
	}
	return r
}

// counter counts keys and remembers the order they were first seen in.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// ranked orders by count descending; ties keep first-seen order.
func (c *counter) ranked() []models.FrequencyEntry {
	out := make([]models.FrequencyEntry, len(c.order))
	for i, k := range c.order {
		out[i] = models.FrequencyEntry{Key: k, Count: c.counts[k]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
