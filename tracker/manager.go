package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"visittrack/api/models"
	"visittrack/api/utils"
)

const (
	DefaultSignificantDuration = 30 * time.Second
	DefaultLookupTimeout       = 2 * time.Second
)

// Retention is the part of the retention log the Manager writes to and
// reads reports from.
type Retention interface {
	Append(ctx context.Context, session models.VisitSession) error
	Recent(limit int) []models.VisitSession
	All() []models.VisitSession
}

type Options struct {
	Retention Retention
	Sink      Sink
	// Resolver is used when a StartRequest does not bring its own.
	Resolver ViewerResolver
	// SignificantDuration is the visit length above which the salesperson
	// is told the visit ended. Zero or less means DefaultSignificantDuration.
	SignificantDuration time.Duration
	// LookupTimeout bounds viewer resolution. Zero means DefaultLookupTimeout.
	LookupTimeout time.Duration
	// AsyncDelivery hands notifications to a background sender so a slow
	// sink never holds up the caller. Close drains it.
	AsyncDelivery bool
	Now           func() time.Time
}

type StartRequest struct {
	ListingID         string
	ListingName       string
	OriginTag         string
	PreviousListingID string
	// Viewer overrides the manager's resolver for this visit.
	Viewer ViewerResolver
}

type activeVisit struct {
	session models.VisitSession
	events  *EventLog
}

type pendingNotification struct {
	binding *models.SalespersonBinding
	kind    models.NotificationKind
	payload map[string]any
}

// Manager tracks one viewer's visits. At most one visit is active; starting
// another finalizes the current one. All methods are safe for concurrent use
// and never fail: no-ops, persistence and delivery errors are logged.
type Manager struct {
	mu      sync.Mutex
	active  *activeVisit
	binding *models.SalespersonBinding

	retention     Retention
	dispatcher    *Dispatcher
	aggregator    Aggregator
	resolver      ViewerResolver
	significant   time.Duration
	lookupTimeout time.Duration
	now           func() time.Time
}

func NewManager(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SignificantDuration <= 0 {
		opts.SignificantDuration = DefaultSignificantDuration
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	dispatcher := NewDispatcher(opts.Sink, opts.Now)
	if opts.AsyncDelivery {
		dispatcher = NewAsyncDispatcher(opts.Sink, opts.Now, 0)
	}
	return &Manager{
		retention:     opts.Retention,
		dispatcher:    dispatcher,
		resolver:      opts.Resolver,
		significant:   opts.SignificantDuration,
		lookupTimeout: opts.LookupTimeout,
		now:           opts.Now,
	}
}

// StartVisit finalizes any active visit, resolves the viewer and opens a new
// visit with an initial view action. It returns a copy of the new visit.
func (m *Manager) StartVisit(ctx context.Context, req StartRequest) models.VisitSession {
	m.Finalize()

	resolver := req.Viewer
	if resolver == nil {
		resolver = m.resolver
	}
	info := resolveViewer(ctx, resolver, m.lookupTimeout)
	info.OriginTag = firstNonEmpty(req.OriginTag, info.OriginTag, models.DefaultOriginTag)

	now := m.now()
	v := &activeVisit{
		session: models.VisitSession{
			ID:          uuid.NewString(),
			ListingID:   req.ListingID,
			ListingName: req.ListingName,
			ViewerInfo:  info,
			StartedAt:   now,
		},
		events: NewEventLog(),
	}
	if req.PreviousListingID != "" {
		v.session.Origin = &models.VisitOrigin{
			PreviousListingID: req.PreviousListingID,
			NavigationKind:    firstNonEmpty(req.OriginTag, models.NavigationRelated),
		}
	}
	v.events.Append(models.Action{Kind: models.ActionView, Timestamp: now})

	started := v.session.Clone()
	started.Actions = v.events.Snapshot()

	m.mu.Lock()
	// Another caller may have started a visit while the viewer resolved.
	raced := m.finalizeLocked()
	m.active = v
	binding := m.bindingCopy()
	m.mu.Unlock()

	m.deliver(raced)

	payload := map[string]any{
		"listingId":   v.session.ListingID,
		"listingName": v.session.ListingName,
		"originTag":   info.OriginTag,
		"visitId":     v.session.ID,
	}
	if v.session.Origin != nil {
		payload["previousListingId"] = v.session.Origin.PreviousListingID
	}
	m.dispatcher.Notify(binding, models.NotifySessionStart, payload)
	return started
}

// RecordAction appends an action to the active visit. Without an active
// visit it does nothing.
func (m *Manager) RecordAction(kind models.ActionKind, details map[string]any) {
	details = models.CloneDetails(details)

	m.mu.Lock()
	if m.active == nil {
		m.mu.Unlock()
		return
	}
	m.active.events.Append(models.Action{Kind: kind, Timestamp: m.now(), Details: details})
	session := m.active.session
	binding := m.bindingCopy()
	m.mu.Unlock()

	if !kind.IsInterest() {
		return
	}
	payload := map[string]any{
		"actionKind":  string(kind),
		"listingId":   session.ListingID,
		"listingName": session.ListingName,
		"visitId":     session.ID,
	}
	if len(details) > 0 {
		payload["details"] = models.CloneDetails(details)
	}
	m.dispatcher.Notify(binding, models.NotifyInterest, payload)
}

// Finalize closes the active visit and moves it into the retention log.
// Without an active visit it does nothing.
func (m *Manager) Finalize() {
	m.mu.Lock()
	pending := m.finalizeLocked()
	m.mu.Unlock()

	m.deliver(pending)
}

func (m *Manager) finalizeLocked() *pendingNotification {
	if m.active == nil {
		return nil
	}
	v := m.active
	m.active = nil

	end := m.now()
	seconds := utils.DurationSeconds(end.Sub(v.session.StartedAt))

	rec := v.session
	rec.EndedAt = &end
	rec.DurationSeconds = &seconds
	rec.Actions = v.events.Snapshot()

	if m.retention != nil {
		if err := m.retention.Append(context.Background(), rec); err != nil {
			log.Printf("ERROR: failed to retain visit %s: %v", rec.ID, err)
		}
	}

	if m.binding == nil || time.Duration(seconds)*time.Second <= m.significant {
		return nil
	}
	return &pendingNotification{
		binding: m.bindingCopy(),
		kind:    models.NotifySessionEnd,
		payload: map[string]any{
			"listingId":       rec.ListingID,
			"listingName":     rec.ListingName,
			"visitId":         rec.ID,
			"actionCount":     len(rec.Actions),
			"duration":        utils.FormatDuration(seconds),
			"durationSeconds": seconds,
		},
	}
}

func (m *Manager) deliver(p *pendingNotification) {
	if p == nil {
		return
	}
	m.dispatcher.Notify(p.binding, p.kind, p.payload)
}

// Close finalizes the active visit and waits for pending notifications.
func (m *Manager) Close() {
	m.Finalize()
	m.dispatcher.Close()
}

// OnShutdown reacts to the host page going away.
func (m *Manager) OnShutdown() { m.Finalize() }

// OnSuspend reacts to the page losing visibility.
func (m *Manager) OnSuspend() { m.RecordAction(models.ActionPause, nil) }

// OnResume reacts to the page regaining visibility.
func (m *Manager) OnResume() { m.RecordAction(models.ActionResume, nil) }

// ConfigureSalesperson binds notifications to a salesperson, replacing any
// previous binding.
func (m *Manager) ConfigureSalesperson(salespersonID, viewerID string) models.SalespersonBinding {
	b := models.SalespersonBinding{
		SalespersonID: salespersonID,
		ViewerID:      viewerID,
		SessionID:     uuid.NewString(),
	}
	m.mu.Lock()
	m.binding = &b
	m.mu.Unlock()
	return b
}

func (m *Manager) ClearSalesperson() {
	m.mu.Lock()
	m.binding = nil
	m.mu.Unlock()
}

func (m *Manager) Binding() (models.SalespersonBinding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.binding == nil {
		return models.SalespersonBinding{}, false
	}
	return *m.binding, true
}

func (m *Manager) bindingCopy() *models.SalespersonBinding {
	if m.binding == nil {
		return nil
	}
	b := *m.binding
	return &b
}

// Active returns a copy of the active visit, with its actions so far.
func (m *Manager) Active() (models.VisitSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return models.VisitSession{}, false
	}
	s := m.active.session.Clone()
	s.Actions = m.active.events.Snapshot()
	return s, true
}

func (m *Manager) CurrentSnapshot() (models.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return models.Snapshot{}, false
	}
	return m.aggregator.Snapshot(m.active.session, m.active.events, m.now()), true
}

func (m *Manager) RecentHistory(limit int) []models.VisitSession {
	if m.retention == nil {
		return []models.VisitSession{}
	}
	return m.retention.Recent(limit)
}

func (m *Manager) Report() models.Report {
	if m.retention == nil {
		return m.aggregator.Report(nil)
	}
	return m.aggregator.Report(m.retention.All())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
