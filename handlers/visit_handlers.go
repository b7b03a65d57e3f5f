package handlers

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"visittrack/api/middleware"
	"visittrack/api/models"
	"visittrack/api/notify"
	"visittrack/api/tracker"
	"visittrack/api/utils"
)

const defaultHistoryLimit = 10

type VisitHandlers struct {
	Tracker *tracker.Manager
	Hub     *notify.Hub
}

func NewVisitHandlers(m *tracker.Manager, hub *notify.Hub) *VisitHandlers {
	return &VisitHandlers{Tracker: m, Hub: hub}
}

type startVisitRequest struct {
	ListingID         string `json:"listingId" binding:"required"`
	ListingName       string `json:"listingName" binding:"required"`
	OriginTag         string `json:"originTag"`
	PreviousListingID string `json:"previousListingId"`
}

type recordActionRequest struct {
	Kind    string         `json:"kind" binding:"required"`
	Details map[string]any `json:"details"`
}

type lifecycleRequest struct {
	Event string `json:"event" binding:"required"`
}

type bindRequest struct {
	SalespersonID string `json:"salespersonId"`
	ViewerID      string `json:"viewerId"`
}

// requestViewer resolves the viewer from the HTTP request: a fingerprint of
// the client IP and user agent, and the referring host as origin when the
// visitor came from another site.
func requestViewer(c *gin.Context) tracker.ViewerResolver {
	ip := c.ClientIP()
	ua := c.Request.UserAgent()
	referer := c.Request.Referer()
	host := c.Request.Host

	return tracker.ViewerResolverFunc(func(context.Context) (models.ViewerInfo, error) {
		info := models.ViewerInfo{ClientFingerprint: utils.ClientFingerprint(ip, ua)}
		if u, err := url.Parse(referer); err == nil && u.Host != "" && u.Host != host {
			info.OriginTag = u.Hostname()
		}
		return info, nil
	})
}

func (h *VisitHandlers) StartVisit(c *gin.Context) {
	var req startVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	started := h.Tracker.StartVisit(c.Request.Context(), tracker.StartRequest{
		ListingID:         req.ListingID,
		ListingName:       req.ListingName,
		OriginTag:         req.OriginTag,
		PreviousListingID: req.PreviousListingID,
		Viewer:            requestViewer(c),
	})

	c.JSON(http.StatusCreated, started)
}

func (h *VisitHandlers) RecordAction(c *gin.Context) {
	var req recordActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	kind, err := models.ParseActionKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.Tracker.RecordAction(kind, req.Details)
	c.Status(http.StatusNoContent)
}

func (h *VisitHandlers) Finalize(c *gin.Context) {
	h.Tracker.Finalize()
	c.Status(http.StatusNoContent)
}

// Lifecycle forwards host page events: shutdown, suspend and resume.
func (h *VisitHandlers) Lifecycle(c *gin.Context) {
	var req lifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	switch req.Event {
	case "shutdown":
		h.Tracker.OnShutdown()
	case "suspend":
		h.Tracker.OnSuspend()
	case "resume":
		h.Tracker.OnResume()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "event must be one of shutdown, suspend, resume"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *VisitHandlers) Current(c *gin.Context) {
	snap, ok := h.Tracker.CurrentSnapshot()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "snapshot": snap})
}

func (h *VisitHandlers) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, h.Tracker.RecentHistory(limit))
}

func (h *VisitHandlers) Report(c *gin.Context) {
	c.JSON(http.StatusOK, h.Tracker.Report())
}

// BindSalesperson routes this tracker's notifications to the authenticated
// salesperson, or to the one named in the body for API-key callers.
func (h *VisitHandlers) BindSalesperson(c *gin.Context) {
	var req bindRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	salespersonID := req.SalespersonID
	if id, ok := middleware.SalespersonID(c); ok {
		salespersonID = strconv.Itoa(id)
	}
	if salespersonID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "salespersonId is required"})
		return
	}

	binding := h.Tracker.ConfigureSalesperson(salespersonID, req.ViewerID)
	log.Printf("Tracker bound to salesperson %s (session %s)", binding.SalespersonID, binding.SessionID)
	c.JSON(http.StatusOK, binding)
}

func (h *VisitHandlers) UnbindSalesperson(c *gin.Context) {
	h.Tracker.ClearSalesperson()
	c.Status(http.StatusNoContent)
}

// Notifications streams the authenticated salesperson's notifications over a websocket.
func (h *VisitHandlers) Notifications(c *gin.Context) {
	id, ok := middleware.SalespersonID(c)
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Notifications require a salesperson login"})
		return
	}
	if err := h.Hub.ServeWS(c.Writer, c.Request, strconv.Itoa(id)); err != nil {
		log.Printf("Error serving notifications for salesperson %d: %v", id, err)
	}
}
