package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"visittrack/api/store"
	"visittrack/api/utils"
)

type StatsHandlers struct {
	Stats *store.VisitStatsStore
}

func NewStatsHandlers(s *store.VisitStatsStore) *StatsHandlers {
	return &StatsHandlers{Stats: s}
}

func timeRange(c *gin.Context) (time.Time, time.Time, bool) {
	start, end, err := utils.ParseTimeRange(c.Query("start"), c.Query("end"), time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return start, end, false
	}
	return start, end, true
}

func (h *StatsHandlers) GetVisitCountsOverTime(c *gin.Context) {
	interval := c.Query("interval")
	if interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}
	start, end, ok := timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.GetVisitCountsOverTime(ctx, interval, start, end, c.Query("listingId"))
	if err != nil {
		log.Printf("Error getting visit counts over time: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve visit statistics"})
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) GetAverageVisitDuration(c *gin.Context) {
	listingFilter := c.Query("listingId")
	start, end, ok := timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	avg, err := h.Stats.GetAverageVisitDuration(ctx, listingFilter, start, end)
	if err != nil {
		log.Printf("Error getting average visit duration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve average visit duration"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listingId":              listingFilter,
		"startDate":              start.Format(time.RFC3339),
		"endDate":                end.Format(time.RFC3339),
		"averageDurationSeconds": avg,
		"averageDuration":        utils.FormatDuration(int64(avg + 0.5)),
	})
}

func (h *StatsHandlers) GetUniqueViewersOverTime(c *gin.Context) {
	interval := c.Query("interval")
	if interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval query parameter is required (e.g., 'Day', 'Hour')"})
		return
	}
	start, end, ok := timeRange(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.GetUniqueViewersOverTime(ctx, interval, start, end)
	if err != nil {
		log.Printf("Error getting unique viewers over time: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve unique viewer statistics"})
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *StatsHandlers) GetTopListings(c *gin.Context) {
	start, end, ok := timeRange(c)
	if !ok {
		return
	}

	var limit uint64 = 10
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil || parsed == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'limit' parameter. Must be a positive integer."})
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	results, err := h.Stats.GetTopListings(ctx, start, end, limit)
	if err != nil {
		log.Printf("Error getting top listings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve top listings"})
		return
	}

	c.JSON(http.StatusOK, results)
}
