package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetDailySummary handles GET /api/summary/:date
func (h *Handler) GetDailySummary(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}
	summary, err := h.triage.DailySummary(c.Request.Context(), date)
	if err != nil {
		h.fail(c, "failed to load daily summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RebuildDailySummary handles POST /api/summary/:date/rebuild
func (h *Handler) RebuildDailySummary(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}
	summary, err := h.triage.RebuildDailySummary(c.Request.Context(), date)
	if err != nil {
		h.fail(c, "failed to rebuild daily summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetNarrative handles GET /api/summary/:date/narrative
func (h *Handler) GetNarrative(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}
	text, err := h.triage.Narrative(c.Request.Context(), date)
	if err != nil {
		h.fail(c, "failed to build narrative", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "summary": text})
}
