package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mailtriage/internal/scheduler"
	"mailtriage/pkg/trace"
)

// ProcessEmails handles POST /api/process?date= and runs a triage cycle
// for the day synchronously.
func (h *Handler) ProcessEmails(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(trace.Ensure(c.Request.Context()), h.timeout)
	defer cancel()

	res, err := h.triage.ProcessDay(ctx, date)
	if err != nil {
		h.fail(c, "failed to process emails", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListJobs handles GET /api/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusOK, gin.H{"jobs": []scheduler.JobInfo{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": h.jobs.Jobs()})
}

// TriggerJob handles POST /api/jobs/:name/trigger
func (h *Handler) TriggerJob(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is not running"})
		return
	}
	name := c.Param("name")
	err := h.jobs.Trigger(name)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"job": name, "status": "started"})
	case errors.Is(err, scheduler.ErrUnknownJob):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.fail(c, "failed to trigger job", err)
	}
}

// TestNotifications handles POST /api/notifications/test
func (h *Handler) TestNotifications(c *gin.Context) {
	res, err := h.triage.TestNotifications(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to send test notification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res})
}

// SpeakCustom handles POST /api/voice/custom
func (h *Handler) SpeakCustom(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.triage.SpeakCustom(c.Request.Context(), req.Text); err != nil {
		h.fail(c, "failed to render voice digest", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}
