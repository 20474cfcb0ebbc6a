// Package api holds the HTTP handlers of the triage API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/internal/scheduler"
	"mailtriage/internal/service"
	"mailtriage/pkg/logger"
)

// Store is the part of repository.Store the API reads and edits directly.
type Store interface {
	EmailsByDate(ctx context.Context, date string) ([]model.EmailSummary, error)
	EmailSummary(ctx context.Context, id string) (model.EmailSummary, error)
	MarkRead(ctx context.Context, id string) error
	MarkReplied(ctx context.Context, id string) error
	VipContacts(ctx context.Context) ([]model.VipContact, error)
	AddVipContact(ctx context.Context, c model.VipContact) error
	RemoveVipContact(ctx context.Context, email string) error
	Config(ctx context.Context, namespace string) (json.RawMessage, error)
	SaveConfig(ctx context.Context, namespace string, data json.RawMessage) error
}

// Triage is implemented by *service.TriageService.
type Triage interface {
	Today() string
	DailySummary(ctx context.Context, date string) (model.DailySummary, error)
	RebuildDailySummary(ctx context.Context, date string) (model.DailySummary, error)
	Narrative(ctx context.Context, date string) (string, error)
	ProcessDay(ctx context.Context, date string) (service.CycleResult, error)
	ResponseReminders(ctx context.Context, hours int) ([]model.EmailSummary, error)
	Settings(ctx context.Context) (service.Settings, error)
	TestNotifications(ctx context.Context) (map[string]bool, error)
	SpeakCustom(ctx context.Context, text string) error
}

// Jobs is implemented by *scheduler.Scheduler.
type Jobs interface {
	Jobs() []scheduler.JobInfo
	Trigger(name string) error
}

type Handler struct {
	store   Store
	triage  Triage
	jobs    Jobs
	timeout time.Duration
	logger  *zap.Logger
}

// NewHandler builds the API handlers. jobs may be nil when the process
// runs without a scheduler.
func NewHandler(store Store, triage Triage, jobs Jobs, l *zap.Logger) *Handler {
	return &Handler{
		store:   store,
		triage:  triage,
		jobs:    jobs,
		timeout: 5 * time.Minute,
		logger:  logger.OrNop(l),
	}
}

func (h *Handler) date(c *gin.Context) (string, bool) {
	date := c.Param("date")
	if date == "" {
		date = c.Query("date")
	}
	if date == "" {
		return h.triage.Today(), true
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return "", false
	}
	return date, true
}

// fail maps store and service errors to a response.
func (h *Handler) fail(c *gin.Context, msg string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": msg + ": not found"})
		return
	}
	logger.WithTrace(c.Request.Context(), h.logger).Error(msg,
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
