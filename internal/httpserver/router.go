// Package httpserver wires the triage API onto a gin engine.
package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailtriage/internal/api"
	"mailtriage/pkg/logger"
)

type Router struct {
	Engine *gin.Engine
}

// NewRouter registers health, metrics and API routes. The API group is
// protected by bearer tokens when jwtSecret is set.
func NewRouter(h *api.Handler, jwtSecret string, l *zap.Logger) *Router {
	l = logger.OrNop(l)

	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), MetricsMiddleware(), LoggerMiddleware(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	g := r.Group("/api")
	if jwtSecret != "" {
		g.Use(AuthMiddleware(jwtSecret))
	} else {
		l.Warn("JWT secret not set, API is unauthenticated")
	}
	{
		g.GET("/summary", h.GetDailySummary)
		g.GET("/summary/:date", h.GetDailySummary)
		g.POST("/summary/:date/rebuild", h.RebuildDailySummary)
		g.GET("/summary/:date/narrative", h.GetNarrative)

		g.GET("/emails", h.ListEmails)
		g.GET("/emails/urgent", h.ListUrgent)
		g.GET("/emails/unread", h.ListUnread)
		g.GET("/emails/reminders", h.ListReminders)
		g.GET("/emails/:id", h.GetEmail)
		g.POST("/emails/:id/read", h.MarkRead)
		g.POST("/emails/:id/replied", h.MarkReplied)

		g.GET("/stats/categories", h.CategoryStats)
		g.GET("/stats/priorities", h.PriorityStats)

		g.GET("/vip-contacts", h.ListVipContacts)
		g.POST("/vip-contacts", h.AddVipContact)
		g.DELETE("/vip-contacts/:email", h.RemoveVipContact)

		g.GET("/config/:namespace", h.GetConfig)
		g.PUT("/config/:namespace", h.PutConfig)

		g.POST("/process", h.ProcessEmails)
		g.GET("/jobs", h.ListJobs)
		g.POST("/jobs/:name/trigger", h.TriggerJob)

		g.POST("/notifications/test", h.TestNotifications)
		g.POST("/voice/custom", h.SpeakCustom)
	}

	return &Router{Engine: r}
}
