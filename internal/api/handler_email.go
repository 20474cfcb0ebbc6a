package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mailtriage/internal/aggregate"
	"mailtriage/internal/categorizer"
	"mailtriage/internal/model"
)

// ListEmails handles GET /api/emails?date=&category=&priority=
func (h *Handler) ListEmails(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}

	var category model.Category
	if v := c.Query("category"); v != "" {
		if category, ok = model.ParseCategory(v); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
	}
	var priority model.Priority
	if v := c.Query("priority"); v != "" {
		if priority, ok = model.ParsePriority(v); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown priority"})
			return
		}
	}

	emails, err := h.store.EmailsByDate(c.Request.Context(), date)
	if err != nil {
		h.fail(c, "failed to fetch emails", err)
		return
	}
	out := filter(emails, func(e model.EmailSummary) bool {
		return (category == "" || e.Category == category) && (priority == "" || e.Priority == priority)
	})
	c.JSON(http.StatusOK, gin.H{"date": date, "count": len(out), "emails": out})
}

// ListUrgent handles GET /api/emails/urgent?date=
func (h *Handler) ListUrgent(c *gin.Context) {
	h.listFiltered(c, aggregate.IsUrgent)
}

// ListUnread handles GET /api/emails/unread?date=
func (h *Handler) ListUnread(c *gin.Context) {
	h.listFiltered(c, func(e model.EmailSummary) bool { return !e.IsRead })
}

func (h *Handler) listFiltered(c *gin.Context, keep func(model.EmailSummary) bool) {
	date, ok := h.date(c)
	if !ok {
		return
	}
	emails, err := h.store.EmailsByDate(c.Request.Context(), date)
	if err != nil {
		h.fail(c, "failed to fetch emails", err)
		return
	}
	out := filter(emails, keep)
	c.JSON(http.StatusOK, gin.H{"date": date, "count": len(out), "emails": out})
}

// ListReminders handles GET /api/emails/reminders?hours=
func (h *Handler) ListReminders(c *gin.Context) {
	hours := 0
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		hours = n
	}
	if hours == 0 {
		settings, err := h.triage.Settings(c.Request.Context())
		if err != nil {
			h.fail(c, "failed to load settings", err)
			return
		}
		hours = settings.ResponseReminderHours
		if hours <= 0 {
			hours = 24
		}
	}

	emails, err := h.triage.ResponseReminders(c.Request.Context(), hours)
	if err != nil {
		h.fail(c, "failed to fetch reminders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hours": hours, "count": len(emails), "emails": emails})
}

// GetEmail handles GET /api/emails/:id
func (h *Handler) GetEmail(c *gin.Context) {
	e, err := h.store.EmailSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to fetch email", err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// MarkRead handles POST /api/emails/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.MarkRead(c.Request.Context(), id); err != nil {
		h.fail(c, "failed to mark email read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_read": true})
}

// MarkReplied handles POST /api/emails/:id/replied
func (h *Handler) MarkReplied(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.MarkReplied(c.Request.Context(), id); err != nil {
		h.fail(c, "failed to mark email replied", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "is_replied": true})
}

// CategoryStats handles GET /api/stats/categories?date=
func (h *Handler) CategoryStats(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}
	emails, err := h.store.EmailsByDate(c.Request.Context(), date)
	if err != nil {
		h.fail(c, "failed to fetch emails", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "total": len(emails), "categories": categorizer.Stats(emails)})
}

// PriorityStats handles GET /api/stats/priorities?date=
func (h *Handler) PriorityStats(c *gin.Context) {
	date, ok := h.date(c)
	if !ok {
		return
	}
	emails, err := h.store.EmailsByDate(c.Request.Context(), date)
	if err != nil {
		h.fail(c, "failed to fetch emails", err)
		return
	}
	counts := make(map[model.Priority]int, len(model.AllPriorities()))
	for _, p := range model.AllPriorities() {
		counts[p] = 0
	}
	for _, e := range emails {
		if _, ok := counts[e.Priority]; ok {
			counts[e.Priority]++
		}
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "total": len(emails), "priorities": counts})
}

func filter(emails []model.EmailSummary, keep func(model.EmailSummary) bool) []model.EmailSummary {
	out := make([]model.EmailSummary, 0, len(emails))
	for _, e := range emails {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
