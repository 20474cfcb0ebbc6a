package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/internal/scheduler"
)

// ListVipContacts handles GET /api/vip-contacts
func (h *Handler) ListVipContacts(c *gin.Context) {
	contacts, err := h.store.VipContacts(c.Request.Context())
	if err != nil {
		h.fail(c, "failed to fetch vip contacts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

// AddVipContact handles POST /api/vip-contacts
func (h *Handler) AddVipContact(c *gin.Context) {
	var req struct {
		Email         string `json:"email"`
		Name          string `json:"name"`
		PriorityLevel string `json:"priority_level"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !strings.Contains(req.Email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	contact := model.VipContact{Email: req.Email, Name: req.Name, PriorityLevel: req.PriorityLevel}
	if err := h.store.AddVipContact(c.Request.Context(), contact); err != nil {
		h.fail(c, "failed to add vip contact", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "added", "email": strings.ToLower(strings.TrimSpace(req.Email))})
}

// RemoveVipContact handles DELETE /api/vip-contacts/:email
func (h *Handler) RemoveVipContact(c *gin.Context) {
	email := c.Param("email")
	if err := h.store.RemoveVipContact(c.Request.Context(), email); err != nil {
		h.fail(c, "failed to remove vip contact", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "email": email})
}

func knownNamespace(ns string) bool {
	return ns == model.ConfigEmail || ns == model.ConfigNotification
}

// GetConfig handles GET /api/config/:namespace
func (h *Handler) GetConfig(c *gin.Context) {
	ns := c.Param("namespace")
	if !knownNamespace(ns) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown configuration namespace"})
		return
	}
	data, err := h.store.Config(c.Request.Context(), ns)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"namespace": ns, "data": gin.H{}})
		return
	}
	if err != nil {
		h.fail(c, "failed to load configuration", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"namespace": ns, "data": data})
}

// PutConfig handles PUT /api/config/:namespace. Top-level keys of the body
// replace the stored ones; other keys are kept.
func (h *Handler) PutConfig(c *gin.Context) {
	ns := c.Param("namespace")
	if !knownNamespace(ns) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown configuration namespace"})
		return
	}

	var patch map[string]json.RawMessage
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	merged := map[string]json.RawMessage{}
	existing, err := h.store.Config(c.Request.Context(), ns)
	switch {
	case err == nil:
		if err := json.Unmarshal(existing, &merged); err != nil {
			h.fail(c, "failed to decode stored configuration", err)
			return
		}
	case !errors.Is(err, repository.ErrNotFound):
		h.fail(c, "failed to load configuration", err)
		return
	}
	for k, v := range patch {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		h.fail(c, "failed to encode configuration", err)
		return
	}
	if err := validateConfig(ns, data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.SaveConfig(c.Request.Context(), ns, data); err != nil {
		h.fail(c, "failed to save configuration", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"namespace": ns, "data": json.RawMessage(data)})
}

func validateConfig(ns string, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	switch ns {
	case model.ConfigEmail:
		var s model.EmailSettings
		if err := dec.Decode(&s); err != nil {
			return errors.New("invalid email_config: " + err.Error())
		}
		if s.DailySummaryTime != "" {
			if _, _, err := scheduler.ParseClock(s.DailySummaryTime); err != nil {
				return err
			}
		}
		if s.ResponseReminderHours < 0 || s.FetchLimit < 0 {
			return errors.New("invalid email_config: negative value")
		}
	case model.ConfigNotification:
		var s model.NotificationSettings
		if err := dec.Decode(&s); err != nil {
			return errors.New("invalid notification_config: " + err.Error())
		}
	}
	return nil
}
