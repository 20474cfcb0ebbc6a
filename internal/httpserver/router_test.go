package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mailtriage/internal/advisor"
	"mailtriage/internal/api"
	"mailtriage/internal/categorizer"
	"mailtriage/internal/model"
	"mailtriage/internal/pipeline"
	"mailtriage/internal/repository"
	"mailtriage/internal/scheduler"
	"mailtriage/internal/scorer"
	"mailtriage/internal/service"
	"mailtriage/pkg/config"
	"mailtriage/pkg/trace"
	"mailtriage/pkg/util"
)

type staticSource struct {
	emails []model.RawEmail
}

func (s staticSource) Fetch(context.Context, time.Time, int) ([]model.RawEmail, error) {
	return s.emails, nil
}

func setupRouter(t *testing.T, secret string) (*gin.Engine, *repository.SQLite) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := repository.OpenSQLite(":memory:", time.UTC)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	src := staticSource{emails: []model.RawEmail{{
		ID: "m1", Subject: "URGENT: invoice overdue", Body: "Payment deadline today, respond asap",
		Sender: "Billing", SenderEmail: "billing@example.com",
		ReceivedAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}}}
	cfg := &config.Config{}
	cfg.Scheduler.FetchLimit = 10
	svc := service.NewTriageService(service.Deps{
		Source:   src,
		Store:    store,
		Pipeline: pipeline.New(categorizer.New(nil), scorer.New(nil), advisor.NewLocal(), nil),
		Advisor:  advisor.NewLocal(),
	}, cfg, time.UTC, nil)

	sched := scheduler.New(time.UTC, nil)
	if err := sched.Add(scheduler.Job{Name: "daily_summary", Daily: "09:00", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })

	h := api.NewHandler(store, svc, sched, nil)
	return NewRouter(h, secret, nil).Engine, store
}

func do(t *testing.T, r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthzAndTraceHeader(t *testing.T) {
	r, _ := setupRouter(t, "")
	w := do(t, r, http.MethodGet, "/healthz", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get(trace.HeaderName) == "" {
		t.Fatal("missing trace header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setupRouter(t, "")
	if w := do(t, r, http.MethodGet, "/metrics", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	r, _ := setupRouter(t, "s3cret")
	if w := do(t, r, http.MethodGet, "/api/jobs", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/jobs", nil, "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", w.Code)
	}
	token, err := util.GenerateJWT("tester", "s3cret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if w := do(t, r, http.MethodGet, "/api/jobs", nil, token); w.Code != http.StatusOK {
		t.Fatalf("good token: status = %d body %s", w.Code, w.Body.String())
	}
}

func TestProcessThenQuery(t *testing.T) {
	r, _ := setupRouter(t, "")

	w := do(t, r, http.MethodPost, "/api/process?date=2025-06-02", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("process: %d %s", w.Code, w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/summary/2025-06-02", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("summary: %d", w.Code)
	}
	var ds model.DailySummary
	if err := json.Unmarshal(w.Body.Bytes(), &ds); err != nil {
		t.Fatal(err)
	}
	if ds.TotalEmails != 1 || len(ds.UrgentEmails) != 1 {
		t.Fatalf("summary = %+v", ds)
	}

	w = do(t, r, http.MethodGet, "/api/emails?date=2025-06-02&category=urgent", nil, "")
	var list struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if w.Code != http.StatusOK || list.Count != 1 {
		t.Fatalf("emails: %d %s", w.Code, w.Body.String())
	}

	if w := do(t, r, http.MethodPost, "/api/emails/m1/read", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("mark read: %d", w.Code)
	}
	w = do(t, r, http.MethodGet, "/api/emails/unread?date=2025-06-02", nil, "")
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Count != 0 {
		t.Fatalf("unread after mark read: %s", w.Body.String())
	}

	if w := do(t, r, http.MethodPost, "/api/emails/nope/read", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown email: %d", w.Code)
	}
}

func TestBadInputs(t *testing.T) {
	r, _ := setupRouter(t, "")
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/summary/02-06-2025", http.StatusBadRequest},
		{http.MethodGet, "/api/emails?category=spam", http.StatusBadRequest},
		{http.MethodGet, "/api/emails?priority=asap", http.StatusBadRequest},
		{http.MethodGet, "/api/emails/reminders?hours=-1", http.StatusBadRequest},
		{http.MethodGet, "/api/config/secrets", http.StatusNotFound},
		{http.MethodPost, "/api/jobs/unknown/trigger", http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := do(t, r, tt.method, tt.path, nil, ""); w.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

func TestVipContactsCRUD(t *testing.T) {
	r, _ := setupRouter(t, "")

	if w := do(t, r, http.MethodPost, "/api/vip-contacts", map[string]string{"email": "Boss@Example.com", "name": "Boss"}, ""); w.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, r, http.MethodPost, "/api/vip-contacts", map[string]string{"email": "nope"}, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("add invalid: %d", w.Code)
	}

	w := do(t, r, http.MethodGet, "/api/vip-contacts", nil, "")
	var out struct {
		Contacts []model.VipContact `json:"contacts"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if len(out.Contacts) != 1 || out.Contacts[0].Email != "boss@example.com" {
		t.Fatalf("contacts = %+v", out.Contacts)
	}

	if w := do(t, r, http.MethodDelete, "/api/vip-contacts/boss@example.com", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := do(t, r, http.MethodDelete, "/api/vip-contacts/boss@example.com", nil, ""); w.Code != http.StatusNotFound {
		t.Fatalf("delete twice: %d", w.Code)
	}
}

func TestConfigMerge(t *testing.T) {
	r, store := setupRouter(t, "")

	if w := do(t, r, http.MethodPut, "/api/config/email_config", map[string]any{"vip_emails": []string{"a@x.com"}}, ""); w.Code != http.StatusOK {
		t.Fatalf("put: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, r, http.MethodPut, "/api/config/email_config", map[string]any{"fetch_limit": 20}, ""); w.Code != http.StatusOK {
		t.Fatalf("put: %d %s", w.Code, w.Body.String())
	}

	raw, err := store.Config(context.Background(), model.ConfigEmail)
	if err != nil {
		t.Fatal(err)
	}
	var got model.EmailSettings
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.VipEmails) != 1 || got.FetchLimit != 20 {
		t.Fatalf("merged config = %+v", got)
	}

	if w := do(t, r, http.MethodPut, "/api/config/email_config", map[string]any{"daily_summary_time": "25:00"}, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad clock accepted: %d", w.Code)
	}
	if w := do(t, r, http.MethodPut, "/api/config/email_config", map[string]any{"unknown": 1}, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown key accepted: %d", w.Code)
	}
}

func TestJobsListing(t *testing.T) {
	r, _ := setupRouter(t, "")
	w := do(t, r, http.MethodGet, "/api/jobs", nil, "")
	var out struct {
		Jobs []scheduler.JobInfo `json:"jobs"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if len(out.Jobs) != 1 || out.Jobs[0].Schedule != "daily at 09:00" {
		t.Fatalf("jobs = %+v", out.Jobs)
	}
}
