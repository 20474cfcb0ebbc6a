package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"mailtriage/internal/model"
	"mailtriage/pkg/circuitbreaker"
	"mailtriage/pkg/config"
)

func TestFallbackSummary(t *testing.T) {
	long := "Hi. The quarterly numbers are in and they look better than expected. More later."
	long += strings.Repeat(" filler", 10)
	if got, want := FallbackSummary("Q3", long), "Q3: The quarterly numbers are in and they look better than expected..."; got != want {
		t.Errorf("long body: got %q, want %q", got, want)
	}
	if got, want := FallbackSummary("Lunch", "short body"), "Email about: Lunch"; got != want {
		t.Errorf("short body: got %q, want %q", got, want)
	}
	if got := FallbackSummary("", ""); got != "Email about: " {
		t.Errorf("empty: got %q", got)
	}

	sentence := strings.Repeat("a", 150)
	got := FallbackSummary("S", sentence)
	if want := "S: " + strings.Repeat("a", 100) + "..."; got != want {
		t.Errorf("truncation: got %q, want %q", got, want)
	}
}

func TestLocalFollowUps(t *testing.T) {
	l := NewLocal()
	got, _ := l.SuggestFollowUps(context.Background(), "", "", model.CategoryMeetings)
	want := []string{"Confirm meeting details", "Prepare agenda items", "Set calendar reminder"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("meetings: got %q, want %q", got, want)
	}
	got, _ = l.SuggestFollowUps(context.Background(), "", "", model.CategoryOther)
	if !reflect.DeepEqual(got, []string{DefaultFollowUp}) {
		t.Errorf("other: got %q", got)
	}
}

func TestFallbackNarrative(t *testing.T) {
	if got := FallbackNarrative(nil); got != "No emails to summarize." {
		t.Fatalf("empty: got %q", got)
	}
	summaries := []model.EmailSummary{
		{Category: model.CategoryWork, Priority: model.PriorityLow},
		{Category: model.CategoryUrgent, Priority: model.PriorityUrgent},
		{Category: model.CategoryWork, Priority: model.PriorityMedium, IsRead: true},
	}
	want := "You received 3 emails today. There are 1 urgent emails that need your attention. " +
		"You have 2 unread emails. Emails are categorized as: 2 work, 1 urgent."
	if got := FallbackNarrative(summaries); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestLocalEstimateUnavailable(t *testing.T) {
	if _, err := NewLocal().EstimateUrgency(context.Background(), "", ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

type fakeAdvisor struct {
	summary   string
	followUps []string
	sentiment model.Sentiment
	narrative string
	urgency   float64
	err       error
	calls     int
}

func (f *fakeAdvisor) Summarize(context.Context, string, string) (string, error) {
	f.calls++
	return f.summary, f.err
}

func (f *fakeAdvisor) SuggestFollowUps(context.Context, string, string, model.Category) ([]string, error) {
	f.calls++
	return f.followUps, f.err
}

func (f *fakeAdvisor) Sentiment(context.Context, string, string) (model.Sentiment, error) {
	f.calls++
	return f.sentiment, f.err
}

func (f *fakeAdvisor) DailyNarrative(context.Context, []model.EmailSummary) (string, error) {
	f.calls++
	return f.narrative, f.err
}

func (f *fakeAdvisor) EstimateUrgency(context.Context, string, string) (float64, error) {
	f.calls++
	return f.urgency, f.err
}

func TestResilientUsesPrimary(t *testing.T) {
	primary := &fakeAdvisor{
		summary:   "generated",
		followUps: []string{"one", "two", "three"},
		sentiment: model.SentimentPositive,
		urgency:   0.9,
	}
	r := NewResilient(primary, time.Second, circuitbreaker.DefaultConfig(), nil)
	ctx := context.Background()

	if got, _ := r.Summarize(ctx, "s", "b"); got != "generated" {
		t.Errorf("summary: got %q", got)
	}
	got, _ := r.SuggestFollowUps(ctx, "s", "b", model.CategoryWork)
	want := []string{
		"Schedule a follow-up meeting",
		"Send a detailed response with next steps",
		"Add to task list for tracking",
		"one", "two",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("follow ups: got %q, want %q", got, want)
	}
	if s, _ := r.Sentiment(ctx, "s", "b"); s != model.SentimentPositive {
		t.Errorf("sentiment: got %q", s)
	}
	if u, err := r.EstimateUrgency(ctx, "s", "b"); err != nil || u != 0.9 {
		t.Errorf("urgency: got (%v, %v)", u, err)
	}
}

func TestResilientFallsBack(t *testing.T) {
	primary := &fakeAdvisor{err: errors.New("connection refused")}
	r := NewResilient(primary, time.Second, circuitbreaker.Config{FailureThreshold: 2, Timeout: time.Hour}, nil)
	ctx := context.Background()

	if got, _ := r.Summarize(ctx, "Hello", "short"); got != "Email about: Hello" {
		t.Errorf("summary: got %q", got)
	}
	if got, _ := r.SuggestFollowUps(ctx, "", "", model.CategoryPersonal); !reflect.DeepEqual(got, []string{DefaultFollowUp}) {
		t.Errorf("follow ups: got %q", got)
	}
	if s, _ := r.Sentiment(ctx, "", ""); s != model.SentimentNeutral {
		t.Errorf("sentiment: got %q", s)
	}
	if _, err := r.EstimateUrgency(ctx, "", ""); !errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		t.Errorf("urgency after breaker opened: got %v", err)
	}
	if primary.calls != 2 {
		t.Errorf("primary called %d times, want 2 before the breaker opened", primary.calls)
	}
	n, _ := r.DailyNarrative(ctx, []model.EmailSummary{{Category: model.CategoryOther}})
	if !strings.HasPrefix(n, "You received 1 emails today.") {
		t.Errorf("narrative: got %q", n)
	}
}

func TestResilientEmptySummaryFallsBack(t *testing.T) {
	r := NewResilient(&fakeAdvisor{}, time.Second, circuitbreaker.DefaultConfig(), nil)
	if got, _ := r.Summarize(context.Background(), "Hi", ""); got != "Email about: Hi" {
		t.Fatalf("got %q", got)
	}
}

func TestNewSelectsImplementation(t *testing.T) {
	if _, ok := New(config.AIConfig{}, nil).(*Local); !ok {
		t.Error("no api key should select Local")
	}
	if _, ok := New(config.AIConfig{APIKey: "k"}, nil).(*Resilient); !ok {
		t.Error("api key should select Resilient")
	}
}

func newChatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   req["model"],
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEstimateUrgency(t *testing.T) {
	srv := newChatServer(t, " 0.75 \n")
	o := NewOpenAI(config.AIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "test-model"})
	got, err := o.EstimateUrgency(context.Background(), "Server down", "fix it")
	if err != nil {
		t.Fatalf("EstimateUrgency: %v", err)
	}
	if got != 0.75 {
		t.Fatalf("got %v, want 0.75", got)
	}
}

func TestOpenAIFollowUpLines(t *testing.T) {
	srv := newChatServer(t, "Reply to Bob\n\n  Book a room  \n")
	o := NewOpenAI(config.AIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
	got, err := o.SuggestFollowUps(context.Background(), "s", "b", model.CategoryMeetings)
	if err != nil {
		t.Fatalf("SuggestFollowUps: %v", err)
	}
	if want := []string{"Reply to Bob", "Book a room"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOpenAISentimentRejectsUnknown(t *testing.T) {
	srv := newChatServer(t, "ecstatic")
	o := NewOpenAI(config.AIConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
	if _, err := o.Sentiment(context.Background(), "s", "b"); err == nil {
		t.Fatal("expected error for unknown sentiment")
	}
}
