package aggregate

import (
	"reflect"
	"testing"

	"mailtriage/internal/model"
)

func sample() []model.EmailSummary {
	return []model.EmailSummary{
		{ID: "1", Category: model.CategoryWork, Priority: model.PriorityLow, UrgencyScore: 0.1},
		{ID: "2", Category: model.CategoryUrgent, Priority: model.PriorityUrgent, UrgencyScore: 0.9, ActionRequired: true},
		{ID: "3", Category: model.CategoryWork, Priority: model.PriorityMedium, UrgencyScore: 0.7, IsRead: true},
		{ID: "4", Category: model.CategoryMeetings, Priority: model.PriorityHigh, ActionRequired: true, IsReplied: true, IsRead: true},
	}
}

func ids(list []model.EmailSummary) []string {
	out := []string{}
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func TestAggregate(t *testing.T) {
	d := Aggregate(sample(), "2024-01-15")

	if d.Date != "2024-01-15" || d.TotalEmails != 4 {
		t.Fatalf("header: got %s/%d", d.Date, d.TotalEmails)
	}
	wantCats := map[model.Category]int{model.CategoryWork: 2, model.CategoryUrgent: 1, model.CategoryMeetings: 1}
	if !reflect.DeepEqual(d.Categories, wantCats) {
		t.Errorf("categories: got %v, want %v", d.Categories, wantCats)
	}
	if got := ids(d.UrgentEmails); !reflect.DeepEqual(got, []string{"2", "3", "4"}) {
		t.Errorf("urgent: got %v", got)
	}
	if got := ids(d.UnreadEmails); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("unread: got %v", got)
	}
	if got := ids(d.ResponseReminders); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("reminders: got %v", got)
	}
}

func TestAggregateCountInvariant(t *testing.T) {
	for _, in := range [][]model.EmailSummary{nil, {}, sample()} {
		d := Aggregate(in, "2024-01-15")
		cats, prios := 0, 0
		for _, n := range d.Categories {
			cats += n
		}
		for _, n := range d.PriorityBreakdown {
			prios += n
		}
		if d.TotalEmails != len(in) || cats != d.TotalEmails || prios != d.TotalEmails {
			t.Fatalf("counts: total=%d categories=%d priorities=%d len=%d", d.TotalEmails, cats, prios, len(in))
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	d := Aggregate(nil, "2024-01-15")
	if d.Categories == nil || d.PriorityBreakdown == nil || d.UrgentEmails == nil || d.UnreadEmails == nil || d.ResponseReminders == nil {
		t.Fatalf("empty aggregate has nil fields: %+v", d)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	in := sample()
	if a, b := Aggregate(in, "d"), Aggregate(in, "d"); !reflect.DeepEqual(a, b) {
		t.Fatalf("aggregate not deterministic:\n%+v\n%+v", a, b)
	}
}
