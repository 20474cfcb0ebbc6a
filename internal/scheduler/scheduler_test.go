package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{" 23:59 ", 23, 59, false},
		{"00:00", 0, 0, false},
		{"24:00", 0, 0, true},
		{"9", 0, 0, true},
		{"09:60", 0, 0, true},
		{"ab:cd", 0, 0, true},
	}
	for _, tt := range tests {
		h, m, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (h != tt.h || m != tt.m) {
			t.Errorf("ParseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.h, tt.m)
		}
	}
}

func TestNextDaily(t *testing.T) {
	loc := time.UTC
	before := time.Date(2025, 6, 2, 8, 30, 0, 0, loc)
	if got := NextDaily(before, 9, 0); !got.Equal(time.Date(2025, 6, 2, 9, 0, 0, 0, loc)) {
		t.Errorf("before: got %v", got)
	}
	exact := time.Date(2025, 6, 2, 9, 0, 0, 0, loc)
	if got := NextDaily(exact, 9, 0); !got.Equal(time.Date(2025, 6, 3, 9, 0, 0, 0, loc)) {
		t.Errorf("exact: got %v", got)
	}
	endOfMonth := time.Date(2025, 6, 30, 22, 0, 0, 0, loc)
	if got := NextDaily(endOfMonth, 9, 0); !got.Equal(time.Date(2025, 7, 1, 9, 0, 0, 0, loc)) {
		t.Errorf("month rollover: got %v", got)
	}
}

func TestAddValidation(t *testing.T) {
	s := New(time.UTC, nil)
	noop := func(context.Context) error { return nil }

	if err := s.Add(Job{Name: "a", Run: noop}); err == nil {
		t.Error("expected error without schedule")
	}
	if err := s.Add(Job{Name: "b", Daily: "9am", Run: noop}); err == nil {
		t.Error("expected error for bad clock")
	}
	if err := s.Add(Job{Name: "c", Daily: "09:00", Every: time.Hour, Run: noop}); err == nil {
		t.Error("expected error when both schedules are set")
	}
	if err := s.Add(Job{Name: "d", Every: time.Hour, Run: noop}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(Job{Name: "d", Every: time.Hour, Run: noop}); err == nil {
		t.Error("expected duplicate name error")
	}
}

func TestEveryJobRuns(t *testing.T) {
	s := New(time.UTC, nil)
	var calls atomic.Int32
	if err := s.Add(Job{Name: "tick", Every: 10 * time.Millisecond, Run: func(context.Context) error {
		calls.Add(1)
		return nil
	}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestTriggerIsNonReentrant(t *testing.T) {
	s := New(time.UTC, nil)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32
	if err := s.Add(Job{Name: "slow", Daily: "03:00", Run: func(ctx context.Context) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}}); err != nil {
		t.Fatal(err)
	}

	if err := s.Trigger("slow"); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	<-started
	if err := s.Trigger("slow"); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Trigger err = %v, want ErrAlreadyRunning", err)
	}
	if jobs := s.Jobs(); len(jobs) != 1 || !jobs[0].Running {
		t.Fatalf("Jobs = %+v", jobs)
	}

	close(release)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if err := s.Trigger("slow"); !errors.Is(err, ErrStopped) {
		t.Fatalf("Trigger after stop err = %v", err)
	}
}

func TestTriggerUnknown(t *testing.T) {
	if err := New(nil, nil).Trigger("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("err = %v", err)
	}
}

func TestStopWaitsForRun(t *testing.T) {
	s := New(time.UTC, nil)
	var done atomic.Bool
	_ = s.Add(Job{Name: "work", Every: time.Hour, Run: func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		done.Store(true)
		return nil
	}})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger("work"); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !done.Load() {
		t.Fatal("Stop returned before the running job finished")
	}
}

func TestPanicIsRecorded(t *testing.T) {
	s := New(time.UTC, nil)
	_ = s.Add(Job{Name: "boom", Every: time.Hour, Run: func(context.Context) error {
		panic("bad")
	}})
	if err := s.Trigger("boom"); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if jobs := s.Jobs(); jobs[0].LastErr == "" {
		t.Fatal("expected panic recorded as last error")
	}
}
