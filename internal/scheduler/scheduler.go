// Package scheduler runs named jobs daily at a wall-clock time or at a
// fixed interval. A job never overlaps with itself.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mailtriage/pkg/logger"
	"mailtriage/pkg/metrics"
	"mailtriage/pkg/trace"
	"mailtriage/pkg/util"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrAlreadyRunning = errors.New("job already running")
	ErrStarted        = errors.New("scheduler already started")
	ErrStopped        = errors.New("scheduler stopped")
)

// Job is a unit of scheduled work. Exactly one of Daily ("HH:MM") and
// Every must be set. Timeout bounds a single run; zero means unbounded.
type Job struct {
	Name    string
	Daily   string
	Every   time.Duration
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// JobInfo is a snapshot of a job for listing.
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
	Running  bool      `json:"running"`
}

type entry struct {
	job          Job
	hour, minute int
	running      atomic.Bool

	mu      sync.Mutex
	next    time.Time
	lastRun time.Time
	lastErr string
}

type Scheduler struct {
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	jobs    []*entry
	started bool
	stopped bool
	stop    chan struct{}
	once    sync.Once
	loops   sync.WaitGroup
	runs    sync.WaitGroup
}

// New creates a scheduler evaluating daily times in loc (local time when nil).
func New(loc *time.Location, l *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		loc:    loc,
		logger: logger.OrNop(l),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
}

// ParseClock parses "HH:MM" in 24-hour form.
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// NextDaily returns the first instant strictly after now at hour:minute in
// now's location.
func NextDaily(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("job needs a name and a run function")
	}
	e := &entry{job: job}
	switch {
	case job.Daily != "" && job.Every > 0:
		return fmt.Errorf("job %s: daily and every are exclusive", job.Name)
	case job.Daily != "":
		h, m, err := ParseClock(job.Daily)
		if err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
		e.hour, e.minute = h, m
	case job.Every <= 0:
		return fmt.Errorf("job %s: needs a daily time or a positive interval", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	for _, existing := range s.jobs {
		if existing.job.Name == job.Name {
			return fmt.Errorf("job %s already registered", job.Name)
		}
	}
	s.jobs = append(s.jobs, e)
	return nil
}

func (s *Scheduler) nextRun(e *entry, now time.Time) time.Time {
	if e.job.Daily != "" {
		return NextDaily(now.In(s.loc), e.hour, e.minute)
	}
	return now.Add(e.job.Every)
}

// Start launches one timer loop per job.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.started = true

	for _, e := range s.jobs {
		s.loops.Add(1)
		go s.loop(e)
		s.logger.Info("Scheduled job",
			zap.String("job", e.job.Name),
			zap.String("schedule", describe(e.job)),
		)
	}
	return nil
}

func (s *Scheduler) loop(e *entry) {
	defer s.loops.Done()

	for {
		next := s.nextRun(e, s.now())
		e.mu.Lock()
		e.next = next
		e.mu.Unlock()

		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			if err := s.fire(e); errors.Is(err, ErrAlreadyRunning) {
				metrics.IncrementCycleSkipped(e.job.Name)
				s.logger.Warn("Skipping job, previous run still in progress",
					zap.String("job", e.job.Name))
			}
		}
	}
}

// fire starts a run in the background unless one is already in flight.
func (s *Scheduler) fire(e *entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer e.running.Store(false)
		s.run(e)
	}()
	return nil
}

func (s *Scheduler) run(e *entry) {
	// runs are detached from Stop so in-flight cycles finish
	ctx := trace.WithContext(context.Background(), trace.GenerateTraceID())
	if e.job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.job.Timeout)
		defer cancel()
	}
	l := logger.WithTrace(ctx, s.logger).With(zap.String("job", e.job.Name))

	start := s.now()
	l.Info("Job started")

	err := safeRun(ctx, e.job.Run)
	elapsed := time.Since(start)

	status := "success"
	lastErr := ""
	if err != nil {
		status = util.ClassifyError(err)
		lastErr = err.Error()
		l.Error("Job failed", zap.Duration("duration", elapsed), zap.String("error_type", status), zap.Error(err))
	} else {
		l.Info("Job finished", zap.Duration("duration", elapsed))
	}
	metrics.RecordCycleDuration(e.job.Name, status, elapsed)

	e.mu.Lock()
	e.lastRun = start
	e.lastErr = lastErr
	e.mu.Unlock()
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Trigger starts the named job now, outside its schedule.
func (s *Scheduler) Trigger(name string) error {
	e := s.lookup(name)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.fire(e)
}

func (s *Scheduler) lookup(name string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.jobs {
		if e.job.Name == name {
			return e
		}
	}
	return nil
}

// Jobs lists registered jobs in registration order.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	entries := append([]*entry(nil), s.jobs...)
	started := s.started
	s.mu.Unlock()

	out := make([]JobInfo, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		info := JobInfo{
			Name:     e.job.Name,
			Schedule: describe(e.job),
			NextRun:  e.next,
			LastRun:  e.lastRun,
			LastErr:  e.lastErr,
			Running:  e.running.Load(),
		}
		e.mu.Unlock()
		if !started {
			info.NextRun = s.nextRun(e, s.now())
		}
		out = append(out, info)
	}
	return out
}

// Stop cancels future wakes and waits for in-flight runs or ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		close(s.stop)
	})
	s.loops.Wait()

	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

func describe(j Job) string {
	if j.Daily != "" {
		return "daily at " + j.Daily
	}
	return "every " + j.Every.String()
}
