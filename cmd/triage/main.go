package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"mailtriage/internal/advisor"
	"mailtriage/internal/api"
	"mailtriage/internal/categorizer"
	"mailtriage/internal/httpserver"
	"mailtriage/internal/mailsource"
	"mailtriage/internal/model"
	"mailtriage/internal/notify"
	"mailtriage/internal/pipeline"
	"mailtriage/internal/repository"
	"mailtriage/internal/scheduler"
	"mailtriage/internal/scorer"
	"mailtriage/internal/service"
	"mailtriage/internal/voice"
	"mailtriage/pkg/config"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/mq"
	pkgredis "mailtriage/pkg/redis"
	"mailtriage/pkg/trace"
	"mailtriage/pkg/util"
)

const (
	jobDailySummary     = "daily_summary"
	jobCheckNewEmails   = "check_new_emails"
	jobResponseReminder = "response_reminders"
)

// writeToken prints a bearer token for subject signed with the API secret.
func writeToken(w io.Writer, cfg config.JWTConfig, subject string, ttl time.Duration) error {
	if cfg.Secret == "" {
		return errors.New("jwt.secret is not configured")
	}
	token, err := util.GenerateJWT(subject, cfg.Secret, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func main() {
	env := pflag.String("env", config.GetConfigEnv(), "configuration environment (loads <env>.yaml over base.yaml)")
	configDir := pflag.String("config-dir", config.GetEnv("CONFIG_DIR", "config"), "configuration directory")
	once := pflag.Bool("once", false, "process today's emails once and exit")
	date := pflag.String("date", "", "day to process with --once (YYYY-MM-DD, default today)")
	issueToken := pflag.String("issue-token", "", "print an API bearer token for this subject and exit")
	tokenTTL := pflag.Duration("token-ttl", 30*24*time.Hour, "lifetime of the token printed by --issue-token")
	pflag.Parse()

	cfg, err := config.Load(*env, *configDir)
	if err != nil {
		logger.NewLogger("info").Fatal("Failed to load configuration", zap.Error(err))
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	if *issueToken != "" {
		if err := writeToken(os.Stdout, cfg.JWT, *issueToken, *tokenTTL); err != nil {
			log.Fatal("Failed to issue token", zap.Error(err))
		}
		return
	}

	log.Info("Starting mailtriage...",
		zap.String("env", *env),
		zap.String("store", cfg.Store.Driver),
		zap.String("imap_host", cfg.IMAP.Host),
	)

	ctx := context.Background()

	// Store
	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	loc := time.Local
	if cfg.Store.Timezone != "" {
		if loc, err = time.LoadLocation(cfg.Store.Timezone); err != nil {
			log.Fatal("Invalid timezone", zap.String("timezone", cfg.Store.Timezone), zap.Error(err))
		}
	}

	// Event bus
	var publisher notify.Publisher
	if cfg.Notify.Events && cfg.MQ.URL != "" {
		p, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
		if err != nil {
			log.Warn("Event bus unavailable, continuing without events", zap.Error(err))
		} else {
			defer p.Close()
			publisher = p
			log.Info("Publishing triage events", zap.String("exchange", cfg.MQ.Exchange))
		}
	}

	// Dedup
	var deduper service.Deduper
	if cfg.Redis.Addr != "" {
		rdb := pkgredis.NewRedisClient(cfg.Redis)
		defer rdb.Close()
		if err := pkgredis.Ping(ctx, rdb); err != nil {
			log.Warn("Redis not reachable, alerts may repeat until it is", zap.Error(err))
		}
		deduper = util.NewDeduper(rdb, 7*24*time.Hour, log)
	}

	// Triage core
	adv := advisor.New(cfg.AI, log)
	p := pipeline.New(
		categorizer.New(log),
		scorer.New(log, scorer.WithEstimator(adv, cfg.AI.Timeout)),
		adv,
		log,
	)

	var voiceSink voice.Sink
	if cfg.Voice.Enabled {
		voiceSink = voice.NewTranscriptSink(cfg.Voice.OutputDir, log)
	}

	httpClient := &http.Client{Timeout: cfg.Notify.Timeout}
	svc := service.NewTriageService(service.Deps{
		Source:   mailsource.NewIMAPSource(cfg.IMAP, log),
		Store:    store,
		Pipeline: p,
		Advisor:  adv,
		Notifier: func(s model.NotificationSettings) service.Notifier {
			sinks := notify.BuildSinks(s, cfg.Notify.TelegramAPIBase, publisher, httpClient)
			return notify.NewManager(sinks, cfg.Notify.Timeout, log)
		},
		Voice:   voiceSink,
		Deduper: deduper,
	}, cfg, loc, log)

	if *once {
		runCtx := trace.WithContext(ctx, trace.GenerateTraceID())
		res, err := svc.ProcessDay(runCtx, *date)
		if err != nil {
			log.Fatal("Triage cycle failed", zap.Error(err))
		}
		log.Info("Triage cycle complete",
			zap.String("date", res.Date),
			zap.Int("processed", len(res.Processed)),
			zap.Int("skipped", len(res.Skipped)),
		)
		return
	}

	// Scheduler
	settings, err := svc.Settings(ctx)
	if err != nil {
		log.Warn("Failed to load runtime settings, using file configuration", zap.Error(err))
		settings.DailySummaryTime = cfg.Scheduler.DailySummaryTime
	}

	sched := scheduler.New(loc, log)
	jobs := []scheduler.Job{
		{
			Name:    jobDailySummary,
			Daily:   settings.DailySummaryTime,
			Timeout: cfg.Scheduler.CycleTimeout,
			Run: func(ctx context.Context) error {
				_, err := svc.ProcessDay(ctx, "")
				return err
			},
		},
		{
			Name:    jobCheckNewEmails,
			Every:   cfg.Scheduler.CheckInterval,
			Timeout: cfg.Scheduler.CheckInterval,
			Run: func(ctx context.Context) error {
				_, err := svc.CheckNewEmails(ctx)
				return err
			},
		},
		{
			Name:    jobResponseReminder,
			Every:   cfg.Scheduler.ReminderInterval,
			Timeout: cfg.Scheduler.ReminderInterval,
			Run: func(ctx context.Context) error {
				_, err := svc.CheckResponseReminders(ctx)
				return err
			},
		},
	}
	for _, j := range jobs {
		if err := sched.Add(j); err != nil {
			log.Fatal("Failed to schedule job", zap.String("job", j.Name), zap.Error(err))
		}
	}
	if err := sched.Start(); err != nil {
		log.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// HTTP Server
	handler := api.NewHandler(store, svc, sched, log)
	router := httpserver.NewRouter(handler, cfg.JWT.Secret, log)
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router.Engine,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("mailtriage is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down mailtriage gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler shutdown error", zap.Error(err))
	}

	log.Info("mailtriage shutdown complete")
}
