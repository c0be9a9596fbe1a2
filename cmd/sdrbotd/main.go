package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sdrbot-io/sdrbot/internal/api"
	"github.com/sdrbot-io/sdrbot/internal/calendar"
	"github.com/sdrbot-io/sdrbot/internal/config"
	"github.com/sdrbot-io/sdrbot/internal/connector"
	"github.com/sdrbot-io/sdrbot/internal/connector/telegram"
	"github.com/sdrbot-io/sdrbot/internal/conversation"
	"github.com/sdrbot-io/sdrbot/internal/crm"
	"github.com/sdrbot-io/sdrbot/internal/dispatch"
	"github.com/sdrbot-io/sdrbot/internal/llm"
	"github.com/sdrbot-io/sdrbot/internal/logbuf"
	"github.com/sdrbot-io/sdrbot/internal/maintenance"
	"github.com/sdrbot-io/sdrbot/internal/notify"
	"github.com/sdrbot-io/sdrbot/internal/slotcache"
	"github.com/sdrbot-io/sdrbot/internal/store"
)

func main() {
	// .env is optional, real env always wins.
	godotenv.Load()

	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logBuf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, logBuf))

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("sdrbotd starting", "company", cfg.Agent.CompanyName, "product", cfg.Agent.ProductName)

	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		logger.Warn("unknown timezone, using UTC", "timezone", cfg.Calendar.Timezone)
		loc = time.UTC
	}

	// Persistence
	os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755)
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}

	// Slot cache with periodic housekeeping
	slots := slotcache.New(cfg.SlotCache.MaxSessions, logger.With("component", "slotcache"))
	jobs := maintenance.New(logger.With("component", "maintenance"))
	if err := jobs.AddJob("slot-sweep", cfg.SlotCache.SweepSchedule, slots.Sweep); err != nil {
		logger.Error("failed to register slot sweep", "error", err)
		os.Exit(1)
	}
	if err := jobs.AddJob("session-expiry", "@every 5m", func() {
		n, err := st.ExpireStaleSessions(time.Now())
		if err != nil {
			logger.Warn("session expiry sweep failed", "error", err)
			return
		}
		if n > 0 {
			logger.Info("sessions expired", "count", n)
		}
	}); err != nil {
		logger.Error("failed to register session expiry", "error", err)
		os.Exit(1)
	}

	// LLM client
	profile := llm.Profile{
		ProductName:        cfg.Agent.ProductName,
		ProductDescription: cfg.Agent.ProductDescription,
		CompanyName:        cfg.Agent.CompanyName,
		Tone:               cfg.Agent.Tone,
	}
	var llmOpts []llm.Option
	if cfg.OpenAI.BaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.OpenAI.Model != "" {
		llmOpts = append(llmOpts, llm.WithModel(cfg.OpenAI.Model))
	}
	llmClient := llm.NewOpenAI(cfg.OpenAI.APIKey, profile, llmOpts...)

	// Calendar client
	var calOpts []calendar.CalcomOption
	if cfg.Calendar.BaseURL != "" {
		calOpts = append(calOpts, calendar.WithBaseURL(cfg.Calendar.BaseURL))
	}
	cal := calendar.NewCalcom(cfg.Calendar.APIKey, cfg.Calendar.EventTypeID, cfg.Calendar.Timezone, calOpts...)

	// CRM client
	crmOpts := []crm.PipefyOption{crm.WithLocation(loc)}
	if cfg.Pipefy.BaseURL != "" {
		crmOpts = append(crmOpts, crm.WithEndpoint(cfg.Pipefy.BaseURL))
	}
	if cfg.Pipefy.PhaseID != "" {
		crmOpts = append(crmOpts, crm.WithPhaseID(cfg.Pipefy.PhaseID))
	}
	crmClient := crm.NewPipefy(cfg.Pipefy.APIKey, cfg.Pipefy.PipeID, logger.With("component", "crm"), crmOpts...)

	// Sales notifications
	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.Slack != nil {
		notifier = notify.NewSlack(cfg.Notify.Slack.BotToken, cfg.Notify.Slack.Channel, loc,
			logger.With("component", "notify"))
		logger.Info("slack notifier enabled", "channel", cfg.Notify.Slack.Channel)
	}

	dispatcher := dispatch.New(st, slots, cal, crmClient, notifier, loc,
		logger.With("component", "dispatch"))

	orch := conversation.New(st, llmClient, dispatcher,
		cfg.Agent.CompanyName, cfg.Agent.ProductName,
		time.Duration(cfg.Session.TimeoutMinutes)*time.Minute, cfg.Agent.MaxMessages,
		logger.With("component", "conversation"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go safeGo(logger, "maintenance", func() { jobs.Start(ctx) })

	// Telegram channel
	if cfg.Connectors.Telegram != nil {
		tgHandler := func(ctx context.Context, turn connector.Turn) (*connector.Reply, error) {
			reply, err := orch.HandleMessage(ctx, turn.SessionID, turn.Content)
			if err != nil {
				return nil, err
			}
			return &connector.Reply{SessionID: reply.SessionID, Content: reply.Message}, nil
		}
		tgConn, err := telegram.New(telegram.Config{
			Token:     cfg.Connectors.Telegram.Token,
			AllowFrom: cfg.Connectors.Telegram.AllowFrom,
		}, tgHandler, logger.With("connector", "telegram"))
		if err != nil {
			logger.Error("failed to init telegram connector", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "telegram", func() { tgConn.Start(ctx) })
	}

	// API server
	apiSrv := api.NewServer(orch, st, api.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		Key:  cfg.Server.Key,
	}, logger.With("component", "api"), logBuf)

	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.Server.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()
	logger.Info("sdrbotd stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
