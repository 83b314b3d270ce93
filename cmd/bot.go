package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adhocore/gronx"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/shopclaw/internal/buffer"
	"github.com/nextlevelbuilder/shopclaw/internal/bus"
	"github.com/nextlevelbuilder/shopclaw/internal/channels"
	"github.com/nextlevelbuilder/shopclaw/internal/channels/telegram"
	"github.com/nextlevelbuilder/shopclaw/internal/config"
	"github.com/nextlevelbuilder/shopclaw/internal/consultant"
	"github.com/nextlevelbuilder/shopclaw/internal/executor"
	"github.com/nextlevelbuilder/shopclaw/internal/gateway"
	"github.com/nextlevelbuilder/shopclaw/internal/providers"
	"github.com/nextlevelbuilder/shopclaw/internal/retry"
	"github.com/nextlevelbuilder/shopclaw/internal/store"
	"github.com/nextlevelbuilder/shopclaw/internal/store/sqlite"
)

func runBot() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// Load config
	cfgPath := resolveConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Persistence
	db, err := sqlite.Open(config.ExpandHome(cfg.Store.Path), cfg.Store.EncryptionKey)
	if err != nil {
		slog.Error("failed to open store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	stores := db.Stores()

	rc := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		Multiplier:  cfg.Retry.Multiplier,
		CallTimeout: time.Duration(cfg.Retry.CallTimeoutSec) * time.Second,
	}

	// Core components
	msgBus := bus.New()

	provider := providers.NewOpenAIProvider(
		cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model,
		cfg.AI.MaxTokens, cfg.AI.Temperature, rc,
	)

	exec := executor.New(stores.Orders, stores.Catalog, executor.Config{
		Currency:        cfg.Commerce.Currency,
		OrdersPageSize:  cfg.Commerce.OrdersPageSize,
		DefaultLanguage: cfg.Commerce.DefaultLanguage,
	})

	cons := consultant.New(provider, exec, stores, cfg.Commerce.FallbackPrice, consultant.Config{
		Currency:        cfg.Commerce.Currency,
		DefaultLanguage: cfg.Commerce.DefaultLanguage,
	})

	gw := gateway.New(
		gateway.NewRecentUpdates(cfg.Gateway.RecentUpdateCapacity),
		cfg.Gateway.MaxMessageAge(),
		stores.Owners,
		inboundRecorder{stores.Messages},
	)

	buf := buffer.New(buffer.Config{
		BaseDelay:      cfg.Buffer.BaseDelay(),
		MaxDelay:       cfg.Buffer.MaxDelay(),
		DelayIncrement: cfg.Buffer.DelayIncrement(),
	}, buffer.TimerScheduler{})

	consumer := consultant.NewConsumer(msgBus, gw, buf, cons)

	// Telegram channel
	tg, err := telegram.New(cfg.Telegram, msgBus, rc)
	if err != nil {
		slog.Error("failed to initialize telegram channel", "error", err)
		os.Exit(1)
	}
	channelMgr := channels.NewManager(msgBus)
	channelMgr.Register(tg)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		consumer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		channelMgr.DispatchOutbound(gctx)
		return nil
	})
	g.Go(func() error {
		runMaintenance(gctx, cfg.Maintenance, stores.Messages)
		return nil
	})

	slog.Info("shopclaw starting",
		"version", Version,
		"mode", cfg.Telegram.Mode,
		"model", cfg.AI.Model,
		"store", cfg.Store.Path,
	)

	sig := <-sigCh
	slog.Info("graceful shutdown initiated", "signal", sig)

	channelMgr.StopAll(context.Background())
	cancel()
	g.Wait()
}

// inboundRecorder adapts the message store to the gateway's journal seam.
type inboundRecorder struct {
	messages store.MessageStore
}

func (r inboundRecorder) RecordInbound(ctx context.Context, rec gateway.InboundRecord) error {
	return r.messages.RecordInbound(ctx, store.InboundMessage{
		UpdateID:       rec.UpdateID,
		ConversationID: rec.ConversationID,
		SenderID:       rec.SenderID,
		Text:           rec.Text,
		Timestamp:      rec.Timestamp,
	})
}

// runMaintenance prunes processed inbound messages on the configured cron
// schedule. Checks once a minute; an empty expression disables the job.
func runMaintenance(ctx context.Context, cfg config.MaintenanceConfig, messages store.MessageStore) {
	if cfg.Cron == "" || cfg.RetainDays <= 0 {
		return
	}
	log := slog.Default().With("component", "maintenance")
	gron := gronx.New()
	if !gron.IsValid(cfg.Cron) {
		log.Error("invalid maintenance cron expression, job disabled", "cron", cfg.Cron)
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := gron.IsDue(cfg.Cron, now)
			if err != nil || !due {
				continue
			}
			cutoff := now.AddDate(0, 0, -cfg.RetainDays)
			pruned, err := messages.PruneProcessed(ctx, cutoff)
			if err != nil {
				log.Warn("message prune failed", "error", err)
				continue
			}
			if pruned > 0 {
				log.Info("pruned processed messages", "count", pruned, "cutoff", cutoff.Format(time.RFC3339))
			}
		}
	}
}
