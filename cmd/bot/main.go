package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stupiduntilnot/relaybot/internal/bot"
	cmdpkg "github.com/stupiduntilnot/relaybot/internal/commander"
	"github.com/stupiduntilnot/relaybot/internal/config"
	"github.com/stupiduntilnot/relaybot/internal/control"
	"github.com/stupiduntilnot/relaybot/internal/db"
	"github.com/stupiduntilnot/relaybot/internal/dummy"
	"github.com/stupiduntilnot/relaybot/internal/model"
	"github.com/stupiduntilnot/relaybot/internal/openai"
	"github.com/stupiduntilnot/relaybot/internal/telegram"
)

func main() {
	logCfg := zap.NewProductionConfig()
	logCfg.DisableStacktrace = true
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	cfg, err := config.LoadBotConfig()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		logger.Fatal("init schema", zap.Error(err))
	}

	rootID, err := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{
		"run_id":   runID,
		"pid":      os.Getpid(),
		"provider": cfg.ModelProvider,
		"source":   cfg.Commander,
		"model":    cfg.OpenAIModel,
	})
	if err != nil {
		logger.Warn("failed to log process.started", zap.Error(err))
	}

	commander, err := newCommander(&cfg)
	if err != nil {
		logger.Fatal("init commander", zap.Error(err))
	}
	modelProvider, err := newModelProvider(&cfg)
	if err != nil {
		logger.Fatal("init model provider", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := bot.New(ctx, commander, modelProvider, database, logger, rootID, bot.Config{
		ModelName:       cfg.OpenAIModel,
		SystemPrompt:    cfg.SystemPrompt,
		HistoryCapacity: cfg.HistoryCapacity,
		SessionTTL:      cfg.SessionTTL,
		MaxConcurrent:   int64(cfg.MaxConcurrentCompletions),
	})

	offset, err := db.LoadOffset(database)
	if err != nil {
		logger.Fatal("load offset", zap.Error(err))
	}
	if offset == 0 && cfg.DropPending {
		bootstrapped, err := bootstrapOffset(commander, cfg.PendingWindowSeconds, cfg.PendingMaxMessages)
		if err != nil {
			logger.Warn("bootstrap offset", zap.Error(err))
		} else {
			offset = bootstrapped
		}
	}

	logger.Info("relay running",
		zap.String("model", cfg.OpenAIModel),
		zap.String("provider", cfg.ModelProvider),
		zap.String("source", cfg.Commander),
		zap.Int64("offset", offset),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pollLoop(ctx, engine, commander, database, logger, &cfg, offset)
	})
	if cfg.SessionTTL > 0 {
		g.Go(func() error {
			return evictLoop(ctx, engine, cfg.EvictInterval)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("relay stopped", zap.Error(err))
	}
	engine.Close()
	logger.Info("relay shut down")
}

// pollLoop long-polls the transport and hands each update to the engine.
// A circuit breaker pauses polling after consecutive transport failures.
func pollLoop(ctx context.Context, engine *bot.Engine, commander cmdpkg.Commander, database *sql.DB, logger *zap.Logger, cfg *config.BotConfig, offset int64) error {
	breaker := control.NewBreaker(5, time.Duration(cfg.SleepSeconds)*5*time.Second, 4*time.Minute)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !breaker.Allow(time.Now()) {
			if err := sleepCtx(ctx, time.Duration(cfg.SleepSeconds)*time.Second); err != nil {
				return err
			}
			continue
		}

		updates, err := commander.GetUpdates(offset, cfg.PollTimeout)
		if err != nil {
			logger.Warn("getUpdates failed", zap.Error(err))
			breaker.Failure(time.Now())
			if breaker.State() == control.BreakerOpen {
				logger.Warn("transport circuit open", zap.Duration("cooldown", breaker.Cooldown()))
			}
			if err := sleepCtx(ctx, time.Duration(cfg.SleepSeconds)*time.Second); err != nil {
				return err
			}
			continue
		}
		breaker.Success()

		for _, update := range updates {
			offset = update.UpdateID + 1
			engine.HandleUpdate(update)
		}
		if len(updates) > 0 {
			if err := db.StoreOffset(database, updates[len(updates)-1].UpdateID); err != nil {
				logger.Warn("store offset failed", zap.Error(err))
			}
			continue
		}
		if err := sleepCtx(ctx, time.Duration(cfg.SleepSeconds)*time.Second); err != nil {
			return err
		}
	}
}

func evictLoop(ctx context.Context, engine *bot.Engine, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			engine.EvictIdleSessions()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// bootstrapOffset skips the stale backlog on first run: messages older than
// the pending window are dropped, and at most pendingMaxMessages recent ones
// are kept for processing.
func bootstrapOffset(commander cmdpkg.Commander, pendingWindowSeconds int64, pendingMaxMessages int) (int64, error) {
	updates, err := commander.GetUpdates(0, 0)
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}

	cutoff := time.Now().Unix() - pendingWindowSeconds

	var inWindow []cmdpkg.Update
	for _, u := range updates {
		if u.Message != nil && u.Message.Date >= cutoff {
			inWindow = append(inWindow, u)
		}
	}

	if len(inWindow) == 0 {
		return updates[len(updates)-1].UpdateID + 1, nil
	}
	if len(inWindow) > pendingMaxMessages {
		inWindow = inWindow[len(inWindow)-pendingMaxMessages:]
	}
	return inWindow[0].UpdateID, nil
}

func newCommander(cfg *config.BotConfig) (cmdpkg.Commander, error) {
	switch cfg.Commander {
	case "telegram":
		return telegram.NewClient(cfg.TelegramAPIBase, time.Duration(cfg.PollTimeout+20)*time.Second), nil
	case "dummy":
		return dummy.NewCommander(cfg.DummyCommanderScript, cfg.DummySendScript)
	default:
		return nil, fmt.Errorf("unsupported commander: %s", cfg.Commander)
	}
}

func newModelProvider(cfg *config.BotConfig) (model.Provider, error) {
	switch cfg.ModelProvider {
	case "openai":
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIChatCompURL, cfg.OpenAIModel, cfg.MaxOutputTokens, cfg.Temperature, cfg.TopP, cfg.CompletionTimeout), nil
	case "dummy":
		return dummy.NewProvider(cfg.DummyProviderScript)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}
