package bot

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	cmdpkg "github.com/stupiduntilnot/relaybot/internal/commander"
	ctxpkg "github.com/stupiduntilnot/relaybot/internal/context"
	"github.com/stupiduntilnot/relaybot/internal/db"
	"github.com/stupiduntilnot/relaybot/internal/model"
	"github.com/stupiduntilnot/relaybot/internal/session"
)

// Config tunes an Engine.
type Config struct {
	ModelName       string
	SystemPrompt    string
	HistoryCapacity int
	QueueDepth      int
	SessionTTL      time.Duration
	MaxConcurrent   int64
}

// Engine routes inbound messages: commands mutate session state directly,
// free text either becomes the persona (while capturing) or a chat turn
// relayed to the completion provider. One engine serves all sessions.
type Engine struct {
	commander cmdpkg.Commander
	provider  model.Provider
	assembler ctxpkg.Assembler
	registry  *session.Registry
	database  *sql.DB
	logger    *zap.Logger
	sem       *semaphore.Weighted
	cfg       Config

	// ctx bounds semaphore waits; canceled at process shutdown.
	ctx    context.Context
	rootID int64
}

// New creates an Engine. database may be nil (no event trail) and logger
// may be nil (silent); rootEventID parents this engine's events.
func New(ctx context.Context, commander cmdpkg.Commander, provider model.Provider, database *sql.DB, logger *zap.Logger, rootEventID int64, cfg Config) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	e := &Engine{
		commander: commander,
		provider:  provider,
		assembler: &ctxpkg.StandardAssembler{Baseline: cfg.SystemPrompt},
		database:  database,
		logger:    logger,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		cfg:       cfg,
		ctx:       ctx,
		rootID:    rootEventID,
	}
	e.registry = session.NewRegistry(session.RegistryConfig{
		HistoryCapacity: cfg.HistoryCapacity,
		QueueDepth:      cfg.QueueDepth,
		Handler:         e.handleInbound,
		OnCreate: func(s *session.Session) {
			e.logEvent(db.EventSessionCreated, map[string]any{"chat_id": s.ChatID})
		},
		OnEvict: func(s *session.Session) {
			e.logEvent(db.EventSessionEvicted, map[string]any{"chat_id": s.ChatID})
		},
	})
	return e
}

// HandleUpdate enqueues one transport update for its session. Updates
// without text are skipped.
func (e *Engine) HandleUpdate(u cmdpkg.Update) {
	if u.Message == nil || u.Message.Text == nil {
		return
	}
	text := *u.Message.Text
	if text == "" {
		return
	}
	sender := u.Message.DisplayName()
	e.logger.Info("message received",
		zap.Int64("chat_id", u.Message.Chat.ID),
		zap.String("from", sender),
		zap.String("text", clipDisplay(text, 200)),
	)
	e.registry.Dispatch(u.Message.Chat.ID, session.Inbound{Text: text, Sender: sender})
}

// EvictIdleSessions removes sessions idle beyond the configured TTL.
// Disabled when the TTL is zero.
func (e *Engine) EvictIdleSessions() int {
	n := e.registry.EvictIdle(e.cfg.SessionTTL)
	if n > 0 {
		e.logger.Info("evicted idle sessions", zap.Int("count", n))
	}
	return n
}

// Close stops all session workers and waits for in-flight turns.
func (e *Engine) Close() {
	e.registry.Close()
}

func (e *Engine) reply(s *session.Session, text string) {
	if err := e.commander.SendMessage(s.ChatID, text); err != nil {
		e.logger.Warn("send failed", zap.Int64("chat_id", s.ChatID), zap.Error(err))
		return
	}
	e.logEvent(db.EventReplySent, map[string]any{"chat_id": s.ChatID})
}

func (e *Engine) logEvent(eventType string, payload map[string]any) int64 {
	if e.database == nil {
		return 0
	}
	parent := &e.rootID
	if e.rootID == 0 {
		parent = nil
	}
	id, err := db.LogEvent(e.database, parent, eventType, payload)
	if err != nil {
		e.logger.Warn("event log failed", zap.String("event", eventType), zap.Error(err))
		return 0
	}
	return id
}
