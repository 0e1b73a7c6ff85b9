package bot

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stupiduntilnot/relaybot/internal/db"
	"github.com/stupiduntilnot/relaybot/internal/history"
	"github.com/stupiduntilnot/relaybot/internal/session"
)

// replyCharLimit caps a stored and sent answer; anything longer is cut to
// this many chars plus an ellipsis marker.
const replyCharLimit = 4000

// chatTurn relays one user message to the completion provider. The user
// entry is appended before the invocation and the assistant entry after it,
// so a failed turn still leaves the user's message in context.
func (e *Engine) chatTurn(s *session.Session, in session.Inbound) {
	s.History.Append(history.Entry{Role: history.RoleUser, Content: in.Text})
	messages := e.assembler.Assemble(s.Persona(), s.History.All())

	turnID := e.logEvent(db.EventTurnStarted, map[string]any{
		"chat_id": s.ChatID,
		"model":   e.cfg.ModelName,
	})

	if err := e.sem.Acquire(e.ctx, 1); err != nil {
		// Shutting down; the turn never ran.
		return
	}
	started := time.Now()
	resp, err := e.provider.ChatCompletion(messages)
	e.sem.Release(1)

	if err != nil {
		e.logger.Warn("completion failed", zap.Int64("chat_id", s.ChatID), zap.Error(err))
		e.logEventUnder(turnID, db.EventTurnFailed, map[string]any{
			"chat_id": s.ChatID,
			"error":   clipDisplay(err.Error(), 500),
		})
		e.reply(s, replyError)
		return
	}

	e.logger.Info("token usage",
		zap.Int64("chat_id", s.ChatID),
		zap.Int("prompt_tokens", resp.PromptTokens),
		zap.Int("completion_tokens", resp.CompletionTokens),
		zap.Int("total_tokens", resp.TotalTokens),
	)
	e.logEventUnder(turnID, db.EventTurnCompleted, map[string]any{
		"chat_id":           s.ChatID,
		"latency_ms":        time.Since(started).Milliseconds(),
		"prompt_tokens":     resp.PromptTokens,
		"completion_tokens": resp.CompletionTokens,
		"total_tokens":      resp.TotalTokens,
	})

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		answer = replyNoResponse
	}
	answer = capAnswer(answer)

	s.History.Append(history.Entry{Role: history.RoleAssistant, Content: answer})
	e.reply(s, answer)
}

func (e *Engine) logEventUnder(parentID int64, eventType string, payload map[string]any) {
	if e.database == nil {
		return
	}
	parent := &parentID
	if parentID == 0 {
		parent = nil
	}
	if _, err := db.LogEvent(e.database, parent, eventType, payload); err != nil {
		e.logger.Warn("event log failed", zap.String("event", eventType), zap.Error(err))
	}
}

// capAnswer enforces the outbound reply limit: the stored history entry and
// the sent text are the same string.
func capAnswer(s string) string {
	runes := []rune(s)
	if len(runes) <= replyCharLimit {
		return s
	}
	return string(runes[:replyCharLimit]) + "..."
}
