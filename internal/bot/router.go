package bot

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stupiduntilnot/relaybot/internal/db"
	"github.com/stupiduntilnot/relaybot/internal/session"
)

// handleInbound is the per-session entry point. It runs on the session's
// worker goroutine: commands first, then the capture-state switch, so free
// text can never reach the completion path while a persona is awaited.
func (e *Engine) handleInbound(s *session.Session, in session.Inbound) {
	switch in.Text {
	case "/start":
		s.History.Clear()
		s.CancelPersonaCapture()
		e.logCommand(s, in, "/start")
		e.reply(s, replyWelcome)
	case "/role":
		s.BeginPersonaCapture()
		e.logCommand(s, in, "/role")
		e.reply(s, replyRolePrompt)
	case "/reset":
		s.ResetPersona()
		e.logCommand(s, in, "/reset")
		e.reply(s, replyRoleWasReset)
	case "/history":
		e.logCommand(s, in, "/history")
		e.reply(s, e.renderHistory(s))
	case "/clear":
		s.History.Clear()
		e.logCommand(s, in, "/clear")
		e.reply(s, replyHistoryCleared)
	default:
		// Unregistered "/..." text is ordinary free text.
		if s.AwaitingPersona() {
			s.SetPersona(in.Text)
			e.logger.Info("role set", zap.Int64("chat_id", s.ChatID), zap.String("role", in.Text))
			e.reply(s, fmt.Sprintf("Role has been set: %s", in.Text))
			return
		}
		e.chatTurn(s, in)
	}
}

func (e *Engine) logCommand(s *session.Session, in session.Inbound, command string) {
	e.logger.Info("command",
		zap.Int64("chat_id", s.ChatID),
		zap.String("from", in.Sender),
		zap.String("command", command),
	)
	e.logEvent(db.EventCommandHandled, map[string]any{"chat_id": s.ChatID, "command": command})
}

// renderHistory formats the session history for display. Entry contents are
// clipped to 100 chars for readability; the stored entries are untouched.
func (e *Engine) renderHistory(s *session.Session) string {
	if s.History.IsEmpty() {
		return replyNoHistory
	}
	var b strings.Builder
	b.WriteString(historyHeader)
	for entry := range s.History.All() {
		fmt.Fprintf(&b, "%s: %s\n\n", capitalize(string(entry.Role)), clipDisplay(entry.Content, 100))
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// clipDisplay bounds s to max chars total, ellipsis included.
func clipDisplay(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
