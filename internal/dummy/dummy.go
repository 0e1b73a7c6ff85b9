package dummy

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	cmdpkg "github.com/stupiduntilnot/relaybot/internal/commander"
	ctxpkg "github.com/stupiduntilnot/relaybot/internal/context"
	"github.com/stupiduntilnot/relaybot/internal/model"
)

// Script grammar: comma-separated actions, one consumed per call, the last
// action repeating forever. Actions: "ok", "err:<detail>", "sleep:<ms>",
// "msg:<text>".

type action struct {
	kind string
	arg  string
}

func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		switch {
		case token == "ok":
			actions = append(actions, action{kind: "ok"})
		case strings.HasPrefix(token, "err:"):
			actions = append(actions, action{kind: "err", arg: strings.TrimPrefix(token, "err:")})
		case strings.HasPrefix(token, "sleep:"):
			actions = append(actions, action{kind: "sleep", arg: strings.TrimPrefix(token, "sleep:")})
		case strings.HasPrefix(token, "msg:"):
			actions = append(actions, action{kind: "msg", arg: strings.TrimPrefix(token, "msg:")})
		default:
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

// Commander is a scriptable in-process transport for tests and
// credential-less local runs. Sent messages are recorded per chat.
type Commander struct {
	mu       sync.Mutex
	poll     *scriptRunner
	send     *scriptRunner
	updateID int64
	sent     map[int64][]string
}

func NewCommander(pollScript, sendScript string) (*Commander, error) {
	poll, err := newRunner(pollScript)
	if err != nil {
		return nil, err
	}
	send, err := newRunner(sendScript)
	if err != nil {
		return nil, err
	}
	return &Commander{poll: poll, send: send, updateID: 1, sent: map[int64][]string{}}, nil
}

func (c *Commander) GetUpdates(offset int64, timeout int) ([]cmdpkg.Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.poll.next()
	switch a.kind {
	case "err":
		return nil, fmt.Errorf("dummy commander error: %s", emptyAs(a.arg, "poll"))
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
		return nil, nil
	case "msg":
		text := a.arg
		c.updateID++
		return []cmdpkg.Update{
			{
				UpdateID: c.updateID,
				Message: &cmdpkg.Message{
					Chat: cmdpkg.Chat{ID: 1},
					From: &cmdpkg.User{Username: "dummy"},
					Text: &text,
					Date: time.Now().Unix(),
				},
			},
		}, nil
	default:
		return nil, nil
	}
}

func (c *Commander) SendMessage(chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.send.next()
	switch a.kind {
	case "err":
		return fmt.Errorf("dummy commander send error: %s", emptyAs(a.arg, "send"))
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
	}
	c.sent[chatID] = append(c.sent[chatID], text)
	return nil
}

// Sent returns a copy of everything sent to the given chat.
func (c *Commander) Sent(chatID int64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent[chatID]))
	copy(out, c.sent[chatID])
	return out
}

// Provider is a scriptable completion provider.
type Provider struct {
	mu     sync.Mutex
	script *scriptRunner
}

func NewProvider(script string) (*Provider, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Provider{script: runner}, nil
}

func (p *Provider) ChatCompletion(messages []ctxpkg.Message) (model.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a := p.script.next()
	switch a.kind {
	case "err":
		return model.CompletionResponse{}, fmt.Errorf("dummy provider error: %s", emptyAs(a.arg, "completion"))
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
		return model.CompletionResponse{Content: "dummy-after-sleep", PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, nil
	case "msg":
		return model.CompletionResponse{Content: a.arg, PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, nil
	default:
		return model.CompletionResponse{Content: "dummy-ok", PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, nil
	}
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
