package session

import (
	"sync"
	"time"

	"github.com/stupiduntilnot/relaybot/internal/history"
)

// State is the session's routing mode. Free text is persona payload in
// StateAwaitingPersona and a chat turn in StateNormal; keeping this an
// explicit enum means the router switches on it instead of trusting a flag.
type State int

const (
	StateNormal State = iota
	StateAwaitingPersona
)

// Inbound is one queued message awaiting the session worker.
type Inbound struct {
	Text   string
	Sender string
}

// Session owns all mutable state for one chat: the bounded history window,
// the persona instruction, and the capture mode. Messages for a session are
// processed strictly in arrival order by a single worker.
type Session struct {
	ChatID  int64
	History *history.Buffer

	mu       sync.Mutex
	state    State
	persona  string
	lastSeen time.Time

	inbox chan Inbound
	quit  chan struct{}
}

// BeginPersonaCapture switches the session into persona capture. Idempotent.
func (s *Session) BeginPersonaCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateAwaitingPersona
}

// CancelPersonaCapture returns to normal chat without touching the stored
// persona. Idempotent.
func (s *Session) CancelPersonaCapture() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateNormal
}

// SetPersona stores the persona instruction and returns to normal chat.
func (s *Session) SetPersona(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persona = text
	s.state = StateNormal
}

// ResetPersona clears the persona instruction and returns to normal chat.
// History is not touched.
func (s *Session) ResetPersona() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persona = ""
	s.state = StateNormal
}

// AwaitingPersona reports whether the next free-text message is a persona
// payload.
func (s *Session) AwaitingPersona() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAwaitingPersona
}

// Persona returns the current persona instruction ("" when unset).
func (s *Session) Persona() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}
