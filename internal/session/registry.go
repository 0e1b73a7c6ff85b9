package session

import (
	"sync"
	"time"

	"github.com/stupiduntilnot/relaybot/internal/history"
)

// DefaultQueueDepth is the per-session inbox capacity.
const DefaultQueueDepth = 16

// Handler processes one inbound message for a session. It runs on the
// session's worker goroutine, so it never races another turn of the same
// session.
type Handler func(s *Session, in Inbound)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	HistoryCapacity int
	QueueDepth      int
	Handler         Handler
	OnCreate        func(*Session)
	OnEvict         func(*Session)
}

// Registry owns the live sessions, keyed by chat id. Sessions are created
// on first use; each one gets a worker goroutine that drains its inbox in
// FIFO order, so turns for one chat apply in arrival order while different
// chats proceed in parallel.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	cfg      RegistryConfig
	wg       sync.WaitGroup
	closed   bool
}

// NewRegistry creates an empty registry. cfg.Handler must be set.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = history.DefaultCapacity
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	return &Registry{
		sessions: make(map[int64]*Session),
		cfg:      cfg,
	}
}

// Get returns the session for chatID, creating it on first use.
func (r *Registry) Get(chatID int64) *Session {
	r.mu.Lock()
	s, ok := r.sessions[chatID]
	if !ok && !r.closed {
		s = &Session{
			ChatID:   chatID,
			History:  history.NewBuffer(r.cfg.HistoryCapacity),
			lastSeen: time.Now(),
			inbox:    make(chan Inbound, r.cfg.QueueDepth),
			quit:     make(chan struct{}),
		}
		r.sessions[chatID] = s
		r.wg.Add(1)
		go r.run(s)
		if r.cfg.OnCreate != nil {
			r.cfg.OnCreate(s)
		}
	}
	r.mu.Unlock()
	return s
}

// Dispatch enqueues a message for its session. If the session is evicted
// while the message is waiting for a slot, the message is re-dispatched to
// a fresh session.
func (r *Registry) Dispatch(chatID int64, in Inbound) {
	for {
		s := r.Get(chatID)
		if s == nil {
			return
		}
		s.touch(time.Now())
		select {
		case s.inbox <- in:
			return
		case <-s.quit:
		}
	}
}

func (r *Registry) run(s *Session) {
	defer r.wg.Done()
	for {
		select {
		case in := <-s.inbox:
			r.cfg.Handler(s, in)
		case <-s.quit:
			// Drain anything that raced the shutdown, then exit.
			for {
				select {
				case in := <-s.inbox:
					r.cfg.Handler(s, in)
				default:
					return
				}
			}
		}
	}
}

// EvictIdle removes sessions idle for longer than ttl and stops their
// workers. Sessions with queued messages are skipped. Returns the number
// of evicted sessions.
func (r *Registry) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	now := time.Now()
	var evicted []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if len(s.inbox) > 0 {
			continue
		}
		if s.idleSince(now) > ttl {
			delete(r.sessions, id)
			evicted = append(evicted, s)
		}
	}
	r.mu.Unlock()
	for _, s := range evicted {
		close(s.quit)
		if r.cfg.OnEvict != nil {
			r.cfg.OnEvict(s)
		}
	}
	return len(evicted)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops every session worker and waits for in-flight turns to finish.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[int64]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		close(s.quit)
	}
	r.wg.Wait()
}
