package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ArowuTest/xoso-live-backend/internal/models"
)

// Session is one subscriber's live connection: a buffered event channel the
// transport handler drains, plus activity bookkeeping for the idle sweep.
// A session belongs to exactly one registry bucket.
type Session struct {
	ID  string
	Key string

	events chan models.LiveMessage

	mu         sync.Mutex
	lastActive time.Time
	closed     bool
}

func newSession(key string, buffer int) *Session {
	if buffer <= 0 {
		buffer = 32
	}
	return &Session{
		ID:         uuid.NewString(),
		Key:        key,
		events:     make(chan models.LiveMessage, buffer),
		lastActive: time.Now(),
	}
}

// Events returns the channel the transport handler reads live updates
// from. It is closed when the session is removed from its bucket.
func (s *Session) Events() <-chan models.LiveMessage {
	return s.events
}

// Touch records transport activity; the idle sweep spares recently-touched
// sessions.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// idleSince reports the last activity timestamp.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// send delivers one message without blocking. A full buffer means the
// subscriber has stopped draining; the session is reported dead so the
// bucket can drop it while delivery to the others continues.
func (s *Session) send(msg models.LiveMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- msg:
		return true
	default:
		return false
	}
}

// close marks the session dead and closes its event channel. Idempotent.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}
