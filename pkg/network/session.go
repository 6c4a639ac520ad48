package network

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const (
	// SessionSendBufferSize is the default number of outbound frames a session buffers
	SessionSendBufferSize = 64
)

var (
	ErrSessionClosed  = errors.New("session closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Session is one live connection. Outbound frames are queued with Send and
// written to the socket by a single writer goroutine.
type Session struct {
	ID       string
	Identity string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	// lock orders Send against Close so nothing is queued after close
	lock sync.Mutex

	// while holding, group broadcasts wait in held until ReleaseBroadcasts
	holding bool
	held    [][]byte
}

func NewSession(identity string, bufferSize int) *Session {
	if bufferSize < 1 {
		bufferSize = SessionSendBufferSize
	}
	return &Session{
		ID:       uuid.NewString(),
		Identity: identity,
		send:     make(chan []byte, bufferSize),
		done:     make(chan struct{}),
	}
}

// Send queues payload without blocking.
func (s *Session) Send(payload []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.sendLocked(payload)
}

func (s *Session) sendLocked(payload []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Deliver queues a group broadcast. While broadcasts are held it is kept
// back, up to the send buffer size, and queued by ReleaseBroadcasts.
func (s *Session) Deliver(payload []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.holding {
		return s.sendLocked(payload)
	}
	if s.Closed() {
		return ErrSessionClosed
	}
	if len(s.held) >= cap(s.send) {
		return ErrSendBufferFull
	}
	s.held = append(s.held, payload)
	return nil
}

// HoldBroadcasts keeps group broadcasts back until ReleaseBroadcasts, so a
// private frame such as the welcome can be queued ahead of them.
func (s *Session) HoldBroadcasts() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.holding = true
}

// ReleaseBroadcasts queues the held broadcasts in arrival order and stops holding.
func (s *Session) ReleaseBroadcasts() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.holding = false
	held := s.held
	s.held = nil
	for i, payload := range held {
		if err := s.sendLocked(payload); err != nil {
			return fmt.Errorf("released %d of %d held broadcasts: %w", i, len(held), err)
		}
	}
	return nil
}

// Outbound is drained by the writer.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close marks the session closed. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.lock.Lock()
		close(s.done)
		s.lock.Unlock()
	})
}

func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
