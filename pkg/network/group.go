package network

import (
	"sync"

	"github.com/cbodonnell/wordrush/pkg/log"
)

// Group is the set of sessions that receive broadcasts.
type Group struct {
	lock     sync.RWMutex
	sessions map[string]*Session
}

func NewGroup() *Group {
	return &Group{
		sessions: make(map[string]*Session),
	}
}

// Add is idempotent.
func (g *Group) Add(s *Session) {
	g.lock.Lock()
	defer g.lock.Unlock()
	g.sessions[s.ID] = s
}

// Remove is idempotent.
func (g *Group) Remove(s *Session) {
	g.lock.Lock()
	defer g.lock.Unlock()
	delete(g.sessions, s.ID)
}

func (g *Group) Len() int {
	g.lock.RLock()
	defer g.lock.RUnlock()
	return len(g.sessions)
}

func (g *Group) snapshot() []*Session {
	g.lock.RLock()
	defer g.lock.RUnlock()
	sessions := make([]*Session, 0, len(g.sessions))
	for _, s := range g.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

type FanoutResult struct {
	Delivered int
	Dropped   int
}

// Broadcast queues payload on every member. A member that is closed or
// cannot keep up misses this payload; the others are unaffected.
func (g *Group) Broadcast(payload []byte) FanoutResult {
	var result FanoutResult
	for _, s := range g.snapshot() {
		if err := s.Deliver(payload); err != nil {
			log.Warn("Dropped broadcast for session %s (%s): %v", s.ID, s.Identity, err)
			result.Dropped++
			continue
		}
		result.Delivered++
	}
	return result
}
