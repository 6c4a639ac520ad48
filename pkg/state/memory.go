package state

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
)

var _ StateManager = &InMemoryStateManager{}

type InMemoryStateManager struct {
	lock    sync.RWMutex
	players map[string]*gametypes.Player
	rounds  []gametypes.Round
}

func NewInMemoryStateManager() *InMemoryStateManager {
	return &InMemoryStateManager{
		players: make(map[string]*gametypes.Player),
	}
}

func (m *InMemoryStateManager) Load(players []gametypes.Player, rounds []gametypes.Round) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.players = make(map[string]*gametypes.Player, len(players))
	for i := range players {
		p := players[i].Copy()
		// nobody is connected to a freshly started process
		p.Online = false
		m.players[p.Name] = p
	}

	m.rounds = make([]gametypes.Round, len(rounds))
	copy(m.rounds, rounds)
	sort.SliceStable(m.rounds, func(i, j int) bool {
		return m.rounds[i].ID < m.rounds[j].ID
	})
}

func (m *InMemoryStateManager) CurrentRound() (gametypes.Round, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if len(m.rounds) == 0 {
		return gametypes.Round{}, ErrNoRound
	}
	return m.rounds[len(m.rounds)-1], nil
}

func (m *InMemoryStateManager) PreviousRound() (gametypes.Round, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if len(m.rounds) < 2 {
		return gametypes.Round{}, false
	}
	return m.rounds[len(m.rounds)-2], true
}

func (m *InMemoryStateManager) StartRound(word string, at time.Time) gametypes.Round {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.appendRoundLocked(word, at)
}

func (m *InMemoryStateManager) appendRoundLocked(word string, at time.Time) gametypes.Round {
	var id int64 = 1
	if n := len(m.rounds); n > 0 {
		id = m.rounds[n-1].ID + 1
		// keep the log strictly ordered even if the clock steps backwards
		if last := m.rounds[n-1].StartedAt; !at.After(last) {
			at = last.Add(time.Nanosecond)
		}
	}
	round := gametypes.Round{
		ID:        id,
		Word:      word,
		StartedAt: at,
	}
	m.rounds = append(m.rounds, round)
	return round
}

func (m *InMemoryStateManager) CompareAndRotate(expected, next string, summary gametypes.RoundSummary, at time.Time) (gametypes.Round, gametypes.Round, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	n := len(m.rounds)
	if n == 0 {
		return gametypes.Round{}, gametypes.Round{}, false
	}
	current := &m.rounds[n-1]
	if current.Completed() || !strings.EqualFold(current.Word, expected) {
		return gametypes.Round{}, *current, false
	}

	if !at.After(current.StartedAt) {
		at = current.StartedAt.Add(time.Nanosecond)
	}
	current.CompletedAt = at
	current.CompletedBy = summary.CompletedBy
	current.CompletedFrom = summary.CompletedFrom
	current.CompletedIn = summary.CompletedIn
	current.Path = append([]string(nil), summary.Path...)
	completed := *current

	started := m.appendRoundLocked(next, at)
	return completed, started, true
}

func (m *InMemoryStateManager) UpsertPlayer(name string) (gametypes.Player, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if p, ok := m.players[name]; ok {
		return *p.Copy(), false
	}
	p := &gametypes.Player{
		Name: name,
		Path: []string{},
	}
	m.players[name] = p
	return *p.Copy(), true
}

func (m *InMemoryStateManager) Player(name string) (gametypes.Player, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	p, ok := m.players[name]
	if !ok {
		return gametypes.Player{}, false
	}
	return *p.Copy(), true
}

func (m *InMemoryStateManager) SetOnline(name string, online bool) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	p, ok := m.players[name]
	if !ok {
		return fmt.Errorf("failed to set online status for %q: %w", name, ErrUnknownPlayer)
	}
	p.Online = online
	return nil
}

func (m *InMemoryStateManager) AppendPath(name, word string) ([]string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	p, ok := m.players[name]
	if !ok {
		return nil, fmt.Errorf("failed to append to path of %q: %w", name, ErrUnknownPlayer)
	}
	p.Path = append(p.Path, word)
	path := make([]string, len(p.Path))
	copy(path, p.Path)
	return path, nil
}

func (m *InMemoryStateManager) ClearPaths() []gametypes.Player {
	m.lock.Lock()
	defer m.lock.Unlock()
	changed := make([]gametypes.Player, 0)
	for _, p := range m.players {
		if len(p.Path) == 0 {
			continue
		}
		p.Path = []string{}
		changed = append(changed, *p.Copy())
	}
	return changed
}

func (m *InMemoryStateManager) AddPoints(name string, points int) (int, error) {
	if points < 0 {
		return 0, fmt.Errorf("points must not be negative: %d", points)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	p, ok := m.players[name]
	if !ok {
		return 0, fmt.Errorf("failed to add points to %q: %w", name, ErrUnknownPlayer)
	}
	p.Points += points
	return p.Points, nil
}

func (m *InMemoryStateManager) OnlineCount() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	count := 0
	for _, p := range m.players {
		if p.Online {
			count++
		}
	}
	return count
}

// Players returns a copy of every player, ordered by name.
func (m *InMemoryStateManager) Players() []gametypes.Player {
	m.lock.RLock()
	defer m.lock.RUnlock()
	players := make([]gametypes.Player, 0, len(m.players))
	for _, p := range m.players {
		players = append(players, *p.Copy())
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Name < players[j].Name
	})
	return players
}

// Leaderboard returns the top n players by points, ties broken by name.
func (m *InMemoryStateManager) Leaderboard(n int) []gametypes.LeaderboardEntry {
	m.lock.RLock()
	entries := make([]gametypes.LeaderboardEntry, 0, len(m.players))
	for _, p := range m.players {
		entries = append(entries, gametypes.LeaderboardEntry{
			Name:   p.Name,
			Points: p.Points,
		})
	}
	m.lock.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Name < entries[j].Name
	})
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
