package game

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
	"github.com/cbodonnell/wordrush/pkg/messages"
	"github.com/cbodonnell/wordrush/pkg/oracle"
	"github.com/cbodonnell/wordrush/pkg/queue"
	"github.com/cbodonnell/wordrush/pkg/repositories"
	"github.com/cbodonnell/wordrush/pkg/state"
	"github.com/cbodonnell/wordrush/pkg/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStarterWords = []string{"cat", "man", "building", "helicopter", "plane", "dog"}

type staticSuggester []string

func (s staticSuggester) Suggest(ctx context.Context, word string, path []string) []string {
	return append([]string{}, s...)
}

type testGame struct {
	coordinator  *Coordinator
	stateManager *state.InMemoryStateManager
	broadcasts   *queue.UnboundedQueue[workers.BroadcastMessage]
	saves        chan workers.SaveRequest
}

func newTestGame(t *testing.T, target string, bank []string, suggester Suggester) *testGame {
	sm := state.NewInMemoryStateManager()
	if target != "" {
		sm.StartRound(target, time.Now())
	}
	if suggester == nil {
		suggester = staticSuggester{"one", "two"}
	}
	broadcasts := queue.NewUnboundedQueue[workers.BroadcastMessage]()
	saves := make(chan workers.SaveRequest, 1024)
	c, err := NewCoordinator(NewCoordinatorOptions{
		StateManager:          sm,
		Suggester:             suggester,
		BroadcastMessageQueue: broadcasts,
		SaveRequestChan:       saves,
		TargetWords:           bank,
		StarterWords:          testStarterWords,
		Rand:                  rand.New(rand.NewSource(42)),
	})
	require.NoError(t, err)
	require.NoError(t, c.Initialize(context.Background()))
	return &testGame{
		coordinator:  c,
		stateManager: sm,
		broadcasts:   broadcasts,
		saves:        saves,
	}
}

func (g *testGame) join(t *testing.T, identities ...string) {
	for _, identity := range identities {
		_, err := g.coordinator.Join(context.Background(), identity)
		require.NoError(t, err)
	}
}

func (g *testGame) player(t *testing.T, identity string) gametypes.Player {
	p, ok := g.stateManager.Player(identity)
	require.True(t, ok)
	return p
}

func (g *testGame) target(t *testing.T) gametypes.Round {
	current, err := g.stateManager.CurrentRound()
	require.NoError(t, err)
	return current
}

func TestNewCoordinator_wordBankTooSmall(t *testing.T) {
	tests := []struct {
		name string
		bank []string
	}{
		{name: "empty", bank: nil},
		{name: "one word", bank: []string{"house"}},
		{name: "case duplicates", bank: []string{"house", "House", " HOUSE "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCoordinator(NewCoordinatorOptions{
				Suggester:   staticSuggester{},
				TargetWords: tt.bank,
			})
			assert.True(t, errors.Is(err, ErrWordBankTooSmall))
		})
	}
}

func TestCoordinator_Initialize_startsRound(t *testing.T) {
	g := newTestGame(t, "", []string{"house", "garden"}, nil)
	current := g.target(t)
	assert.Contains(t, []string{"house", "garden"}, current.Word)
	assert.Equal(t, int64(1), current.ID)

	select {
	case req := <-g.saves:
		require.Len(t, req.Rounds, 1)
		assert.Equal(t, current.Word, req.Rounds[0].Word)
	default:
		t.Fatal("expected the new round to be saved")
	}
}

func TestCoordinator_Initialize_restoresFromRepository(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewInMemoryRepository()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SavePlayers(ctx, []gametypes.Player{{Name: "alice", Points: 7, Path: []string{"cat"}}}))
	require.NoError(t, repo.SaveRounds(ctx, []gametypes.Round{
		{ID: 1, Word: "house", StartedAt: start, CompletedAt: start.Add(time.Minute), CompletedBy: "alice", CompletedFrom: "man", CompletedIn: 4},
		{ID: 2, Word: "garden", StartedAt: start.Add(time.Minute)},
	}))

	c, err := NewCoordinator(NewCoordinatorOptions{
		Repository:   repo,
		Suggester:    staticSuggester{},
		TargetWords:  []string{"house", "garden"},
		StarterWords: testStarterWords,
	})
	require.NoError(t, err)
	require.NoError(t, c.Initialize(ctx))

	welcome, err := c.Join(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "garden", welcome.TargetWord)
	assert.Equal(t, "house", welcome.PreviousTargetWord)
	assert.Equal(t, "man", welcome.CompletedFrom)
	assert.Equal(t, 4, welcome.CompletedIn)
	assert.Equal(t, []gametypes.LeaderboardEntry{{Name: "alice", Points: 7}, {Name: "bob", Points: 0}}, welcome.Leaderboard)
	assert.Equal(t, 1, welcome.ActiveUsers)
}

func TestCoordinator_Join(t *testing.T) {
	g := newTestGame(t, "house", []string{"house", "garden"}, nil)

	welcome, err := g.coordinator.Join(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "house", welcome.TargetWord)
	assert.Empty(t, welcome.PreviousTargetWord)
	assert.Len(t, welcome.StarterWords, 4)
	assert.Subset(t, testStarterWords, welcome.StarterWords)
	seen := map[string]bool{}
	for _, w := range welcome.StarterWords {
		assert.False(t, seen[w], "starter word %s drawn twice", w)
		seen[w] = true
	}
	assert.Equal(t, 1, welcome.ActiveUsers)
	assert.Equal(t, []gametypes.LeaderboardEntry{{Name: "alice", Points: 0}}, welcome.Leaderboard)

	p := g.player(t, "alice")
	assert.True(t, p.Online)
	assert.Equal(t, []string{}, p.Path)

	pending := g.broadcasts.ReadAllMessages()
	require.Len(t, pending, 1)
	assert.Equal(t, messages.MessageTypeServerActiveUsers, pending[0].Type)
	activeUsers := pending[0].Message.(*messages.ActiveUsers)
	assert.Equal(t, 1, activeUsers.ActiveUsers)

	_, err = g.coordinator.Join(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyIdentity)
}

func TestCoordinator_Leave(t *testing.T) {
	g := newTestGame(t, "house", []string{"house", "garden"}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, g.coordinator.Leave(ctx, "ghost"), ErrNotJoined)
	assert.Empty(t, g.broadcasts.ReadAllMessages())

	// two tabs for the same player
	g.join(t, "alice", "alice", "bob")
	g.broadcasts.ClearQueue()

	require.NoError(t, g.coordinator.Leave(ctx, "alice"))
	assert.True(t, g.player(t, "alice").Online)
	require.NoError(t, g.coordinator.Disconnect(ctx, "alice"))
	assert.False(t, g.player(t, "alice").Online)
	assert.ErrorIs(t, g.coordinator.Disconnect(ctx, "alice"), ErrNotJoined)

	pending := g.broadcasts.ReadAllMessages()
	require.Len(t, pending, 2)
	assert.Equal(t, 2, pending[0].Message.(*messages.ActiveUsers).ActiveUsers)
	assert.Equal(t, 1, pending[1].Message.(*messages.ActiveUsers).ActiveUsers)
	assert.Equal(t, 1, g.coordinator.Status().ActiveUsers)
}

func TestCoordinator_SelectWord_notJoined(t *testing.T) {
	g := newTestGame(t, "house", []string{"house", "garden"}, nil)
	ctx := context.Background()

	_, err := g.coordinator.SelectWord(ctx, "ghost", "house")
	assert.ErrorIs(t, err, ErrNotJoined)
	_, ok := g.stateManager.Player("ghost")
	assert.False(t, ok)
	assert.Equal(t, "house", g.target(t).Word)

	// a player who left is no longer joined either
	g.join(t, "alice")
	require.NoError(t, g.coordinator.Leave(ctx, "alice"))
	_, err = g.coordinator.SelectWord(ctx, "alice", "dog")
	assert.ErrorIs(t, err, ErrNotJoined)
	assert.Empty(t, g.player(t, "alice").Path)

	g.join(t, "alice")
	_, err = g.coordinator.SelectWord(ctx, "alice", "  ")
	assert.ErrorIs(t, err, ErrEmptyWord)
}

func TestCoordinator_SelectWord_pathAccumulates(t *testing.T) {
	g := newTestGame(t, "house", []string{"house", "garden"}, nil)
	g.join(t, "alice")
	g.broadcasts.ClearQueue()

	words := []string{"cat", "dog", "kennel", "roof"}
	for i, w := range words {
		result, err := g.coordinator.SelectWord(context.Background(), "alice", w)
		require.NoError(t, err)
		assert.False(t, result.Completed)
		assert.Equal(t, []string{"one", "two"}, result.Options)
		assert.Equal(t, words[:i+1], g.player(t, "alice").Path)
	}
	assert.Empty(t, g.broadcasts.ReadAllMessages())
}

func TestCoordinator_SelectWord_completion(t *testing.T) {
	g := newTestGame(t, "house", []string{"house", "garden"}, nil)
	ctx := context.Background()
	g.join(t, "alice")
	for len(g.saves) > 0 {
		<-g.saves
	}

	for _, w := range []string{"cat", "dog"} {
		_, err := g.coordinator.SelectWord(ctx, "alice", w)
		require.NoError(t, err)
	}
	g.broadcasts.ClearQueue()

	result, err := g.coordinator.SelectWord(ctx, "alice", "house")
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, "garden", result.TargetWord)
	assert.Nil(t, result.Options)

	alice := g.player(t, "alice")
	assert.Equal(t, 1, alice.Points)
	assert.Empty(t, alice.Path)

	previous, ok := g.stateManager.PreviousRound()
	require.True(t, ok)
	assert.Equal(t, "house", previous.Word)
	assert.Equal(t, "cat", previous.CompletedFrom)
	assert.Equal(t, 3, previous.CompletedIn)
	assert.Equal(t, "alice", previous.CompletedBy)
	assert.Equal(t, []string{"cat", "dog", "house"}, previous.Path)
	assert.Equal(t, "garden", g.target(t).Word)

	pending := g.broadcasts.ReadAllMessages()
	require.Len(t, pending, 1)
	assert.Equal(t, messages.MessageTypeServerNewTarget, pending[0].Type)
	assert.Equal(t, &messages.NewTargetWord{
		TargetWord:         "garden",
		Leaderboard:        []gametypes.LeaderboardEntry{{Name: "alice", Points: 1}},
		CompletedFrom:      "cat",
		CompletedIn:        3,
		PreviousTargetWord: "house",
	}, pending[0].Message)

	require.Len(t, g.saves, 1)
	req := <-g.saves
	require.Len(t, req.Rounds, 2)
	assert.True(t, req.Rounds[0].Completed())
	assert.Equal(t, []string{"cat", "dog", "house"}, req.Rounds[0].Path)
	assert.Equal(t, "garden", req.Rounds[1].Word)
	require.Len(t, req.Players, 1)
	assert.Equal(t, 1, req.Players[0].Points)

	welcome, err := g.coordinator.Join(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "garden", welcome.TargetWord)
	assert.Equal(t, "house", welcome.PreviousTargetWord)
	assert.Equal(t, "cat", welcome.CompletedFrom)
	assert.Equal(t, 3, welcome.CompletedIn)
}

func TestCoordinator_SelectWord_caseInsensitiveTarget(t *testing.T) {
	g := newTestGame(t, "Obama", []string{"Obama", "Frost"}, nil)
	g.join(t, "alice")

	result, err := g.coordinator.SelectWord(context.Background(), "alice", "obama")
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, "Frost", result.TargetWord)
}

func TestCoordinator_SelectWord_roundReset(t *testing.T) {
	g := newTestGame(t, "house", []string{"house", "garden", "light"}, nil)
	ctx := context.Background()
	g.join(t, "alice", "bob", "carol")
	require.NoError(t, g.coordinator.Leave(ctx, "carol"))

	// carol keeps a path while offline
	g.stateManager.AppendPath("carol", "tree")
	for _, w := range []string{"dog", "cat"} {
		_, err := g.coordinator.SelectWord(ctx, "bob", w)
		require.NoError(t, err)
	}
	_, err := g.coordinator.SelectWord(ctx, "alice", "roof")
	require.NoError(t, err)

	result, err := g.coordinator.SelectWord(ctx, "alice", "house")
	require.NoError(t, err)
	require.True(t, result.Completed)

	for _, name := range []string{"alice", "bob", "carol"} {
		assert.Empty(t, g.player(t, name).Path, "path of %s", name)
	}
	assert.Equal(t, []gametypes.LeaderboardEntry{
		{Name: "alice", Points: 2},
		{Name: "bob", Points: 0},
		{Name: "carol", Points: 0},
	}, g.coordinator.Status().Leaderboard)
}

func TestCoordinator_SelectWord_newTargetAlternates(t *testing.T) {
	g := newTestGame(t, "house", []string{"house", "garden"}, nil)
	g.join(t, "alice")

	expected := "house"
	for i := 0; i < 10; i++ {
		result, err := g.coordinator.SelectWord(context.Background(), "alice", expected)
		require.NoError(t, err)
		require.True(t, result.Completed)
		assert.NotEqual(t, expected, result.TargetWord)
		if expected == "house" {
			expected = "garden"
		} else {
			expected = "house"
		}
		assert.Equal(t, expected, result.TargetWord)
	}
	assert.Equal(t, 10, g.player(t, "alice").Points)
}

func TestCoordinator_SelectWord_newTargetNeverRepeats(t *testing.T) {
	bank := []string{"house", "Obama", "garden", "garbage", "light", "Frost"}
	g := newTestGame(t, "house", bank, nil)
	g.join(t, "alice")

	for i := 0; i < 50; i++ {
		current := g.target(t).Word
		result, err := g.coordinator.SelectWord(context.Background(), "alice", current)
		require.NoError(t, err)
		require.True(t, result.Completed)
		assert.NotEqual(t, current, result.TargetWord)
		assert.Contains(t, bank, result.TargetWord)
	}
}

func TestCoordinator_SelectWord_atMostOneCompletion(t *testing.T) {
	const players = 32
	g := newTestGame(t, "house", []string{"house", "garden"}, nil)
	names := make([]string, players)
	for i := range names {
		names[i] = string(rune('a'+i%26)) + string(rune('A'+i/26))
	}
	g.join(t, names...)
	g.broadcasts.ClearQueue()

	var wg sync.WaitGroup
	results := make([]gametypes.SelectResult, players)
	start := make(chan struct{})
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			<-start
			result, err := g.coordinator.SelectWord(context.Background(), name, "house")
			assert.NoError(t, err)
			results[i] = result
		}(i, name)
	}
	close(start)
	wg.Wait()

	winners := 0
	winner := ""
	for i, result := range results {
		if result.Completed {
			winners++
			winner = names[i]
		} else {
			assert.NotNil(t, result.Options)
		}
	}
	require.Equal(t, 1, winners)

	current := g.target(t)
	assert.Equal(t, int64(2), current.ID)
	assert.Equal(t, "garden", current.Word)
	previous, ok := g.stateManager.PreviousRound()
	require.True(t, ok)
	assert.Equal(t, winner, previous.CompletedBy)

	for _, name := range names {
		p := g.player(t, name)
		if name == winner {
			assert.Equal(t, players, p.Points)
			assert.Empty(t, p.Path)
		} else {
			assert.Equal(t, 0, p.Points)
			assert.Equal(t, []string{"house"}, p.Path)
		}
	}

	completions := 0
	for _, msg := range g.broadcasts.ReadAllMessages() {
		if msg.Type == messages.MessageTypeServerNewTarget {
			completions++
		}
	}
	assert.Equal(t, 1, completions)
}

func TestCoordinator_twoPlayersRaceForTarget(t *testing.T) {
	g := newTestGame(t, "house", []string{"house", "garden"}, nil)
	g.join(t, "p1", "p2")

	var wg sync.WaitGroup
	results := make(map[string]gametypes.SelectResult)
	var lock sync.Mutex
	for _, name := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			result, err := g.coordinator.SelectWord(context.Background(), name, "house")
			assert.NoError(t, err)
			lock.Lock()
			results[name] = result
			lock.Unlock()
		}(name)
	}
	wg.Wait()

	winner, loser := "p1", "p2"
	if !results[winner].Completed {
		winner, loser = loser, winner
	}
	require.True(t, results[winner].Completed)
	require.False(t, results[loser].Completed)

	assert.Equal(t, "garden", results[winner].TargetWord)
	assert.Equal(t, 2, g.player(t, winner).Points)
	assert.Equal(t, 0, g.player(t, loser).Points)
	assert.Equal(t, []string{"house"}, g.player(t, loser).Path)
	assert.Equal(t, "garden", g.target(t).Word)
}

func TestCoordinator_SelectWord_neverOffersVisitedWords(t *testing.T) {
	o := oracle.StaticOracle{
		"kennel": {"dog", "Dogs", "cat", "kennels", "barn", "shelter", "crate", "leash"},
	}
	suggester, err := oracle.NewSuggester(oracle.NewSuggesterOptions{
		Oracle:     o,
		Lemmatizer: pluralLemmatizer{},
		Rand:       rand.New(rand.NewSource(7)),
	})
	require.NoError(t, err)
	g := newTestGame(t, "house", []string{"house", "garden"}, suggester)
	g.join(t, "alice")

	ctx := context.Background()
	for _, w := range []string{"dog", "cat"} {
		_, err := g.coordinator.SelectWord(ctx, "alice", w)
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		result, err := g.coordinator.SelectWord(ctx, "alice", "kennel")
		require.NoError(t, err)
		assert.Len(t, result.Options, 4)
		for _, option := range result.Options {
			assert.NotContains(t, []string{"dog", "dogs", "cat", "kennel", "kennels"}, option)
		}
	}
}

// pluralLemmatizer strips a trailing "s" so tests do not load the dictionary.
type pluralLemmatizer struct{}

func (pluralLemmatizer) Lemma(word string) string {
	return strings.TrimSuffix(strings.ToLower(word), "s")
}

type failingOracle struct{}

func (failingOracle) NearestNeighbors(ctx context.Context, word string, n int) ([]string, error) {
	return nil, errors.New("oracle unavailable")
}

func TestCoordinator_SelectWord_oracleFailure(t *testing.T) {
	suggester, err := oracle.NewSuggester(oracle.NewSuggesterOptions{Oracle: failingOracle{}})
	require.NoError(t, err)
	g := newTestGame(t, "house", []string{"house", "garden"}, suggester)
	g.join(t, "alice")

	result, err := g.coordinator.SelectWord(context.Background(), "alice", "dog")
	require.NoError(t, err)
	assert.False(t, result.Completed)
	assert.NotNil(t, result.Options)
	assert.Empty(t, result.Options)
	assert.Equal(t, []string{"dog"}, g.player(t, "alice").Path)
}

type blockingSuggester struct {
	entered chan struct{}
}

func (s *blockingSuggester) Suggest(ctx context.Context, word string, path []string) []string {
	s.entered <- struct{}{}
	<-ctx.Done()
	return nil
}

func TestCoordinator_SelectWord_lookupOutsideLock(t *testing.T) {
	suggester := &blockingSuggester{entered: make(chan struct{}, 1)}
	g := newTestGame(t, "house", []string{"house", "garden"}, suggester)
	g.join(t, "alice", "bob")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan gametypes.SelectResult)
	go func() {
		result, err := g.coordinator.SelectWord(ctx, "alice", "dog")
		assert.NoError(t, err)
		done <- result
	}()
	<-suggester.entered

	// bob can still complete the round while alice's lookup is pending
	result, err := g.coordinator.SelectWord(context.Background(), "bob", "house")
	require.NoError(t, err)
	assert.True(t, result.Completed)

	cancel()
	select {
	case result := <-done:
		assert.Equal(t, []string{}, result.Options)
	case <-time.After(5 * time.Second):
		t.Fatal("lookup was not abandoned")
	}
}

func TestCoordinator_SelectWord_completionSurvivesBacklog(t *testing.T) {
	g := newTestGame(t, "house", []string{"house", "garden"}, nil)
	g.join(t, "alice")
	g.broadcasts.ClearQueue()

	// a backlog far beyond any fixed buffer, e.g. a stalled broadcast worker
	const backlog = 5000
	for i := 0; i < backlog; i++ {
		require.NoError(t, g.broadcasts.Enqueue(workers.BroadcastMessage{
			Type:    messages.MessageTypeServerActiveUsers,
			Message: &messages.ActiveUsers{ActiveUsers: 1},
		}))
	}

	result, err := g.coordinator.SelectWord(context.Background(), "alice", "house")
	require.NoError(t, err)
	require.True(t, result.Completed)

	pending := g.broadcasts.ReadAllMessages()
	require.Len(t, pending, backlog+1)
	last := pending[len(pending)-1]
	assert.Equal(t, messages.MessageTypeServerNewTarget, last.Type)
	assert.Equal(t, "garden", last.Message.(*messages.NewTargetWord).TargetWord)
}

func TestCoordinator_Status_consistentDuringCompletions(t *testing.T) {
	g := newTestGame(t, "house", []string{"house", "garden"}, nil)
	g.join(t, "alice")

	const rounds = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		target := "house"
		for i := 0; i < rounds; i++ {
			result, err := g.coordinator.SelectWord(context.Background(), "alice", target)
			if err != nil || !result.Completed {
				return
			}
			target = result.TargetWord
		}
	}()

	// alice is the only player, so after k completions she has k points
	// and the 2-word bank is back on "house" exactly when k is even
	for {
		status := g.coordinator.Status()
		require.Len(t, status.Leaderboard, 1)
		points := status.Leaderboard[0].Points
		want := "house"
		if points%2 == 1 {
			want = "garden"
		}
		require.Equal(t, want, status.TargetWord, "points %d", points)
		assert.Equal(t, 1, status.ActiveUsers)

		select {
		case <-done:
			assert.Equal(t, rounds, g.player(t, "alice").Points)
			return
		default:
		}
	}
}
