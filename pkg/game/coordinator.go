package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/cbodonnell/wordrush/pkg/game/constants"
	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/messages"
	"github.com/cbodonnell/wordrush/pkg/metrics"
	"github.com/cbodonnell/wordrush/pkg/queue"
	"github.com/cbodonnell/wordrush/pkg/repositories"
	"github.com/cbodonnell/wordrush/pkg/state"
	"github.com/cbodonnell/wordrush/pkg/workers"
)

// Suggester produces the private option list for a selection.
type Suggester interface {
	Suggest(ctx context.Context, word string, path []string) []string
}

// Coordinator owns the round and the player registry. Join, Leave,
// Disconnect and SelectWord are serialized by a single lock; oracle lookups
// and broadcast delivery happen outside it.
type Coordinator struct {
	lock sync.Mutex

	stateManager          state.StateManager
	repository            repositories.Repository
	suggester             Suggester
	broadcastMessageQueue queue.Queue[workers.BroadcastMessage]
	saveRequestChan       chan<- workers.SaveRequest

	targetWords       []string
	starterWords      []string
	starterSampleSize int
	leaderboardSize   int
	oracleTimeout     time.Duration

	// connections counts joined connections per identity
	connections map[string]int
	rand        *rand.Rand
	now         func() time.Time
}

// NewCoordinatorOptions contains options for creating a new Coordinator.
type NewCoordinatorOptions struct {
	StateManager state.StateManager
	// Repository is read once by Initialize. Optional.
	Repository repositories.Repository
	Suggester  Suggester
	// BroadcastMessageQueue receives group broadcasts. Optional. A completion
	// rejected by the queue never reaches clients, so use a queue that cannot
	// reject, such as queue.UnboundedQueue.
	BroadcastMessageQueue queue.Queue[workers.BroadcastMessage]
	// SaveRequestChan receives rows to persist. Optional.
	SaveRequestChan chan<- workers.SaveRequest

	TargetWords       []string
	StarterWords      []string
	StarterSampleSize int
	LeaderboardSize   int
	OracleTimeout     time.Duration

	Rand *rand.Rand
	Now  func() time.Time
}

func NewCoordinator(opts NewCoordinatorOptions) (*Coordinator, error) {
	targets := uniqueWords(opts.TargetWords)
	if len(targets) < constants.MinTargetWords {
		return nil, fmt.Errorf("%w: got %d", ErrWordBankTooSmall, len(targets))
	}
	if opts.Suggester == nil {
		return nil, fmt.Errorf("suggester is required")
	}

	c := &Coordinator{
		stateManager:          opts.StateManager,
		repository:            opts.Repository,
		suggester:             opts.Suggester,
		broadcastMessageQueue: opts.BroadcastMessageQueue,
		saveRequestChan:       opts.SaveRequestChan,
		targetWords:           targets,
		starterWords:          uniqueWords(opts.StarterWords),
		starterSampleSize:     opts.StarterSampleSize,
		leaderboardSize:       opts.LeaderboardSize,
		oracleTimeout:         opts.OracleTimeout,
		connections:           make(map[string]int),
		rand:                  opts.Rand,
		now:                   opts.Now,
	}
	if c.stateManager == nil {
		c.stateManager = state.NewInMemoryStateManager()
	}
	if c.starterSampleSize <= 0 {
		c.starterSampleSize = constants.StarterSampleSize
	}
	if c.leaderboardSize <= 0 {
		c.leaderboardSize = constants.LeaderboardSize
	}
	if c.oracleTimeout <= 0 {
		c.oracleTimeout = constants.OracleTimeout
	}
	if c.rand == nil {
		c.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Initialize restores state from the repository and makes sure a round is in progress.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.repository != nil {
		players, err := c.repository.LoadPlayers(ctx)
		if err != nil {
			return fmt.Errorf("failed to load players: %v", err)
		}
		rounds, err := c.repository.LoadRounds(ctx)
		if err != nil {
			return fmt.Errorf("failed to load rounds: %v", err)
		}
		c.stateManager.Load(players, rounds)
		log.Info("Loaded %d players and %d rounds", len(players), len(rounds))
	}

	current, err := c.currentRoundLocked()
	if err != nil {
		return err
	}
	log.Info("Current target word is %q", current.Word)
	return nil
}

// currentRoundLocked returns the current round, starting one if there is none.
func (c *Coordinator) currentRoundLocked() (gametypes.Round, error) {
	current, err := c.stateManager.CurrentRound()
	if err == nil && !current.Completed() {
		return current, nil
	}
	if err != nil && !errors.Is(err, state.ErrNoRound) {
		return gametypes.Round{}, fmt.Errorf("failed to get current round: %v", err)
	}
	round := c.stateManager.StartRound(drawExcluding(c.rand, c.targetWords, current.Word), c.now())
	log.Info("Started round %d with target word %q", round.ID, round.Word)
	c.save(workers.SaveRequest{Rounds: []gametypes.Round{round}})
	return round, nil
}

// Join marks identity online, creating the player on first sight, and
// returns the welcome state for the new connection.
func (c *Coordinator) Join(ctx context.Context, identity string) (gametypes.JoinResult, error) {
	if identity == "" {
		return gametypes.JoinResult{}, ErrEmptyIdentity
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	current, err := c.currentRoundLocked()
	if err != nil {
		return gametypes.JoinResult{}, err
	}

	player, created := c.stateManager.UpsertPlayer(identity)
	if created {
		log.Info("Player %s created", identity)
		c.save(workers.SaveRequest{Players: []gametypes.Player{player}})
	}
	c.connections[identity]++
	if c.connections[identity] == 1 {
		if err := c.stateManager.SetOnline(identity, true); err != nil {
			return gametypes.JoinResult{}, fmt.Errorf("failed to mark %s online: %v", identity, err)
		}
	}

	result := gametypes.JoinResult{
		TargetWord:   current.Word,
		StarterWords: sample(c.rand, c.starterWords, c.starterSampleSize),
		Leaderboard:  c.stateManager.Leaderboard(c.leaderboardSize),
		ActiveUsers:  c.stateManager.OnlineCount(),
	}
	if previous, ok := c.stateManager.PreviousRound(); ok {
		result.PreviousTargetWord = previous.Word
		result.CompletedFrom = previous.CompletedFrom
		result.CompletedIn = previous.CompletedIn
	}

	c.broadcast(messages.MessageTypeServerActiveUsers, &messages.ActiveUsers{
		ActiveUsers: result.ActiveUsers,
		Leaderboard: result.Leaderboard,
	})
	log.Debug("Player %s joined with %d connection(s)", identity, c.connections[identity])
	return result, nil
}

// Leave releases one connection of identity. The player goes offline with its last connection.
func (c *Coordinator) Leave(ctx context.Context, identity string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	n := c.connections[identity]
	if n == 0 {
		return ErrNotJoined
	}
	if n == 1 {
		delete(c.connections, identity)
		if err := c.stateManager.SetOnline(identity, false); err != nil {
			return fmt.Errorf("failed to mark %s offline: %v", identity, err)
		}
		log.Info("Player %s went offline", identity)
	} else {
		c.connections[identity] = n - 1
	}

	c.broadcast(messages.MessageTypeServerActiveUsers, &messages.ActiveUsers{
		ActiveUsers: c.stateManager.OnlineCount(),
		Leaderboard: c.stateManager.Leaderboard(c.leaderboardSize),
	})
	return nil
}

// Disconnect is Leave triggered by the transport going away.
func (c *Coordinator) Disconnect(ctx context.Context, identity string) error {
	return c.Leave(ctx, identity)
}

// SelectWord records word on the player's path and either completes the
// round or returns fresh options.
func (c *Coordinator) SelectWord(ctx context.Context, identity string, word string) (gametypes.SelectResult, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return gametypes.SelectResult{}, ErrEmptyWord
	}

	c.lock.Lock()
	if c.connections[identity] == 0 {
		c.lock.Unlock()
		metrics.RecordSelection("rejected")
		return gametypes.SelectResult{}, ErrNotJoined
	}

	path, err := c.stateManager.AppendPath(identity, word)
	if err != nil {
		c.lock.Unlock()
		return gametypes.SelectResult{}, err
	}
	current, err := c.currentRoundLocked()
	if err != nil {
		c.lock.Unlock()
		return gametypes.SelectResult{}, err
	}

	if strings.EqualFold(word, current.Word) {
		result, err := c.completeRoundLocked(identity, current, path)
		c.lock.Unlock()
		if err != nil {
			return gametypes.SelectResult{}, err
		}
		metrics.RecordSelection("completed")
		metrics.RecordRoundCompleted()
		return result, nil
	}
	c.lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.oracleTimeout)
	defer cancel()
	options := c.suggester.Suggest(ctx, word, path)
	if options == nil {
		options = []string{}
	}
	metrics.RecordSelection("options")
	return gametypes.SelectResult{
		Options: options,
	}, nil
}

func (c *Coordinator) completeRoundLocked(identity string, current gametypes.Round, path []string) (gametypes.SelectResult, error) {
	online := c.stateManager.OnlineCount()
	points, err := c.stateManager.AddPoints(identity, online)
	if err != nil {
		return gametypes.SelectResult{}, err
	}

	summary := gametypes.SummaryFromPath(identity, path)
	next := drawExcluding(c.rand, c.targetWords, current.Word)
	completed, started, ok := c.stateManager.CompareAndRotate(current.Word, next, summary, c.now())
	if !ok {
		// only reachable if something other than the coordinator rotated the round
		return gametypes.SelectResult{}, fmt.Errorf("round %d changed during completion", current.ID)
	}
	cleared := c.stateManager.ClearPaths()
	log.Info("Player %s completed %q from %q in %d and now has %d points; new target word is %q",
		identity, completed.Word, summary.CompletedFrom, summary.CompletedIn, points, started.Word)

	c.broadcast(messages.MessageTypeServerNewTarget, &messages.NewTargetWord{
		TargetWord:         started.Word,
		Leaderboard:        c.stateManager.Leaderboard(c.leaderboardSize),
		CompletedFrom:      completed.CompletedFrom,
		CompletedIn:        completed.CompletedIn,
		PreviousTargetWord: completed.Word,
	})

	players := cleared
	if winner, ok := c.stateManager.Player(identity); ok && !containsPlayer(players, identity) {
		players = append(players, winner)
	}
	c.save(workers.SaveRequest{
		Players: players,
		Rounds:  []gametypes.Round{completed, started},
	})

	return gametypes.SelectResult{
		Completed:  true,
		TargetWord: started.Word,
	}, nil
}

// Status is a snapshot for observers such as the leaderboard endpoint.
// It holds the lock so target, count and leaderboard come from one state.
func (c *Coordinator) Status() gametypes.Status {
	c.lock.Lock()
	defer c.lock.Unlock()

	status := gametypes.Status{
		ActiveUsers: c.stateManager.OnlineCount(),
		Leaderboard: c.stateManager.Leaderboard(c.leaderboardSize),
	}
	if current, err := c.stateManager.CurrentRound(); err == nil {
		status.TargetWord = current.Word
	}
	return status
}

// broadcast must be called with the lock held so broadcasts keep commit order.
func (c *Coordinator) broadcast(messageType string, msg interface{}) {
	if c.broadcastMessageQueue == nil {
		return
	}
	if err := c.broadcastMessageQueue.Enqueue(workers.BroadcastMessage{
		Type:    messageType,
		Message: msg,
	}); err != nil {
		metrics.RecordQueueDrop("broadcast")
		log.Error("Failed to enqueue %s broadcast: %v", messageType, err)
	}
}

func (c *Coordinator) save(req workers.SaveRequest) {
	if c.saveRequestChan == nil {
		return
	}
	select {
	case c.saveRequestChan <- req:
	default:
		metrics.RecordQueueDrop("save")
		log.Warn("Save request channel is full, relying on the next snapshot")
	}
}

func containsPlayer(players []gametypes.Player, name string) bool {
	for _, p := range players {
		if p.Name == name {
			return true
		}
	}
	return false
}
