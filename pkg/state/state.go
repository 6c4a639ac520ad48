package state

import (
	"errors"
	"time"

	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
)

var (
	// ErrUnknownPlayer is returned when an operation names a player that was never upserted.
	ErrUnknownPlayer = errors.New("unknown player")
	// ErrNoRound is returned when no round has been started yet.
	ErrNoRound = errors.New("no current round")
)

// StateManager holds the shared game state: the round log and the player registry.
// Implementations must be thread-safe and must return copies, never internal references.
// Only the coordinator mutates state; other readers use the read-only methods.
type StateManager interface {
	// Load replaces all state. Rounds must be ordered oldest first.
	Load(players []gametypes.Player, rounds []gametypes.Round)

	// CurrentRound returns the round being played.
	CurrentRound() (gametypes.Round, error)
	// PreviousRound returns the most recently completed round, if any.
	PreviousRound() (gametypes.Round, bool)
	// StartRound appends a new round. It is only used to bootstrap an empty log.
	StartRound(word string, at time.Time) gametypes.Round
	// CompareAndRotate completes the current round and starts a new one with the
	// next word, but only if the current word is still expected.
	CompareAndRotate(expected, next string, summary gametypes.RoundSummary, at time.Time) (completed, current gametypes.Round, ok bool)

	// UpsertPlayer creates the player if needed and returns it.
	UpsertPlayer(name string) (player gametypes.Player, created bool)
	Player(name string) (gametypes.Player, bool)
	SetOnline(name string, online bool) error
	AppendPath(name, word string) ([]string, error)
	// ClearPaths empties every player's path and returns the players that changed.
	ClearPaths() []gametypes.Player
	AddPoints(name string, points int) (int, error)

	OnlineCount() int
	Players() []gametypes.Player
	Leaderboard(n int) []gametypes.LeaderboardEntry
}
