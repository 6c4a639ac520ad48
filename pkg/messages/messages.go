package messages

import gametypes "github.com/cbodonnell/wordrush/pkg/game/types"

const (
	// MessageBufferSize is the maximum size of an inbound frame
	MessageBufferSize = 1024
)

// Message types, used for logging and metrics
const (
	MessageTypeClientSelectWord  = "select_word"
	MessageTypeServerWelcome     = "welcome"
	MessageTypeServerWordOptions = "word_options"
	MessageTypeServerError       = "error"
	MessageTypeServerActiveUsers = "active_users"
	MessageTypeServerNewTarget   = "new_target_word"
)

// SelectWord is the only message a client sends.
type SelectWord struct {
	Word string `json:"word"`
}

// Welcome is sent privately to a connection once it has joined.
type Welcome struct {
	TargetWord         string                       `json:"targetWord"`
	CompletedIn        int                          `json:"completedIn"`
	CompletedFrom      string                       `json:"completedFrom"`
	WordOptions        []string                     `json:"wordOptions"`
	Leaderboard        []gametypes.LeaderboardEntry `json:"leaderboard"`
	PreviousTargetWord string                       `json:"previousTargetWord"`
}

// WordOptions is the private reply to a selection that did not complete the round.
type WordOptions struct {
	WordOptions []string `json:"wordOptions"`
}

// ErrorMessage is the private diagnostic sent for a malformed frame.
type ErrorMessage struct {
	Error string `json:"error"`
}

// ActiveUsers is broadcast whenever a player joins or leaves.
type ActiveUsers struct {
	ActiveUsers int                          `json:"activeUsers"`
	Leaderboard []gametypes.LeaderboardEntry `json:"leaderboard"`
}

// NewTargetWord is broadcast when a round is completed.
type NewTargetWord struct {
	TargetWord         string                       `json:"targetWord"`
	Leaderboard        []gametypes.LeaderboardEntry `json:"leaderboard"`
	CompletedFrom      string                       `json:"completedFrom"`
	CompletedIn        int                          `json:"completedIn"`
	PreviousTargetWord string                       `json:"previousTargetWord"`
}

// LeaderboardResponse is served by the HTTP leaderboard endpoint.
type LeaderboardResponse struct {
	ActiveUsers int                          `json:"activeUsers"`
	TargetWord  string                       `json:"targetWord"`
	Leaderboard []gametypes.LeaderboardEntry `json:"leaderboard"`
}
