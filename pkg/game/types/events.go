package types

// JoinResult is everything a freshly joined connection needs to render the game.
type JoinResult struct {
	TargetWord         string
	PreviousTargetWord string
	CompletedFrom      string
	CompletedIn        int
	StarterWords       []string
	Leaderboard        []LeaderboardEntry
	ActiveUsers        int
}

// SelectResult is the outcome of a word selection.
// When Completed is true the selection won the round and TargetWord holds the
// new target; otherwise Options holds the private reply for the selecting connection.
type SelectResult struct {
	Completed  bool
	TargetWord string
	Options    []string
}

// Status is a read-only view of the game for observers that are not playing.
type Status struct {
	TargetWord  string
	ActiveUsers int
	Leaderboard []LeaderboardEntry
}
