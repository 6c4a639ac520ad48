package types

import "time"

// Round is one target word epoch. The last round in the log is the current one.
type Round struct {
	ID        int64     `json:"id"`
	Word      string    `json:"word"`
	StartedAt time.Time `json:"startedAt"`

	// The fields below are written once, when the round is superseded.
	CompletedAt   time.Time `json:"completedAt,omitempty"`
	CompletedBy   string    `json:"completedBy,omitempty"`
	CompletedFrom string    `json:"completedFrom,omitempty"`
	CompletedIn   int       `json:"completedIn,omitempty"`
	// Path is the winner's path, ending with Word
	Path []string `json:"path,omitempty"`
}

// Completed reports whether the round has been superseded.
func (r Round) Completed() bool {
	return !r.CompletedAt.IsZero()
}

// RoundSummary is recorded on a round when a player completes it.
type RoundSummary struct {
	CompletedBy   string
	CompletedFrom string
	CompletedIn   int
	Path          []string
}

// SummaryFromPath derives the summary of a completion from the winner's path.
func SummaryFromPath(winner string, path []string) RoundSummary {
	summary := RoundSummary{
		CompletedBy: winner,
		CompletedIn: len(path),
	}
	if len(path) > 0 {
		summary.CompletedFrom = path[0]
		summary.Path = append([]string(nil), path...)
	}
	return summary
}

// LeaderboardEntry is a single row of the leaderboard.
type LeaderboardEntry struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}
