package constants

import "time"

const (
	// StarterSampleSize is the number of starter words offered on join
	StarterSampleSize int = 4
	// OptionSampleSize is the number of word options returned after a selection
	OptionSampleSize int = 4
	// OptionFetchSize is the number of neighbours requested from the oracle.
	// It is larger than OptionSampleSize so that enough candidates survive filtering.
	OptionFetchSize int = 40
	// LeaderboardSize is the number of players shown on the leaderboard
	LeaderboardSize int = 10
	// MaxWordLength is the longest word accepted from a client
	MaxWordLength int = 64
	// MinTargetWords is the smallest word bank that can rotate to a different word
	MinTargetWords int = 2

	// OracleTimeout bounds a single nearest-neighbour lookup
	OracleTimeout time.Duration = 2 * time.Second
)
