package game

import "errors"

var (
	// ErrNotJoined is returned for an identity without a joined connection
	ErrNotJoined = errors.New("player has not joined")
	// ErrWordBankTooSmall is returned when the target bank cannot rotate to a different word
	ErrWordBankTooSmall = errors.New("target word bank needs at least two distinct words")
	// ErrEmptyWord is returned when a selection has no word
	ErrEmptyWord = errors.New("word must not be empty")
	// ErrEmptyIdentity is returned when a connection has no identity
	ErrEmptyIdentity = errors.New("identity must not be empty")
)
