package models

import (
	"time"

	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
	"github.com/cbodonnell/wordrush/pkg/log"
)

// Player is the stored form of a player. Online status is never stored.
type Player struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Path   string `json:"path"`
}

func NewPlayer(p gametypes.Player) Player {
	return Player{
		Name:   p.Name,
		Points: p.Points,
		Path:   gametypes.EncodePath(p.Path),
	}
}

// ToPlayer converts the row back. A corrupt path is logged and replaced by an empty one.
func (p Player) ToPlayer() gametypes.Player {
	path, ok := gametypes.DecodePath(p.Path)
	if !ok {
		log.Warn("Discarding malformed stored path for player %s: %q", p.Name, p.Path)
	}
	return gametypes.Player{
		Name:   p.Name,
		Points: p.Points,
		Path:   path,
	}
}

// Round is the stored form of a round. Times are unix nanoseconds, zero when unset.
type Round struct {
	ID            int64  `json:"id"`
	Word          string `json:"word"`
	StartedAt     int64  `json:"started_at"`
	CompletedAt   int64  `json:"completed_at"`
	CompletedBy   string `json:"completed_by"`
	CompletedFrom string `json:"completed_from"`
	CompletedIn   int    `json:"completed_in"`
	Path          string `json:"path"`
}

func NewRound(r gametypes.Round) Round {
	row := Round{
		ID:            r.ID,
		Word:          r.Word,
		StartedAt:     r.StartedAt.UnixNano(),
		CompletedBy:   r.CompletedBy,
		CompletedFrom: r.CompletedFrom,
		CompletedIn:   r.CompletedIn,
		Path:          gametypes.EncodePath(r.Path),
	}
	if r.Completed() {
		row.CompletedAt = r.CompletedAt.UnixNano()
	}
	return row
}

func (r Round) ToRound() gametypes.Round {
	round := gametypes.Round{
		ID:            r.ID,
		Word:          r.Word,
		StartedAt:     time.Unix(0, r.StartedAt).UTC(),
		CompletedBy:   r.CompletedBy,
		CompletedFrom: r.CompletedFrom,
		CompletedIn:   r.CompletedIn,
	}
	if r.CompletedAt != 0 {
		round.CompletedAt = time.Unix(0, r.CompletedAt).UTC()
	}
	path, ok := gametypes.DecodePath(r.Path)
	if !ok {
		log.Warn("Discarding malformed stored path for round %d: %q", r.ID, r.Path)
	}
	if len(path) > 0 {
		round.Path = path
	}
	return round
}
