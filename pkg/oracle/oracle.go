package oracle

import (
	"context"
	"strings"
)

// Oracle returns the words most similar to word, most similar first.
// Implementations may return fewer than n words.
type Oracle interface {
	NearestNeighbors(ctx context.Context, word string, n int) ([]string, error)
}

var _ Oracle = StaticOracle{}

// StaticOracle answers from a fixed neighbour table. Lookups are case-insensitive.
type StaticOracle map[string][]string

// NewStaticOracle builds a StaticOracle with lower-cased keys.
func NewStaticOracle(neighbors map[string][]string) StaticOracle {
	o := make(StaticOracle, len(neighbors))
	for word, list := range neighbors {
		key := strings.ToLower(strings.TrimSpace(word))
		o[key] = append(o[key], list...)
	}
	return o
}

func (o StaticOracle) NearestNeighbors(ctx context.Context, word string, n int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	neighbors := o[strings.ToLower(strings.TrimSpace(word))]
	if n >= 0 && len(neighbors) > n {
		neighbors = neighbors[:n]
	}
	out := make([]string, len(neighbors))
	copy(out, neighbors)
	return out, nil
}
