package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cbodonnell/wordrush/pkg/game/constants"
)

//go:embed words.toml
var defaultWords []byte

// Words holds the word banks and the optional static neighbour table.
type Words struct {
	Starter   []string            `toml:"starter"`
	Targets   []string            `toml:"targets"`
	Neighbors map[string][]string `toml:"neighbors"`
}

// DefaultWords returns the built-in word lists.
func DefaultWords() (*Words, error) {
	return parseWords(string(defaultWords), "embedded words")
}

// LoadWords reads a words file. Lists missing from the file keep their defaults.
func LoadWords(path string) (*Words, error) {
	if path == "" {
		return DefaultWords()
	}
	words, err := DefaultWords()
	if err != nil {
		return nil, err
	}

	var raw Words
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load words file %s: %w", path, err)
	}
	if meta.IsDefined("starter") {
		words.Starter = raw.Starter
	}
	if meta.IsDefined("targets") {
		words.Targets = raw.Targets
	}
	if meta.IsDefined("neighbors") {
		words.Neighbors = raw.Neighbors
	}
	if err := words.validate(); err != nil {
		return nil, fmt.Errorf("invalid words file %s: %w", path, err)
	}
	return words, nil
}

func parseWords(data string, source string) (*Words, error) {
	var words Words
	if _, err := toml.Decode(data, &words); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}
	if err := words.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", source, err)
	}
	return &words, nil
}

func (w *Words) validate() error {
	distinct := make(map[string]struct{}, len(w.Targets))
	for _, t := range w.Targets {
		if t = strings.TrimSpace(t); t != "" {
			distinct[strings.ToLower(t)] = struct{}{}
		}
	}
	if len(distinct) < constants.MinTargetWords {
		return fmt.Errorf("targets must contain at least %d distinct words, got %d", constants.MinTargetWords, len(distinct))
	}
	if len(w.Starter) == 0 {
		return fmt.Errorf("starter must contain at least one word")
	}
	return nil
}
