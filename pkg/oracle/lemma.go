package oracle

import (
	"fmt"
	"strings"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// Lemmatizer reduces a word to its dictionary base form.
type Lemmatizer interface {
	Lemma(word string) string
}

// LowercaseLemmatizer only normalizes case. It is used when no dictionary is loaded.
type LowercaseLemmatizer struct{}

func (LowercaseLemmatizer) Lemma(word string) string {
	return strings.ToLower(word)
}

// GolemLemmatizer looks words up in the English golem dictionary.
type GolemLemmatizer struct {
	lemmatizer *golem.Lemmatizer
}

// NewGolemLemmatizer loads the English dictionary. Loading takes a moment,
// so callers should create one lemmatizer and share it.
func NewGolemLemmatizer() (*GolemLemmatizer, error) {
	l, err := golem.New(en.New())
	if err != nil {
		return nil, fmt.Errorf("failed to load english lemma dictionary: %v", err)
	}
	return &GolemLemmatizer{lemmatizer: l}, nil
}

// Lemma returns the lower-cased base form of word, or the lower-cased word
// itself when the dictionary does not know it.
func (g *GolemLemmatizer) Lemma(word string) string {
	lower := strings.ToLower(word)
	lemma := g.lemmatizer.Lemma(lower)
	if lemma == "" {
		return lower
	}
	return strings.ToLower(lemma)
}
