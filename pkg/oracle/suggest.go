package oracle

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cbodonnell/wordrush/pkg/game/constants"
	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/metrics"
)

// Suggester turns raw oracle neighbours into the option list shown to a player.
type Suggester struct {
	oracle     Oracle
	lemmatizer Lemmatizer
	fetchSize  int
	sampleSize int
	timeout    time.Duration

	randLock sync.Mutex
	rand     *rand.Rand
}

type NewSuggesterOptions struct {
	Oracle     Oracle
	Lemmatizer Lemmatizer
	FetchSize  int
	SampleSize int
	Timeout    time.Duration
	// Rand is used to shuffle candidates. A time-seeded source is used when nil.
	Rand *rand.Rand
}

func NewSuggester(opts NewSuggesterOptions) (*Suggester, error) {
	if opts.Oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	s := &Suggester{
		oracle:     opts.Oracle,
		lemmatizer: opts.Lemmatizer,
		fetchSize:  opts.FetchSize,
		sampleSize: opts.SampleSize,
		timeout:    opts.Timeout,
		rand:       opts.Rand,
	}
	if s.lemmatizer == nil {
		s.lemmatizer = LowercaseLemmatizer{}
	}
	if s.fetchSize <= 0 {
		s.fetchSize = constants.OptionFetchSize
	}
	if s.sampleSize <= 0 {
		s.sampleSize = constants.OptionSampleSize
	}
	if s.timeout <= 0 {
		s.timeout = constants.OracleTimeout
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s, nil
}

// Suggest returns up to SampleSize options related to word. Options never
// include the selected word or anything already on path, compared by lemma.
// Oracle failures degrade to an empty, non-nil list.
func (s *Suggester) Suggest(ctx context.Context, word string, path []string) []string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	neighbors, err := s.oracle.NearestNeighbors(ctx, word, s.fetchSize)
	metrics.RecordOracleLookup(time.Since(start), err != nil)
	if err != nil {
		log.Warn("Oracle lookup for %q failed: %v", word, err)
		return []string{}
	}

	seen := make(map[string]struct{}, len(path)+len(neighbors)+1)
	seen[s.lemmatizer.Lemma(normalizeWord(word))] = struct{}{}
	for _, visited := range path {
		seen[s.lemmatizer.Lemma(normalizeWord(visited))] = struct{}{}
	}

	candidates := make([]string, 0, len(neighbors))
	for _, neighbor := range neighbors {
		candidate := normalizeWord(neighbor)
		if !isWord(candidate) {
			continue
		}
		lemma := s.lemmatizer.Lemma(candidate)
		if _, ok := seen[lemma]; ok {
			continue
		}
		seen[lemma] = struct{}{}
		candidates = append(candidates, lemma)
	}

	s.randLock.Lock()
	s.rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	s.randLock.Unlock()

	if len(candidates) > s.sampleSize {
		candidates = candidates[:s.sampleSize]
	}
	return candidates
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// isWord accepts non-empty strings made of letters only.
// Phrases, numbers and punctuation from embedding vocabularies are skipped.
func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
