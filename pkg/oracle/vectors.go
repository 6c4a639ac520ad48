package oracle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

var _ Oracle = &VectorOracle{}

// VectorOracle answers nearest-neighbour queries by cosine similarity over
// word embeddings loaded from a word2vec or GloVe text file.
type VectorOracle struct {
	words   []string
	index   map[string]int
	vectors [][]float32
}

// LoadVectorFile opens path and parses it with LoadVectors.
func LoadVectorFile(path string) (*VectorOracle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vectors file: %v", err)
	}
	defer f.Close()
	return LoadVectors(f)
}

// LoadVectors parses one "word v1 v2 ... vN" line per word. A leading
// word2vec "count dims" header line is skipped. Vectors are normalized on load.
func LoadVectors(r io.Reader) (*VectorOracle, error) {
	o := &VectorOracle{
		index: make(map[string]int),
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	dims := 0
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && len(fields) == 2 && isInt(fields[0]) && isInt(fields[1]) {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected a word followed by a vector", line)
		}
		if dims == 0 {
			dims = len(fields) - 1
		} else if len(fields)-1 != dims {
			return nil, fmt.Errorf("line %d: expected %d dimensions, got %d", line, dims, len(fields)-1)
		}

		word := strings.ToLower(fields[0])
		if _, ok := o.index[word]; ok {
			continue
		}
		vec := make([]float32, dims)
		for i, raw := range fields[1:] {
			v, err := strconv.ParseFloat(raw, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid component %q: %v", line, raw, err)
			}
			vec[i] = float32(v)
		}
		normalize(vec)
		o.index[word] = len(o.words)
		o.words = append(o.words, word)
		o.vectors = append(o.vectors, vec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vectors: %v", err)
	}
	if len(o.words) == 0 {
		return nil, fmt.Errorf("no vectors found")
	}
	return o, nil
}

// Len returns the vocabulary size.
func (o *VectorOracle) Len() int {
	return len(o.words)
}

// NearestNeighbors returns up to n vocabulary words ordered by descending
// cosine similarity to word. Unknown words have no neighbours.
func (o *VectorOracle) NearestNeighbors(ctx context.Context, word string, n int) ([]string, error) {
	idx, ok := o.index[strings.ToLower(strings.TrimSpace(word))]
	if !ok || n <= 0 {
		return []string{}, nil
	}
	query := o.vectors[idx]

	type scored struct {
		word  string
		score float32
	}
	best := make([]scored, 0, n+1)
	for i, vec := range o.vectors {
		if i == idx {
			continue
		}
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		s := dot(query, vec)
		if len(best) == n && s <= best[n-1].score {
			continue
		}
		pos := sort.Search(len(best), func(j int) bool { return best[j].score < s })
		best = append(best, scored{})
		copy(best[pos+1:], best[pos:])
		best[pos] = scored{word: o.words[i], score: s}
		if len(best) > n {
			best = best[:n]
		}
	}

	neighbors := make([]string, len(best))
	for i, b := range best {
		neighbors[i] = b.word
	}
	return neighbors, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

func isInt(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
