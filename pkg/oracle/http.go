package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

var _ Oracle = &HTTPOracle{}

// HTTPOracle asks a remote similarity service for neighbours:
// GET {url}?word=W&n=N answered with {"neighbors": [...]}.
type HTTPOracle struct {
	url    string
	client *http.Client
}

type NewHTTPOracleOptions struct {
	URL    string
	Client *http.Client
}

func NewHTTPOracle(opts NewHTTPOracleOptions) (*HTTPOracle, error) {
	if _, err := url.ParseRequestURI(opts.URL); err != nil {
		return nil, fmt.Errorf("invalid oracle url: %v", err)
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOracle{
		url:    opts.URL,
		client: client,
	}, nil
}

type neighborsResponse struct {
	Neighbors []string `json:"neighbors"`
}

func (o *HTTPOracle) NearestNeighbors(ctx context.Context, word string, n int) ([]string, error) {
	u, err := url.Parse(o.url)
	if err != nil {
		return nil, fmt.Errorf("invalid oracle url: %v", err)
	}
	q := u.Query()
	q.Set("word", word)
	q.Set("n", strconv.Itoa(n))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("oracle returned %s: %s", resp.Status, body)
	}

	var decoded neighborsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode oracle response: %v", err)
	}
	if decoded.Neighbors == nil {
		return []string{}, nil
	}
	return decoded.Neighbors, nil
}
