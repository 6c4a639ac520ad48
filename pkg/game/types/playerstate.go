package types

import (
	"encoding/json"
	"strings"
)

// Player is the registry record for a single identity.
type Player struct {
	// Name is the stable identity of the player
	Name string `json:"name"`
	// Points only ever increase
	Points int `json:"points"`
	// Online is true while at least one connection for this identity is joined
	Online bool `json:"online"`
	// Path holds the words selected since the last round boundary
	Path []string `json:"path"`
}

// Copy returns a deep copy of the player.
func (p *Player) Copy() *Player {
	path := make([]string, len(p.Path))
	copy(path, p.Path)
	return &Player{
		Name:   p.Name,
		Points: p.Points,
		Online: p.Online,
		Path:   path,
	}
}

// EncodePath serializes a path for storage.
func EncodePath(path []string) string {
	if path == nil {
		path = []string{}
	}
	b, _ := json.Marshal(path)
	return string(b)
}

// DecodePath parses a stored path. Anything that is not a JSON array of
// strings decodes to an empty path with ok set to false.
func DecodePath(raw string) (path []string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, true
	}
	var decoded []string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return []string{}, false
	}
	if decoded == nil {
		return []string{}, false
	}
	return decoded, true
}
