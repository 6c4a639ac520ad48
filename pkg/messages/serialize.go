package messages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cbodonnell/wordrush/pkg/game/constants"
)

// ErrInvalidMessage wraps every problem with an inbound frame.
var ErrInvalidMessage = errors.New("invalid message")

// DeserializeSelectWord decodes and validates a client frame.
// The returned word is trimmed and otherwise passed through as typed.
func DeserializeSelectWord(data []byte) (*SelectWord, error) {
	if len(data) > MessageBufferSize {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", ErrInvalidMessage, MessageBufferSize)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidMessage)
	}
	field, ok := raw["word"]
	if !ok || bytes.Equal(bytes.TrimSpace(field), []byte("null")) {
		return nil, fmt.Errorf("%w: missing field \"word\"", ErrInvalidMessage)
	}

	var word string
	if err := json.Unmarshal(field, &word); err != nil {
		return nil, fmt.Errorf("%w: field \"word\" must be a string", ErrInvalidMessage)
	}
	word = strings.TrimSpace(word)
	if word == "" {
		return nil, fmt.Errorf("%w: field \"word\" must not be empty", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(word) > constants.MaxWordLength {
		return nil, fmt.Errorf("%w: field \"word\" exceeds %d characters", ErrInvalidMessage, constants.MaxWordLength)
	}

	return &SelectWord{Word: word}, nil
}

// SerializeMessage encodes an outbound message as a JSON text frame.
func SerializeMessage(m interface{}) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}
	return b, nil
}

// NewErrorMessage builds the diagnostic payload for err.
func NewErrorMessage(err error) *ErrorMessage {
	return &ErrorMessage{Error: err.Error()}
}

// ClassifyServerMessage names the kind of an outbound frame. Server frames
// carry no type tag, so the kind is read from the keys that are present.
func ClassifyServerMessage(data []byte) (string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("%w: malformed json", ErrInvalidMessage)
	}
	has := func(key string) bool {
		_, ok := raw[key]
		return ok
	}
	switch {
	case has("error"):
		return MessageTypeServerError, nil
	case has("targetWord") && has("wordOptions"):
		return MessageTypeServerWelcome, nil
	case has("targetWord"):
		return MessageTypeServerNewTarget, nil
	case has("activeUsers"):
		return MessageTypeServerActiveUsers, nil
	case has("wordOptions"):
		return MessageTypeServerWordOptions, nil
	default:
		return "", fmt.Errorf("%w: unrecognized server message", ErrInvalidMessage)
	}
}
