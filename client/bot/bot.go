package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/wordrush/client/network"
	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/messages"
)

// Bot plays the game on its own: it takes the target word whenever it is
// offered and otherwise picks an option at random.
type Bot struct {
	client *network.WSClient
	name   string
	delay  time.Duration
	rand   *rand.Rand
	logger *log.Logger

	target   string
	starters []string

	selections atomic.Int64
	rounds     atomic.Int64
}

type NewBotOptions struct {
	ServerURL string
	Name      string
	// Delay is the pause before each selection
	Delay time.Duration
	Rand  *rand.Rand
}

func NewBot(opts NewBotOptions) *Bot {
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Bot{
		client: network.NewWSClient(opts.ServerURL, opts.Name),
		name:   opts.Name,
		delay:  opts.Delay,
		rand:   r,
		logger: log.With("bot", opts.Name),
	}
}

// Selections is the number of words the bot has sent.
func (b *Bot) Selections() int64 {
	return b.selections.Load()
}

// Rounds is the number of round completions the bot has seen, by anyone.
func (b *Bot) Rounds() int64 {
	return b.rounds.Load()
}

// Run plays until ctx is done or the connection fails.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.client.Connect(ctx); err != nil {
		return err
	}
	defer b.client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbox := make(chan network.ServerMessage, 16)
	errChan := make(chan error, 1)
	go func() {
		errChan <- b.client.HandleMessages(ctx, inbox)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errChan:
			return err
		case msg := <-inbox:
			if err := b.handleMessage(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg network.ServerMessage) error {
	switch msg.Type {
	case messages.MessageTypeServerWelcome:
		welcome := &messages.Welcome{}
		if err := json.Unmarshal(msg.Payload, welcome); err != nil {
			return fmt.Errorf("failed to deserialize welcome message: %v", err)
		}
		b.target = welcome.TargetWord
		b.starters = welcome.WordOptions
		b.logger.Info("Joined, racing to %q from %v", b.target, b.starters)
		return b.choose(ctx, b.starters)
	case messages.MessageTypeServerWordOptions:
		options := &messages.WordOptions{}
		if err := json.Unmarshal(msg.Payload, options); err != nil {
			return fmt.Errorf("failed to deserialize word options message: %v", err)
		}
		if len(options.WordOptions) == 0 {
			return b.choose(ctx, b.starters)
		}
		return b.choose(ctx, options.WordOptions)
	case messages.MessageTypeServerNewTarget:
		newTarget := &messages.NewTargetWord{}
		if err := json.Unmarshal(msg.Payload, newTarget); err != nil {
			return fmt.Errorf("failed to deserialize new target message: %v", err)
		}
		b.rounds.Add(1)
		b.logger.Info("%q reached in %d from %q, next target is %q",
			newTarget.PreviousTargetWord, newTarget.CompletedIn, newTarget.CompletedFrom, newTarget.TargetWord)
		b.target = newTarget.TargetWord
		// every path was cleared, start over
		return b.choose(ctx, b.starters)
	case messages.MessageTypeServerActiveUsers:
		activeUsers := &messages.ActiveUsers{}
		if err := json.Unmarshal(msg.Payload, activeUsers); err != nil {
			return fmt.Errorf("failed to deserialize active users message: %v", err)
		}
		b.logger.Debug("%d active users", activeUsers.ActiveUsers)
	case messages.MessageTypeServerError:
		errMsg := &messages.ErrorMessage{}
		if err := json.Unmarshal(msg.Payload, errMsg); err != nil {
			return fmt.Errorf("failed to deserialize error message: %v", err)
		}
		b.logger.Warn("Server rejected selection: %s", errMsg.Error)
	}
	return nil
}

func (b *Bot) choose(ctx context.Context, options []string) error {
	word := b.pick(options)
	if word == "" {
		b.logger.Debug("No options to choose from, waiting for the next round")
		return nil
	}
	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil
		}
	}
	b.logger.Debug("Selecting %q", word)
	if err := b.client.SelectWord(word); err != nil {
		return err
	}
	b.selections.Add(1)
	return nil
}

func (b *Bot) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	for _, option := range options {
		if strings.EqualFold(option, b.target) {
			return option
		}
	}
	return options[b.rand.Intn(len(options))]
}
