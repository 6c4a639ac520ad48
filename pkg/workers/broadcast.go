package workers

import (
	"context"
	"errors"

	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/messages"
	"github.com/cbodonnell/wordrush/pkg/metrics"
	"github.com/cbodonnell/wordrush/pkg/network"
	"github.com/cbodonnell/wordrush/pkg/queue"
)

// Broadcaster delivers a payload to every connected session.
type Broadcaster interface {
	Broadcast(payload []byte) network.FanoutResult
}

var _ Broadcaster = &network.Group{}

type BroadcastMessageWorker struct {
	broadcaster           Broadcaster
	broadcastMessageQueue queue.Queue[BroadcastMessage]
}

type BroadcastMessage struct {
	Type    string
	Message interface{}
}

type NewBroadcastMessageWorkerOptions struct {
	Broadcaster           Broadcaster
	BroadcastMessageQueue queue.Queue[BroadcastMessage]
}

// NewBroadcastMessageWorker creates a new BroadcastMessageWorker.
// The worker delivers messages in the order they were queued.
func NewBroadcastMessageWorker(opts NewBroadcastMessageWorkerOptions) *BroadcastMessageWorker {
	return &BroadcastMessageWorker{
		broadcaster:           opts.Broadcaster,
		broadcastMessageQueue: opts.BroadcastMessageQueue,
	}
}

func (w *BroadcastMessageWorker) Start(ctx context.Context) {
	for {
		msg, err := w.broadcastMessageQueue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				pending := w.broadcastMessageQueue.ReadAllMessages()
				for _, msg := range pending {
					w.broadcast(msg)
				}
				return
			}
			log.Error("Failed to dequeue broadcast message: %v", err)
			continue
		}
		w.broadcast(msg)
	}
}

func (w *BroadcastMessageWorker) broadcast(msg BroadcastMessage) {
	payload, err := messages.SerializeMessage(msg.Message)
	if err != nil {
		log.Error("Failed to serialize %s broadcast: %v", msg.Type, err)
		return
	}
	result := w.broadcaster.Broadcast(payload)
	metrics.RecordBroadcast(result.Delivered, result.Dropped)
	log.Trace("Broadcast %s to %d sessions (%d dropped)", msg.Type, result.Delivered, result.Dropped)
}
