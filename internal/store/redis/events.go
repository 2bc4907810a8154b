package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// EventsChannel is the PubSub channel carrying JSON model.CycleEvent values.
const EventsChannel = "cycles:events"

// Publisher publishes cycle events to EventsChannel.
type Publisher struct {
	client *Client
}

// NewPublisher creates a Publisher on client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

var _ model.EventPublisher = (*Publisher)(nil)

// PublishCycleEvent publishes evt as JSON.
func (p *Publisher) PublishCycleEvent(ctx context.Context, evt model.CycleEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal cycle event: %w", err)
	}
	return p.client.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.client.rdb.Publish(ctx, EventsChannel, payload).Err()
	})
}

// Subscribe delivers every event published on EventsChannel to handle until
// ctx is cancelled. Undecodable messages are logged and skipped.
func (c *Client) Subscribe(ctx context.Context, handle func(model.CycleEvent)) error {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", EventsChannel, err)
	}
	slog.Info("subscribed to cycle events", "channel", EventsChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt model.CycleEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				slog.Warn("bad cycle event", "err", err)
				continue
			}
			handle(evt)
		}
	}
}
