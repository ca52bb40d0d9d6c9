// Package notify spreads ticket events between service instances over Redis
// pub/sub so every instance can push them to its own SSE clients.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
)

const channelPattern = "raffle:*:tickets"

// Channel is the pub/sub channel of one raffle.
func Channel(raffleID string) string {
	return "raffle:" + raffleID + ":tickets"
}

type Emitter interface {
	Emit(event models.TicketEvent)
}

type Bridge struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewBridge(client *redis.Client, log *logger.Logger) *Bridge {
	return &Bridge{Client: client, Logger: log}
}

// PublishTicketEvent announces a ticket change to every instance.
func (b *Bridge) PublishTicketEvent(ctx context.Context, event models.TicketEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	if err := b.Client.Publish(ctx, Channel(event.RaffleID), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", Channel(event.RaffleID), err)
	}
	return nil
}

// Listen forwards every ticket event published by any instance to emitter
// until ctx is done.
func (b *Bridge) Listen(ctx context.Context, emitter Emitter) error {
	pubsub := b.Client.PSubscribe(ctx, channelPattern)
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", channelPattern, err)
	}
	b.Logger.Info("REDIS", fmt.Sprintf("Subscribed to %s", channelPattern))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.Logger.Info("REDIS", "Ticket event listener stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event models.TicketEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.Logger.Warn("REDIS", fmt.Sprintf("Skipping malformed message on %s: %v", msg.Channel, err))
				continue
			}
			if event.RaffleID == "" {
				event.RaffleID = raffleFromChannel(msg.Channel)
			}
			emitter.Emit(event)
		}
	}
}

func raffleFromChannel(channel string) string {
	return strings.TrimSuffix(strings.TrimPrefix(channel, "raffle:"), ":tickets")
}
