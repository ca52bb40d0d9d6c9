package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DrawResultHandler applies one official draw result.
type DrawResultHandler func(ctx context.Context, result models.DrawResult) error

type Consumer struct {
	Reader messageReader
	Logger *logger.Logger
	// Backoff is the first wait before retrying a draw result that failed
	// for a reason other than being rejected; it doubles up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// rejections are final answers about a draw result. Anything else may work
// on a later attempt.
var rejections = []error{
	models.ErrTicketNotEligible,
	models.ErrNumberNotFound,
	models.ErrRaffleNotFound,
	models.ErrRaffleCancelled,
	models.ErrWinnerAlreadyExists,
}

func isRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// NewConsumer creates a consumer of the draw results topic.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{Reader: reader, Logger: log, Backoff: time.Second, MaxBackoff: 30 * time.Second}
}

// Run reads draw results until ctx is done. A message is committed once the
// handler accepted or rejected it; a rejected draw result does not become
// valid by being redelivered. Other failures are retried on the same message,
// which stays uncommitted until then.
func (c *Consumer) Run(ctx context.Context, handler DrawResultHandler) error {
	c.Logger.Info("KAFKA", "🔄 Draw results consumer started")

	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				c.Logger.Info("KAFKA", "Draw results consumer stopped")
				return nil
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("❌ Error reading message: %v", err))
			return err
		}

		var result models.DrawResult
		if err := json.Unmarshal(msg.Value, &result); err != nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("⚠️ Skipping malformed draw result at offset %d: %v", msg.Offset, err))
		} else {
			c.Logger.LogKafka("RECEIVE", msg.Topic, fmt.Sprintf("draw result raffle=%s number=%s", result.RaffleID, result.Number))
			if !c.apply(ctx, handler, result) {
				c.Logger.Info("KAFKA", "Draw results consumer stopped")
				return nil
			}
		}

		if err := c.Reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Failed to commit offset %d: %v", msg.Offset, err))
		}
	}
}

// apply runs handler until it succeeds or rejects the result. It returns
// false when ctx ends first.
func (c *Consumer) apply(ctx context.Context, handler DrawResultHandler, result models.DrawResult) bool {
	wait := c.Backoff
	if wait <= 0 {
		wait = time.Second
	}
	for attempt := 1; ; attempt++ {
		err := handler(ctx, result)
		switch {
		case err == nil:
			return true
		case isRejection(err):
			c.Logger.Error("KAFKA", fmt.Sprintf("Draw result for raffle %s rejected: %v", result.RaffleID, err))
			return true
		}

		c.Logger.Warn("KAFKA", fmt.Sprintf("Draw result for raffle %s failed (attempt %d), retrying in %s: %v", result.RaffleID, attempt, wait, err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		wait *= 2
		if c.MaxBackoff > 0 && wait > c.MaxBackoff {
			wait = c.MaxBackoff
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.Reader.Close()
}
