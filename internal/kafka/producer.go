package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-raffle/internal/config"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes ticket events and reminder requests. Messages are keyed
// by raffle so that every consumer sees one raffle's events in order.
type Producer struct {
	Writer messageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// Publish writes one message to topic.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.Logger.LogKafka("PUBLISH_FAILED", topic, fmt.Sprintf("key=%s: %v", key, err))
		return err
	}
	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s (%d bytes)", key, len(value)))
	return nil
}

// PublishTicketEvent streams a ticket mutation to the ticket events topic.
func (p *Producer) PublishTicketEvent(ctx context.Context, event models.TicketEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.Publish(ctx, p.Topics.TicketEvents, event.RaffleID, value)
}

// SendReminder hands a reminder to the messaging service through Kafka.
func (p *Producer) SendReminder(ctx context.Context, req models.ReminderRequest) error {
	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal reminder %s: %w", req.ID, err)
	}
	return p.Publish(ctx, p.Topics.ReminderRequests, req.RaffleID+":"+req.HolderID, value)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
