// Package kafka publishes shop events to a Kafka topic with segmentio/kafka-go.
// Messages are keyed by entity id so all events of one order land on the
// same partition in publish order.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/unkn0wn-root/shopcache/events"
)

var ErrNoBrokers = errors.New("kafka publisher: no brokers")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	Topic        string        // default "shop-events"
	BatchTimeout time.Duration // default 50ms
}

type Publisher struct {
	w messageWriter
}

var _ events.Publisher = (*Publisher)(nil)

func New(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "shop-events"
	}
	batch := cfg.BatchTimeout
	if batch <= 0 {
		batch = 50 * time.Millisecond
	}
	return &Publisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batch,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}, nil
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka publisher: encode %s: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:     []byte(e.Key),
		Value:   b,
		Headers: []kafka.Header{{Key: "type", Value: []byte(e.Type)}},
		Time:    e.At,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publisher: write %s: %w", e.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }
