package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the producer depends on.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer publishes exercise events to a single topic.
// The writer is created lazily, on first publish.
type KafkaProducer struct {
	brokers []string
	topic   string

	mu     sync.Mutex
	writer messageWriter
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{
		brokers: brokers,
		topic:   topic,
	}
}

func (p *KafkaProducer) PublishExerciseLogged(ctx context.Context, event ExerciseLogged) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal exercise logged event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("exercise.logged")},
		},
	}
	if err := p.getWriter().WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaProducer) getWriter() messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer != nil {
		return p.writer
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        p.topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}
	return p.writer
}

func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer == nil {
		return nil
	}
	err := p.writer.Close()
	p.writer = nil
	return err
}

// NoopProducer drops every event. Used when no brokers are configured.
type NoopProducer struct{}

func (NoopProducer) PublishExerciseLogged(context.Context, ExerciseLogged) error {
	return nil
}

func (NoopProducer) Close() error {
	return nil
}
