package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-sorteos/internal/logger"
)

// MessageWriter is the part of kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON messages to any topic over a single writer.
type Producer struct {
	Writer MessageWriter
	logger *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, log)
}

func NewProducerWithWriter(w MessageWriter, log *logger.Logger) *Producer {
	if log == nil {
		log = logger.Discard()
	}
	return &Producer{Writer: w, logger: log}
}

// Publish marshals value and writes it to topic keyed by key.
func (p *Producer) Publish(ctx context.Context, topic, key string, value any) error {
	msgBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", topic, err)
	}

	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	}); err != nil {
		p.logger.Error("KAFKA", fmt.Sprintf("Failed to publish to %s: %v", topic, err))
		return err
	}

	p.logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s bytes=%d", key, len(msgBytes)))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
