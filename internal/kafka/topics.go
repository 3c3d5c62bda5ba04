package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"ms-sorteos/internal/logger"
)

// EnsureTopicsExist creates Kafka topics if they don't already exist
func EnsureTopicsExist(ctx context.Context, brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	if log == nil {
		log = logger.Discard()
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	existing, err := ListTopics(ctx, brokers)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t] = true
	}

	for _, topic := range topics {
		if known[topic] {
			log.LogKafka("TOPIC", topic, "already exists")
			continue
		}
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
			// Continue with the remaining topics.
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
			continue
		}
		log.LogKafka("TOPIC", topic, "created")
	}
	return nil
}

// ListTopics returns a list of all existing topics
func ListTopics(ctx context.Context, brokers []string) ([]string, error) {
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var topics []string
	for _, p := range partitions {
		if !seen[p.Topic] {
			seen[p.Topic] = true
			topics = append(topics, p.Topic)
		}
	}
	return topics, nil
}
