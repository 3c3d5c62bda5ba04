package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishWritesJSONToTopic(t *testing.T) {
	w := &recordingWriter{}
	p := NewProducerWithWriter(w, nil)

	err := p.Publish(context.Background(), "sorteos.order.reserved", "o1", map[string]int{"quantity": 3})
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "sorteos.order.reserved", msg.Topic)
	assert.Equal(t, "o1", string(msg.Key))

	var body map[string]int
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, 3, body["quantity"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishReturnsWriterError(t *testing.T) {
	w := &recordingWriter{err: assert.AnError}
	p := NewProducerWithWriter(w, nil)

	err := p.Publish(context.Background(), "t", "k", "v")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPublishRejectsUnmarshalable(t *testing.T) {
	p := NewProducerWithWriter(&recordingWriter{}, nil)

	err := p.Publish(context.Background(), "t", "k", make(chan int))
	assert.Error(t, err)
}
