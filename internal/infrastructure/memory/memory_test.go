package memory

import (
	"context"
	"testing"

	"github.com/audit_replay_parse_service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ch := make(chan entity.Message, 2)
	producer := NewInMemoryProducer(ch)
	consumer := NewInMemoryConsumer(ch)

	require.NoError(t, producer.Send(context.Background(), "a"))
	require.NoError(t, producer.Send(context.Background(), "b"))
	close(ch)

	var received []string
	for msg := range consumer.Messages() {
		msg.Ack()
		received = append(received, msg.Value)
	}
	assert.Equal(t, []string{"a", "b"}, received)
}

func TestInMemoryProducerHonorsContext(t *testing.T) {
	producer := NewInMemoryProducer(make(chan entity.Message))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, producer.Send(ctx, "blocked"), context.Canceled)
}
