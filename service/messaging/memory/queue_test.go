package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	ID    string
	Count int
}

func TestQueue(t *testing.T) {
	config := DefaultConfig()
	config.RetryDelay = 10 * time.Millisecond
	queue := NewQueue[testPayload](config)

	ctx := context.Background()
	payload := testPayload{ID: "m-1", Count: 1}

	err := queue.Publish(ctx, &payload)
	require.NoError(t, err)
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, payload, *message.T())

	require.NoError(t, message.Ack())
	// a second ack is a processing error
	assert.Error(t, message.Ack())
}

func TestQueueRetriesThenDeadLetters(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = 5 * time.Millisecond
	queue := NewQueue[testPayload](config)

	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &testPayload{ID: "retry"}))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, message.Nack(nil))

	// the retry lands back on the queue after the delay
	consumeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	message, err = queue.Consume(consumeCtx)
	require.NoError(t, err)

	// exhausting the retries parks the message in the dead-letter queue
	require.NoError(t, message.Nack(nil))
	deadline := time.Now().Add(time.Second)
	for queue.DLQSize() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 1, queue.DLQSize())
	assert.Equal(t, 0, queue.Size())
}

func TestConsumeHonorsContext(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	message, err := queue.Consume(ctx)
	assert.Nil(t, message)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
