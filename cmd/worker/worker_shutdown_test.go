package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	appkafka "example.com/blogapi/internal/broker"
	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorker_GracefulShutdown ensures that the worker:
// 1. Processes events from Kafka.
// 2. Purges the deleted user's content.
// 3. Shuts down gracefully when the context is canceled.
func TestWorker_GracefulShutdown(t *testing.T) {
	mockStore := store.NewMock()
	author, _, _ := seed(t, mockStore)

	// Mock Kafka reader with a single message
	msg, err := appkafka.NewEventMessage(models.Event{Type: models.EventUserDeleted, UserID: author.ID})
	require.NoError(t, err)
	mockKafka := &MockKafkaReader{Messages: []kafka.Message{msg}}

	// Context with timeout to simulate graceful shutdown signal
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	worker := New(mockStore, mockKafka, 2, 4)

	done := make(chan struct{})
	go func() {
		worker.Run(ctx) // Worker processes messages until ctx.Done()
		close(done)
	}()

	select {
	case <-done:
		assert.Empty(t, mockStore.Posts)
		assert.Empty(t, mockStore.Follows)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("worker did not shutdown gracefully in time")
	}

	require.NoError(t, worker.Close())
	assert.True(t, mockKafka.IsClosed(), "expected Kafka reader to be closed")
}

// MockKafkaReader simulates a Kafka reader for testing purposes
type MockKafkaReader struct {
	mu       sync.Mutex
	Messages []kafka.Message // Queue of messages to return
	Closed   bool            // Tracks whether Close() has been called
}

// ReadMessage returns the next message in the queue or simulates a failure/context cancel
func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		time.Sleep(5 * time.Millisecond) // simulate idle wait
		return kafka.Message{}, nil
	}

	msg := m.Messages[0]
	m.Messages = m.Messages[1:]
	return msg, nil
}

// Close marks the mock Kafka reader as closed
func (m *MockKafkaReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockKafkaReader) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}
