package appkafka

import (
	"context"
	"errors"
	"sync"

	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
	"github.com/segmentio/kafka-go"
)

// MockKafka records written messages and, when Store is set, applies cascade
// events to it immediately.
type MockKafka struct {
	mu              sync.Mutex
	Store           store.StoreInterface
	WrittenMessages []kafka.Message // stores messages written via WriteMessages
	ReadMessages    []kafka.Message // queue of messages to be read via ReadMessage
	ShouldFail      bool            // flag to simulate failures during write or read operations
}

// WriteMessages records messages and applies their events to Store.
func (m *MockKafka) WriteMessages(messages ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock kafka write failed")
	}
	m.WrittenMessages = append(m.WrittenMessages, messages...)
	if m.Store == nil {
		return nil
	}

	ctx := context.Background()
	for _, msg := range messages {
		ev, err := DecodeEvent(msg)
		if err != nil {
			return err
		}
		switch ev.Type {
		case models.EventUserDeleted:
			_ = m.Store.PurgeUser(ctx, ev.UserID)
		case models.EventPostDeleted:
			_ = m.Store.PurgePost(ctx, ev.PostID)
		}
	}
	return nil
}

// Events decodes every written message.
func (m *MockKafka) Events() []models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]models.Event, 0, len(m.WrittenMessages))
	for _, msg := range m.WrittenMessages {
		if ev, err := DecodeEvent(msg); err == nil {
			res = append(res, ev)
		}
	}
	return res
}

// ReadMessage pops the next queued message.
func (m *MockKafka) ReadMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return kafka.Message{}, errors.New("mock kafka read failed")
	}
	if len(m.ReadMessages) == 0 {
		return kafka.Message{}, errors.New("no messages")
	}
	// Take the first message from the queue and remove it
	msg := m.ReadMessages[0]
	m.ReadMessages = m.ReadMessages[1:]
	return msg, nil
}

// Close is a no-op.
func (m *MockKafka) Close() error { return nil }

// MockKafkaFail always fails.
type MockKafkaFail struct{}

func (m *MockKafkaFail) WriteMessages(messages ...kafka.Message) error {
	return errors.New("mock kafka write failed")
}

func (m *MockKafkaFail) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("mock kafka read failed")
}

func (m *MockKafkaFail) Close() error { return nil }
