package appkafka

import (
	"context"
	"testing"
	"time"

	"example.com/blogapi/internal/models"
	"example.com/blogapi/internal/store"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRoundTrip(t *testing.T) {
	msg, err := NewEventMessage(models.Event{Type: models.EventPostDeleted, PostID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, models.EventPostDeleted, string(msg.Key))

	ev, err := DecodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, "p1", ev.PostID)
}

func TestDecodeEvent_Rejects(t *testing.T) {
	_, err := DecodeEvent(kafka.Message{Value: []byte("{invalid-json}")})
	assert.Error(t, err)

	_, err = DecodeEvent(kafka.Message{Value: []byte(`{"post_id":"p1"}`)})
	assert.Error(t, err)
}

func TestMockKafka_AppliesUserDeleted(t *testing.T) {
	ctx := context.Background()
	st := store.NewMock()
	u, err := st.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	require.NoError(t, st.CreatePost(ctx, &models.Post{Text: "x", PubDate: time.Now(), AuthorID: u.ID}))

	mk := &MockKafka{Store: st}
	require.NoError(t, Publish(mk, models.Event{Type: models.EventUserDeleted, UserID: u.ID}))

	posts, err := st.ListPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Len(t, mk.Events(), 1)
}

func TestPublish_WriterFailure(t *testing.T) {
	err := Publish(&MockKafkaFail{}, models.Event{Type: models.EventUserDeleted, UserID: "u"})
	assert.Error(t, err)
}
