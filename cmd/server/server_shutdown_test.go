package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appkafka "example.com/blogapi/internal/broker"
	"example.com/blogapi/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestServer_GracefulShutdown verifies that the HTTP server shuts down gracefully
// and that associated resources (mock store and Kafka) can be closed without errors.
func TestServer_GracefulShutdown(t *testing.T) {
	// Use mock store and Kafka to avoid real dependencies
	mockStore := store.NewMock()
	mockKafka := &appkafka.MockKafka{Store: mockStore}
	s := New(mockStore, mockKafka, Options{JWTSecret: testSecret})

	// Start an unstarted HTTP test server to control shutdown timing
	server := httptest.NewUnstartedServer(s.Routes())
	server.Start()
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		server.Close()
		close(done)
	}()

	// Make a request before shutdown to ensure the server is running
	resp, err := http.Post(server.URL+"/api/v1/users", "application/json",
		bytesReader(`{"username":"almaz","password":"s3cret-pass"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	select {
	case <-done:
		mockStore.Close()
		assert.NoError(t, mockKafka.Close())
	case <-time.After(200 * time.Millisecond):
		t.Fatal("server did not shutdown gracefully within the expected time")
	}
}

// TestRun_StopsOnCancel checks that Run returns once its context ends.
func TestRun_StopsOnCancel(t *testing.T) {
	s := New(store.NewMock(), &appkafka.MockKafka{}, Options{JWTSecret: testSecret})

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		Run(ctx, s, "127.0.0.1:0", "", "")
		close(finished)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

// bytesReader creates an io.Reader from a string, used for HTTP request bodies.
func bytesReader(s string) *bytes.Buffer {
	return bytes.NewBuffer([]byte(s))
}
