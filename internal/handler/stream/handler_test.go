package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medgrid/dispatch-api/internal/service/event"
	"github.com/medgrid/dispatch-api/pkg/messaging"
)

type scriptedBroker struct {
	messages chan messaging.Message
	err      error
	topics   []string
}

func (b *scriptedBroker) Publish(ctx context.Context, topic string, message interface{}) error {
	return nil
}

func (b *scriptedBroker) Subscribe(ctx context.Context, topics ...string) (<-chan messaging.Message, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.topics = topics
	return b.messages, nil
}

func (b *scriptedBroker) Close() error { return nil }

func newStreamRouter(broker messaging.Broker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewHandler(broker, zerolog.Nop()).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func TestStreamForwardsEvents(t *testing.T) {
	broker := &scriptedBroker{messages: make(chan messaging.Message, 4)}
	engine := newStreamRouter(broker)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.ServeHTTP(w, req)
	}()

	broker.messages <- messaging.Message{
		Topic:   event.TopicEmergencyCreated,
		Payload: []byte(`{"id":"abc"}`),
	}
	// Give the handler a moment to drain the channel before disconnecting.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after disconnect")
	}

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: "+event.TopicEmergencyCreated)
	assert.Contains(t, body, `data: {"id":"abc"}`)
	assert.Equal(t, event.Topics, broker.topics, "stream subscribes to every broadcast topic")
}

func TestStreamSkipsMalformedPayloads(t *testing.T) {
	broker := &scriptedBroker{messages: make(chan messaging.Message, 4)}
	engine := newStreamRouter(broker)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.ServeHTTP(w, req)
	}()

	broker.messages <- messaging.Message{Topic: event.TopicHospitalCreated, Payload: []byte(`{{{`)}
	broker.messages <- messaging.Message{Topic: event.TopicHospitalCreated, Payload: []byte(`{"ok":true}`)}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.NotContains(t, body, "{{{")
	assert.Contains(t, body, `data: {"ok":true}`)
}

func TestStreamSubscribeFailure(t *testing.T) {
	broker := &scriptedBroker{err: errors.New("redis down")}
	engine := newStreamRouter(broker)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/stream", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStreamEndsWhenBrokerCloses(t *testing.T) {
	broker := &scriptedBroker{messages: make(chan messaging.Message)}
	engine := newStreamRouter(broker)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/stream", nil)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.ServeHTTP(w, req)
	}()

	close(broker.messages)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after broker closed")
	}
}
