package stream

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/medgrid/dispatch-api/internal/service/event"
	"github.com/medgrid/dispatch-api/pkg/messaging"
)

const heartbeatInterval = 30 * time.Second

// Handler exposes the broadcast topics over Server-Sent Events. Each
// connection gets its own broker subscription; a dropped connection drops
// only its own events.
type Handler struct {
	broker messaging.Broker
	logger zerolog.Logger
}

func NewHandler(broker messaging.Broker, logger zerolog.Logger) *Handler {
	return &Handler{broker: broker, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/events/stream", h.Stream)
}

func (h *Handler) Stream(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "streaming not supported"})
		return
	}

	ctx := c.Request.Context()
	messages, err := h.broker.Subscribe(ctx, event.Topics...)
	if err != nil {
		h.logger.Error().Err(err).Msg("event stream subscription failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "event stream unavailable"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	h.send(c, "connected", map[string]interface{}{"timestamp": time.Now().UTC()})
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			h.send(c, "heartbeat", map[string]interface{}{"timestamp": time.Now().UTC()})
			flusher.Flush()
		case msg, open := <-messages:
			if !open {
				return
			}
			h.forward(c, msg)
			flusher.Flush()
		}
	}
}

// forward re-emits a broker message as an SSE event named after its topic.
func (h *Handler) forward(c *gin.Context, msg messaging.Message) {
	var payload json.RawMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.logger.Warn().Err(err).Str("topic", msg.Topic).Msg("skipping malformed event payload")
		return
	}
	c.Render(-1, sseEvent{name: msg.Topic, data: payload})
}

func (h *Handler) send(c *gin.Context, name string, data interface{}) {
	c.SSEvent(name, data)
}

// sseEvent renders a pre-encoded JSON payload without double-encoding it.
type sseEvent struct {
	name string
	data json.RawMessage
}

func (e sseEvent) Render(w http.ResponseWriter) error {
	e.WriteContentType(w)
	if _, err := w.Write([]byte("event: " + e.name + "\n")); err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(e.data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\n\n"))
	return err
}

func (e sseEvent) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if _, ok := header["Content-Type"]; !ok {
		header.Set("Content-Type", "text/event-stream")
	}
}
