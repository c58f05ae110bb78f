package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	EventLibraryChanged = "library-change"
	eventHeartbeat      = "heartbeat"
	eventSourceBackend  = "snippets-backend"
)

type changeEventPayload struct {
	Kinds     []library.ChangeKind `json:"kinds"`
	IDs       []string             `json:"ids"`
	Timestamp int64                `json:"timestamp"`
	Source    string               `json:"source"`
}

type heartbeatPayload struct {
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source"`
}

// handleEvents streams library changes as server-sent events until the client
// disconnects.
func (h *httpHandler) handleEvents(c *gin.Context) {
	feed := h.library.Feed()
	if feed == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponsePayload{
			Error:   library.ErrUnavailable.Error(),
			Code:    "events.feed_disabled",
			Message: "change feed is not configured",
		})
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := feed.Subscribe(ctx)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent(eventHeartbeat, heartbeatPayload{Timestamp: time.Now().UnixMilli(), Source: eventSourceBackend})
	c.Writer.Flush()

	h.logger.Debug("event stream opened", zap.String("request_id", c.GetString(requestIDContextKey)))

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-stream:
			ids := event.IDs
			if ids == nil {
				ids = []string{}
			}
			c.SSEvent(EventLibraryChanged, changeEventPayload{
				Kinds:     event.Kinds,
				IDs:       ids,
				Timestamp: library.UnixMillis(event.Timestamp),
				Source:    eventSourceBackend,
			})
			c.Writer.Flush()
		case tick := <-ticker.C:
			c.SSEvent(eventHeartbeat, heartbeatPayload{Timestamp: tick.UnixMilli(), Source: eventSourceBackend})
			c.Writer.Flush()
		}
	}
}
