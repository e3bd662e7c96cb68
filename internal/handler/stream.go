package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mockly/internal/model"
	ext "mockly/internal/utils/extractor"
	"mockly/internal/utils/sse"
)

// streamHeader returns the request headers with the identity query
// parameters folded in. Browsers cannot set headers on EventSource and
// WebSocket requests.
func streamHeader(c *gin.Context) http.Header {
	h := c.Request.Header
	token := c.Query("token")
	userID := c.Query("user_id")
	if token == "" && userID == "" {
		return h
	}
	h = h.Clone()
	if token != "" && h.Get(ext.Authorization) == "" {
		h.Set(ext.Authorization, "Bearer "+token)
	}
	if userID != "" && h.Get(ext.UserID) == "" {
		h.Set(ext.UserID, userID)
	}
	return h
}

// Stream serves the owner's lifecycle notifications as server-sent events.
type Stream struct {
	hub       *sse.Hub
	extractor ext.Extractor
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewStream(hub *sse.Hub, extractor ext.Extractor, heartbeat time.Duration, logger *zap.Logger) *Stream {
	if heartbeat <= 0 {
		heartbeat = 60 * time.Second
	}
	return &Stream{hub: hub, extractor: extractor, heartbeat: heartbeat, logger: logger}
}

func (s *Stream) Register(r gin.IRouter) {
	r.GET("/sse/events", s.Events)
}

func writeEvent(c *gin.Context, msg sse.Message) {
	if jsonData, err := json.Marshal(msg); err == nil {
		fmt.Fprintf(c.Writer, "data: %s\n\n", jsonData)
		c.Writer.Flush()
	}
}

func (s *Stream) Events(c *gin.Context) {
	ownerID, err := s.extractor.GetOwner(streamHeader(c))
	if err != nil {
		writeError(c, err, nil)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ch := make(chan sse.Message, 10)
	s.hub.Register(ownerID, ch)
	defer s.hub.Unregister(ownerID, ch)
	s.logger.Debug("Event stream opened", zap.String("ownerId", ownerID), zap.Int("streams", s.hub.Connected(ownerID)))

	writeEvent(c, sse.Message{
		"type":      "connection_established",
		"ownerId":   ownerID,
		"timestamp": time.Now().Unix(),
	})

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			s.logger.Debug("Event stream closed", zap.String("ownerId", ownerID))
			return
		case <-heartbeat.C:
			writeEvent(c, sse.Message{
				"type":      "heartbeat",
				"timestamp": time.Now().Unix(),
			})
		case notification := <-ch:
			writeEvent(c, notification)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CaptureStream feeds transcription output from a WebSocket into the capture
// session. Each text frame replaces the draft while recording. The socket is
// attached to the session as a device, so closing the session closes it.
func (h *Handler) CaptureStream(c *gin.Context) {
	if !h.capture.Capabilities().Transcription {
		writeError(c, model.ErrDeviceUnavailable, nil)
		return
	}
	s, _, ok := h.session(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade transcript stream", zap.Error(err))
		return
	}
	if err := s.Attach(conn); err != nil {
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	texts := make(chan string)
	s.Feed(ctx, texts)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Transcript stream closed", zap.Error(err))
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		select {
		case texts <- string(data):
		case <-s.Done():
			return
		}
		if err := conn.WriteJSON(h.state(s)); err != nil {
			return
		}
	}
}
