package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/notifications"
)

const defaultHeartbeat = 30 * time.Second

type NotificationHandler struct {
	hub       *notifications.Hub
	log       *logrus.Logger
	heartbeat time.Duration
}

func NewNotificationHandler(hub *notifications.Hub, l *logrus.Logger) *NotificationHandler {
	return &NotificationHandler{hub: hub, log: l, heartbeat: defaultHeartbeat}
}

// Events holds a text/event-stream open until the client goes away or the hub
// drops the subscriber.
func (h *NotificationHandler) Events(c *gin.Context) {
	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub)

	w := c.Writer
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := sse.Encode(w, sse.Event{
		Id:    sub.ID,
		Event: models.EventConnected,
		Data:  gin.H{"clientId": sub.ID},
	}); err != nil {
		return
	}
	w.Flush()

	entry := h.log.WithField("client_id", sub.ID)
	entry.Debug("notification stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			entry.Debug("notification stream closed by client")
			return

		case msg, ok := <-sub.Messages():
			if !ok {
				entry.Info("notification stream dropped by hub")
				return
			}
			if err := sse.Encode(w, sse.Event{Event: msg.Event, Data: msg.Data}); err != nil {
				return
			}
			w.Flush()

		case <-ticker.C:
			if _, err := w.WriteString(": heartbeat\n\n"); err != nil {
				return
			}
			w.Flush()
		}
	}
}
