package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/virtualvisits/internal/services"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// TranscriptionWSHandler is the websocket the platform streams transcription
// frames to once transcription is started on a call.
type TranscriptionWSHandler struct {
	events   services.CallEventService
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewTranscriptionWSHandler(events services.CallEventService, l *logrus.Logger) *TranscriptionWSHandler {
	return &TranscriptionWSHandler{
		events: events,
		log:    l,
		upgrader: websocket.Upgrader{
			// the peer is the platform, not a browser
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (h *TranscriptionWSHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	stream := h.events.NewTranscriptionStream()
	ctx := c.Request.Context()
	entry := h.log.WithField("remote", c.ClientIP())
	entry.Info("transcription stream opened")

	// keepalive: pongs push the read deadline out
	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(wsPingInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := wc.ping(); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	frames := 0
	for {
		typ, data, rerr := conn.ReadMessage()
		if rerr != nil {
			if websocket.IsUnexpectedCloseError(rerr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				entry.WithError(rerr).Warn("transcription stream closed unexpectedly")
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if typ != websocket.TextMessage {
			continue
		}

		frames++
		if _, err := stream.HandleFrame(ctx, data); err != nil {
			entry.WithError(err).Error("transcription frame dropped")
		}
	}

	entry.WithFields(logrus.Fields{
		"frames":         frames,
		"correlation_id": stream.CorrelationID(),
	}).Info("transcription stream closed")
}
