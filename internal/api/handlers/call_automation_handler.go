package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/virtualvisits/internal/services"
)

const maxCallbackBody = 1 << 20

type CallAutomationHandler struct {
	events services.CallEventService
	log    *logrus.Logger
}

func NewCallAutomationHandler(events services.CallEventService, l *logrus.Logger) *CallAutomationHandler {
	return &CallAutomationHandler{events: events, log: l}
}

// Event receives platform callbacks. It always answers 200: a non-2xx answer
// only makes the platform retry or disable the callback.
func (h *CallAutomationHandler) Event(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		h.log.WithError(err).Error("read call automation callback")
		c.Status(http.StatusOK)
		return
	}

	evs, err := services.DecodeCallAutomationEvents(body)
	if err != nil {
		h.log.WithError(err).Error("malformed call automation callback")
		c.Status(http.StatusOK)
		return
	}

	h.events.HandleCallAutomationEvents(c.Request.Context(), evs)
	c.Status(http.StatusOK)
}
