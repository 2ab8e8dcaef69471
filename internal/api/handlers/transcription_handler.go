package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/services"
)

type TranscriptionHandler struct {
	svc services.TranscriptionService
}

func NewTranscriptionHandler(svc services.TranscriptionService) *TranscriptionHandler {
	return &TranscriptionHandler{svc: svc}
}

type ServerCallRequest struct {
	ServerCallID string `json:"serverCallId"`
}

type StartTranscriptionRequest struct {
	ServerCallID string                 `json:"serverCallId"`
	Options      *services.StartOptions `json:"options"`
}

type ConnectRoomsCallRequest struct {
	ServerCallID string `json:"serverCallId"`
	RoomID       string `json:"roomId"`
}

// UpdateParticipantsRequest accepts a single participant, a list, or both.
// callCorrelationId is the older name of serverCallId.
type UpdateParticipantsRequest struct {
	ServerCallID      string               `json:"serverCallId"`
	CallCorrelationID string               `json:"callCorrelationId"`
	Participant       *models.Participant  `json:"participant"`
	Participants      []models.Participant `json:"participants"`
	Replace           bool                 `json:"replace"`
}

func (h *TranscriptionHandler) Start(c *gin.Context) {
	var req StartTranscriptionRequest
	if !bindJSON(c, "TranscriptionHandler.Start", &req) {
		return
	}
	var opts services.StartOptions
	if req.Options != nil {
		opts = *req.Options
	}
	if err := h.svc.Start(c.Request.Context(), req.ServerCallID, opts); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *TranscriptionHandler) Stop(c *gin.Context) {
	var req ServerCallRequest
	if !bindJSON(c, "TranscriptionHandler.Stop", &req) {
		return
	}
	if err := h.svc.Stop(c.Request.Context(), req.ServerCallID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *TranscriptionHandler) FetchTranscript(c *gin.Context) {
	var req ServerCallRequest
	if !bindJSON(c, "TranscriptionHandler.FetchTranscript", &req) {
		return
	}
	transcript, err := h.svc.Transcript(req.ServerCallID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcript": transcript})
}

func (h *TranscriptionHandler) FetchParticipants(c *gin.Context) {
	var req ServerCallRequest
	if !bindJSON(c, "TranscriptionHandler.FetchParticipants", &req) {
		return
	}
	participants, err := h.svc.Participants(req.ServerCallID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

func (h *TranscriptionHandler) Status(c *gin.Context) {
	var req ServerCallRequest
	if !bindJSON(c, "TranscriptionHandler.Status", &req) {
		return
	}
	has, err := h.svc.HasTranscriptions(req.ServerCallID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hasTranscriptions": has})
}

func (h *TranscriptionHandler) UpdateParticipants(c *gin.Context) {
	var req UpdateParticipantsRequest
	if !bindJSON(c, "TranscriptionHandler.UpdateParticipants", &req) {
		return
	}
	serverCallID := req.ServerCallID
	if serverCallID == "" {
		serverCallID = req.CallCorrelationID
	}
	participants := req.Participants
	if req.Participant != nil {
		participants = append(participants, *req.Participant)
	}
	if err := h.svc.UpdateParticipants(serverCallID, participants, req.Replace); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *TranscriptionHandler) ConnectRoomsCall(c *gin.Context) {
	var req ConnectRoomsCallRequest
	if !bindJSON(c, "TranscriptionHandler.ConnectRoomsCall", &req) {
		return
	}
	conn, err := h.svc.ConnectRoomsCall(c.Request.Context(), models.CallLocator{
		ServerCallID: req.ServerCallID,
		RoomID:       req.RoomID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}
