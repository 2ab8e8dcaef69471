package models

import "encoding/json"

const (
	EventCallConnected        = "CallConnected"
	EventCallDisconnected     = "CallDisconnected"
	EventTranscriptionStarted = "TranscriptionStarted"
	EventTranscriptionStopped = "TranscriptionStopped"
	EventTranscriptionFailed  = "TranscriptionFailed"

	// fan-out only
	EventConnected          = "connected"
	EventTranscriptionError = "TranscriptionError"
)

// CallAutomationEvent is one element of the callback envelope array.
type CallAutomationEvent struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type CallAutomationEventData struct {
	CallConnectionID    string               `json:"callConnectionId"`
	ServerCallID        string               `json:"serverCallId"`
	CorrelationID       string               `json:"correlationId,omitempty"`
	OperationContext    string               `json:"operationContext,omitempty"`
	TranscriptionUpdate *TranscriptionUpdate `json:"transcriptionUpdate,omitempty"`
	ResultInformation   *ResultInformation   `json:"resultInformation,omitempty"`
}

type TranscriptionUpdate struct {
	TranscriptionStatus        string `json:"transcriptionStatus"`
	TranscriptionStatusDetails string `json:"transcriptionStatusDetails"`
}

type ResultInformation struct {
	Code    int    `json:"code"`
	SubCode int    `json:"subCode"`
	Message string `json:"message"`
}

// Notification is the payload pushed to browser subscribers.
type Notification struct {
	ServerCallID        string               `json:"serverCallId,omitempty"`
	CallConnectionID    string               `json:"callConnectionId,omitempty"`
	TranscriptionUpdate *TranscriptionUpdate `json:"transcriptionUpdate,omitempty"`
	ResultInformation   *ResultInformation   `json:"resultInformation,omitempty"`
}
