package callautomation

import (
	"context"

	"github.com/yoockh/virtualvisits/internal/models"
)

type ConnectOptions struct {
	CallbackURI string
	// TransportURL is the websocket the platform streams transcription frames to.
	TransportURL       string
	Locale             string
	StartTranscription bool
	OperationContext   string
}

type Connection struct {
	CallConnectionID string
	ServerCallID     string
	CorrelationID    string
}

type TranscriptionOptions struct {
	Locale           string `json:"locale,omitempty"`
	OperationContext string `json:"operationContext,omitempty"`
}

// Client is the subset of the platform's call automation API the server uses.
type Client interface {
	ConnectCall(ctx context.Context, locator models.CallLocator, opts ConnectOptions) (*Connection, error)
	StartTranscription(ctx context.Context, callConnectionID string, opts TranscriptionOptions) error
	StopTranscription(ctx context.Context, callConnectionID string, operationContext string) error
}
