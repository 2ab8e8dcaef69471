package callautomation

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/providers/acs"
)

const apiVersion = "2024-09-15"

type restClient struct {
	c *acs.Client
}

func NewRESTClient(conn *acs.ConnectionString, hc *http.Client) Client {
	return &restClient{c: acs.NewClient(conn, apiVersion, hc)}
}

type callLocator struct {
	Kind         string `json:"kind"`
	ServerCallID string `json:"serverCallId,omitempty"`
	RoomID       string `json:"roomId,omitempty"`
}

type transcriptionOptions struct {
	TransportURL       string `json:"transportUrl"`
	TransportType      string `json:"transportType"`
	Locale             string `json:"locale"`
	StartTranscription bool   `json:"startTranscription"`
}

type connectRequest struct {
	CallLocator          callLocator           `json:"callLocator"`
	CallbackURI          string                `json:"callbackUri"`
	OperationContext     string                `json:"operationContext,omitempty"`
	TranscriptionOptions *transcriptionOptions `json:"transcriptionOptions,omitempty"`
}

type connectResponse struct {
	CallConnectionID string `json:"callConnectionId"`
	ServerCallID     string `json:"serverCallId"`
	CorrelationID    string `json:"correlationId"`
}

var ErrNoLocator = errors.New("call locator needs a server call id or a room id")

func (r *restClient) ConnectCall(ctx context.Context, locator models.CallLocator, opts ConnectOptions) (*Connection, error) {
	req := connectRequest{
		CallbackURI:      opts.CallbackURI,
		OperationContext: opts.OperationContext,
	}
	switch {
	case locator.ServerCallID != "":
		req.CallLocator = callLocator{Kind: "serverCallLocator", ServerCallID: locator.ServerCallID}
	case locator.RoomID != "":
		req.CallLocator = callLocator{Kind: "roomCallLocator", RoomID: locator.RoomID}
	default:
		return nil, ErrNoLocator
	}
	if opts.TransportURL != "" {
		req.TranscriptionOptions = &transcriptionOptions{
			TransportURL:       opts.TransportURL,
			TransportType:      "websocket",
			Locale:             opts.Locale,
			StartTranscription: opts.StartTranscription,
		}
	}

	var resp connectResponse
	if err := r.c.Do(ctx, http.MethodPost, "/calling/callConnections:connect", req, &resp); err != nil {
		return nil, err
	}
	serverCallID := resp.ServerCallID
	if serverCallID == "" {
		serverCallID = locator.ServerCallID
	}
	return &Connection{
		CallConnectionID: resp.CallConnectionID,
		ServerCallID:     serverCallID,
		CorrelationID:    resp.CorrelationID,
	}, nil
}

func (r *restClient) StartTranscription(ctx context.Context, callConnectionID string, opts TranscriptionOptions) error {
	return r.c.Do(ctx, http.MethodPost, "/calling/callConnections/"+url.PathEscape(callConnectionID)+":startTranscription", opts, nil)
}

func (r *restClient) StopTranscription(ctx context.Context, callConnectionID string, operationContext string) error {
	body := map[string]string{}
	if operationContext != "" {
		body["operationContext"] = operationContext
	}
	return r.c.Do(ctx, http.MethodPost, "/calling/callConnections/"+url.PathEscape(callConnectionID)+":stopTranscription", body, nil)
}

// IsTranscriptionAlreadyStarted reports whether err is the platform's rejection of
// a start request for a call that is already being transcribed.
func IsTranscriptionAlreadyStarted(err error) bool {
	var pe *acs.Error
	if !errors.As(err, &pe) {
		return false
	}
	if pe.Status != http.StatusBadRequest && pe.Status != http.StatusConflict {
		return false
	}
	msg := strings.ToLower(pe.Message)
	return strings.Contains(msg, "already started") || strings.Contains(msg, "already active") || strings.Contains(msg, "already in progress")
}
