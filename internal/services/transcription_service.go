package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/virtualvisits/internal/logger"
	"github.com/yoockh/virtualvisits/internal/metrics"
	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/notifications"
	"github.com/yoockh/virtualvisits/internal/providers/callautomation"
	"github.com/yoockh/virtualvisits/internal/transcription"
	"github.com/yoockh/virtualvisits/internal/utils"
)

type StartOptions struct {
	Locale           string `json:"locale,omitempty"`
	OperationContext string `json:"operationContext,omitempty"`
}

// TranscriptionService drives the platform's transcription commands for calls
// known to the store, and answers the browser's lookups.
type TranscriptionService interface {
	Start(ctx context.Context, serverCallID string, opts StartOptions) error
	Stop(ctx context.Context, serverCallID string) error
	ConnectRoomsCall(ctx context.Context, locator models.CallLocator) (*models.CallConnection, error)

	Transcript(serverCallID string) ([]models.Utterance, error)
	Participants(serverCallID string) ([]models.Participant, error)
	HasTranscriptions(serverCallID string) (bool, error)
	UpdateParticipants(serverCallID string, participants []models.Participant, replace bool) error
}

type ConnectSettings struct {
	CallbackURI  string
	TransportURL string
	Locale       string
}

type transcriptionService struct {
	store    *transcription.Store
	calls    callautomation.Client
	notifier notifications.Broadcaster
	connect  ConnectSettings
	metrics  *metrics.Metrics
	log      *logrus.Logger
}

// NewTranscriptionService wires the store to the platform. calls may be nil when
// no connection string is configured; platform actions then answer 503.
func NewTranscriptionService(
	store *transcription.Store,
	calls callautomation.Client,
	notifier notifications.Broadcaster,
	connect ConnectSettings,
	m *metrics.Metrics,
	l *logrus.Logger,
) TranscriptionService {
	if l == nil {
		l = logger.Discard()
	}
	return &transcriptionService{
		store:    store,
		calls:    calls,
		notifier: notifier,
		connect:  connect,
		metrics:  m,
		log:      l,
	}
}

func (s *transcriptionService) resolve(op, serverCallID string) (string, error) {
	if serverCallID == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "serverCallId is required", nil)
	}
	id, ok := s.store.FindCallConnectionByServerCallID(serverCallID)
	if !ok {
		s.log.WithFields(logrus.Fields{"op": op, "server_call_id": serverCallID}).Warn("no call connection for server call")
		return "", utils.E(utils.CodeNotFound, op, "Call not found", nil)
	}
	return id, nil
}

func (s *transcriptionService) platform(op string) error {
	if s.calls == nil {
		return utils.E(utils.CodeUnavailable, op, "call automation is not configured", nil)
	}
	return nil
}

func (s *transcriptionService) Start(ctx context.Context, serverCallID string, opts StartOptions) error {
	const op = "TranscriptionService.Start"

	callConnectionID, err := s.resolve(op, serverCallID)
	if err != nil {
		return err
	}
	if err := s.platform(op); err != nil {
		return err
	}

	locale := opts.Locale
	if locale == "" {
		locale = s.connect.Locale
	}

	began := time.Now()
	err = s.calls.StartTranscription(ctx, callConnectionID, callautomation.TranscriptionOptions{
		Locale:           locale,
		OperationContext: opts.OperationContext,
	})
	s.record("start_transcription", err, began)
	if err != nil {
		if callautomation.IsTranscriptionAlreadyStarted(err) {
			return utils.E(utils.CodeFailedPrecondition, op, "Transcription already started", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to start transcription", err)
	}

	s.log.WithFields(logrus.Fields{
		"server_call_id":     serverCallID,
		"call_connection_id": callConnectionID,
		"locale":             locale,
	}).Info("transcription start requested")
	return nil
}

func (s *transcriptionService) Stop(ctx context.Context, serverCallID string) error {
	const op = "TranscriptionService.Stop"

	callConnectionID, err := s.resolve(op, serverCallID)
	if err != nil {
		return err
	}
	if err := s.platform(op); err != nil {
		return err
	}

	began := time.Now()
	err = s.calls.StopTranscription(ctx, callConnectionID, "")
	s.record("stop_transcription", err, began)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to stop transcription", err)
	}

	s.notify(models.EventTranscriptionStopped, models.Notification{
		ServerCallID:     serverCallID,
		CallConnectionID: callConnectionID,
	})
	return nil
}

func (s *transcriptionService) ConnectRoomsCall(ctx context.Context, locator models.CallLocator) (*models.CallConnection, error) {
	const op = "TranscriptionService.ConnectRoomsCall"

	if locator.ServerCallID == "" && locator.RoomID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "serverCallId or roomId is required", nil)
	}
	if err := s.platform(op); err != nil {
		return nil, err
	}

	began := time.Now()
	conn, err := s.calls.ConnectCall(ctx, locator, callautomation.ConnectOptions{
		CallbackURI:  s.connect.CallbackURI,
		TransportURL: s.connect.TransportURL,
		Locale:       s.connect.Locale,
	})
	s.record("connect_call", err, began)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to connect to call", err)
	}

	serverCallID := conn.ServerCallID
	if serverCallID == "" {
		serverCallID = locator.ServerCallID
	}
	// the CallConnected callback for this connection may already have arrived
	if !s.store.RegisterCallConnectionIfAbsent(conn.CallConnectionID, serverCallID, conn.CorrelationID) {
		s.store.UpdateServerCallID(conn.CallConnectionID, serverCallID)
	}

	out, _ := s.store.GetCallConnection(conn.CallConnectionID)
	return &out, nil
}

func (s *transcriptionService) Transcript(serverCallID string) ([]models.Utterance, error) {
	const op = "TranscriptionService.Transcript"

	if serverCallID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "serverCallId is required", nil)
	}
	session, ok := s.store.GetTranscriptionData(serverCallID)
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "Transcript not found", nil)
	}
	if session.Data == nil {
		return []models.Utterance{}, nil
	}
	return session.Data, nil
}

func (s *transcriptionService) Participants(serverCallID string) ([]models.Participant, error) {
	const op = "TranscriptionService.Participants"

	if serverCallID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "serverCallId is required", nil)
	}
	if !s.store.HasRoster(serverCallID) {
		if _, known := s.store.FindCallConnectionByServerCallID(serverCallID); !known {
			return nil, utils.E(utils.CodeNotFound, op, "Participants not found", nil)
		}
	}
	return s.store.GetParticipants(serverCallID), nil
}

func (s *transcriptionService) HasTranscriptions(serverCallID string) (bool, error) {
	const op = "TranscriptionService.HasTranscriptions"

	if serverCallID == "" {
		return false, utils.E(utils.CodeInvalidArgument, op, "serverCallId is required", nil)
	}
	return s.store.HasTranscriptions(serverCallID), nil
}

func (s *transcriptionService) UpdateParticipants(serverCallID string, participants []models.Participant, replace bool) error {
	const op = "TranscriptionService.UpdateParticipants"

	if serverCallID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "serverCallId is required", nil)
	}
	if replace {
		s.store.StoreParticipants(serverCallID, participants)
		return nil
	}
	for _, p := range participants {
		s.store.AppendParticipant(serverCallID, p)
	}
	return nil
}

func (s *transcriptionService) notify(event string, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Broadcast(event, payload); err != nil {
		s.log.WithError(err).WithField("event", event).Warn("broadcast failed")
	}
}

func (s *transcriptionService) record(operation string, err error, began time.Time) {
	if s.metrics != nil {
		s.metrics.RecordPlatformRequest(operation, err, time.Since(began).Seconds())
	}
}
