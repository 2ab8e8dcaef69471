package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/virtualvisits/internal/events"
	"github.com/yoockh/virtualvisits/internal/logger"
	"github.com/yoockh/virtualvisits/internal/metrics"
	"github.com/yoockh/virtualvisits/internal/models"
	"github.com/yoockh/virtualvisits/internal/notifications"
	"github.com/yoockh/virtualvisits/internal/transcription"
)

const eventTypePrefix = "Microsoft.Communication."

// FrameKind is what a transcription frame was classified as.
type FrameKind string

const (
	FrameMetadata FrameKind = "metadata"
	FrameData     FrameKind = "data"
	FrameUnknown  FrameKind = "unknown"
)

var errMalformedFrame = errors.New("malformed transcription frame")

type TranscriptPublisher interface {
	PublishFinal(ctx context.Context, ev events.TranscriptEvent) error
}

// CallEventService applies platform callbacks and transcription frames to the store.
type CallEventService interface {
	HandleCallAutomationEvents(ctx context.Context, evs []models.CallAutomationEvent)
	NewTranscriptionStream() *TranscriptionStream
}

type callEventService struct {
	store     *transcription.Store
	notifier  notifications.Broadcaster
	publisher TranscriptPublisher
	metrics   *metrics.Metrics
	log       *logrus.Logger
}

func NewCallEventService(
	store *transcription.Store,
	notifier notifications.Broadcaster,
	publisher TranscriptPublisher,
	m *metrics.Metrics,
	l *logrus.Logger,
) CallEventService {
	if l == nil {
		l = logger.Discard()
	}
	return &callEventService{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		metrics:   m,
		log:       l,
	}
}

// DecodeCallAutomationEvents accepts either a JSON array of envelopes or a single one.
func DecodeCallAutomationEvents(body []byte) ([]models.CallAutomationEvent, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '[' {
		var evs []models.CallAutomationEvent
		if err := json.Unmarshal(body, &evs); err != nil {
			return nil, err
		}
		return evs, nil
	}
	var ev models.CallAutomationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return []models.CallAutomationEvent{ev}, nil
}

// NormalizeEventType strips the platform namespace from an event type.
func NormalizeEventType(t string) string {
	return strings.TrimPrefix(t, eventTypePrefix)
}

func (s *callEventService) HandleCallAutomationEvents(_ context.Context, evs []models.CallAutomationEvent) {
	for _, ev := range evs {
		s.handleEvent(ev)
	}
}

func (s *callEventService) handleEvent(ev models.CallAutomationEvent) {
	typ := NormalizeEventType(ev.Type)
	if s.metrics != nil {
		s.metrics.CallbackEvents.WithLabelValues(metricEventType(typ)).Inc()
	}

	var data models.CallAutomationEventData
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			s.log.WithError(err).WithField("type", typ).Error("malformed call automation event")
			return
		}
	}
	entry := s.log.WithFields(logrus.Fields{
		"type":               typ,
		"call_connection_id": data.CallConnectionID,
		"server_call_id":     data.ServerCallID,
	})

	switch typ {
	case models.EventCallConnected:
		if data.CallConnectionID == "" {
			entry.Error("CallConnected without callConnectionId")
			return
		}
		if !s.store.RegisterCallConnectionIfAbsent(data.CallConnectionID, data.ServerCallID, "") {
			entry.Info("duplicate CallConnected ignored")
			return
		}
		entry.Info("call connected")

	case models.EventTranscriptionStarted, models.EventTranscriptionStopped:
		s.notify(typ, notificationFrom(data))

	case models.EventTranscriptionFailed:
		entry.WithField("result", data.ResultInformation).Warn("transcription failed")
		s.notify(models.EventTranscriptionError, notificationFrom(data))

	case models.EventCallDisconnected:
		entry.Info("call disconnected")

	default:
		entry.Debug("call automation event ignored")
	}
}

func notificationFrom(d models.CallAutomationEventData) models.Notification {
	return models.Notification{
		ServerCallID:        d.ServerCallID,
		CallConnectionID:    d.CallConnectionID,
		TranscriptionUpdate: d.TranscriptionUpdate,
		ResultInformation:   d.ResultInformation,
	}
}

// keeps the label set bounded
func metricEventType(t string) string {
	switch t {
	case models.EventCallConnected, models.EventCallDisconnected,
		models.EventTranscriptionStarted, models.EventTranscriptionStopped, models.EventTranscriptionFailed:
		return t
	}
	return "other"
}

func (s *callEventService) notify(event string, payload any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Broadcast(event, payload); err != nil {
		s.log.WithError(err).WithField("event", event).Warn("broadcast failed")
	}
}

func (s *callEventService) NewTranscriptionStream() *TranscriptionStream {
	return &TranscriptionStream{svc: s}
}

// TranscriptionStream holds the per-connection state of one transcription
// websocket. It is not safe for concurrent use; one reader goroutine owns it.
type TranscriptionStream struct {
	svc              *callEventService
	correlationID    string
	callConnectionID string
}

func (t *TranscriptionStream) CorrelationID() string { return t.correlationID }

type frameEnvelope struct {
	Kind     string          `json:"kind"`
	Metadata json.RawMessage `json:"transcriptionMetadata"`
	Data     json.RawMessage `json:"transcriptionData"`
}

// ClassifyFrame picks the payload out of raw and decides its kind: a locale
// field marks a metadata frame, a text field marks a data frame.
func ClassifyFrame(raw []byte) (FrameKind, json.RawMessage, error) {
	var env frameEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return FrameUnknown, nil, errMalformedFrame
	}
	payload := json.RawMessage(raw)
	switch {
	case len(env.Metadata) > 0 && string(env.Metadata) != "null":
		payload = env.Metadata
	case len(env.Data) > 0 && string(env.Data) != "null":
		payload = env.Data
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return FrameUnknown, nil, errMalformedFrame
	}
	if _, ok := fields["locale"]; ok {
		return FrameMetadata, payload, nil
	}
	if _, ok := fields["text"]; ok {
		return FrameData, payload, nil
	}
	return FrameUnknown, payload, nil
}

// HandleFrame applies one websocket frame. Errors are only for logging; the
// stream keeps going.
func (t *TranscriptionStream) HandleFrame(ctx context.Context, raw []byte) (FrameKind, error) {
	s := t.svc
	kind, payload, err := ClassifyFrame(raw)
	s.countFrame(kind)
	if err != nil {
		s.drop("malformed")
		return kind, err
	}

	switch kind {
	case FrameMetadata:
		var md models.TranscriptionMetadata
		if err := json.Unmarshal(payload, &md); err != nil {
			s.drop("malformed")
			return kind, errMalformedFrame
		}
		if md.CorrelationID == "" {
			s.drop("no_correlation_id")
		}
		s.store.StoreMetadata(md)
		if md.CorrelationID != "" {
			t.correlationID = md.CorrelationID
			t.callConnectionID = md.CallConnectionID
		}

	case FrameData:
		var u models.Utterance
		if err := json.Unmarshal(payload, &u); err != nil {
			s.drop("malformed")
			return kind, errMalformedFrame
		}
		if t.correlationID == "" {
			s.drop("no_correlation_id")
			s.log.WithField("text_len", len(u.Text)).Error("transcription data before metadata on stream")
			return kind, nil
		}
		if !s.store.StoreUtterance(u, t.correlationID) {
			s.drop("no_session")
			return kind, nil
		}
		if s.metrics != nil {
			s.metrics.UtterancesStored.Inc()
		}
		if u.IsFinal() && s.publisher != nil {
			t.publish(ctx, u)
		}

	default:
		s.drop("unclassified")
	}
	return kind, nil
}

func (t *TranscriptionStream) publish(ctx context.Context, u models.Utterance) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := t.svc.publisher.PublishFinal(ctx, events.TranscriptEvent{
		CorrelationID:    t.correlationID,
		CallConnectionID: t.callConnectionID,
		Utterance:        u,
	})
	if err != nil {
		t.svc.log.WithError(err).WithField("correlation_id", t.correlationID).Warn("final utterance not published")
	}
}

func (s *callEventService) countFrame(kind FrameKind) {
	if s.metrics != nil {
		s.metrics.TranscriptionFrames.WithLabelValues(string(kind)).Inc()
	}
}

func (s *callEventService) drop(reason string) {
	if s.metrics != nil {
		s.metrics.TranscriptionDropped.WithLabelValues(reason).Inc()
	}
}
