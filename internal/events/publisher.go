// Package events publishes final transcript utterances to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/virtualvisits/internal/logger"
	"github.com/yoockh/virtualvisits/internal/metrics"
	"github.com/yoockh/virtualvisits/internal/models"
)

const DefaultTopic = "virtualvisits.transcripts.final"

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// TranscriptEvent is the message value; the key is the correlation id.
type TranscriptEvent struct {
	CorrelationID    string           `json:"correlationId"`
	CallConnectionID string           `json:"callConnectionId,omitempty"`
	Utterance        models.Utterance `json:"utterance"`
	ReceivedAt       time.Time        `json:"receivedAt"`
}

type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	log     *logrus.Logger
	metrics *metrics.Metrics
}

// New returns a publisher; without brokers it only logs.
func New(cfg *Config, l *logrus.Logger, m *metrics.Metrics) *Publisher {
	if l == nil {
		l = logger.Discard()
	}
	topic := DefaultTopic
	if cfg != nil && cfg.Topic != "" {
		topic = cfg.Topic
	}
	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		l.Info("kafka disabled, transcript publisher in log-only mode")
		return &Publisher{topic: topic, enabled: false, log: l, metrics: m}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	l.WithFields(logrus.Fields{"brokers": cfg.Brokers, "topic": topic}).Info("kafka transcript publisher initialized")

	return &Publisher{writer: w, topic: topic, enabled: true, log: l, metrics: m}
}

func (p *Publisher) Enabled() bool { return p.enabled }

// PublishFinal writes one final utterance keyed by its correlation id, so all
// utterances of one transcription land on the same partition in order.
func (p *Publisher) PublishFinal(ctx context.Context, ev TranscriptEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	entry := p.log.WithFields(logrus.Fields{
		"topic":          p.topic,
		"correlation_id": ev.CorrelationID,
	})
	if !p.enabled || p.writer == nil {
		entry.Debug("transcript event (kafka disabled)")
		p.record("skipped")
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(ev.CorrelationID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("TranscriptionData")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		entry.WithError(err).Error("failed to write transcript event")
		p.record("error")
		return err
	}
	p.record("success")
	return nil
}

func (p *Publisher) record(result string) {
	if p.metrics != nil {
		p.metrics.TranscriptsPublished.WithLabelValues(result).Inc()
	}
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
