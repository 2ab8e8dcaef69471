// Package notifications fans transcription state changes out to every connected
// browser. Delivery is best effort: no acknowledgement, no replay, and a
// subscriber that cannot keep up is dropped.
package notifications

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/virtualvisits/internal/logger"
	"github.com/yoockh/virtualvisits/internal/metrics"
)

const defaultBuffer = 16

var errEmptyEvent = errors.New("notification without event name")

// Message is one event frame queued for a subscriber.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Broadcaster is what event ingress depends on.
type Broadcaster interface {
	Broadcast(event string, payload any) error
}

type Subscriber struct {
	ID string
	ch chan Message
}

// Messages is closed when the hub drops the subscriber.
func (s *Subscriber) Messages() <-chan Message { return s.ch }

type Hub struct {
	log     *logrus.Logger
	metrics *metrics.Metrics
	buffer  int

	mu   sync.Mutex
	subs map[string]*Subscriber
}

func NewHub(l *logrus.Logger, m *metrics.Metrics) *Hub {
	if l == nil {
		l = logger.Discard()
	}
	return &Hub{
		log:     l,
		metrics: m,
		buffer:  defaultBuffer,
		subs:    make(map[string]*Subscriber),
	}
}

func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{ID: uuid.NewString(), ch: make(chan Message, h.buffer)}
	h.mu.Lock()
	h.subs[s.ID] = s
	n := len(h.subs)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.Subscribers.Inc()
	}
	h.log.WithFields(logrus.Fields{"client_id": s.ID, "subscribers": n}).Info("notification subscriber added")
	return s
}

// Unsubscribe is safe to call more than once and after the hub pruned s.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	removed := h.removeLocked(s.ID)
	h.mu.Unlock()
	if removed {
		h.log.WithField("client_id", s.ID).Info("notification subscriber removed")
	}
}

func (h *Hub) removeLocked(id string) bool {
	s, ok := h.subs[id]
	if !ok {
		return false
	}
	delete(h.subs, id)
	close(s.ch)
	if h.metrics != nil {
		h.metrics.Subscribers.Dec()
	}
	return true
}

// Broadcast encodes payload once and queues it for every subscriber.
func (h *Hub) Broadcast(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.Deliver(Message{Event: event, Data: data})
	return nil
}

// Deliver queues an already encoded message.
func (h *Hub) Deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.Broadcasts.WithLabelValues(msg.Event).Inc()
	}
	for id, s := range h.subs {
		select {
		case s.ch <- msg:
		default:
			h.log.WithFields(logrus.Fields{"client_id": id, "event": msg.Event}).Warn("notification subscriber too slow, dropping")
			h.removeLocked(id)
			if h.metrics != nil {
				h.metrics.SubscribersPruned.Inc()
			}
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// CloseAll drops every subscriber, ending their streams.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.subs {
		h.removeLocked(id)
	}
}
