package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultRelayChannel = "virtualvisits:notifications"

// RedisRelay spreads broadcasts across server instances over Redis pub/sub.
// Every instance runs Run and delivers what it receives to its local hub.
// While Run is not subscribed, broadcasts are also delivered locally.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	log     *logrus.Logger

	subscribed atomic.Bool
}

func NewRedisRelay(rdb *redis.Client, channel string, hub *Hub, l *logrus.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	if l == nil {
		l = hub.log
	}
	return &RedisRelay{rdb: rdb, channel: channel, hub: hub, log: l}
}

// Subscribed reports whether the relay loop is currently receiving.
func (r *RedisRelay) Subscribed() bool { return r.subscribed.Load() }

// Broadcast publishes to Redis. Local subscribers get the message through Run;
// if the publish fails or Run is not subscribed, it is delivered here instead.
func (r *RedisRelay) Broadcast(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := Message{Event: event, Data: data}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	perr := r.rdb.Publish(context.Background(), r.channel, b).Err()
	switch {
	case perr != nil:
		r.log.WithError(perr).WithField("event", event).Warn("redis publish failed, delivering locally")
		r.hub.Deliver(msg)
	case !r.subscribed.Load():
		r.log.WithField("event", event).Debug("relay not subscribed, delivering locally")
		r.hub.Deliver(msg)
	}
	return nil
}

// Run forwards relayed messages to the local hub until ctx is done or the
// subscription ends.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.subscribed.Store(true)
	defer r.subscribed.Store(false)
	r.log.WithField("channel", r.channel).Info("notification relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				r.log.WithField("channel", r.channel).Warn("notification relay channel closed")
				return nil
			}
			msg, err := decodeRelayed(m.Payload)
			if err != nil {
				r.log.WithError(err).Warn("malformed relayed notification ignored")
				continue
			}
			r.hub.Deliver(msg)
		}
	}
}

func decodeRelayed(payload string) (Message, error) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return Message{}, err
	}
	if msg.Event == "" {
		return Message{}, errEmptyEvent
	}
	return msg, nil
}
