package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisPublisher broadcasts messages on a pub/sub channel so every api-server
// instance can push them to its connected dashboards.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal message: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("notify: redis publish: %w", err)
	}
	return nil
}

// RedisRelay subscribes to the channel and hands each message to a local sink.
type RedisRelay struct {
	client     *redis.Client
	channel    string
	sink       Publisher
	log        logrus.FieldLogger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewRedisRelay(client *redis.Client, channel string, sink Publisher, log logrus.FieldLogger) *RedisRelay {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisRelay{
		client:     client,
		channel:    channel,
		sink:       sink,
		log:        log,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// WithBackoff sets the delay bounds between subscribe attempts.
func (r *RedisRelay) WithBackoff(initial, limit time.Duration) *RedisRelay {
	if initial > 0 {
		r.minBackoff = initial
	}
	if limit >= r.minBackoff {
		r.maxBackoff = limit
	}
	return r
}

// Run blocks until ctx is done, subscribing again with exponential backoff
// whenever the subscription fails or drops. ready, if non-nil, is closed once
// the first subscription is confirmed.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) {
	var readyOnce sync.Once
	markReady := func() {
		if ready != nil {
			readyOnce.Do(func() { close(ready) })
		}
	}

	backoff := r.minBackoff
	for {
		subscribed, err := r.relay(ctx, markReady)
		if ctx.Err() != nil {
			return
		}
		if subscribed {
			backoff = r.minBackoff
		}
		entry := r.log.WithFields(logrus.Fields{"channel": r.channel, "retry_in": backoff})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Warn("relay: subscription lost, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
}

// relay runs one subscription until it fails, closes or ctx is done. It
// reports whether the subscription was confirmed.
func (r *RedisRelay) relay(ctx context.Context, markReady func()) (bool, error) {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("notify: subscribe %s: %w", r.channel, err)
	}
	markReady()
	r.log.WithField("channel", r.channel).Info("relay: subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case m, ok := <-ch:
			if !ok {
				return true, nil
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				r.log.WithError(err).Warn("relay: undecodable notification")
				continue
			}
			if err := r.sink.Publish(ctx, msg); err != nil {
				r.log.WithError(err).WithField("appointment_id", msg.AppointmentID).Warn("relay: sink publish failed")
			}
		}
	}
}
