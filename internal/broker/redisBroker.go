package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ds124wfegd/notification-engine/internal/entity"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type redisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) Broker {
	return &redisBroker{client: client}
}

func (b *redisBroker) Publish(ctx context.Context, channel string, event *entity.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	return nil
}

func (b *redisBroker) Subscribe(ctx context.Context, channels []string, handler Handler) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channels...)

	// Force the SUBSCRIBE round-trip so a dead broker fails fast here
	// instead of silently delivering nothing.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %v: %w", channels, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}

	go sub.receive(ctx, handler)
	return sub, nil
}

func (b *redisBroker) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	errCh  chan error
	done   chan struct{}
}

func (s *redisSubscription) receive(ctx context.Context, handler Handler) {
	ch := s.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok {
				// go-redis closes the channel only when the pubsub is
				// closed; report the gap so the session reconciles.
				select {
				case s.errCh <- fmt.Errorf("subscription channel closed"):
				default:
				}
				return
			}

			var event entity.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logrus.WithFields(logrus.Fields{
					"channel": msg.Channel,
				}).Warnf("Dropping undecodable event: %v", err)
				continue
			}

			handler(&event)
		}
	}
}

func (s *redisSubscription) Err() <-chan error {
	return s.errCh
}

func (s *redisSubscription) Close() error {
	close(s.done)
	return s.pubsub.Close()
}
