package broker

import (
	"context"

	"github.com/ds124wfegd/notification-engine/internal/entity"
)

// Handler receives one decoded event. Delivery is at-most-once per
// subscriber session, with no ordering guarantee across channels.
type Handler func(event *entity.Event)

// Subscription is one live set of channel subscriptions. Err surfaces a
// connection gap; after a value is received the subscription has recovered
// (or Close was called) and the session must reconcile against the store.
type Subscription interface {
	Err() <-chan error
	Close() error
}

// Broker is the real-time fanout contract. It is a latency optimization on
// top of the store, never a durability guarantee: publishes are best-effort
// and nothing is delivered while disconnected.
type Broker interface {
	Publish(ctx context.Context, channel string, event *entity.Event) error
	Subscribe(ctx context.Context, channels []string, handler Handler) (Subscription, error)
	Close() error
}
