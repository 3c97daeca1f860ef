package service

import (
	"context"

	"github.com/ds124wfegd/notification-engine/internal/entity"
)

type NotificationService interface {
	// Publish persists the notification, resolves its fanout channel and
	// broadcasts it. The store write is the durability guarantee; a failed
	// broadcast is logged, never returned.
	Publish(ctx context.Context, req *entity.PublishRequest) (*entity.Notification, error)

	GetNotification(ctx context.Context, id string) (*entity.Notification, error)

	// FetchPending returns the user's authoritative working set, priority
	// descending then created_at descending.
	FetchPending(ctx context.Context, userID, role string) ([]*entity.PendingNotification, error)

	// MarkAsRead is idempotent; every success also fans a state update out
	// on the user's own channel so sibling sessions converge.
	MarkAsRead(ctx context.Context, id, userID string) (*entity.Receipt, error)

	// Acknowledge resolves a CRITICAL notification. ErrNotCritical for any
	// other priority. Idempotent: acknowledged_at never moves once set.
	Acknowledge(ctx context.Context, id, userID string) (*entity.Receipt, error)

	// Dismiss hides the notification for the user's sessions only. Nothing
	// is persisted: the fanout is the whole operation.
	Dismiss(ctx context.Context, id, userID string) error

	// IncrementRepeat bumps the escalation counter server-side and returns
	// the fresh value, or ErrRepeatCapped once max_repeats is reached.
	IncrementRepeat(ctx context.Context, id string) (int, error)
}
