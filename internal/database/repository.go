package database

import (
	"context"
	"time"

	"github.com/ds124wfegd/notification-engine/internal/entity"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	GetByID(ctx context.Context, id string) (*entity.Notification, error)

	// GetPending returns every notification addressed to the user, their
	// role or ALL that still requires action from this user: unread, or
	// critical and unacknowledged, and not expired.
	GetPending(ctx context.Context, userID, role string) ([]*entity.PendingNotification, error)

	// MarkRead upserts the user's receipt. Idempotent: the first call wins
	// read_at, later calls converge to the same state without error.
	MarkRead(ctx context.Context, id, userID string) (*entity.Receipt, error)

	// Acknowledge upserts acknowledged and read on the user's receipt.
	// Only valid for critical notifications. Idempotent: acknowledged_at is
	// never moved once set.
	Acknowledge(ctx context.Context, id, userID string) (*entity.Receipt, error)

	// IncrementRepeat atomically bumps repeat_count server-side, capped at
	// max_repeats. Returns the new count, or ErrRepeatCapped when the cap
	// was already reached.
	IncrementRepeat(ctx context.Context, id string) (int, error)

	// SweepExpired flags rows whose expires_at has passed and returns the
	// newly flagged notifications so state updates can be fanned out.
	SweepExpired(ctx context.Context, now time.Time) ([]*entity.Notification, error)
}
