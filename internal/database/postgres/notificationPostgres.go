package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ds124wfegd/notification-engine/internal/database"
	"github.com/ds124wfegd/notification-engine/internal/entity"
)

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) database.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			id, target_type, target_id, title, message, category, link,
			priority, metadata, repeat_interval_minutes, max_repeats,
			repeat_count, created_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	var metadata interface{}
	if len(n.Metadata) > 0 {
		metadata = []byte(n.Metadata)
	}

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.TargetType,
		n.TargetID,
		n.Title,
		n.Message,
		n.Category,
		n.Link,
		n.Priority,
		metadata,
		n.RepeatIntervalMinutes,
		n.MaxRepeats,
		n.RepeatCount,
		n.CreatedAt,
		n.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	query := `
		SELECT id, target_type, target_id, title, message, category, link,
		       priority, COALESCE(metadata, 'null'), repeat_interval_minutes,
		       max_repeats, repeat_count, created_at, expires_at, expired
		FROM notifications
		WHERE id = $1
	`

	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entity.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification %s: %w", id, err)
	}

	return n, nil
}

// GetPending joins the shared notification rows with this user's own
// receipts. A row stays pending while unread, or, for CRITICAL, while
// unacknowledged even if already read.
func (r *notificationRepository) GetPending(ctx context.Context, userID, role string) ([]*entity.PendingNotification, error) {
	query := `
		SELECT n.id, n.target_type, n.target_id, n.title, n.message,
		       n.category, n.link, n.priority, COALESCE(n.metadata, 'null'),
		       n.repeat_interval_minutes, n.max_repeats, n.repeat_count,
		       n.created_at, n.expires_at, n.expired,
		       COALESCE(r.is_read, FALSE), COALESCE(r.acknowledged, FALSE)
		FROM notifications n
		LEFT JOIN notification_receipts r
		       ON r.notification_id = n.id AND r.user_id = $1
		WHERE (
			(n.target_type = 'USER' AND n.target_id = $1)
			OR (n.target_type = 'ROLE' AND n.target_id = $2)
			OR n.target_type = 'ALL'
		)
		AND NOT n.expired
		AND (n.expires_at IS NULL OR n.expires_at > NOW())
		AND (
			NOT COALESCE(r.is_read, FALSE)
			OR (n.priority = 'CRITICAL' AND NOT COALESCE(r.acknowledged, FALSE))
		)
		ORDER BY n.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending notifications: %w", err)
	}
	defer rows.Close()

	var pending []*entity.PendingNotification
	for rows.Next() {
		var p entity.PendingNotification
		var targetID, link, category sql.NullString
		var metadata []byte
		var expiresAt sql.NullTime

		err := rows.Scan(
			&p.ID, &p.TargetType, &targetID, &p.Title, &p.Message,
			&category, &link, &p.Priority, &metadata,
			&p.RepeatIntervalMinutes, &p.MaxRepeats, &p.RepeatCount,
			&p.CreatedAt, &expiresAt, &p.Expired,
			&p.IsRead, &p.Acknowledged,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending notification: %w", err)
		}

		p.TargetID = targetID.String
		p.Category = category.String
		p.Link = link.String
		if string(metadata) != "null" {
			p.Metadata = metadata
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			p.ExpiresAt = &t
		}

		pending = append(pending, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending notifications: %w", err)
	}

	return pending, nil
}

// MarkRead is a race-safe upsert: two sessions double-submitting converge to
// the same receipt, and read_at keeps its first value.
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string) (*entity.Receipt, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO notification_receipts (notification_id, user_id, is_read, read_at)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (notification_id, user_id) DO UPDATE SET
			is_read = TRUE,
			read_at = COALESCE(notification_receipts.read_at, EXCLUDED.read_at)
		RETURNING notification_id, user_id, is_read, read_at, acknowledged, acknowledged_at
	`

	return scanReceipt(r.db.QueryRowContext(ctx, query, id, userID, time.Now()))
}

// Acknowledge upserts acknowledged and read together. acknowledged_at never
// moves once set, so a double acknowledge is a converging no-op.
func (r *notificationRepository) Acknowledge(ctx context.Context, id, userID string) (*entity.Receipt, error) {
	n, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Priority != entity.PriorityCritical {
		return nil, entity.ErrNotCritical
	}

	now := time.Now()
	query := `
		INSERT INTO notification_receipts
			(notification_id, user_id, is_read, read_at, acknowledged, acknowledged_at)
		VALUES ($1, $2, TRUE, $3, TRUE, $3)
		ON CONFLICT (notification_id, user_id) DO UPDATE SET
			is_read = TRUE,
			read_at = COALESCE(notification_receipts.read_at, EXCLUDED.read_at),
			acknowledged = TRUE,
			acknowledged_at = COALESCE(notification_receipts.acknowledged_at, EXCLUDED.acknowledged_at)
		RETURNING notification_id, user_id, is_read, read_at, acknowledged, acknowledged_at
	`

	return scanReceipt(r.db.QueryRowContext(ctx, query, id, userID, now))
}

// IncrementRepeat is a single server-side increment-and-return so timers
// firing near-simultaneously on two sessions cannot over-count.
func (r *notificationRepository) IncrementRepeat(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE notifications
		SET repeat_count = repeat_count + 1
		WHERE id = $1 AND repeat_count < max_repeats
		RETURNING repeat_count
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&count)
	if err == sql.ErrNoRows {
		// Either unknown id or the cap was already reached.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return 0, getErr
		}
		return 0, entity.ErrRepeatCapped
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment repeat count for %s: %w", id, err)
	}

	return count, nil
}

func (r *notificationRepository) SweepExpired(ctx context.Context, now time.Time) ([]*entity.Notification, error) {
	query := `
		UPDATE notifications
		SET expired = TRUE
		WHERE NOT expired AND expires_at IS NOT NULL AND expires_at <= $1
		RETURNING id, target_type, target_id, title, message, category, link,
		          priority, COALESCE(metadata, 'null'), repeat_interval_minutes,
		          max_repeats, repeat_count, created_at, expires_at, expired
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep expired notifications: %w", err)
	}
	defer rows.Close()

	var expired []*entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired notification: %w", err)
		}
		expired = append(expired, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired notifications: %w", err)
	}

	return expired, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var n entity.Notification
	var targetID, link, category sql.NullString
	var metadata []byte
	var expiresAt sql.NullTime

	err := row.Scan(
		&n.ID, &n.TargetType, &targetID, &n.Title, &n.Message,
		&category, &link, &n.Priority, &metadata,
		&n.RepeatIntervalMinutes, &n.MaxRepeats, &n.RepeatCount,
		&n.CreatedAt, &expiresAt, &n.Expired,
	)
	if err != nil {
		return nil, err
	}

	n.TargetID = targetID.String
	n.Category = category.String
	n.Link = link.String
	if string(metadata) != "null" {
		n.Metadata = metadata
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		n.ExpiresAt = &t
	}

	return &n, nil
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var rec entity.Receipt
	var readAt, ackedAt sql.NullTime

	err := row.Scan(
		&rec.NotificationID, &rec.UserID,
		&rec.IsRead, &readAt,
		&rec.Acknowledged, &ackedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan receipt: %w", err)
	}

	if readAt.Valid {
		t := readAt.Time
		rec.ReadAt = &t
	}
	if ackedAt.Valid {
		t := ackedAt.Time
		rec.AcknowledgedAt = &t
	}

	return &rec, nil
}
