package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/notification-engine/internal/broker"
	"github.com/ds124wfegd/notification-engine/internal/database"
	"github.com/ds124wfegd/notification-engine/internal/entity"
	"github.com/ds124wfegd/notification-engine/internal/targeting"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type notificationService struct {
	repo   database.NotificationRepository
	broker broker.Broker
}

func NewNotificationService(repo database.NotificationRepository, b broker.Broker) NotificationService {
	return &notificationService{
		repo:   repo,
		broker: b,
	}
}

func (s *notificationService) Publish(ctx context.Context, req *entity.PublishRequest) (*entity.Notification, error) {
	if err := validatePublish(req); err != nil {
		return nil, err
	}

	now := time.Now()
	notification := &entity.Notification{
		ID:         req.ID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Title:      req.Title,
		Message:    req.Message,
		Category:   req.Category,
		Link:       req.Link,
		Priority:   req.Priority,
		Metadata:   req.Metadata,
		CreatedAt:  now,
		ExpiresAt:  req.ExpiresAt,
	}
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}

	// Repeat settings only have meaning for IMPORTANT.
	if req.Priority == entity.PriorityImportant {
		notification.RepeatIntervalMinutes = req.RepeatIntervalMinutes
		notification.MaxRepeats = req.MaxRepeats
	}

	channel, err := targeting.Resolve(req.TargetType, req.TargetID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	event := &entity.Event{
		Type:         entity.EventNotification,
		Notification: notification,
	}
	if err := s.broker.Publish(ctx, channel, event); err != nil {
		// Best-effort: reconciliation delivers it regardless.
		logrus.WithFields(logrus.Fields{
			"notification_id": notification.ID,
			"channel":         channel,
		}).Warnf("Transport fanout failed: %v", err)
	}

	return notification, nil
}

func (s *notificationService) GetNotification(ctx context.Context, id string) (*entity.Notification, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *notificationService) FetchPending(ctx context.Context, userID, role string) ([]*entity.PendingNotification, error) {
	pending, err := s.repo.GetPending(ctx, userID, role)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending notifications: %w", err)
	}

	entity.SortPending(pending)
	return pending, nil
}

func (s *notificationService) MarkAsRead(ctx context.Context, id, userID string) (*entity.Receipt, error) {
	receipt, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.fanoutStateUpdate(ctx, userID, &entity.StateUpdate{
		NotificationID: id,
		UserID:         userID,
		Action:         entity.ActionRead,
	})

	return receipt, nil
}

func (s *notificationService) Acknowledge(ctx context.Context, id, userID string) (*entity.Receipt, error) {
	receipt, err := s.repo.Acknowledge(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.fanoutStateUpdate(ctx, userID, &entity.StateUpdate{
		NotificationID: id,
		UserID:         userID,
		Action:         entity.ActionAcknowledged,
	})

	return receipt, nil
}

func (s *notificationService) Dismiss(ctx context.Context, id, userID string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	s.fanoutStateUpdate(ctx, userID, &entity.StateUpdate{
		NotificationID: id,
		UserID:         userID,
		Action:         entity.ActionDismissed,
	})

	return nil
}

func (s *notificationService) IncrementRepeat(ctx context.Context, id string) (int, error) {
	return s.repo.IncrementRepeat(ctx, id)
}

// fanoutStateUpdate converges the user's other sessions. Failures are logged
// and swallowed for the same reason publish fanout failures are.
func (s *notificationService) fanoutStateUpdate(ctx context.Context, userID string, update *entity.StateUpdate) {
	event := &entity.Event{
		Type:        entity.EventStateUpdate,
		StateUpdate: update,
	}

	channel := targeting.UserChannel(userID)
	if err := s.broker.Publish(ctx, channel, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"notification_id": update.NotificationID,
			"action":          update.Action,
		}).Warnf("State update fanout failed: %v", err)
	}
}

func validatePublish(req *entity.PublishRequest) error {
	switch req.Priority {
	case entity.PriorityNormal, entity.PriorityImportant, entity.PriorityCritical:
	default:
		return entity.ErrInvalidPriority
	}

	if req.Priority == entity.PriorityImportant {
		if req.RepeatIntervalMinutes < 0 || req.MaxRepeats < 0 {
			return entity.ErrInvalidRepeat
		}
	} else if req.RepeatIntervalMinutes != 0 || req.MaxRepeats != 0 {
		return fmt.Errorf("%w: repeats are only valid for IMPORTANT", entity.ErrInvalidRepeat)
	}

	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return entity.ErrInvalidExpiry
	}

	return nil
}
