package worker

import (
	"context"
	"time"

	"github.com/ds124wfegd/notification-engine/internal/broker"
	"github.com/ds124wfegd/notification-engine/internal/database"
	"github.com/ds124wfegd/notification-engine/internal/entity"
	"github.com/ds124wfegd/notification-engine/internal/targeting"

	"github.com/sirupsen/logrus"
)

// ExpiryWorker periodically flags notifications whose expires_at has passed
// and fans an expired state update out on each one's channel, so live
// sessions drop the entry and cancel any armed retry timer. The flagged row
// is retained as history; only reconciliation fetches exclude it.
type ExpiryWorker struct {
	repo     database.NotificationRepository
	broker   broker.Broker
	interval time.Duration
}

func NewExpiryWorker(repo database.NotificationRepository, b broker.Broker, interval time.Duration) *ExpiryWorker {
	return &ExpiryWorker{
		repo:     repo,
		broker:   b,
		interval: interval,
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.Info("Expiry worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	expired, err := w.repo.SweepExpired(ctx, time.Now())
	if err != nil {
		logrus.Errorf("Expiry sweep failed: %v", err)
		return
	}

	if len(expired) == 0 {
		return
	}

	logrus.Infof("Expired %d notifications", len(expired))

	for _, n := range expired {
		channel, err := targeting.Resolve(n.TargetType, n.TargetID)
		if err != nil {
			logrus.Warnf("Cannot resolve channel for expired notification %s: %v", n.ID, err)
			continue
		}

		event := &entity.Event{
			Type: entity.EventStateUpdate,
			StateUpdate: &entity.StateUpdate{
				NotificationID: n.ID,
				Action:         entity.ActionExpired,
			},
		}
		if err := w.broker.Publish(ctx, channel, event); err != nil {
			// Best-effort: reconciliation excludes expired rows anyway.
			logrus.Warnf("Expired fanout for %s failed: %v", n.ID, err)
		}
	}
}
