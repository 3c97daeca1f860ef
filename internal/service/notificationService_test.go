package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/notification-engine/internal/broker"
	"github.com/ds124wfegd/notification-engine/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRepo records calls and serves canned rows.
type stubRepo struct {
	mu       sync.Mutex
	rows     map[string]*entity.Notification
	created  []*entity.Notification
	readOps  int
	ackOps   int
	repeatAt map[string]int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		rows:     map[string]*entity.Notification{},
		repeatAt: map[string]int{},
	}
}

func (r *stubRepo) Create(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[n.ID] = n
	r.created = append(r.created, n)
	return nil
}

func (r *stubRepo) GetByID(_ context.Context, id string) (*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, entity.ErrNotificationNotFound
	}
	return n, nil
}

func (r *stubRepo) GetPending(_ context.Context, _, _ string) ([]*entity.PendingNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.PendingNotification
	for _, n := range r.rows {
		out = append(out, &entity.PendingNotification{Notification: *n})
	}
	return out, nil
}

func (r *stubRepo) MarkRead(_ context.Context, id, userID string) (*entity.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return nil, entity.ErrNotificationNotFound
	}
	r.readOps++
	return &entity.Receipt{NotificationID: id, UserID: userID, IsRead: true}, nil
}

func (r *stubRepo) Acknowledge(_ context.Context, id, userID string) (*entity.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, entity.ErrNotificationNotFound
	}
	if n.Priority != entity.PriorityCritical {
		return nil, entity.ErrNotCritical
	}
	r.ackOps++
	return &entity.Receipt{NotificationID: id, UserID: userID, IsRead: true, Acknowledged: true}, nil
}

func (r *stubRepo) IncrementRepeat(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return 0, entity.ErrNotificationNotFound
	}
	if r.repeatAt[id] >= n.MaxRepeats {
		return 0, entity.ErrRepeatCapped
	}
	r.repeatAt[id]++
	return r.repeatAt[id], nil
}

func (r *stubRepo) SweepExpired(_ context.Context, _ time.Time) ([]*entity.Notification, error) {
	return nil, nil
}

// recordingBroker captures published events; failErr makes every publish
// fail to prove fanout stays best-effort.
type recordingBroker struct {
	mu        sync.Mutex
	published []publishedEvent
	failErr   error
}

type publishedEvent struct {
	channel string
	event   *entity.Event
}

func (b *recordingBroker) Publish(_ context.Context, channel string, event *entity.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failErr != nil {
		return b.failErr
	}
	b.published = append(b.published, publishedEvent{channel: channel, event: event})
	return nil
}

func (b *recordingBroker) Subscribe(_ context.Context, _ []string, _ broker.Handler) (broker.Subscription, error) {
	return noopSub{}, nil
}

type noopSub struct{}

func (noopSub) Err() <-chan error { return nil }
func (noopSub) Close() error      { return nil }

func (b *recordingBroker) Close() error { return nil }

func (b *recordingBroker) last() publishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[len(b.published)-1]
}

func (b *recordingBroker) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func TestPublishPersistsThenFansOut(t *testing.T) {
	repo := newStubRepo()
	bk := &recordingBroker{}
	svc := NewNotificationService(repo, bk)

	n, err := svc.Publish(context.Background(), &entity.PublishRequest{
		TargetType: entity.TargetUser,
		TargetID:   "u1",
		Title:      "task assigned",
		Message:    "m",
		Category:   "task",
		Priority:   entity.PriorityNormal,
	})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)

	require.Len(t, repo.created, 1)
	require.Equal(t, 1, bk.count())

	published := bk.last()
	assert.Equal(t, "notify.user.u1", published.channel)
	assert.Equal(t, entity.EventNotification, published.event.Type)
	assert.Equal(t, n.ID, published.event.Notification.ID)
}

func TestPublishSurvivesTransportFailure(t *testing.T) {
	repo := newStubRepo()
	bk := &recordingBroker{failErr: errors.New("redis down")}
	svc := NewNotificationService(repo, bk)

	n, err := svc.Publish(context.Background(), &entity.PublishRequest{
		TargetType: entity.TargetAll,
		Title:      "maintenance",
		Message:    "m",
		Priority:   entity.PriorityImportant,
	})

	// The store write is the durability guarantee; the broadcast is not.
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, n.ID, repo.created[0].ID)
}

func TestPublishValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     *entity.PublishRequest
		wantErr error
	}{
		{
			name: "unknown priority",
			req: &entity.PublishRequest{
				TargetType: entity.TargetAll,
				Title:      "t", Message: "m",
				Priority: entity.PriorityLevel("URGENT"),
			},
			wantErr: entity.ErrInvalidPriority,
		},
		{
			name: "repeats on normal priority",
			req: &entity.PublishRequest{
				TargetType: entity.TargetAll,
				Title:      "t", Message: "m",
				Priority:              entity.PriorityNormal,
				RepeatIntervalMinutes: 5,
				MaxRepeats:            3,
			},
			wantErr: entity.ErrInvalidRepeat,
		},
		{
			name: "expiry in the past",
			req: &entity.PublishRequest{
				TargetType: entity.TargetAll,
				Title:      "t", Message: "m",
				Priority:  entity.PriorityNormal,
				ExpiresAt: timePtr(time.Now().Add(-time.Minute)),
			},
			wantErr: entity.ErrInvalidExpiry,
		},
		{
			name: "user target without id",
			req: &entity.PublishRequest{
				TargetType: entity.TargetUser,
				Title:      "t", Message: "m",
				Priority: entity.PriorityNormal,
			},
			wantErr: entity.ErrInvalidTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newStubRepo()
			svc := NewNotificationService(repo, &recordingBroker{})

			_, err := svc.Publish(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, repo.created, "nothing may be persisted on validation failure")
		})
	}
}

func TestMarkAsReadFansOutStateUpdate(t *testing.T) {
	repo := newStubRepo()
	bk := &recordingBroker{}
	svc := NewNotificationService(repo, bk)

	repo.rows["n1"] = &entity.Notification{ID: "n1", Priority: entity.PriorityImportant}

	receipt, err := svc.MarkAsRead(context.Background(), "n1", "u1")
	require.NoError(t, err)
	assert.True(t, receipt.IsRead)

	published := bk.last()
	assert.Equal(t, "notify.user.u1", published.channel)
	assert.Equal(t, entity.EventStateUpdate, published.event.Type)
	assert.Equal(t, entity.ActionRead, published.event.StateUpdate.Action)
	assert.Equal(t, "n1", published.event.StateUpdate.NotificationID)
}

func TestAcknowledgeRejectsNonCritical(t *testing.T) {
	repo := newStubRepo()
	bk := &recordingBroker{}
	svc := NewNotificationService(repo, bk)

	repo.rows["n1"] = &entity.Notification{ID: "n1", Priority: entity.PriorityNormal}

	_, err := svc.Acknowledge(context.Background(), "n1", "u1")
	require.ErrorIs(t, err, entity.ErrNotCritical)
	assert.Zero(t, bk.count(), "no state update for a rejected transition")
}

func TestDismissFansOutWithoutPersisting(t *testing.T) {
	repo := newStubRepo()
	bk := &recordingBroker{}
	svc := NewNotificationService(repo, bk)

	repo.rows["n1"] = &entity.Notification{ID: "n1", Priority: entity.PriorityImportant}

	require.NoError(t, svc.Dismiss(context.Background(), "n1", "u1"))

	assert.Zero(t, repo.readOps, "dismiss never writes a receipt")
	published := bk.last()
	assert.Equal(t, entity.ActionDismissed, published.event.StateUpdate.Action)
}

func TestFetchPendingSortsWorkingSet(t *testing.T) {
	repo := newStubRepo()
	svc := NewNotificationService(repo, &recordingBroker{})

	base := time.Now().Add(-time.Hour)
	repo.rows["n"] = &entity.Notification{ID: "n", Priority: entity.PriorityNormal, CreatedAt: base}
	repo.rows["c"] = &entity.Notification{ID: "c", Priority: entity.PriorityCritical, CreatedAt: base.Add(time.Minute)}
	repo.rows["i"] = &entity.Notification{ID: "i", Priority: entity.PriorityImportant, CreatedAt: base.Add(2 * time.Minute)}

	pending, err := svc.FetchPending(context.Background(), "u1", "intern")
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "c", pending[0].ID)
	assert.Equal(t, "i", pending[1].ID)
	assert.Equal(t, "n", pending[2].ID)
}

func timePtr(t time.Time) *time.Time { return &t }
