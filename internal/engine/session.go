package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ds124wfegd/notification-engine/internal/broker"
	"github.com/ds124wfegd/notification-engine/internal/entity"
	"github.com/ds124wfegd/notification-engine/internal/service"
	"github.com/ds124wfegd/notification-engine/internal/targeting"

	"github.com/sirupsen/logrus"
)

var ErrSessionClosed = errors.New("session is closed")

// State of one notification within one session.
type State int

const (
	StatePending State = iota
	StateDisplayed
	StateRead
	StateAcknowledged
	StateDismissed
	StateExpired
)

func (s State) Terminal() bool {
	return s == StateRead || s == StateAcknowledged || s == StateDismissed || s == StateExpired
}

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDisplayed:
		return "displayed"
	case StateRead:
		return "read"
	case StateAcknowledged:
		return "acknowledged"
	case StateDismissed:
		return "dismissed"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// entry is the engine's per-notification record: current state plus the
// cancellable retry timer handle for IMPORTANT entries.
type entry struct {
	notification *entity.Notification
	state        State
	timer        *time.Timer
}

type soundRequest struct {
	notificationID string
	priority       entity.PriorityLevel
	loop           bool
}

type Config struct {
	UserID string
	Role   string
	Groups []string

	// IntervalScale converts repeat_interval_minutes into wall time. It
	// defaults to time.Minute; tests shrink it.
	IntervalScale time.Duration

	// SubscribeRetry is the pause before re-subscribing after a transport
	// gap. Defaults to time.Second.
	SubscribeRetry time.Duration
}

// Session is one client session's escalation engine. Every transport
// delivery, timer fire and user action is serialized onto a single event
// loop, so the working set needs no locking. All state lives on the struct:
// two sessions in one process never interfere.
type Session struct {
	cfg       Config
	svc       service.NotificationService
	broker    broker.Broker
	presenter Presenter

	ops  chan func()
	done chan struct{}

	// Loop-owned state. Touched only from Run's goroutine.
	entries  map[string]*entry
	deferred *soundRequest

	log *logrus.Entry
}

func NewSession(cfg Config, svc service.NotificationService, b broker.Broker, p Presenter) *Session {
	if cfg.IntervalScale <= 0 {
		cfg.IntervalScale = time.Minute
	}
	if cfg.SubscribeRetry <= 0 {
		cfg.SubscribeRetry = time.Second
	}

	return &Session{
		cfg:       cfg,
		svc:       svc,
		broker:    b,
		presenter: p,
		ops:       make(chan func(), 64),
		done:      make(chan struct{}),
		entries:   make(map[string]*entry),
		log: logrus.WithFields(logrus.Fields{
			"user_id": cfg.UserID,
			"role":    cfg.Role,
		}),
	}
}

// Run subscribes, reconciles against the store and then drives the event
// loop until ctx is cancelled. Reconciliation repeats after every transport
// gap: in-memory state is never trusted across a reconnect.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	sub, err := s.subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if sub != nil {
			sub.Close()
		}
	}()

	s.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case op := <-s.ops:
			op()
		case err := <-sub.Err():
			s.log.Warnf("Transport subscription lost: %v", err)
			sub.Close()
			sub, err = s.resubscribe(ctx)
			if err != nil {
				return err
			}
			s.reconcile(ctx)
		}
	}
}

func (s *Session) subscribe(ctx context.Context) (broker.Subscription, error) {
	channels := targeting.SessionChannels(s.cfg.UserID, s.cfg.Role, s.cfg.Groups...)
	return s.broker.Subscribe(ctx, channels, func(event *entity.Event) {
		s.enqueue(func() { s.handleEvent(ctx, event) })
	})
}

func (s *Session) resubscribe(ctx context.Context) (broker.Subscription, error) {
	for {
		sub, err := s.subscribe(ctx)
		if err == nil {
			return sub, nil
		}

		s.log.Warnf("Re-subscribe failed, retrying: %v", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.SubscribeRetry):
		}
	}
}

// enqueue posts work onto the event loop without blocking loop-owned state.
func (s *Session) enqueue(op func()) {
	select {
	case s.ops <- op:
	case <-s.done:
	}
}

// do runs fn on the event loop and waits for its result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	resp := make(chan error, 1)

	select {
	case s.ops <- func() { resp <- fn() }:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkAsRead resolves a NORMAL/IMPORTANT entry for this user everywhere:
// the receipt upsert is idempotent and the resulting state update converges
// sibling sessions.
func (s *Session) MarkAsRead(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		s.replayDeferredSound()

		if _, err := s.svc.MarkAsRead(ctx, id, s.cfg.UserID); err != nil {
			return err
		}
		s.applyRead(id)
		return nil
	})
}

// Acknowledge is the only valid exit for CRITICAL: it stops the loop cue,
// persists acknowledged+read, and follows the deep link when present.
func (s *Session) Acknowledge(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		s.replayDeferredSound()

		if _, err := s.svc.Acknowledge(ctx, id, s.cfg.UserID); err != nil {
			return err
		}
		s.applyAcknowledged(id, true)
		return nil
	})
}

// Dismiss hides the entry locally without marking it read. CRITICAL entries
// are non-dismissible.
func (s *Session) Dismiss(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		s.replayDeferredSound()

		if e, ok := s.entries[id]; ok && e.notification.Priority == entity.PriorityCritical {
			return entity.ErrNotDismissible
		}

		if err := s.svc.Dismiss(ctx, id, s.cfg.UserID); err != nil {
			return err
		}
		s.applyDismissed(id)
		return nil
	})
}

// StateOf reports the session-local state of a notification id, for the
// presentation layer and tests.
func (s *Session) StateOf(ctx context.Context, id string) (State, error) {
	var state State
	err := s.do(ctx, func() error {
		e, ok := s.entries[id]
		if !ok {
			return entity.ErrNotificationNotFound
		}
		state = e.state
		return nil
	})
	return state, err
}

func (s *Session) handleEvent(ctx context.Context, event *entity.Event) {
	switch event.Type {
	case entity.EventNotification:
		if event.Notification == nil {
			return
		}
		s.deliver(ctx, event.Notification, false)
	case entity.EventStateUpdate:
		if event.StateUpdate == nil {
			return
		}
		s.applyStateUpdate(event.StateUpdate)
	default:
		s.log.Warnf("Dropping event of unknown type %q", event.Type)
	}
}
