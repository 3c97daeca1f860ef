package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ds124wfegd/notification-engine/internal/entity"
)

// deliver admits a notification into the working set. A second arrival of
// the same id is a no-op: duplicate transport delivery and reconciliation
// overlap must never re-display or replay a cue.
func (s *Session) deliver(ctx context.Context, n *entity.Notification, silent bool) {
	if existing, ok := s.entries[n.ID]; ok {
		// Keep the freshest repeat counter from whichever path won.
		if n.RepeatCount > existing.notification.RepeatCount {
			existing.notification.RepeatCount = n.RepeatCount
		}
		return
	}

	if n.IsExpiredAt(time.Now()) {
		return
	}

	e := &entry{notification: n, state: StatePending}
	s.entries[n.ID] = e

	s.display(e, silent, false)

	if n.Priority == entity.PriorityImportant {
		s.armRetry(ctx, e)
	}
}

// display moves Pending -> Displayed and drives the presentation side
// effects appropriate to the priority level.
func (s *Session) display(e *entry, silent, redisplay bool) {
	n := e.notification
	e.state = StateDisplayed

	s.presenter.Display(n, DisplayOptions{
		Persistent: n.Priority == entity.PriorityImportant,
		Blocking:   n.Priority == entity.PriorityCritical,
		Silent:     silent,
		Redisplay:  redisplay,
	})

	if silent {
		return
	}
	s.playSound(n.ID, n.Priority, n.Priority == entity.PriorityCritical)
}

// playSound never fails the surrounding transition. A refused cue parks one
// deferred replay request; a newer request supersedes an older one.
func (s *Session) playSound(id string, priority entity.PriorityLevel, loop bool) {
	if err := s.presenter.PlaySound(id, priority, loop); err != nil {
		s.log.Debugf("Sound cue for %s deferred: %v", id, err)
		s.deferred = &soundRequest{notificationID: id, priority: priority, loop: loop}
	}
}

// replayDeferredSound runs at the start of every user action, the moment a
// platform that blocked autoplay is most likely to allow audio again.
func (s *Session) replayDeferredSound() {
	req := s.deferred
	if req == nil {
		return
	}

	e, ok := s.entries[req.notificationID]
	if !ok || e.state.Terminal() {
		s.deferred = nil
		return
	}

	if err := s.presenter.PlaySound(req.notificationID, req.priority, req.loop); err != nil {
		return
	}
	s.deferred = nil
}

// armRetry schedules the next escalation for an IMPORTANT entry. No timer
// is armed once the repeat counter has reached its cap.
func (s *Session) armRetry(ctx context.Context, e *entry) {
	n := e.notification
	if n.RepeatIntervalMinutes <= 0 || n.RepeatCount >= n.MaxRepeats {
		return
	}

	interval := time.Duration(n.RepeatIntervalMinutes) * s.cfg.IntervalScale
	id := n.ID
	e.timer = time.AfterFunc(interval, func() {
		s.enqueue(func() { s.handleRetryFire(ctx, id) })
	})
}

// handleRetryFire runs on the event loop when a retry timer fires. The
// entry's current state is re-checked first: a timer that lost the race
// against cancellation acts on nothing.
func (s *Session) handleRetryFire(ctx context.Context, id string) {
	e, ok := s.entries[id]
	if !ok || e.state != StateDisplayed {
		return
	}
	e.timer = nil

	count, err := s.svc.IncrementRepeat(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrRepeatCapped) {
			return
		}
		// The store decides whether escalation continues; on failure the
		// timer re-arms and the fire is retried next interval.
		s.log.Warnf("Repeat increment for %s failed: %v", id, err)
		s.armRetry(ctx, e)
		return
	}

	e.notification.RepeatCount = count
	s.display(e, false, true)
	s.armRetry(ctx, e)
}

func (s *Session) cancelRetry(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (s *Session) applyRead(id string) {
	e, ok := s.entries[id]
	if !ok || e.state.Terminal() {
		return
	}

	s.cancelRetry(e)

	// Reading a CRITICAL entry does not resolve it: the loop cue keeps
	// playing and the entry stays displayed until acknowledged.
	if e.notification.Priority == entity.PriorityCritical {
		return
	}
	e.state = StateRead
}

// applyAcknowledged resolves the entry and stops the loop cue. navigate is
// true only for the session whose own user action acknowledged: converging
// a remote ack must not re-trigger navigation here.
func (s *Session) applyAcknowledged(id string, navigate bool) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	if e.state == StateAcknowledged {
		return
	}

	s.cancelRetry(e)
	e.state = StateAcknowledged
	s.presenter.StopSound(id)

	if link := e.notification.Link; navigate && link != "" {
		s.presenter.Navigate(link)
	}
}

func (s *Session) applyDismissed(id string) {
	e, ok := s.entries[id]
	if !ok || e.state.Terminal() {
		return
	}
	if e.notification.Priority == entity.PriorityCritical {
		return
	}

	s.cancelRetry(e)
	e.state = StateDismissed
}

func (s *Session) applyExpired(id string) {
	e, ok := s.entries[id]
	if !ok || e.state.Terminal() {
		return
	}

	s.cancelRetry(e)

	// An un-acknowledged CRITICAL keeps ringing even past its expiry:
	// acknowledgment is the only silencing action.
	if e.notification.Priority == entity.PriorityCritical {
		return
	}
	e.state = StateExpired
}

// applyStateUpdate converges a transition performed by another session of
// the same user (or the expiry sweep). Local timers for the id are
// cancelled so an alarm silenced on one device stops everywhere.
func (s *Session) applyStateUpdate(u *entity.StateUpdate) {
	if e, ok := s.entries[u.NotificationID]; ok && u.RepeatCount > e.notification.RepeatCount {
		e.notification.RepeatCount = u.RepeatCount
	}

	switch u.Action {
	case entity.ActionRead:
		s.applyRead(u.NotificationID)
	case entity.ActionAcknowledged:
		s.applyAcknowledged(u.NotificationID, false)
	case entity.ActionDismissed:
		s.applyDismissed(u.NotificationID)
	case entity.ActionExpired:
		s.applyExpired(u.NotificationID)
	}
}
