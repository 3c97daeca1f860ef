package engine

import (
	"context"
	"time"

	"github.com/ds124wfegd/notification-engine/internal/entity"
)

// reconcile re-establishes the authoritative working set from the store.
// It runs on the event loop at session start and after every transport gap,
// so no delivery or user action interleaves with the merge.
//
// The fetched set is already priority-then-recency ordered. Everything is
// fed into the engine silently except the single most urgent new entry,
// which keeps its side effects: a session returning from a long gap gets
// one unmissable cue instead of an audio storm.
func (s *Session) reconcile(ctx context.Context) {
	pending, err := s.svc.FetchPending(ctx, s.cfg.UserID, s.cfg.Role)
	if err != nil {
		// The next reconnect (or the live feed) will catch us up.
		s.log.Errorf("Reconciliation fetch failed: %v", err)
		return
	}

	fetched := make(map[string]bool, len(pending))
	loudDone := false

	for _, p := range pending {
		fetched[p.ID] = true

		if existing, ok := s.entries[p.ID]; ok {
			// De-duplicate, keeping the freshest repeat counter from
			// whichever side advanced further.
			if p.RepeatCount > existing.notification.RepeatCount {
				existing.notification.RepeatCount = p.RepeatCount
			}
			continue
		}

		n := p.Notification
		silent := loudDone
		loudDone = true
		s.deliver(ctx, &n, silent)
	}

	s.reapResolved(fetched)
}

// reapResolved converges entries the store no longer reports as pending:
// they were read, acknowledged or expired elsewhere while this session was
// offline. Armed timers are cancelled so nothing fires for a resolved id.
func (s *Session) reapResolved(fetched map[string]bool) {
	now := time.Now()

	for id, e := range s.entries {
		if fetched[id] || e.state.Terminal() {
			continue
		}

		switch {
		case e.notification.Priority == entity.PriorityCritical:
			// Absent from the pending set means acknowledged somewhere.
			s.applyAcknowledged(id, false)
		case e.notification.IsExpiredAt(now):
			s.applyExpired(id)
		default:
			s.applyRead(id)
		}
	}
}
