package engine

import "github.com/ds124wfegd/notification-engine/internal/entity"

// DisplayOptions tells the presentation layer how to surface one entry.
type DisplayOptions struct {
	// Persistent keeps the presentation on screen until dismissed (IMPORTANT).
	Persistent bool
	// Blocking makes the presentation modal and non-dismissible (CRITICAL).
	Blocking bool
	// Silent suppresses the sound cue (reconciliation replay).
	Silent bool
	// Redisplay marks a retry re-surface of an already shown entry.
	Redisplay bool
}

// Presenter is the boundary to the out-of-scope presentation layer. The
// engine drives it and never depends on its success: a failed sound cue
// must not fail a state transition.
type Presenter interface {
	Display(n *entity.Notification, opts DisplayOptions)

	// PlaySound starts a cue for the notification. loop is true only for
	// CRITICAL, whose cue repeats until StopSound.
	PlaySound(notificationID string, priority entity.PriorityLevel, loop bool) error

	// StopSound stops a looping cue. Safe to call when nothing is playing.
	StopSound(notificationID string)

	// Navigate follows a notification's deep link after acknowledgment.
	Navigate(link string)
}
