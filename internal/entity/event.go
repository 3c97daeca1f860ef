package entity

// EventType discriminates payloads on the wire.
type EventType string

const (
	EventNotification EventType = "notification"
	EventStateUpdate  EventType = "state_update"
)

// StateAction names the transition carried by a state update.
type StateAction string

const (
	ActionRead         StateAction = "read"
	ActionAcknowledged StateAction = "acknowledged"
	ActionDismissed    StateAction = "dismissed"
	ActionExpired      StateAction = "expired"
)

// Event is the single envelope published on transport channels. Exactly one
// of Notification/StateUpdate is set depending on Type.
type Event struct {
	Type         EventType     `json:"type"`
	Notification *Notification `json:"notification,omitempty"`
	StateUpdate  *StateUpdate  `json:"state_update,omitempty"`
}

// StateUpdate converges read/ack/dismiss state across a user's sessions.
// RepeatCount lets other sessions keep the freshest counter without a fetch.
type StateUpdate struct {
	NotificationID string      `json:"notification_id"`
	UserID         string      `json:"user_id,omitempty"`
	Action         StateAction `json:"action"`
	RepeatCount    int         `json:"repeat_count,omitempty"`
}
