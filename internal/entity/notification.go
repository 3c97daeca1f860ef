package entity

import (
	"encoding/json"
	"time"
)

type TargetType string

const (
	TargetUser  TargetType = "USER"
	TargetGroup TargetType = "GROUP"
	TargetRole  TargetType = "ROLE"
	TargetAll   TargetType = "ALL"
)

type PriorityLevel string

const (
	PriorityNormal    PriorityLevel = "NORMAL"
	PriorityImportant PriorityLevel = "IMPORTANT"
	PriorityCritical  PriorityLevel = "CRITICAL"
)

// PriorityRank orders priorities for reconciliation sorting, highest first.
func PriorityRank(p PriorityLevel) int {
	switch p {
	case PriorityCritical:
		return 2
	case PriorityImportant:
		return 1
	default:
		return 0
	}
}

// Notification is the canonical persisted record. One row can have many
// per-recipient receipts for GROUP/ROLE/ALL targets.
type Notification struct {
	ID                    string          `json:"id"`
	TargetType            TargetType      `json:"target_type"`
	TargetID              string          `json:"target_id,omitempty"`
	Title                 string          `json:"title"`
	Message               string          `json:"message"`
	Category              string          `json:"category"`
	Link                  string          `json:"link,omitempty"`
	Priority              PriorityLevel   `json:"priority"`
	Metadata              json.RawMessage `json:"metadata,omitempty"`
	RepeatIntervalMinutes int             `json:"repeat_interval_minutes"`
	MaxRepeats            int             `json:"max_repeats"`
	RepeatCount           int             `json:"repeat_count"`
	CreatedAt             time.Time       `json:"created_at"`
	ExpiresAt             *time.Time      `json:"expires_at,omitempty"`
	Expired               bool            `json:"expired"`
}

// Receipt tracks one recipient's read/ack state for one notification.
type Receipt struct {
	NotificationID string     `json:"notification_id"`
	UserID         string     `json:"user_id"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// PendingNotification is what reconciliation works with: the shared row plus
// the requesting user's own receipt state.
type PendingNotification struct {
	Notification
	IsRead       bool `json:"is_read"`
	Acknowledged bool `json:"acknowledged"`
}

type PublishRequest struct {
	ID                    string          `json:"id,omitempty"`
	TargetType            TargetType      `json:"target_type" binding:"required"`
	TargetID              string          `json:"target_id"`
	Title                 string          `json:"title" binding:"required"`
	Message               string          `json:"message" binding:"required"`
	Category              string          `json:"category"`
	Link                  string          `json:"link"`
	Priority              PriorityLevel   `json:"priority" binding:"required"`
	Metadata              json.RawMessage `json:"metadata,omitempty"`
	RepeatIntervalMinutes int             `json:"repeat_interval_minutes"`
	MaxRepeats            int             `json:"max_repeats"`
	ExpiresAt             *time.Time      `json:"expires_at,omitempty"`
}

// Resolved reports whether the notification requires no further action from
// the given receipt's owner. CRITICAL is resolved only by acknowledgment.
func (n *Notification) Resolved(r *Receipt) bool {
	if n.Priority == PriorityCritical {
		return r != nil && r.Acknowledged
	}
	return r != nil && r.IsRead
}

func (n *Notification) IsExpiredAt(now time.Time) bool {
	if n.Expired {
		return true
	}
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}
