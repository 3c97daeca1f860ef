package entity

import "errors"

var (
	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotificationExpired  = errors.New("notification has expired")
	ErrInvalidTarget        = errors.New("invalid notification target")
	ErrInvalidPriority      = errors.New("invalid priority level")
	ErrInvalidExpiry        = errors.New("expires_at must be after created_at")
	ErrInvalidRepeat        = errors.New("invalid repeat configuration")

	// State transition errors
	ErrNotCritical    = errors.New("acknowledge is only valid for critical notifications")
	ErrNotDismissible = errors.New("critical notifications cannot be dismissed")
	ErrAlreadyClosed  = errors.New("notification is already in a terminal state")
	ErrRepeatCapped   = errors.New("repeat count has reached max repeats")

	// General errors
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabaseError = errors.New("database error")
)
