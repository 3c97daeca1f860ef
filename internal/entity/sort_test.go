package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortPending(t *testing.T) {
	base := time.Now()
	mk := func(id string, p PriorityLevel, offset time.Duration) *PendingNotification {
		return &PendingNotification{Notification: Notification{
			ID:        id,
			Priority:  p,
			CreatedAt: base.Add(offset),
		}}
	}

	list := []*PendingNotification{
		mk("n", PriorityNormal, 0),
		mk("c-old", PriorityCritical, time.Minute),
		mk("i", PriorityImportant, 2*time.Minute),
		mk("c-new", PriorityCritical, 3*time.Minute),
	}

	SortPending(list)

	var order []string
	for _, p := range list {
		order = append(order, p.ID)
	}
	assert.Equal(t, []string{"c-new", "c-old", "i", "n"}, order)
}
