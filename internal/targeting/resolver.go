package targeting

import (
	"fmt"

	"github.com/ds124wfegd/notification-engine/internal/entity"
)

// Channel names live under the "notify." namespace so they can never collide
// with domain cache keys sharing the same Redis instance.
const (
	userChannelPrefix  = "notify.user."
	groupChannelPrefix = "notify.group."
	roleChannelPrefix  = "notify.role."
	BroadcastChannel   = "notify.broadcast"
)

func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

func GroupChannel(groupID string) string {
	return groupChannelPrefix + groupID
}

func RoleChannel(role string) string {
	return roleChannelPrefix + role
}

// Resolve maps a notification target to its single fanout channel. Overlap
// between channels a session subscribes to is resolved by the escalation
// engine's de-duplication, never here.
func Resolve(targetType entity.TargetType, targetID string) (string, error) {
	switch targetType {
	case entity.TargetUser:
		if targetID == "" {
			return "", fmt.Errorf("%w: USER target requires target_id", entity.ErrInvalidTarget)
		}
		return UserChannel(targetID), nil
	case entity.TargetGroup:
		if targetID == "" {
			return "", fmt.Errorf("%w: GROUP target requires target_id", entity.ErrInvalidTarget)
		}
		return GroupChannel(targetID), nil
	case entity.TargetRole:
		if targetID == "" {
			return "", fmt.Errorf("%w: ROLE target requires target_id", entity.ErrInvalidTarget)
		}
		return RoleChannel(targetID), nil
	case entity.TargetAll:
		return BroadcastChannel, nil
	default:
		return "", fmt.Errorf("%w: unknown target type %q", entity.ErrInvalidTarget, targetType)
	}
}

// SessionChannels returns the channels one session subscribes to: its own
// user channel, its role channel and the broadcast channel. Group channels
// are joined separately by group membership, which is not known here.
func SessionChannels(userID, role string, groups ...string) []string {
	channels := []string{UserChannel(userID), RoleChannel(role), BroadcastChannel}
	for _, g := range groups {
		channels = append(channels, GroupChannel(g))
	}
	return channels
}
