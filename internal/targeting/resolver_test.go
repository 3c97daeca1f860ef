package targeting

import (
	"testing"

	"github.com/ds124wfegd/notification-engine/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		targetType entity.TargetType
		targetID   string
		want       string
		wantErr    bool
	}{
		{
			name:       "user target",
			targetType: entity.TargetUser,
			targetID:   "u42",
			want:       "notify.user.u42",
		},
		{
			name:       "group target",
			targetType: entity.TargetGroup,
			targetID:   "g7",
			want:       "notify.group.g7",
		},
		{
			name:       "role target",
			targetType: entity.TargetRole,
			targetID:   "admin",
			want:       "notify.role.admin",
		},
		{
			name:       "broadcast target ignores id",
			targetType: entity.TargetAll,
			want:       "notify.broadcast",
		},
		{
			name:       "user target without id",
			targetType: entity.TargetUser,
			wantErr:    true,
		},
		{
			name:       "role target without id",
			targetType: entity.TargetRole,
			wantErr:    true,
		},
		{
			name:       "unknown target type",
			targetType: entity.TargetType("TEAM"),
			targetID:   "t1",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.targetType, tt.targetID)
			if tt.wantErr {
				require.ErrorIs(t, err, entity.ErrInvalidTarget)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionChannels(t *testing.T) {
	channels := SessionChannels("u1", "intern")
	assert.Equal(t, []string{"notify.user.u1", "notify.role.intern", "notify.broadcast"}, channels)

	withGroups := SessionChannels("u1", "intern", "g1", "g2")
	assert.Contains(t, withGroups, "notify.group.g1")
	assert.Contains(t, withGroups, "notify.group.g2")
	assert.NotContains(t, withGroups, "notify.group.g3")
}
