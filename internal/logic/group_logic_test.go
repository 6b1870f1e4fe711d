package logic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live_meeting/internal/errorx"
	"live_meeting/internal/event"
	"live_meeting/internal/types"
)

func ongoingMeeting(number int64, now time.Time) types.Meeting {
	m := newMeeting(number, now.Add(-10*time.Minute), now.Add(50*time.Minute))
	m.Status = types.MeetingOngoing
	return m
}

func TestGroupStart(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	env := newTestEnv(t, newFakeMeetings(ongoingMeeting(42, now), newMeeting(43, now, now.Add(time.Hour))), newFakePolls())
	env.now = now
	ctx := context.Background()

	layout := []types.Group{
		{ID: 1, Name: "a", Users: []int64{1, 2}},
		{ID: 2, Name: "b", Users: []int64{3}},
	}

	err := env.group.Start(ctx, userA, 42, layout)
	assert.Equal(t, errorx.CodeNoPermission, errorx.CodeOf(err))

	err = env.group.Start(ctx, ownerID, 43, layout)
	assert.Equal(t, errorx.CodeMeetingNotStart, errorx.CodeOf(err))

	require.NoError(t, env.group.Start(ctx, ownerID, 42, layout))
	assert.Equal(t, 51*time.Minute, env.mr.TTL("test:meeting:group:42"))

	err = env.group.Start(ctx, ownerID, 42, []types.Group{{ID: 9, Name: "z"}})
	assert.ErrorIs(t, err, errorx.ErrGroupAlreadyStart)

	got, err := env.group.Detail(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, layout, got)
	assert.Equal(t, []string{event.GroupStarted}, env.events.kinds())

	require.NoError(t, env.group.Stop(ctx, ownerID, 42))
	got, err = env.group.Detail(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []string{event.GroupStarted, event.GroupStopped}, env.events.kinds())
}

func TestGroupMoveMembers(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	env := newTestEnv(t, newFakeMeetings(ongoingMeeting(42, now), newMeeting(43, now, now.Add(time.Hour))), newFakePolls())
	env.now = now
	ctx := context.Background()

	err := env.group.MoveMembers(ctx, 42, []int64{1}, 1, 2)
	assert.ErrorIs(t, err, errorx.ErrGroupNotFound)

	err = env.group.MoveMembers(ctx, 43, []int64{1}, 1, 2)
	assert.ErrorIs(t, err, errorx.ErrMeetingNotFound)

	require.NoError(t, env.group.Start(ctx, ownerID, 42, []types.Group{
		{ID: 1, Name: "a", Users: []int64{1, 2, 3}},
		{ID: 2, Name: "b", Users: []int64{4}},
	}))
	env.mr.FastForward(10 * time.Minute)

	require.NoError(t, env.group.MoveMembers(ctx, 42, []int64{1, 3}, 1, 2))
	got, err := env.group.Detail(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []types.Group{
		{ID: 1, Name: "a", Users: []int64{2}},
		{ID: 2, Name: "b", Users: []int64{1, 3, 4}},
	}, got)
	assert.Equal(t, 41*time.Minute, env.mr.TTL("test:meeting:group:42"))
}

func TestMoveMembersSetSemantics(t *testing.T) {
	groups := []types.Group{
		{ID: 1, Users: []int64{5, 1}},
		{ID: 2, Users: []int64{1, 7}},
		{ID: 3, Users: []int64{9}},
	}

	moveMembers(groups, []int64{1, 8}, 1, 2)
	assert.Equal(t, []int64{5}, groups[0].Users)
	assert.Equal(t, []int64{1, 7, 8}, groups[1].Users)
	assert.Equal(t, []int64{9}, groups[2].Users)

	moveMembers(groups, []int64{9}, 3, 3)
	assert.Equal(t, []int64{9}, groups[2].Users)
}
