package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueueFixture(t *testing.T) (*QueueService, *memStore, *fakePerms) {
	t.Helper()
	store := newMemStore()
	perms := newFakePerms()
	return NewQueueService(store, testCatalog(t), perms), store, perms
}

func TestQueueJoinAndLeave(t *testing.T) {
	ctx := context.Background()
	qs, store, _ := newQueueFixture(t)

	reply, err := qs.Join(ctx, "alice", "last wish")
	require.NoError(t, err)
	assert.Equal(t, "Joined queue for: Last Wish", reply, "lookup is case-insensitive")
	assert.Equal(t, []string{"alice"}, qs.List("Last Wish"))
	assert.Equal(t, 1, store.saveCount(), "every mutation snapshots")

	reply, err = qs.Leave(ctx, "alice", "Last Wish")
	require.NoError(t, err)
	assert.Equal(t, "Left queue for: Last Wish", reply)
	assert.Empty(t, qs.List("Last Wish"))
}

func TestQueueJoinRejectsSherpas(t *testing.T) {
	ctx := context.Background()
	qs, store, perms := newQueueFixture(t)
	perms.sherpas["guide"] = true

	reply, err := qs.Join(ctx, "guide", "Last Wish")
	require.NoError(t, err)
	assert.Equal(t, "Sherpa Assistants cannot join queues.", reply)
	assert.Empty(t, qs.List("Last Wish"))
	assert.Zero(t, store.saveCount(), "rejections do not snapshot")
}

func TestQueueJoinUnknownActivity(t *testing.T) {
	ctx := context.Background()
	qs, _, _ := newQueueFixture(t)

	reply, err := qs.Join(ctx, "alice", "Leviathan")
	require.NoError(t, err)
	assert.Equal(t, "Unknown activity.", reply)
}

func TestQueueJoinLimitsAndDuplicates(t *testing.T) {
	ctx := context.Background()
	qs, _, _ := newQueueFixture(t)

	_, err := qs.Join(ctx, "alice", "Last Wish")
	require.NoError(t, err)
	_, err = qs.Join(ctx, "alice", "Duality")
	require.NoError(t, err)

	reply, err := qs.Join(ctx, "alice", "Last Wish")
	require.NoError(t, err)
	assert.Equal(t, "You are already signed up for this activity.", reply)

	reply, err = qs.Join(ctx, "alice", "Prophecy")
	require.NoError(t, err)
	assert.Equal(t, "You can only be in 2 different activity queues at once.", reply)
	assert.Empty(t, qs.List("Prophecy"))
}

func TestQueueLeaveWhenNotQueued(t *testing.T) {
	ctx := context.Background()
	qs, _, _ := newQueueFixture(t)

	reply, err := qs.Leave(ctx, "alice", "Duality")
	require.NoError(t, err)
	assert.Equal(t, "You are not in the **Duality** queue.", reply)
}

func TestQueuePeekFrontDoesNotDequeue(t *testing.T) {
	ctx := context.Background()
	qs, _, _ := newQueueFixture(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := qs.Join(ctx, id, "Last Wish")
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"a", "b"}, qs.PeekFront("Last Wish", 2))
	assert.Equal(t, []string{"a", "b", "c"}, qs.PeekFront("Last Wish", 10), "n is clamped to queue length")
	assert.Equal(t, []string{"a", "b", "c"}, qs.List("Last Wish"), "peeking leaves the queue intact")
}

func TestQueueDropOnlyRemovesScheduledMember(t *testing.T) {
	ctx := context.Background()
	qs, store, _ := newQueueFixture(t)

	_, err := qs.Join(ctx, "a", "Last Wish")
	require.NoError(t, err)
	_, err = qs.Join(ctx, "b", "Last Wish")
	require.NoError(t, err)
	before := store.saveCount()

	qs.Drop(ctx, "a", "Last Wish")
	assert.Equal(t, []string{"b"}, qs.List("Last Wish"))
	assert.Equal(t, before+1, store.saveCount())

	// Dropping an absent member is a silent no-op with no snapshot.
	qs.Drop(ctx, "zed", "Last Wish")
	assert.Equal(t, before+1, store.saveCount())
}

func TestQueueRemoveMembersReportsActualRemovals(t *testing.T) {
	ctx := context.Background()
	qs, _, _ := newQueueFixture(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := qs.Join(ctx, id, "Duality")
		require.NoError(t, err)
	}

	removed := qs.RemoveMembers(ctx, "Duality", []string{"b", "zed", "c"})
	assert.Equal(t, []string{"b", "c"}, removed)
	assert.Equal(t, []string{"a"}, qs.List("Duality"))

	assert.Nil(t, qs.RemoveMembers(ctx, "Nonsense", []string{"a"}))
}

func TestQueueNonEmptyFollowsCatalogOrder(t *testing.T) {
	ctx := context.Background()
	qs, _, _ := newQueueFixture(t)

	_, err := qs.Join(ctx, "a", "Prophecy")
	require.NoError(t, err)
	_, err = qs.Join(ctx, "b", "Crota's End")
	require.NoError(t, err)

	assert.Equal(t, []string{"Crota's End", "Prophecy"}, qs.NonEmpty())
}

func TestQueueLoadReplacesState(t *testing.T) {
	ctx := context.Background()
	qs, store, _ := newQueueFixture(t)
	store.data["Last Wish"] = []string{"x", "y"}

	require.NoError(t, qs.Load(ctx))
	assert.Equal(t, []string{"x", "y"}, qs.List("Last Wish"))
}
