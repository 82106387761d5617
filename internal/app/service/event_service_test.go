package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goonworks/goonbot/internal/domain"
)

func fieldValue(e *discordgo.MessageEmbed, namePrefix string) string {
	for _, f := range e.Fields {
		if strings.HasPrefix(f.Name, namePrefix) {
			return f.Value
		}
	}
	return ""
}

var testChannels = ChannelIDs{General: "general", Sherpa: "sherpa", Queue: "queue", LFG: "lfg"}

type eventFixture struct {
	svc   *EventService
	msgr  *fakeMessenger
	perms *fakePerms
	qs    *QueueService
	now   time.Time
}

func newEventFixture(t *testing.T) *eventFixture {
	t.Helper()
	f := &eventFixture{
		msgr:  newFakeMessenger(),
		perms: newFakePerms(),
		now:   time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	f.qs = NewQueueService(newMemStore(), testCatalog(t), f.perms)
	f.svc = NewEventService("guild1", testChannels, f.msgr, f.perms, f.qs, NewNotifier(f.msgr))
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *eventFixture) lastWish(t *testing.T) domain.Activity {
	t.Helper()
	act, ok := testCatalog(t).Lookup("Last Wish")
	require.True(t, ok)
	return act
}

// create posts a standard event and returns the primary message ID.
func (f *eventFixture) create(t *testing.T, p CreateEventParams) string {
	t.Helper()
	if p.HostID == "" {
		p.HostID = "host"
	}
	if p.Activity.Name == "" {
		p.Activity = f.lastWish(t)
	}
	_, err := f.svc.CreateEvent(context.Background(), p)
	require.NoError(t, err)
	posts := f.msgr.postsTo("lfg")
	require.NotEmpty(t, posts)
	return posts[len(posts)-1].Ref.MessageID
}

func TestCreateEventPostsCardsAndInvitesQueueHead(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)

	// 5 members waiting for Last Wish, playerSlots will be 4.
	for _, id := range []string{"u1", "u2", "u3", "u4", "u5"} {
		_, err := f.qs.Join(ctx, id, "Last Wish")
		require.NoError(t, err)
	}

	msg, err := f.svc.CreateEvent(ctx, CreateEventParams{
		HostID:      "host",
		Activity:    f.lastWish(t),
		SherpaSlots: 2,
		Start:       f.now.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Contains(t, msg, "4 queued member(s)")

	lfg := f.msgr.postsTo("lfg")
	require.Len(t, lfg, 1)
	assert.Contains(t, lfg[0].Content, "@everyone")
	assert.Equal(t, "📣 Event: Last Wish", lfg[0].Embed.Title)
	assert.ElementsMatch(t, []string{EmojiJoin, EmojiBackup}, f.msgr.reactions[lfg[0].Ref.MessageID])

	sherpa := f.msgr.postsTo("sherpa")
	require.Len(t, sherpa, 1, "companion sherpa card")
	assert.Contains(t, sherpa[0].Embed.Description, lfg[0].Ref.MessageID, "companion links to the primary card")
	assert.Equal(t, []string{EmojiSherpa}, f.msgr.reactions[sherpa[0].Ref.MessageID])

	// Invites went to the first four; nobody was dequeued yet.
	require.Len(t, f.msgr.invites, 4)
	assert.Equal(t, ConfirmID(lfg[0].Ref.MessageID), f.msgr.invites[0].ConfirmID)
	assert.Len(t, f.qs.List("Last Wish"), 5)
}

func TestJoinReactionWhileFormingIsSoft(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	msgID := f.create(t, CreateEventParams{Start: f.now.Add(24 * time.Hour)})

	f.svc.HandleReactionAdd(ctx, msgID, "alice", EmojiJoin)

	entry := f.svc.lookup(msgID)
	require.NotNil(t, entry)
	assert.Empty(t, entry.roster.Participants, "forming join never takes a slot")
	assert.Equal(t, []string{"alice"}, entry.roster.Backups)

	edit := f.msgr.lastEditOf(msgID)
	require.NotNil(t, edit, "card re-rendered after the transition")
	assert.Contains(t, fieldValue(edit.Embed, "Backups"), "alice")
}

func TestConfirmBypassesSoftReservationAndDropsQueue(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	_, err := f.qs.Join(ctx, "alice", "Last Wish")
	require.NoError(t, err)

	msgID := f.create(t, CreateEventParams{Start: f.now.Add(24 * time.Hour)})

	reply := f.svc.HandleConfirm(ctx, msgID, "alice")
	assert.Contains(t, reply, "You're in")

	entry := f.svc.lookup(msgID)
	assert.Equal(t, []string{"alice"}, entry.roster.Participants)
	assert.Empty(t, f.qs.List("Last Wish"), "confirmed members leave the waiting queue")

	// Confirming twice is a no-op.
	assert.Equal(t, "You're already on the roster.", f.svc.HandleConfirm(ctx, msgID, "alice"))
}

func TestDeclineLeavesRoster(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	msgID := f.create(t, CreateEventParams{Start: f.now.Add(24 * time.Hour)})

	f.svc.HandleConfirm(ctx, msgID, "alice")
	f.svc.HandleDecline(ctx, msgID, "alice")

	entry := f.svc.lookup(msgID)
	assert.Empty(t, entry.roster.Participants)
}

func TestReactionRemoveLeavesAndPromotesFIFO(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	msgID := f.create(t, CreateEventParams{Capacity: 6, SherpaSlots: 2, Start: f.now.Add(24 * time.Hour)})

	entry := f.svc.lookup(msgID)
	entry.mu.Lock()
	entry.roster.SignupsOpen = true
	entry.mu.Unlock()

	for _, id := range []string{"a", "b", "c", "d"} {
		f.svc.HandleReactionAdd(ctx, msgID, id, EmojiJoin)
	}
	f.svc.HandleReactionAdd(ctx, msgID, "e", EmojiJoin)
	f.svc.HandleReactionAdd(ctx, msgID, "f", EmojiJoin)
	assert.Equal(t, []string{"e", "f"}, entry.roster.Backups)

	f.svc.HandleReactionRemove(ctx, msgID, "d", EmojiJoin)

	assert.Equal(t, []string{"a", "b", "c", "e"}, entry.roster.Participants)
	assert.Equal(t, []string{"f"}, entry.roster.Backups)

	// The promotion notice is dispatched off the hot path.
	require.Eventually(t, func() bool {
		return len(f.msgr.dmsTo("e")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, f.msgr.dmsTo("e")[0], "promoted")
}

func TestSherpaClaimIsCapabilityGated(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	f.create(t, CreateEventParams{SherpaSlots: 2, Start: f.now.Add(24 * time.Hour)})

	companion := f.msgr.postsTo("sherpa")[0].Ref.MessageID
	entry := f.svc.lookup(companion)
	require.NotNil(t, entry, "companion surface resolves to the same roster")

	f.svc.HandleReactionAdd(ctx, companion, "rando", EmojiSherpa)
	assert.Empty(t, entry.roster.Sherpas, "non-capable claim is a silent no-op")
	assert.Empty(t, entry.roster.SherpaBackups)

	f.perms.sherpas["guide"] = true
	f.svc.HandleReactionAdd(ctx, companion, "guide", EmojiSherpa)
	assert.Equal(t, []string{"guide"}, entry.roster.Sherpas)

	// The join emoji on the sherpa surface also claims.
	f.perms.sherpas["guide2"] = true
	f.svc.HandleReactionAdd(ctx, companion, "guide2", EmojiJoin)
	assert.Equal(t, []string{"guide", "guide2"}, entry.roster.Sherpas)
}

func TestOpenSignupsManual(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	msgID := f.create(t, CreateEventParams{Start: f.now.Add(24 * time.Hour)})

	// Soft reservations collected while forming.
	f.svc.HandleReactionAdd(ctx, msgID, "a", EmojiJoin)
	f.svc.HandleReactionAdd(ctx, msgID, "b", EmojiBackup)

	assert.Equal(t, "Only the host can open signups.",
		f.svc.OpenSignups(ctx, msgID, "rando"))

	reply := f.svc.OpenSignups(ctx, msgID, "host")
	assert.Contains(t, reply, "Signups opened")

	entry := f.svc.lookup(msgID)
	assert.True(t, entry.roster.SignupsOpen)
	assert.Equal(t, []string{"a", "b"}, entry.roster.Participants, "open runs one autofill pass")

	var announced bool
	for _, p := range f.msgr.postsTo("lfg") {
		if strings.Contains(p.Content, "Slots are open") {
			announced = true
		}
	}
	assert.True(t, announced)

	assert.Equal(t, "Signups are already open.", f.svc.OpenSignups(ctx, msgID, "host"))
}

func TestSweepOpensAtTwoHourLead(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	msgID := f.create(t, CreateEventParams{Start: f.now.Add(90 * time.Minute)})
	entry := f.svc.lookup(msgID)

	f.svc.Sweep(ctx, f.now)
	assert.True(t, entry.roster.SignupsOpen, "inside the 2h window and not full")

	opens := 0
	for _, p := range f.msgr.postsTo("lfg") {
		if strings.Contains(p.Content, "Slots are open") {
			opens++
		}
	}
	assert.Equal(t, 1, opens)

	// A second sweep must not announce again.
	f.svc.Sweep(ctx, f.now.Add(time.Minute))
	opens = 0
	for _, p := range f.msgr.postsTo("lfg") {
		if strings.Contains(p.Content, "Slots are open") {
			opens++
		}
	}
	assert.Equal(t, 1, opens)
}

func TestSweepSkipsOpenWhenAlreadyFull(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	msgID := f.create(t, CreateEventParams{Capacity: 3, Start: f.now.Add(90 * time.Minute)})
	entry := f.svc.lookup(msgID)

	for _, id := range []string{"a", "b", "c"} {
		f.svc.HandleConfirm(ctx, msgID, id)
	}
	require.Len(t, entry.roster.Participants, 3)

	f.svc.Sweep(ctx, f.now)
	assert.False(t, entry.roster.SignupsOpen, "T-2h open only fires while slots remain")
}

func TestSweepRemindersFireOnce(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	start := f.now.Add(25 * time.Minute)
	msgID := f.create(t, CreateEventParams{Start: start})
	f.svc.HandleConfirm(ctx, msgID, "alice")

	entry := f.svc.lookup(msgID)

	// Inside the 30m window: only the most imminent reminder is sent, the
	// stale 2h one is swallowed.
	f.svc.Sweep(ctx, f.now)
	require.Eventually(t, func() bool {
		return len(f.msgr.dmsTo("alice")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, f.msgr.dmsTo("alice")[0], "30 minutes")
	assert.True(t, entry.roster.Sent.Has(domain.Remind2h))
	assert.True(t, entry.roster.Sent.Has(domain.Remind30m))

	// Same sweep again: nothing new.
	f.svc.Sweep(ctx, f.now.Add(time.Minute))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.msgr.dmsTo("alice"), 1)

	// Past the start: the start reminder fires and the roster goes
	// terminal.
	f.now = start.Add(time.Minute)
	f.svc.Sweep(ctx, f.now)
	require.Eventually(t, func() bool {
		return len(f.msgr.dmsTo("alice")) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, f.msgr.dmsTo("alice")[1], "starting now")

	require.True(t, entry.roster.Terminal(f.now))
	f.svc.HandleReactionAdd(ctx, msgID, "late", EmojiBackup)
	assert.Empty(t, entry.roster.Backups, "terminal rosters accept no transitions")
}

func TestSurfaceRecreationKeepsRosterReachable(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	msgID := f.create(t, CreateEventParams{SherpaSlots: 2, Start: f.now.Add(24 * time.Hour)})
	entry := f.svc.lookup(msgID)
	companion := entry.roster.SherpaSurface.MessageID

	f.svc.HandleMessageDelete(ctx, msgID)

	newID := entry.roster.Surface.MessageID
	require.NotEqual(t, msgID, newID)
	assert.Equal(t, "lfg", entry.roster.Surface.ChannelID, "recreated in the same channel")

	// Both the old and the new ID resolve to the same roster.
	assert.Same(t, entry, f.svc.lookup(msgID))
	assert.Same(t, entry, f.svc.lookup(newID))

	// A transition addressed to the old ID still lands.
	f.svc.HandleReactionAdd(ctx, msgID, "alice", EmojiBackup)
	assert.Equal(t, []string{"alice"}, entry.roster.Backups)

	// The companion card's deep link now points at the new primary.
	edit := f.msgr.lastEditOf(companion)
	require.NotNil(t, edit)
	assert.Contains(t, edit.Embed.Description, "/"+newID+"\n")
	assert.NotContains(t, edit.Embed.Description, "/"+msgID+"\n") // old link gone
}

func TestEditFailureTriggersRecreation(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	msgID := f.create(t, CreateEventParams{Start: f.now.Add(24 * time.Hour)})
	entry := f.svc.lookup(msgID)

	f.msgr.mu.Lock()
	f.msgr.gone[msgID] = true
	f.msgr.mu.Unlock()

	f.svc.HandleReactionAdd(ctx, msgID, "alice", EmojiBackup)

	assert.NotEqual(t, msgID, entry.roster.Surface.MessageID, "mid-edit deletion flips into recreation")
	assert.Same(t, entry, f.svc.lookup(msgID))
}

func TestSetCapacityShrinkWarnsOverCapacity(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	msgID := f.create(t, CreateEventParams{Capacity: 6, Start: f.now.Add(24 * time.Hour)})

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		f.svc.HandleConfirm(ctx, msgID, id)
	}

	reply := f.svc.SetCapacity(ctx, msgID, "host", 3, 0)
	assert.Contains(t, reply, "over capacity")

	entry := f.svc.lookup(msgID)
	assert.Len(t, entry.roster.Participants, 5, "no auto-eviction on shrink")

	assert.Equal(t, "Capacity must be between 1 and 12.",
		f.svc.SetCapacity(ctx, msgID, "host", 0, 0))
}

func TestHostAddRemoveMember(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)
	msgID := f.create(t, CreateEventParams{Start: f.now.Add(24 * time.Hour)})

	assert.Equal(t, "Only the host can add members.",
		f.svc.AddMember(ctx, msgID, "rando", "alice"))

	reply := f.svc.AddMember(ctx, msgID, "host", "alice")
	assert.Contains(t, reply, "participants")

	// Founders can manage any event.
	f.perms.founders["boss"] = true
	reply = f.svc.RemoveMember(ctx, msgID, "boss", "alice")
	assert.Contains(t, reply, "Removed")

	entry := f.svc.lookup(msgID)
	assert.Empty(t, entry.roster.Participants)
}

func TestSherpaRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)

	_, err := f.svc.CreateSherpaRequest(ctx, CreateEventParams{
		HostID:      "host",
		Activity:    f.lastWish(t),
		SherpaSlots: 2,
		Start:       f.now.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	posts := f.msgr.postsTo("sherpa")
	require.Len(t, posts, 1)
	msgID := posts[0].Ref.MessageID
	assert.Equal(t, []string{EmojiSherpa}, f.msgr.reactions[msgID])

	entry := f.svc.lookup(msgID)
	require.NotNil(t, entry)
	assert.Equal(t, domain.KindSherpaRequest, entry.roster.Kind)
	assert.Equal(t, 0, entry.roster.PlayerSlots())

	f.perms.sherpas["guide"] = true
	f.svc.HandleReactionAdd(ctx, msgID, "guide", EmojiJoin)
	assert.Equal(t, []string{"guide"}, entry.roster.Sherpas, "join on a sherpa-only surface claims a slot")
}

func TestUnknownMessageIsSilentNoop(t *testing.T) {
	ctx := context.Background()
	f := newEventFixture(t)

	f.svc.HandleReactionAdd(ctx, "nope", "alice", EmojiJoin)
	f.svc.HandleReactionRemove(ctx, "nope", "alice", EmojiJoin)
	f.svc.HandleMessageDelete(ctx, "nope")
	assert.Equal(t, "This event is no longer active.", f.svc.HandleConfirm(ctx, "nope", "alice"))
}
