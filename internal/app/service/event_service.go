package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/goonworks/goonbot/internal/domain"
)

// Component IDs carried by the DM Confirm/Decline buttons. The payload is the
// primary surface message ID, which survives surface recreation because the
// old ID stays registered as an alias.
const (
	componentConfirm = "evt_confirm"
	componentDecline = "evt_decline"
)

func ConfirmID(messageID string) string { return componentConfirm + ":" + messageID }
func DeclineID(messageID string) string { return componentDecline + ":" + messageID }

// ParseComponentID splits a button custom ID into action and message ID.
func ParseComponentID(customID string) (action, messageID string, ok bool) {
	action, messageID, ok = strings.Cut(customID, ":")
	if !ok || messageID == "" {
		return "", "", false
	}
	if action != componentConfirm && action != componentDecline {
		return "", "", false
	}
	return action, messageID, true
}

func IsConfirm(action string) bool { return action == componentConfirm }

// Timing of the scheduler-driven transitions, relative to the start time.
const (
	openLead     = 2 * time.Hour
	remindLead2h = 2 * time.Hour
	remindLead30 = 30 * time.Minute
	surveyDelay  = 3 * time.Hour
)

// EventService is the event lifecycle state machine plus its render/sync
// layer. It owns every live roster, keyed by the message IDs of their
// surfaces; stale IDs of recreated surfaces stay registered as aliases so
// in-flight DM buttons keep resolving.
//
// All transitions against one roster are serialized under its entry lock.
// List mutations happen fully before any I/O, so no half-applied transition
// is ever observable.
type EventService struct {
	guildID string
	ch      ChannelIDs

	msgr   Messenger
	perms  Permissions
	queues *QueueService
	notify *Notifier
	now    func() time.Time

	mu        sync.RWMutex
	bySurface map[string]*eventEntry
}

type eventEntry struct {
	mu     sync.Mutex
	roster *domain.Roster
}

func NewEventService(guildID string, ch ChannelIDs, msgr Messenger, perms Permissions, queues *QueueService, notify *Notifier) *EventService {
	return &EventService{
		guildID:   guildID,
		ch:        ch,
		msgr:      msgr,
		perms:     perms,
		queues:    queues,
		notify:    notify,
		now:       time.Now,
		bySurface: map[string]*eventEntry{},
	}
}

type CreateEventParams struct {
	HostID      string
	Activity    domain.Activity
	Capacity    int // 0 = category default
	SherpaSlots int
	Start       time.Time
	Note        string

	// SkipQueueInvites suppresses the selection DMs to queued members.
	// Self-hosted events fill by reaction only.
	SkipQueueInvites bool
}

// CreateEvent posts a new event card, registers the roster, and DMs
// selection invites to the head of the activity's waiting queue. The event
// starts in the Forming state; signups open at T-2h or by host command.
func (s *EventService) CreateEvent(ctx context.Context, p CreateEventParams) (string, error) {
	if p.Capacity > 0 && p.SherpaSlots > p.Capacity {
		return "Sherpa slots cannot exceed the event capacity.", nil
	}
	r := domain.NewEventRoster(p.Activity, p.HostID, p.Capacity, p.SherpaSlots, p.Start, p.Note)

	ref, err := s.msgr.Post(ctx, s.ch.LFG, "@everyone New event posted!", BuildEventCard(r), r.Activity.ImagePath)
	if err != nil {
		return "", fmt.Errorf("post event card: %w", err)
	}
	r.Surface = ref
	s.addReactions(ctx, ref, EmojiJoin, EmojiBackup)

	entry := &eventEntry{roster: r}
	s.register(entry, ref.MessageID)

	if r.SherpaSlots > 0 && s.ch.Sherpa != "" {
		card := BuildSherpaCard(r, MessageURL(s.guildID, r.Surface))
		cref, err := s.msgr.Post(ctx, s.ch.Sherpa, "", card, "")
		if err != nil {
			log.Printf("[lifecycle] companion card for %s: %v", r.Activity.Name, err)
		} else {
			r.SherpaSurface = cref
			s.addReactions(ctx, cref, EmojiSherpa)
			s.register(entry, cref.MessageID)
		}
	}

	invited := 0
	if !p.SkipQueueInvites {
		invited = s.inviteFromQueue(ctx, r)
	}
	log.Printf("[lifecycle] event %s created by %s (msg=%s, invited=%d)",
		r.Activity.Name, p.HostID, ref.MessageID, invited)

	msg := "Event announced."
	if invited > 0 {
		msg += fmt.Sprintf(" Selection invites sent to %d queued member(s).", invited)
	}
	return msg, nil
}

// CreateSherpaRequest posts a sherpa-only meetup card in the sherpa channel.
func (s *EventService) CreateSherpaRequest(ctx context.Context, p CreateEventParams) (string, error) {
	channel := s.ch.Sherpa
	if channel == "" {
		channel = s.ch.LFG
	}
	r := domain.NewSherpaRequest(p.Activity, p.HostID, p.SherpaSlots, p.Start, p.Note)

	ref, err := s.msgr.Post(ctx, channel, "", BuildSherpaCard(r, ""), "")
	if err != nil {
		return "", fmt.Errorf("post sherpa request: %w", err)
	}
	r.Surface = ref
	s.addReactions(ctx, ref, EmojiSherpa)
	s.register(&eventEntry{roster: r}, ref.MessageID)

	log.Printf("[lifecycle] sherpa request %s created by %s (msg=%s)", r.Activity.Name, p.HostID, ref.MessageID)
	return "Sherpa request posted.", nil
}

// HandleReactionAdd routes a reaction to the matching transition. Reactions
// are passive UI: anything invalid is a logged no-op, never a user-facing
// error.
func (s *EventService) HandleReactionAdd(ctx context.Context, messageID, memberID, emoji string) {
	entry := s.lookup(messageID)
	if entry == nil {
		log.Printf("[lifecycle] reaction %s on unknown message %s", emoji, messageID)
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	r := entry.roster
	if r.Terminal(s.now()) {
		log.Printf("[lifecycle] reaction on finished event %s, ignored", r.Activity.Name)
		return
	}
	if memberID == r.HostID {
		log.Printf("[lifecycle] host reaction on own event %s, ignored", r.Activity.Name)
		return
	}

	// The join emoji claims a sherpa slot when it lands on a sherpa-only
	// surface; elsewhere it is an ordinary join.
	sherpaSurface := r.Kind == domain.KindSherpaRequest || messageID == r.SherpaSurface.MessageID

	var out domain.Outcome
	switch {
	case emoji == EmojiSherpa || (emoji == EmojiJoin && sherpaSurface):
		if !s.perms.IsSherpa(memberID) {
			log.Printf("[lifecycle] %s is not sherpa-capable, claim on %s ignored", memberID, r.Activity.Name)
			return
		}
		out = r.ClaimSherpa(memberID)
		if out.Placed == domain.ListSherpas && r.Kind == domain.KindEvent {
			s.notify.Announce(ctx, s.ch.Sherpa, fmt.Sprintf(
				"%s <@%s> claimed a sherpa slot for **%s**.", EmojiSherpa, memberID, r.Activity.Name))
		}
	case emoji == EmojiJoin:
		out = r.Join(memberID)
	case emoji == EmojiBackup:
		out = r.AddBackup(memberID)
	default:
		return
	}

	if !out.Changed {
		log.Printf("[lifecycle] %s already on %s roster, reaction ignored", memberID, r.Activity.Name)
		return
	}
	log.Printf("[lifecycle] %s -> %s of %s", memberID, out.Placed, r.Activity.Name)
	s.afterTransition(ctx, entry, out)
}

// HandleReactionRemove treats removal of any signup reaction as Leave.
func (s *EventService) HandleReactionRemove(ctx context.Context, messageID, memberID, emoji string) {
	if emoji != EmojiJoin && emoji != EmojiBackup && emoji != EmojiSherpa {
		return
	}
	entry := s.lookup(messageID)
	if entry == nil {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	r := entry.roster
	if r.Terminal(s.now()) {
		return
	}
	out := r.Leave(memberID)
	if !out.Changed {
		return
	}
	log.Printf("[lifecycle] %s left %s of %s", memberID, out.Removed, r.Activity.Name)
	s.afterTransition(ctx, entry, out)
}

// HandleConfirm is the DM "Confirm" button: open-signup join semantics
// regardless of the current state, since the member was pre-selected. The
// returned string is shown to the member.
func (s *EventService) HandleConfirm(ctx context.Context, messageID, memberID string) string {
	entry := s.lookup(messageID)
	if entry == nil {
		return "This event is no longer active."
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	r := entry.roster
	if r.Terminal(s.now()) {
		return "This event has already run. Catch the next one!"
	}
	out := r.ConfirmedJoin(memberID)
	if !out.Changed {
		return "You're already on the roster."
	}
	s.afterTransition(ctx, entry, out)

	if out.Placed == domain.ListParticipants {
		// Scheduled members stop waiting in that activity's queue.
		s.queues.Drop(ctx, memberID, r.Activity.Name)
		if !r.StartTime.IsZero() {
			return fmt.Sprintf("You're in! **%s** starts <t:%d:R>.", r.Activity.Name, r.StartTime.Unix())
		}
		return fmt.Sprintf("You're in for **%s**!", r.Activity.Name)
	}
	return fmt.Sprintf("The fireteam for **%s** is full — you're on the backup list.", r.Activity.Name)
}

// HandleDecline is the DM "Can't make it" button, equivalent to Leave.
func (s *EventService) HandleDecline(ctx context.Context, messageID, memberID string) string {
	entry := s.lookup(messageID)
	if entry == nil {
		return "This event is no longer active."
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	r := entry.roster
	out := r.Leave(memberID)
	if out.Changed {
		s.afterTransition(ctx, entry, out)
	}
	return "No worries — you've been taken off the roster."
}

// OpenSignups is the manual host command; the scheduler uses the same
// transition via Sweep at T-2h.
func (s *EventService) OpenSignups(ctx context.Context, messageID, actorID string) string {
	entry := s.lookup(messageID)
	if entry == nil {
		return "No active event found for that message."
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	r := entry.roster
	if !s.canManage(r, actorID) {
		return "Only the host can open signups."
	}
	if already := s.openLocked(ctx, entry); already {
		return "Signups are already open."
	}
	return fmt.Sprintf("Signups opened for **%s**.", r.Activity.Name)
}

// AddMember force-joins a member, host-only.
func (s *EventService) AddMember(ctx context.Context, messageID, actorID, memberID string) string {
	entry := s.lookup(messageID)
	if entry == nil {
		return "No active event found for that message."
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	r := entry.roster
	if !s.canManage(r, actorID) {
		return "Only the host can add members."
	}
	out := r.ConfirmedJoin(memberID)
	if !out.Changed {
		return "Already on the roster."
	}
	s.afterTransition(ctx, entry, out)
	return fmt.Sprintf("Added <@%s> to %s.", memberID, out.Placed)
}

// RemoveMember removes a member, host-only. Freed slots backfill immediately.
func (s *EventService) RemoveMember(ctx context.Context, messageID, actorID, memberID string) string {
	entry := s.lookup(messageID)
	if entry == nil {
		return "No active event found for that message."
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	r := entry.roster
	if !s.canManage(r, actorID) {
		return "Only the host can remove members."
	}
	out := r.Leave(memberID)
	if !out.Changed {
		return "That member is not on the roster."
	}
	s.afterTransition(ctx, entry, out)
	return fmt.Sprintf("Removed <@%s> from %s.", memberID, out.Removed)
}

// SetCapacity resizes the event. A negative sherpaSlots keeps the current
// sherpa slot count. Shrinking below the current participant count keeps
// everyone; the host resolves the overflow manually.
func (s *EventService) SetCapacity(ctx context.Context, messageID, actorID string, capacity, sherpaSlots int) string {
	if capacity < 1 || capacity > 12 {
		return "Capacity must be between 1 and 12."
	}
	if sherpaSlots > capacity {
		return "Sherpa slots cannot exceed the event capacity."
	}
	entry := s.lookup(messageID)
	if entry == nil {
		return "No active event found for that message."
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	r := entry.roster
	if !s.canManage(r, actorID) {
		return "Only the host can change the capacity."
	}
	promoted, sherpaPromoted := r.Resize(capacity, sherpaSlots)
	s.afterTransition(ctx, entry, domain.Outcome{
		Changed:        true,
		Promoted:       promoted,
		SherpaPromoted: sherpaPromoted,
	})

	msg := fmt.Sprintf("Capacity set to %d (%s).", r.Capacity, slotsLine(r))
	if len(r.Participants) > r.PlayerSlots() {
		msg += " The roster is now over capacity — remove members manually if needed."
	}
	return msg
}

// HandleMessageDelete is the surface-loss recovery path: when a card is
// deleted externally, recreate it in the same channel and re-point the
// roster's surface ref. The old message ID stays registered so existing DM
// buttons still resolve.
func (s *EventService) HandleMessageDelete(ctx context.Context, messageID string) {
	entry := s.lookup(messageID)
	if entry == nil {
		return
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	r := entry.roster
	switch messageID {
	case r.Surface.MessageID:
		s.recreatePrimaryLocked(ctx, entry)
	case r.SherpaSurface.MessageID:
		s.recreateCompanionLocked(ctx, entry)
	default:
		// A stale alias of an already-recreated surface; nothing to do.
	}
}

// Sweep evaluates the time-relative triggers for every live roster. Called
// by the scheduler tick; notification dispatch is handed to goroutines so no
// slow or unreachable recipient stalls the loop.
func (s *EventService) Sweep(ctx context.Context, now time.Time) {
	for _, entry := range s.snapshotEntries() {
		s.sweepOne(ctx, entry, now)
	}
}

func (s *EventService) sweepOne(ctx context.Context, entry *eventEntry, now time.Time) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	r := entry.roster
	if r.StartTime.IsZero() {
		return
	}
	start := r.StartTime

	if !r.SignupsOpen && !now.Before(start.Add(-openLead)) && now.Before(start) &&
		len(r.Participants) < r.PlayerSlots() {
		log.Printf("[sched] opening signups for %s (T-2h)", r.Activity.Name)
		s.openLocked(ctx, entry)
	}

	// When several reminders come due on the same tick (event created inside
	// the window), send only the most imminent one and mark the rest.
	switch {
	case !now.Before(start):
		r.MarkSent(domain.Remind30m)
		r.MarkSent(domain.Remind2h)
		if r.MarkSent(domain.RemindStart) {
			s.remind(r, fmt.Sprintf("⏰ **%s** is starting now — get in voice!", r.Activity.Name))
			s.armSurvey(entry, now)
		}
	case !now.Before(start.Add(-remindLead30)):
		r.MarkSent(domain.Remind2h)
		if r.MarkSent(domain.Remind30m) {
			s.remind(r, fmt.Sprintf("⏰ **%s** starts in 30 minutes (<t:%d:R>).", r.Activity.Name, start.Unix()))
		}
	case !now.Before(start.Add(-remindLead2h)):
		if r.MarkSent(domain.Remind2h) {
			s.remind(r, fmt.Sprintf("⏰ **%s** starts in 2 hours (<t:%d:t>).", r.Activity.Name, start.Unix()))
		}
	}
}

// ---------- internals ----------

func (s *EventService) canManage(r *domain.Roster, actorID string) bool {
	return actorID == r.HostID || s.perms.IsFounder(actorID)
}

// openLocked flips signups open, announces, ensures the join affordance is
// on the card, and backfills from the soft reservations collected while
// forming. Caller holds the entry lock.
func (s *EventService) openLocked(ctx context.Context, entry *eventEntry) (already bool) {
	r := entry.roster
	promoted, already := r.Open()
	if already {
		return true
	}
	s.notify.Announce(ctx, s.ch.LFG, fmt.Sprintf(
		"🟢 Slots are open for **%s**! React %s on the event card to join.", r.Activity.Name, EmojiJoin))
	s.addReactions(ctx, r.Surface, EmojiJoin)
	s.afterTransition(ctx, entry, domain.Outcome{Changed: true, Promoted: promoted})
	return false
}

// afterTransition re-renders the surfaces and queues promotion notices.
// Caller holds the entry lock; the roster is already in its final state, so
// the I/O below never exposes a half-applied transition.
func (s *EventService) afterTransition(ctx context.Context, entry *eventEntry, out domain.Outcome) {
	s.syncSurfaces(ctx, entry)

	r := entry.roster
	if len(out.Promoted) > 0 {
		s.promotionNotice(r, out.Promoted, fmt.Sprintf(
			"🎉 A player slot opened up for **%s** — you've been promoted from the backup list!", r.Activity.Name))
	}
	if len(out.SherpaPromoted) > 0 {
		s.promotionNotice(r, out.SherpaPromoted, fmt.Sprintf(
			"🎉 A sherpa slot opened up for **%s** — you're in!", r.Activity.Name))
	}
}

func (s *EventService) promotionNotice(r *domain.Roster, ids []string, content string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sent := s.notify.Broadcast(ctx, ids, content)
		log.Printf("[notify] promotion notices for %s: %d/%d delivered", r.Activity.Name, sent, len(ids))
	}()
}

// syncSurfaces re-renders both cards and edits them in place. An edit that
// fails because the message vanished flips into the recreation path.
func (s *EventService) syncSurfaces(ctx context.Context, entry *eventEntry) {
	r := entry.roster

	if !r.Surface.Zero() {
		if err := s.msgr.Edit(ctx, r.Surface, s.primaryEmbed(r)); err != nil {
			if errors.Is(err, ErrSurfaceGone) {
				s.recreatePrimaryLocked(ctx, entry)
			} else {
				log.Printf("[render] edit event card %s: %v", r.Surface.MessageID, err)
			}
		}
	}
	if !r.SherpaSurface.Zero() {
		card := BuildSherpaCard(r, MessageURL(s.guildID, r.Surface))
		if err := s.msgr.Edit(ctx, r.SherpaSurface, card); err != nil {
			if errors.Is(err, ErrSurfaceGone) {
				s.recreateCompanionLocked(ctx, entry)
			} else {
				log.Printf("[render] edit sherpa card %s: %v", r.SherpaSurface.MessageID, err)
			}
		}
	}
}

func (s *EventService) primaryEmbed(r *domain.Roster) *discordgo.MessageEmbed {
	if r.Kind == domain.KindSherpaRequest {
		return BuildSherpaCard(r, "")
	}
	return BuildEventCard(r)
}

func (s *EventService) recreatePrimaryLocked(ctx context.Context, entry *eventEntry) {
	r := entry.roster
	old := r.Surface
	ref, err := s.msgr.Post(ctx, old.ChannelID, "", s.primaryEmbed(r), r.Activity.ImagePath)
	if err != nil {
		log.Printf("[render] recreate event card for %s: %v", r.Activity.Name, err)
		return
	}
	r.Surface = ref
	s.register(entry, ref.MessageID)
	if r.Kind == domain.KindSherpaRequest {
		s.addReactions(ctx, ref, EmojiSherpa)
	} else {
		s.addReactions(ctx, ref, EmojiJoin, EmojiBackup)
	}

	// The companion card deep-links to the primary; refresh it.
	if !r.SherpaSurface.Zero() {
		card := BuildSherpaCard(r, MessageURL(s.guildID, r.Surface))
		if err := s.msgr.Edit(ctx, r.SherpaSurface, card); err != nil {
			log.Printf("[render] refresh companion link: %v", err)
		}
	}
	log.Printf("[render] recreated event card %s -> %s (%s)", old.MessageID, ref.MessageID, r.Activity.Name)
}

func (s *EventService) recreateCompanionLocked(ctx context.Context, entry *eventEntry) {
	r := entry.roster
	old := r.SherpaSurface
	card := BuildSherpaCard(r, MessageURL(s.guildID, r.Surface))
	ref, err := s.msgr.Post(ctx, old.ChannelID, "", card, "")
	if err != nil {
		log.Printf("[render] recreate sherpa card for %s: %v", r.Activity.Name, err)
		return
	}
	r.SherpaSurface = ref
	s.register(entry, ref.MessageID)
	s.addReactions(ctx, ref, EmojiSherpa)
	log.Printf("[render] recreated sherpa card %s -> %s (%s)", old.MessageID, ref.MessageID, r.Activity.Name)
}

// inviteFromQueue DMs confirm/decline invites to the waiting-queue head, one
// per free player slot. Members stay queued until they confirm.
func (s *EventService) inviteFromQueue(ctx context.Context, r *domain.Roster) int {
	heads := s.queues.PeekFront(r.Activity.Name, r.PlayerSlots())
	if len(heads) == 0 {
		return 0
	}
	var when string
	if !r.StartTime.IsZero() {
		when = fmt.Sprintf(" on <t:%d:F>", r.StartTime.Unix())
	}
	content := fmt.Sprintf(
		"🎟️ You've been selected from the waiting queue for **%s**%s. Can you make it?",
		r.Activity.Name, when)
	return s.notify.InviteAll(ctx, heads, content,
		ConfirmID(r.Surface.MessageID), DeclineID(r.Surface.MessageID))
}

func (s *EventService) remind(r *domain.Roster, content string) {
	ids := append(append([]string(nil), r.Participants...), r.Sherpas...)
	if len(ids) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sent := s.notify.Broadcast(ctx, ids, content)
		log.Printf("[notify] reminder for %s: %d/%d delivered", r.Activity.Name, sent, len(ids))
	}()
}

// armSurvey schedules the one-shot post-event follow-up, independent of the
// tick granularity. The timer is never cancelled; firing against a stale
// roster is a harmless DM batch.
func (s *EventService) armSurvey(entry *eventEntry, now time.Time) {
	r := entry.roster
	delay := r.StartTime.Add(surveyDelay).Sub(now)
	if delay < 0 {
		delay = 0
	}
	activity := r.Activity.Name
	time.AfterFunc(delay, func() {
		entry.mu.Lock()
		ids := append(append([]string(nil), entry.roster.Participants...), entry.roster.Sherpas...)
		entry.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		content := fmt.Sprintf(
			"📋 How did **%s** go? Reply here with any feedback for the organizers — clears, wipes, highlights, all welcome.",
			activity)
		sent := s.notify.Broadcast(ctx, ids, content)
		log.Printf("[notify] survey for %s: %d/%d delivered", activity, sent, len(ids))
	})
}

func (s *EventService) addReactions(ctx context.Context, ref domain.SurfaceRef, emojis ...string) {
	for _, e := range emojis {
		if err := s.msgr.React(ctx, ref, e); err != nil {
			log.Printf("[render] add reaction %s to %s: %v", e, ref.MessageID, err)
		}
	}
}

func (s *EventService) register(entry *eventEntry, messageID string) {
	if messageID == "" {
		return
	}
	s.mu.Lock()
	s.bySurface[messageID] = entry
	s.mu.Unlock()
}

func (s *EventService) lookup(messageID string) *eventEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bySurface[messageID]
}

// snapshotEntries returns each live roster once, even though the registry
// holds several message-ID keys per roster.
func (s *EventService) snapshotEntries() []*eventEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[*eventEntry]bool{}
	var out []*eventEntry
	for _, e := range s.bySurface {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}
