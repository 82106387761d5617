package discord

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/goonworks/goonbot/internal/app/service"
	"github.com/goonworks/goonbot/internal/domain"
	"github.com/goonworks/goonbot/internal/infra/catalog"
)

type Router struct {
	s       *discordgo.Session
	guildID string
	ch      service.ChannelIDs

	cat    *catalog.Catalog
	msgr   *Messenger
	perms  *Perms
	queues *service.QueueService
	events *service.EventService

	sherpaRoleID string
	clickLimiter *userLimiter

	// Persistent queue boards in the queue channel, one message per
	// activity, edited in place on every queue mutation.
	boardsMu sync.Mutex
	boards   map[string]domain.SurfaceRef
}

func NewRouter(
	s *discordgo.Session,
	guildID string,
	ch service.ChannelIDs,
	cat *catalog.Catalog,
	msgr *Messenger,
	perms *Perms,
	queues *service.QueueService,
	events *service.EventService,
	sherpaRoleID string,
) *Router {
	return &Router{
		s:            s,
		guildID:      guildID,
		ch:           ch,
		cat:          cat,
		msgr:         msgr,
		perms:        perms,
		queues:       queues,
		events:       events,
		sherpaRoleID: sherpaRoleID,
		clickLimiter: newUserLimiter(2 * time.Second),
		boards:       map[string]domain.SurfaceRef{},
	}
}

func (r *Router) Register() error {
	appID := r.s.State.User.ID
	for _, cmd := range Commands(r.cat) {
		if _, err := r.s.ApplicationCommandCreate(appID, r.guildID, cmd); err != nil {
			return fmt.Errorf("register /%s: %w", cmd.Name, err)
		}
	}
	return nil
}

func (r *Router) Handlers() {
	r.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		switch ic.Type {
		case discordgo.InteractionApplicationCommand:
			r.handleSlash(s, ic)
		case discordgo.InteractionMessageComponent:
			r.handleComponent(s, ic)
		}
	})

	// Reactions drive the signup transitions. The bot seeds its own
	// reactions on every card; skip those.
	r.s.AddHandler(func(s *discordgo.Session, ev *discordgo.MessageReactionAdd) {
		if ev.UserID == s.State.User.ID {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
		defer cancel()
		r.events.HandleReactionAdd(ctx, ev.MessageID, ev.UserID, ev.Emoji.Name)
	})
	r.s.AddHandler(func(s *discordgo.Session, ev *discordgo.MessageReactionRemove) {
		if ev.UserID == s.State.User.ID {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
		defer cancel()
		r.events.HandleReactionRemove(ctx, ev.MessageID, ev.UserID, ev.Emoji.Name)
	})

	r.s.AddHandler(func(s *discordgo.Session, ev *discordgo.MessageDelete) {
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
		defer cancel()
		r.events.HandleMessageDelete(ctx, ev.ID)
	})
}

func (r *Router) handleSlash(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.ApplicationCommandData()
	userID := invokerID(ic)
	log.Printf("slash: /%s by=%s guild=%s", data.Name, userID, ic.GuildID)

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("panic in slash /%s: %v", data.Name, rec)
			ReplyEphemeral(s, ic, "⚠️ Something went wrong.")
		}
	}()

	_ = DeferEphemeral(s, ic)
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	switch data.Name {
	case "ping":
		ReplyEphemeral(s, ic, "🏓 pong")

	case "join-queue":
		act, _ := optStr(data, "activity")
		msg, err := r.queues.Join(ctx, userID, act)
		if err != nil {
			msg = "⚠️ Could not join the queue: " + err.Error()
		}
		ReplyEphemeral(s, ic, msg)
		go r.refreshQueueBoard(act)

	case "leave-queue":
		act, _ := optStr(data, "activity")
		msg, err := r.queues.Leave(ctx, userID, act)
		if err != nil {
			msg = "⚠️ Could not leave the queue: " + err.Error()
		}
		ReplyEphemeral(s, ic, msg)
		go r.refreshQueueBoard(act)

	case "show-queue":
		r.showQueue(s, ic, data)

	case "schedule-event":
		if !r.perms.IsFounder(userID) {
			ReplyEphemeral(s, ic, "🔒 Only founders can schedule events from the queue. Try `/host-event`.")
			return
		}
		r.createEvent(ctx, s, ic, data, false)

	case "host-event":
		r.createEvent(ctx, s, ic, data, true)

	case "sherpa-request":
		r.createSherpaRequest(ctx, s, ic, data)

	case "open-signups":
		msgID, _ := optStr(data, "message_id")
		ReplyEphemeral(s, ic, r.events.OpenSignups(ctx, msgID, userID))

	case "add-member":
		msgID, _ := optStr(data, "message_id")
		member, _ := optUser(data, "member")
		ReplyEphemeral(s, ic, r.events.AddMember(ctx, msgID, userID, member))

	case "remove-member":
		r.removeMember(ctx, s, ic, data)

	case "set-capacity":
		msgID, _ := optStr(data, "message_id")
		capacity, _ := optInt(data, "capacity")
		sherpas, hasSherpas := optInt(data, "sherpas")
		if !hasSherpas {
			sherpas = -1 // keep current
		}
		ReplyEphemeral(s, ic, r.events.SetCapacity(ctx, msgID, userID, capacity, sherpas))

	case "promote":
		r.promote(ctx, s, ic, data)
	}
}

func (r *Router) handleComponent(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	data := ic.MessageComponentData()
	userID := invokerID(ic)

	action, messageID, ok := service.ParseComponentID(data.CustomID)
	if !ok {
		return
	}

	_ = DeferEphemeral(s, ic)
	if !r.clickLimiter.Allow(userID) {
		ReplyEphemeral(s, ic, "⏳ One click at a time…")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()

	if service.IsConfirm(action) {
		ReplyEphemeral(s, ic, r.events.HandleConfirm(ctx, messageID, userID))
		return
	}
	ReplyEphemeral(s, ic, r.events.HandleDecline(ctx, messageID, userID))
}

func (r *Router) createEvent(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData, selfHosted bool) {
	defer step("slash.create_event")()

	act, ok := r.lookupActivity(s, ic, data)
	if !ok {
		return
	}
	start, ok := r.parseStart(s, ic, data)
	if !ok {
		return
	}
	capacity, _ := optInt(data, "capacity")
	sherpas, _ := optInt(data, "sherpas")
	note, _ := optStr(data, "note")

	msg, err := r.events.CreateEvent(ctx, service.CreateEventParams{
		HostID:           invokerID(ic),
		Activity:         act,
		Capacity:         capacity,
		SherpaSlots:      sherpas,
		Start:            start,
		Note:             note,
		SkipQueueInvites: selfHosted,
	})
	if err != nil {
		msg = "⚠️ Could not create the event: " + err.Error()
	}
	ReplyEphemeral(s, ic, msg)
}

func (r *Router) createSherpaRequest(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	act, ok := r.lookupActivity(s, ic, data)
	if !ok {
		return
	}
	start, ok := r.parseStart(s, ic, data)
	if !ok {
		return
	}
	slots, _ := optInt(data, "slots")
	note, _ := optStr(data, "note")

	msg, err := r.events.CreateSherpaRequest(ctx, service.CreateEventParams{
		HostID:      invokerID(ic),
		Activity:    act,
		SherpaSlots: slots,
		Start:       start,
		Note:        note,
	})
	if err != nil {
		msg = "⚠️ Could not post the request: " + err.Error()
	}
	ReplyEphemeral(s, ic, msg)
}

func (r *Router) showQueue(s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	var names []string
	if name, ok := optStr(data, "activity"); ok {
		act, found := r.cat.Lookup(name)
		if !found {
			ReplyEphemeral(s, ic, "Unknown activity.")
			return
		}
		names = []string{act.Name}
	} else {
		names = r.queues.NonEmpty()
	}
	if len(names) == 0 {
		ReplyEphemeral(s, ic, "All queues are empty.")
		return
	}
	if len(names) > 10 {
		names = names[:10] // embed limit per message
	}

	var embeds []*discordgo.MessageEmbed
	for _, name := range names {
		act, _ := r.cat.Lookup(name)
		embeds = append(embeds, service.BuildQueueBoard(act, r.queues.List(name)))
	}
	ReplyEphemeral(s, ic, "", embeds...)
}

func (r *Router) removeMember(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID := invokerID(ic)

	// Event roster removal when a card is named.
	if msgID, ok := optStr(data, "message_id"); ok && msgID != "" {
		member, ok := optUser(data, "member")
		if !ok {
			ReplyEphemeral(s, ic, "Pick a member to remove.")
			return
		}
		ReplyEphemeral(s, ic, r.events.RemoveMember(ctx, msgID, userID, member))
		return
	}

	// Otherwise it is a founder queue removal.
	activity, ok := optStr(data, "activity")
	if !ok {
		ReplyEphemeral(s, ic, "Name either an event `message_id` or an `activity` queue.")
		return
	}
	if !r.perms.IsFounder(userID) {
		ReplyEphemeral(s, ic, "🔒 Only founders can remove members from queues.")
		return
	}
	act, found := r.cat.Lookup(activity)
	if !found {
		ReplyEphemeral(s, ic, "Unknown activity.")
		return
	}

	var ids []string
	if raw, ok := optStr(data, "members"); ok {
		ids = parseIDs(raw)
	}
	if member, ok := optUser(data, "member"); ok {
		ids = append(ids, member)
	}
	if len(ids) == 0 {
		ReplyEphemeral(s, ic, "Pick a member or pass mentions in `members`.")
		return
	}

	removed := r.queues.RemoveMembers(ctx, act.Name, ids)
	if len(removed) == 0 {
		ReplyEphemeral(s, ic, fmt.Sprintf("Nobody to remove from the **%s** queue.", act.Name))
		return
	}
	ReplyEphemeral(s, ic, fmt.Sprintf("Removed %d member(s) from the **%s** queue.", len(removed), act.Name))
	go r.refreshQueueBoard(act.Name)
}

// refreshQueueBoard edits the activity's board message in the queue channel,
// posting it the first time or when the old message is gone.
func (r *Router) refreshQueueBoard(activity string) {
	if r.ch.Queue == "" {
		return
	}
	act, ok := r.cat.Lookup(activity)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	embed := service.BuildQueueBoard(act, r.queues.List(act.Name))

	r.boardsMu.Lock()
	defer r.boardsMu.Unlock()
	if ref, ok := r.boards[act.Name]; ok {
		if err := r.msgr.Edit(ctx, ref, embed); err == nil {
			return
		}
	}
	ref, err := r.msgr.Post(ctx, r.ch.Queue, "", embed, "")
	if err != nil {
		log.Printf("[board] post queue board for %s: %v", act.Name, err)
		return
	}
	r.boards[act.Name] = ref
}

func (r *Router) promote(ctx context.Context, s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID := invokerID(ic)
	if !r.perms.IsFounder(userID) {
		ReplyEphemeral(s, ic, "🔒 Only founders can promote sherpas.")
		return
	}
	member, ok := optUser(data, "member")
	if !ok {
		ReplyEphemeral(s, ic, "Pick a member to promote.")
		return
	}

	if r.sherpaRoleID != "" {
		if err := s.GuildMemberRoleAdd(r.guildID, member, r.sherpaRoleID); err != nil {
			ReplyEphemeral(s, ic, "⚠️ Could not grant the sherpa role: "+err.Error())
			return
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎉 New Sherpa Assistant!",
		Description: fmt.Sprintf("Please welcome <@%s> to the sherpa team. Congratulations!", member),
		Color:       0xF1C40F,
	}
	for _, ch := range []string{r.ch.General, r.ch.Sherpa} {
		if ch == "" {
			continue
		}
		if _, err := r.msgr.Post(ctx, ch, "", embed, ""); err != nil {
			log.Printf("[promote] announce to %s: %v", ch, err)
		}
	}
	ReplyEphemeral(s, ic, fmt.Sprintf("Promoted <@%s>.", member))
}

func (r *Router) lookupActivity(s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) (domain.Activity, bool) {
	name, _ := optStr(data, "activity")
	a, found := r.cat.Lookup(name)
	if !found {
		ReplyEphemeral(s, ic, "Unknown activity.")
		return a, false
	}
	return a, true
}

func (r *Router) parseStart(s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) (time.Time, bool) {
	date, _ := optStr(data, "date")
	clock, _ := optStr(data, "time")
	zone, _ := optStr(data, "timezone")
	start, err := parseStartTime(date, clock, zone, time.Now())
	if err != nil {
		ReplyEphemeral(s, ic, "⚠️ "+err.Error())
		return time.Time{}, false
	}
	return start, true
}
