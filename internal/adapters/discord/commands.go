package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/goonworks/goonbot/internal/infra/catalog"
)

// Commands builds the slash command set. Activity options carry choices from
// the catalog so members never have to type raid names.
func Commands(cat *catalog.Catalog) []*discordgo.ApplicationCommand {
	activity := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "activity",
			Description: "Activity name",
			Required:    required,
			Choices:     activityChoices(cat),
		}
	}
	messageID := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "message_id",
		Description: "Message ID of the event card",
		Required:    true,
	}
	scheduling := []*discordgo.ApplicationCommandOption{
		{Type: discordgo.ApplicationCommandOptionString, Name: "date", Description: "Date as MM-DD", Required: true},
		{Type: discordgo.ApplicationCommandOptionString, Name: "time", Description: "Start time as HH:MM (24h)", Required: true},
		{Type: discordgo.ApplicationCommandOptionString, Name: "timezone", Description: "IANA timezone (default UTC)"},
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "join-queue",
			Description: "Join the waiting queue for an activity",
			Options:     []*discordgo.ApplicationCommandOption{activity(true)},
		},
		{
			Name:        "leave-queue",
			Description: "Leave the waiting queue for an activity",
			Options:     []*discordgo.ApplicationCommandOption{activity(true)},
		},
		{
			Name:        "show-queue",
			Description: "Show waiting queues",
			Options:     []*discordgo.ApplicationCommandOption{activity(false)},
		},
		{
			Name:        "schedule-event",
			Description: "Schedule an event and invite queued members (founders)",
			Options: append([]*discordgo.ApplicationCommandOption{activity(true)}, append(scheduling,
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "capacity", Description: "Total slots (default per category)"},
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "sherpas", Description: "Sherpa slots (default 0)"},
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "note", Description: "Note shown on the card"},
			)...),
		},
		{
			Name:        "host-event",
			Description: "Host your own event",
			Options: append([]*discordgo.ApplicationCommandOption{activity(true)}, append(scheduling,
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "capacity", Description: "Total slots (default per category)"},
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionInteger, Name: "sherpas", Description: "Sherpa slots (default 0)"},
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "note", Description: "Note shown on the card"},
			)...),
		},
		{
			Name:        "sherpa-request",
			Description: "Ask for sherpas to run an activity",
			Options: append([]*discordgo.ApplicationCommandOption{
				activity(true),
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "slots", Description: "How many sherpas you need", Required: true},
			}, append(scheduling,
				&discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: "note", Description: "Note shown on the card"},
			)...),
		},
		{
			Name:        "open-signups",
			Description: "Open signups for an event now (host or founders)",
			Options:     []*discordgo.ApplicationCommandOption{messageID},
		},
		{
			Name:        "add-member",
			Description: "Add a member to an event (host or founders)",
			Options: []*discordgo.ApplicationCommandOption{
				messageID,
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Member to add", Required: true},
			},
		},
		{
			Name:        "remove-member",
			Description: "Remove members from an event or a waiting queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Member to remove"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "message_id", Description: "Event card to remove from"},
				activity(false),
				{Type: discordgo.ApplicationCommandOptionString, Name: "members", Description: "Mentions or IDs for bulk queue removal (founders)"},
			},
		},
		{
			Name:        "set-capacity",
			Description: "Resize an event (host or founders)",
			Options: []*discordgo.ApplicationCommandOption{
				messageID,
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "capacity", Description: "New total slots", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "sherpas", Description: "New sherpa slot count"},
			},
		},
		{
			Name:        "promote",
			Description: "Promote a member to Sherpa Assistant (founders)",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Member to promote", Required: true},
			},
		},
		{
			Name:        "ping",
			Description: "Liveness check",
		},
	}
}

func activityChoices(cat *catalog.Catalog) []*discordgo.ApplicationCommandOptionChoice {
	names := cat.Names()
	if len(names) > 25 {
		names = names[:25] // Discord caps choices per option
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(names))
	for _, n := range names {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: n, Value: n})
	}
	return choices
}
