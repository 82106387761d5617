package service

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/goonworks/goonbot/internal/domain"
)

// Reaction affordances on the event surfaces.
const (
	EmojiJoin   = "🙋"
	EmojiBackup = "✅"
	EmojiSherpa = "🧭"
)

// Embed color palette, picked by a hash of the activity name so each
// activity keeps a stable color.
var palette = []int{
	0x5865F2, // blurple
	0x9B59B6, // purple
	0xF1C40F, // gold
	0xE67E22, // orange
	0x2ECC71, // green
	0x1ABC9C, // teal
	0xE74C3C, // red
	0x3498DB, // blue
}

func activityColor(name string) int {
	sum := 0
	for _, c := range name {
		sum += int(c)
	}
	return palette[sum%len(palette)]
}

// BuildEventCard renders the standard event card. Pure function of the
// roster: the same state always yields the same embed.
func BuildEventCard(r *domain.Roster) *discordgo.MessageEmbed {
	desc := r.Note
	if desc == "" {
		desc = "Be ready and bring good vibes!"
	}

	embed := &discordgo.MessageEmbed{
		Title:       "📣 Event: " + r.Activity.Name,
		Description: desc,
		Color:       activityColor(r.Activity.Name),
	}

	if !r.StartTime.IsZero() {
		ts := r.StartTime.Unix()
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "When",
			Value: fmt.Sprintf("<t:%d:F> (<t:%d:R>)", ts, ts),
		})
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{
			Name:   "Category",
			Value:  r.Activity.Category.Label(),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:   "Slots",
			Value:  slotsLine(r),
			Inline: true,
		},
		&discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Players (%d/%d)", len(r.Participants), r.PlayerSlots()),
			Value: numberedMentions(r.Participants),
		},
		&discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Backups (%s)", EmojiBackup),
			Value: numberedMentions(r.Backups),
		},
	)
	if r.SherpaSlots > 0 {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{
				Name:  fmt.Sprintf("Sherpas (%d/%d)", len(r.Sherpas), r.SherpaSlots),
				Value: mentions(r.Sherpas),
			},
			&discordgo.MessageEmbedField{
				Name:  "Sherpa Backups",
				Value: numberedMentions(r.SherpaBackups),
			},
		)
	}

	legend := fmt.Sprintf("React: %s join · %s backup", EmojiJoin, EmojiBackup)
	if !r.SignupsOpen {
		legend = fmt.Sprintf("Signups not open yet — react %s to note interest", EmojiBackup)
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: legend}

	if strings.HasPrefix(r.Activity.ImagePath, "http://") || strings.HasPrefix(r.Activity.ImagePath, "https://") {
		embed.Image = &discordgo.MessageEmbedImage{URL: r.Activity.ImagePath}
	}
	return embed
}

// BuildSherpaCard renders the compact sherpa-only card: either the companion
// card of a standard event (primaryURL links back to it) or the whole surface
// of a sherpa request.
func BuildSherpaCard(r *domain.Roster, primaryURL string) *discordgo.MessageEmbed {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", r.Activity.Name)
	if !r.StartTime.IsZero() {
		fmt.Fprintf(&b, " — <t:%d:F> (<t:%d:R>)", r.StartTime.Unix(), r.StartTime.Unix())
	}
	b.WriteString("\n")
	if primaryURL != "" {
		fmt.Fprintf(&b, "Event card: %s\n", primaryURL)
	}
	if r.Note != "" {
		fmt.Fprintf(&b, "%s\n", r.Note)
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s Sherpas wanted: %s", EmojiSherpa, r.Activity.Name),
		Description: b.String(),
		Color:       activityColor(r.Activity.Name),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  fmt.Sprintf("Sherpas (%d/%d)", len(r.Sherpas), r.SherpaSlots),
				Value: mentions(r.Sherpas),
			},
			{
				Name:  "Sherpa Backups",
				Value: numberedMentions(r.SherpaBackups),
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("React %s to claim a sherpa slot", EmojiSherpa),
		},
	}
	return embed
}

func slotsLine(r *domain.Roster) string {
	if r.Kind == domain.KindSherpaRequest {
		return fmt.Sprintf("%d sherpa", r.SherpaSlots)
	}
	if r.SherpaSlots > 0 {
		return fmt.Sprintf("%d player · %d sherpa", r.PlayerSlots(), r.SherpaSlots)
	}
	return fmt.Sprintf("%d player", r.PlayerSlots())
}

func numberedMentions(ids []string) string {
	if len(ids) == 0 {
		return "—"
	}
	var b strings.Builder
	for i, id := range ids {
		fmt.Fprintf(&b, "%d) <@%s>\n", i+1, id)
	}
	return b.String()
}

func mentions(ids []string) string {
	if len(ids) == 0 {
		return "—"
	}
	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "<@%s>\n", id)
	}
	return b.String()
}

// BuildQueueBoard renders the waiting-queue board for one activity.
func BuildQueueBoard(act domain.Activity, waiting []string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Queue — " + act.Name,
		Color: activityColor(act.Name),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Capacity", Value: fmt.Sprint(act.Capacity()), Inline: true},
			{Name: "Signed Up", Value: fmt.Sprint(len(waiting)), Inline: true},
		},
	}
	if len(waiting) == 0 {
		embed.Description = "No sign-ups yet. Use `/join-queue` to get started."
	} else {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Members (in order)",
			Value: numberedMentions(waiting),
		})
	}
	if strings.HasPrefix(act.ImagePath, "http://") || strings.HasPrefix(act.ImagePath, "https://") {
		embed.Image = &discordgo.MessageEmbedImage{URL: act.ImagePath}
	}
	return embed
}

// MessageURL is the canonical deep link to a message, embedded in companion
// cards so sherpas can jump to the primary surface.
func MessageURL(guildID string, ref domain.SurfaceRef) string {
	if ref.Zero() {
		return ""
	}
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, ref.ChannelID, ref.MessageID)
}
