package discord

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var reMention = regexp.MustCompile(`<@!?(\d+)>`)

// parseIDs extracts member IDs from a free-form string of mentions and raw
// snowflakes.
func parseIDs(raw string) []string {
	ids := []string{}
	for _, tok := range strings.Fields(raw) {
		if m := reMention.FindStringSubmatch(tok); len(m) == 2 {
			ids = append(ids, m[1])
			continue
		}
		allDigits := tok != ""
		for _, r := range tok {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits {
			ids = append(ids, tok)
		}
	}
	return ids
}

func optStr(data discordgo.ApplicationCommandInteractionData, name string) (string, bool) {
	for _, o := range data.Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionString {
			return o.StringValue(), true
		}
	}
	return "", false
}

func optInt(data discordgo.ApplicationCommandInteractionData, name string) (int, bool) {
	for _, o := range data.Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionInteger {
			return int(o.IntValue()), true
		}
	}
	return 0, false
}

func optUser(data discordgo.ApplicationCommandInteractionData, name string) (string, bool) {
	for _, o := range data.Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionUser {
			if u := o.UserValue(nil); u != nil {
				return u.ID, true
			}
		}
	}
	return "", false
}

// invokerID works for both guild and DM interactions.
func invokerID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}
