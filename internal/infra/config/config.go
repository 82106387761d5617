package config

import (
	"log"
	"os"
)

type Config struct {
	DiscordToken string
	DiscordGuild string

	// Channel surfaces the bot posts to.
	GeneralChannelID string
	SherpaChannelID  string
	QueueChannelID   string
	LFGChannelID     string

	FounderUserID string
	SherpaRoleID  string

	// Waiting-queue durability. SnapshotPath is the default JSON
	// write-replace file; DATABASE_URL switches to the Postgres store.
	SnapshotPath string
	DatabaseURL  string

	// Optional presets file; empty means the embedded defaults.
	PresetsPath string
}

func Load() Config {
	get := func(k string, req bool) string {
		v := os.Getenv(k)
		if v == "" && req {
			log.Fatalf("missing env %s", k)
		}
		return v
	}

	cfg := Config{
		DiscordToken: get("DISCORD_BOT_TOKEN", true),
		DiscordGuild: get("DISCORD_GUILD_ID", true),

		GeneralChannelID: get("GENERAL_CHANNEL_ID", false),
		SherpaChannelID:  get("GENERAL_SHERPA_CHANNEL_ID", false),
		QueueChannelID:   get("RAID_QUEUE_CHANNEL_ID", false),
		LFGChannelID:     get("LFG_CHAT_CHANNEL_ID", true),

		FounderUserID: get("FOUNDER_USER_ID", false),
		SherpaRoleID:  get("SHERPA_ROLE_ID", false),

		SnapshotPath: get("QUEUE_SNAPSHOT_PATH", false),
		DatabaseURL:  get("DATABASE_URL", false),
		PresetsPath:  get("PRESETS_PATH", false),
	}
	if cfg.SnapshotPath == "" {
		cfg.SnapshotPath = "queues.json"
	}
	return cfg
}
