package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/goonworks/goonbot/internal/domain"
)

// ErrSurfaceGone is returned by Messenger.Edit when the backing message was
// deleted out from under us; the sync layer reacts by recreating the surface.
var ErrSurfaceGone = errors.New("surface gone")

// Messenger is the narrow slice of the chat platform the services need.
// Implemented by internal/adapters/discord.
type Messenger interface {
	// Post publishes a message and returns a handle to it. imagePath is an
	// optional local asset attached to the embed; missing files are skipped.
	Post(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed, imagePath string) (domain.SurfaceRef, error)
	// Edit replaces the embed in place. Returns ErrSurfaceGone when the
	// message no longer exists.
	Edit(ctx context.Context, ref domain.SurfaceRef, embed *discordgo.MessageEmbed) error
	React(ctx context.Context, ref domain.SurfaceRef, emoji string) error
	DM(ctx context.Context, memberID, content string) error
	// DMConfirm sends a direct message with Confirm/Decline buttons wired
	// to the given component IDs.
	DMConfirm(ctx context.Context, memberID, content, confirmID, declineID string) error
}

// Permissions answers capability checks against the guild's role setup.
type Permissions interface {
	IsSherpa(memberID string) bool
	IsFounder(memberID string) bool
}

// QueueStore persists waiting queues. Implemented by the JSON snapshot store
// and by the Postgres repo.
type QueueStore interface {
	LoadQueues(ctx context.Context) (map[string][]string, error)
	SaveQueues(ctx context.Context, queues map[string][]string) error
}

// ChannelIDs are the guild channels the bot posts to.
type ChannelIDs struct {
	General string
	Sherpa  string
	Queue   string
	LFG     string
}
