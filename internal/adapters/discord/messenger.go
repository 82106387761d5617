package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/goonworks/goonbot/internal/app/service"
	"github.com/goonworks/goonbot/internal/domain"
)

// Messenger adapts a discordgo session to the service layer's messaging
// port. All calls go through the REST API with the caller's context.
type Messenger struct {
	s *discordgo.Session
}

func NewMessenger(s *discordgo.Session) *Messenger { return &Messenger{s: s} }

// Post sends a channel message. A local imagePath is uploaded as an
// attachment and wired into the embed; http(s) paths are already set on the
// embed by the renderer.
func (m *Messenger) Post(ctx context.Context, channelID, content string, embed *discordgo.MessageEmbed, imagePath string) (domain.SurfaceRef, error) {
	send := &discordgo.MessageSend{Content: content}
	if embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}
	if embed != nil && imagePath != "" && !strings.HasPrefix(imagePath, "http://") && !strings.HasPrefix(imagePath, "https://") {
		f, err := os.Open(imagePath)
		if err != nil {
			// Missing art is cosmetic; the card still goes out.
			log.Printf("[discord] image %s: %v", imagePath, err)
		} else {
			defer f.Close()
			name := filepath.Base(imagePath)
			send.Files = []*discordgo.File{{Name: name, Reader: f}}
			embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + name}
		}
	}

	msg, err := m.s.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return domain.SurfaceRef{}, fmt.Errorf("post to %s: %w", channelID, err)
	}
	return domain.SurfaceRef{ChannelID: channelID, MessageID: msg.ID}, nil
}

// Edit replaces the embed of an existing message. A deleted message surfaces
// as ErrSurfaceGone so the caller can recreate the card.
func (m *Messenger) Edit(ctx context.Context, ref domain.SurfaceRef, embed *discordgo.MessageEmbed) error {
	_, err := m.s.ChannelMessageEditEmbed(ref.ChannelID, ref.MessageID, embed, discordgo.WithContext(ctx))
	if isUnknownMessage(err) {
		return service.ErrSurfaceGone
	}
	return err
}

func (m *Messenger) React(ctx context.Context, ref domain.SurfaceRef, emoji string) error {
	return m.s.MessageReactionAdd(ref.ChannelID, ref.MessageID, emoji, discordgo.WithContext(ctx))
}

func (m *Messenger) DM(ctx context.Context, memberID, content string) error {
	ch, err := m.s.UserChannelCreate(memberID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", memberID, err)
	}
	_, err = m.s.ChannelMessageSend(ch.ID, content, discordgo.WithContext(ctx))
	return err
}

// DMConfirm sends a direct message with Confirm/Decline buttons. The custom
// IDs route the click back to the event the invite belongs to.
func (m *Messenger) DMConfirm(ctx context.Context, memberID, content, confirmID, declineID string) error {
	ch, err := m.s.UserChannelCreate(memberID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", memberID, err)
	}
	_, err = m.s.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Content: content,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{Label: "Confirm", Style: discordgo.SuccessButton, CustomID: confirmID},
					discordgo.Button{Label: "Decline", Style: discordgo.DangerButton, CustomID: declineID},
				},
			},
		},
	}, discordgo.WithContext(ctx))
	return err
}

func isUnknownMessage(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeUnknownMessage {
		return true
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}
