package service

import (
	"context"
	"log"
	"sync"
)

// Notifier is the best-effort notification dispatcher. Every send is wrapped:
// a failed DM (blocked, left the guild) or announcement (missing channel,
// no permission) is logged and skipped. There is no retry queue; reminders
// are supplementary to the event card, never the source of truth.
type Notifier struct {
	msgr   Messenger
	fanout int
}

func NewNotifier(msgr Messenger) *Notifier {
	return &Notifier{msgr: msgr, fanout: 4}
}

// DM sends one direct message. Returns whether it was delivered.
func (n *Notifier) DM(ctx context.Context, memberID, content string) bool {
	if err := n.msgr.DM(ctx, memberID, content); err != nil {
		log.Printf("[notify] dm to %s failed: %v", memberID, err)
		return false
	}
	return true
}

// Invite DMs a member a selection invite with Confirm/Decline buttons.
func (n *Notifier) Invite(ctx context.Context, memberID, content, confirmID, declineID string) bool {
	if err := n.msgr.DMConfirm(ctx, memberID, content, confirmID, declineID); err != nil {
		log.Printf("[notify] invite to %s failed: %v", memberID, err)
		return false
	}
	return true
}

// Broadcast DMs every member with bounded fan-out and returns how many sends
// succeeded. Each DM is independent; there is no partial-failure rollback.
func (n *Notifier) Broadcast(ctx context.Context, memberIDs []string, content string) int {
	return n.each(memberIDs, func(id string) bool {
		return n.DM(ctx, id, content)
	})
}

// InviteAll sends the same Confirm/Decline invite to every member.
func (n *Notifier) InviteAll(ctx context.Context, memberIDs []string, content, confirmID, declineID string) int {
	return n.each(memberIDs, func(id string) bool {
		return n.Invite(ctx, id, content, confirmID, declineID)
	})
}

// Announce posts a plain channel message. No-op when the channel is not
// configured.
func (n *Notifier) Announce(ctx context.Context, channelID, content string) bool {
	if channelID == "" {
		return false
	}
	if _, err := n.msgr.Post(ctx, channelID, content, nil, ""); err != nil {
		log.Printf("[notify] announce to %s failed: %v", channelID, err)
		return false
	}
	return true
}

func (n *Notifier) each(memberIDs []string, send func(string) bool) int {
	sem := make(chan struct{}, n.fanout)
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0

	for _, id := range memberIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			if send(id) {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return sent
}
