package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/goonworks/goonbot/internal/domain"
	"github.com/goonworks/goonbot/internal/infra/catalog"
)

// fakeMessenger is an in-memory Messenger recording every platform call.
type fakeMessenger struct {
	mu     sync.Mutex
	nextID int

	posts     []postCall
	edits     []editCall
	reactions map[string][]string
	dms       []dmCall
	invites   []inviteCall

	gone   map[string]bool  // message IDs whose Edit returns ErrSurfaceGone
	dmFail map[string]bool  // member IDs whose DMs fail
}

type postCall struct {
	ChannelID string
	Content   string
	Embed     *discordgo.MessageEmbed
	ImagePath string
	Ref       domain.SurfaceRef
}

type editCall struct {
	Ref   domain.SurfaceRef
	Embed *discordgo.MessageEmbed
}

type dmCall struct {
	To      string
	Content string
}

type inviteCall struct {
	To        string
	Content   string
	ConfirmID string
	DeclineID string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		reactions: map[string][]string{},
		gone:      map[string]bool{},
		dmFail:    map[string]bool{},
	}
}

func (f *fakeMessenger) Post(_ context.Context, channelID, content string, embed *discordgo.MessageEmbed, imagePath string) (domain.SurfaceRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ref := domain.SurfaceRef{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", f.nextID)}
	f.posts = append(f.posts, postCall{channelID, content, embed, imagePath, ref})
	return ref, nil
}

func (f *fakeMessenger) Edit(_ context.Context, ref domain.SurfaceRef, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[ref.MessageID] {
		return ErrSurfaceGone
	}
	f.edits = append(f.edits, editCall{ref, embed})
	return nil
}

func (f *fakeMessenger) React(_ context.Context, ref domain.SurfaceRef, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[ref.MessageID] = append(f.reactions[ref.MessageID], emoji)
	return nil
}

func (f *fakeMessenger) DM(_ context.Context, memberID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmFail[memberID] {
		return fmt.Errorf("cannot send messages to this user")
	}
	f.dms = append(f.dms, dmCall{memberID, content})
	return nil
}

func (f *fakeMessenger) DMConfirm(_ context.Context, memberID, content, confirmID, declineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmFail[memberID] {
		return fmt.Errorf("cannot send messages to this user")
	}
	f.invites = append(f.invites, inviteCall{memberID, content, confirmID, declineID})
	return nil
}

func (f *fakeMessenger) dmCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dms)
}

func (f *fakeMessenger) dmsTo(memberID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, d := range f.dms {
		if d.To == memberID {
			out = append(out, d.Content)
		}
	}
	return out
}

func (f *fakeMessenger) postsTo(channelID string) []postCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []postCall
	for _, p := range f.posts {
		if p.ChannelID == channelID {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeMessenger) lastEditOf(messageID string) *editCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.edits) - 1; i >= 0; i-- {
		if f.edits[i].Ref.MessageID == messageID {
			return &f.edits[i]
		}
	}
	return nil
}

// fakePerms answers capability checks from fixed sets.
type fakePerms struct {
	sherpas  map[string]bool
	founders map[string]bool
}

func newFakePerms() *fakePerms {
	return &fakePerms{sherpas: map[string]bool{}, founders: map[string]bool{}}
}

func (f *fakePerms) IsSherpa(id string) bool  { return f.sherpas[id] }
func (f *fakePerms) IsFounder(id string) bool { return f.founders[id] }

// memStore is an in-memory QueueStore counting saves.
type memStore struct {
	mu    sync.Mutex
	data  map[string][]string
	saves int
	err   error
}

func newMemStore() *memStore { return &memStore{data: map[string][]string{}} }

func (m *memStore) LoadQueues(context.Context) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string, len(m.data))
	for k, v := range m.data {
		out[k] = append([]string(nil), v...)
	}
	return out, m.err
}

func (m *memStore) SaveQueues(_ context.Context, queues map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.data = map[string][]string{}
	for k, v := range queues {
		m.data[k] = append([]string(nil), v...)
	}
	return nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load("")
	require.NoError(t, err)
	return c
}
