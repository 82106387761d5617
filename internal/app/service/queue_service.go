package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/goonworks/goonbot/internal/infra/catalog"
)

// A member may wait in at most this many distinct activity queues.
const maxQueuesPerMember = 2

// QueueService owns the per-activity waiting queues. Queues live in memory;
// the store is a periodic snapshot plus an opportunistic save after every
// mutation. All mutations are serialized under one lock.
type QueueService struct {
	mu     sync.Mutex
	queues map[string][]string

	catalog *catalog.Catalog
	perms   Permissions
	store   QueueStore
}

func NewQueueService(store QueueStore, cat *catalog.Catalog, perms Permissions) *QueueService {
	return &QueueService{
		queues:  map[string][]string{},
		catalog: cat,
		perms:   perms,
		store:   store,
	}
}

// Load replaces the in-memory queues with the last snapshot. Called once at
// startup.
func (s *QueueService) Load(ctx context.Context) error {
	queues, err := s.store.LoadQueues(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.queues = queues
	s.mu.Unlock()
	log.Printf("[queue] loaded %d queues", len(queues))
	return nil
}

// Join adds the member to an activity queue. The returned string is the
// user-facing reply; rejections are replies, not errors.
func (s *QueueService) Join(ctx context.Context, memberID, activity string) (string, error) {
	if s.perms.IsSherpa(memberID) {
		return "Sherpa Assistants cannot join queues.", nil
	}
	act, ok := s.catalog.Lookup(activity)
	if !ok {
		return "Unknown activity.", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.memberQueuesLocked(memberID)
	for _, a := range current {
		if a == act.Name {
			return "You are already signed up for this activity.", nil
		}
	}
	if len(current) >= maxQueuesPerMember {
		return fmt.Sprintf("You can only be in %d different activity queues at once.", maxQueuesPerMember), nil
	}

	s.queues[act.Name] = append(s.queues[act.Name], memberID)
	s.saveLocked(ctx)
	return fmt.Sprintf("Joined queue for: %s", act.Name), nil
}

func (s *QueueService) Leave(ctx context.Context, memberID, activity string) (string, error) {
	act, ok := s.catalog.Lookup(activity)
	if !ok {
		return "Unknown activity.", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dropLocked(memberID, act.Name) {
		return fmt.Sprintf("You are not in the **%s** queue.", act.Name), nil
	}
	s.saveLocked(ctx)
	return fmt.Sprintf("Left queue for: %s", act.Name), nil
}

// Drop silently removes the member from one activity queue. Used when a
// queued member gets scheduled into an event.
func (s *QueueService) Drop(ctx context.Context, memberID, activity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropLocked(memberID, activity) {
		log.Printf("[queue] dropped %s from %q (scheduled)", memberID, activity)
		s.saveLocked(ctx)
	}
}

// RemoveMembers removes the given members from an activity queue and reports
// who was actually removed. Founder command.
func (s *QueueService) RemoveMembers(ctx context.Context, activity string, memberIDs []string) []string {
	act, ok := s.catalog.Lookup(activity)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for _, id := range memberIDs {
		if s.dropLocked(id, act.Name) {
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		s.saveLocked(ctx)
	}
	return removed
}

// List returns a copy of one queue, insertion order.
func (s *QueueService) List(activity string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queues[activity]...)
}

// PeekFront returns up to n members from the head of a queue without
// removing them. Selection invites go to these members; they only leave the
// queue once they confirm.
func (s *QueueService) PeekFront(activity string, n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[activity]
	if n > len(q) {
		n = len(q)
	}
	return append([]string(nil), q[:n]...)
}

// NonEmpty returns the activities that currently have waiters, in catalog
// order.
func (s *QueueService) NonEmpty() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, name := range s.catalog.Names() {
		if len(s.queues[name]) > 0 {
			out = append(out, name)
		}
	}
	return out
}

// Save snapshots the queues to the store.
func (s *QueueService) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SaveQueues(ctx, s.copyLocked())
}

// RunAutosave snapshots on a fixed interval until ctx is cancelled.
func (s *QueueService) RunAutosave(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.Save(ctx); err != nil {
				log.Printf("[queue] autosave: %v", err)
			}
		}
	}
}

func (s *QueueService) memberQueuesLocked(memberID string) []string {
	var out []string
	for activity, q := range s.queues {
		for _, id := range q {
			if id == memberID {
				out = append(out, activity)
				break
			}
		}
	}
	return out
}

func (s *QueueService) dropLocked(memberID, activity string) bool {
	q, ok := s.queues[activity]
	if !ok {
		return false
	}
	kept := q[:0]
	found := false
	for _, id := range q {
		if id == memberID {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if !found {
		return false
	}
	if len(kept) == 0 {
		delete(s.queues, activity)
	} else {
		s.queues[activity] = kept
	}
	return true
}

// saveLocked is the opportunistic post-mutation snapshot; failures are logged
// and the periodic autosave retries later.
func (s *QueueService) saveLocked(ctx context.Context) {
	if err := s.store.SaveQueues(ctx, s.copyLocked()); err != nil {
		log.Printf("[queue] snapshot: %v", err)
	}
}

func (s *QueueService) copyLocked() map[string][]string {
	out := make(map[string][]string, len(s.queues))
	for k, v := range s.queues {
		out[k] = append([]string(nil), v...)
	}
	return out
}
