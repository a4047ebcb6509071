// Package testutil provides in-memory doubles for the durable store, the
// Redis-backed caches, and the broadcaster, so service and transport tests
// run without external servers. The vote fake enforces the same
// (pollId, voterFingerprint) uniqueness the Mongo index does.
package testutil

import (
	"context"
	"sync"
	"time"

	"pulsepoll/internal/cache"
	"pulsepoll/internal/model"
	"pulsepoll/internal/repository"
)

// MemoryPollRepo is an in-memory repository.PollRepo. Setting Err makes
// every call fail with it.
type MemoryPollRepo struct {
	mu    sync.Mutex
	polls map[string]*model.Poll
	Err   error
}

func NewMemoryPollRepo() *MemoryPollRepo {
	return &MemoryPollRepo{polls: make(map[string]*model.Poll)}
}

func (r *MemoryPollRepo) Create(_ context.Context, poll *model.Poll) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *poll
	r.polls[poll.ID] = &cp
	return nil
}

func (r *MemoryPollRepo) GetByShareCode(_ context.Context, shareCode string) (*model.Poll, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.polls {
		if p.ShareCode == shareCode {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryPollRepo) ShareCodeExists(ctx context.Context, shareCode string) (bool, error) {
	p, err := r.GetByShareCode(ctx, shareCode)
	return p != nil, err
}

func (r *MemoryPollRepo) SetActive(_ context.Context, pollID string, active bool) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.polls[pollID]; ok {
		p.IsActive = active
	}
	return nil
}

func (r *MemoryPollRepo) Delete(_ context.Context, pollID string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.polls, pollID)
	return nil
}

// MemoryVoteRepo is an in-memory repository.VoteRepo with the store-level
// uniqueness constraint on (pollId, voterFingerprint).
type MemoryVoteRepo struct {
	mu       sync.Mutex
	votes    []*model.Vote
	identity map[[2]string]bool
	Err      error
}

func NewMemoryVoteRepo() *MemoryVoteRepo {
	return &MemoryVoteRepo{identity: make(map[[2]string]bool)}
}

func (r *MemoryVoteRepo) Insert(_ context.Context, vote *model.Vote) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]string{vote.PollID, vote.VoterFingerprint}
	if r.identity[key] {
		return repository.ErrDuplicateVote
	}
	r.identity[key] = true
	cp := *vote
	r.votes = append(r.votes, &cp)
	return nil
}

func (r *MemoryVoteRepo) CountByOption(_ context.Context, pollID string) (map[string]int, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, v := range r.votes {
		if v.PollID == pollID {
			counts[v.OptionID]++
		}
	}
	return counts, nil
}

func (r *MemoryVoteRepo) HasVoted(_ context.Context, pollID, voterFingerprint string) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity[[2]string{pollID, voterFingerprint}], nil
}

func (r *MemoryVoteRepo) DeleteByPoll(_ context.Context, pollID string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.votes[:0]
	for _, v := range r.votes {
		if v.PollID == pollID {
			delete(r.identity, [2]string{v.PollID, v.VoterFingerprint})
			continue
		}
		kept = append(kept, v)
	}
	r.votes = kept
	return nil
}

// VoteCount returns the number of stored votes for a poll.
func (r *MemoryVoteRepo) VoteCount(pollID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.votes {
		if v.PollID == pollID {
			n++
		}
	}
	return n
}

// MemoryTallyCache is an in-memory cache.TallyCache. Entries never expire on
// their own; tests exercise explicit invalidation.
type MemoryTallyCache struct {
	mu      sync.Mutex
	entries map[string]*model.Tally
	Err     error
}

func NewMemoryTallyCache() *MemoryTallyCache {
	return &MemoryTallyCache{entries: make(map[string]*model.Tally)}
}

func (c *MemoryTallyCache) Get(_ context.Context, pollID string) (*model.Tally, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[pollID], nil
}

func (c *MemoryTallyCache) Set(_ context.Context, pollID string, tally *model.Tally) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pollID] = tally
	return nil
}

func (c *MemoryTallyCache) Invalidate(_ context.Context, pollID string) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, pollID)
	return nil
}

// Cached reports whether an entry exists for the poll.
func (c *MemoryTallyCache) Cached(pollID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[pollID] != nil
}

// MemoryVoteLockCache is an in-memory cache.VoteLockCache.
type MemoryVoteLockCache struct {
	mu    sync.Mutex
	locks map[[2]string]bool
	Err   error
}

func NewMemoryVoteLockCache() *MemoryVoteLockCache {
	return &MemoryVoteLockCache{locks: make(map[[2]string]bool)}
}

func (c *MemoryVoteLockCache) IsLocked(_ context.Context, origin, pollID string) (bool, error) {
	if c.Err != nil {
		return false, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locks[[2]string{origin, pollID}], nil
}

func (c *MemoryVoteLockCache) Lock(_ context.Context, origin, pollID string) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locks[[2]string{origin, pollID}] = true
	return nil
}

func (c *MemoryVoteLockCache) Unlock(_ context.Context, origin, pollID string) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, [2]string{origin, pollID})
	return nil
}

// MemoryRateLimitStore is an in-memory cache.RateLimitStore with real fixed
// windows.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	Err     error
}

type rateWindow struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{windows: make(map[string]*rateWindow)}
}

func (s *MemoryRateLimitStore) Hit(_ context.Context, scope, origin string, window time.Duration) (int64, time.Duration, error) {
	if s.Err != nil {
		return 0, 0, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scope + ":" + origin
	now := time.Now()
	w, ok := s.windows[key]
	if !ok || now.After(w.expiresAt) {
		w = &rateWindow{expiresAt: now.Add(window)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.expiresAt.Sub(now), nil
}

// BroadcastEvent is one recorded broadcast.
type BroadcastEvent struct {
	Room    string
	Event   string
	Payload interface{}
}

// RecordingBroadcaster is a service.Broadcaster that records every event.
type RecordingBroadcaster struct {
	mu     sync.Mutex
	events []BroadcastEvent
}

func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{}
}

func (b *RecordingBroadcaster) BroadcastToRoom(shareCode string, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, BroadcastEvent{Room: shareCode, Event: event, Payload: payload})
}

// Events returns a snapshot of the recorded broadcasts.
func (b *RecordingBroadcaster) Events() []BroadcastEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BroadcastEvent, len(b.events))
	copy(out, b.events)
	return out
}

var (
	_ repository.PollRepo  = (*MemoryPollRepo)(nil)
	_ repository.VoteRepo  = (*MemoryVoteRepo)(nil)
	_ cache.TallyCache     = (*MemoryTallyCache)(nil)
	_ cache.VoteLockCache  = (*MemoryVoteLockCache)(nil)
	_ cache.RateLimitStore = (*MemoryRateLimitStore)(nil)
)
