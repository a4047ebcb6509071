package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pulsepoll/internal/cache"
	"pulsepoll/internal/model"
	"pulsepoll/internal/repository"
)

// EventVoteUpdate is broadcast to a poll's room on every accepted vote.
const EventVoteUpdate = "vote-update"

// Admission is the tagged outcome of the layered duplicate guard.
type Admission int

const (
	Admitted Admission = iota
	RejectedNetwork
	RejectedIdentity
)

// VoteService is the only path that creates votes. It orchestrates
// validation, the duplicate guard, the durable insert, cache invalidation,
// the recount, and the room broadcast.
type VoteService struct {
	pollRepo    repository.PollRepo
	voteRepo    repository.VoteRepo
	tallyCache  cache.TallyCache
	voteLocks   cache.VoteLockCache
	broadcaster Broadcaster
}

// NewVoteService creates a new vote service. The broadcaster is injected
// here so the admission path never reaches for process-wide state.
func NewVoteService(
	pollRepo repository.PollRepo,
	voteRepo repository.VoteRepo,
	tallyCache cache.TallyCache,
	voteLocks cache.VoteLockCache,
	broadcaster Broadcaster,
) *VoteService {
	return &VoteService{
		pollRepo:    pollRepo,
		voteRepo:    voteRepo,
		tallyCache:  tallyCache,
		voteLocks:   voteLocks,
		broadcaster: broadcaster,
	}
}

// SubmitVote admits one vote. It is safe under arbitrary concurrent
// invocation for the same poll and fingerprint: the store's uniqueness
// constraint, not any in-process lock, is the final arbiter.
func (s *VoteService) SubmitVote(ctx context.Context, shareCode, optionID, rawFingerprint, origin string) (*model.Tally, error) {
	if optionID == "" || rawFingerprint == "" {
		return nil, ValidationError("optionId and fingerprint are required")
	}

	poll, err := s.pollRepo.GetByShareCode(ctx, shareCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, ErrPollNotFound
	}
	if !poll.IsActive {
		return nil, ErrPollInactive
	}
	if poll.OptionByID(optionID) == nil {
		return nil, ErrInvalidOption
	}

	vote := &model.Vote{
		ID:               uuid.New().String(),
		PollID:           poll.ID,
		OptionID:         optionID,
		VoterFingerprint: HashFingerprint(rawFingerprint),
		VoterIP:          origin,
		CreatedAt:        time.Now().UTC(),
	}

	admission, err := s.admit(ctx, vote)
	if err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}
	switch admission {
	case RejectedNetwork:
		return nil, ErrDuplicateNetwork
	case RejectedIdentity:
		return nil, ErrDuplicateIdentity
	}

	// The lock is set only after the durable insert succeeds, so it stays
	// a secondary deterrent behind the uniqueness constraint.
	tryVoid("vote lock", func() error {
		return s.voteLocks.Lock(ctx, origin, poll.ID)
	})
	tryVoid("tally cache", func() error {
		return s.tallyCache.Invalidate(ctx, poll.ID)
	})

	counts, err := s.voteRepo.CountByOption(ctx, poll.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	tally := model.NewTally(counts)

	tryVoid("tally cache", func() error {
		return s.tallyCache.Set(ctx, poll.ID, tally)
	})

	s.broadcaster.BroadcastToRoom(shareCode, EventVoteUpdate, tally)

	return tally, nil
}

// admit runs the two duplicate guards in cheapness order: the ephemeral
// origin lock first, then the durable insert whose uniqueness constraint is
// authoritative. A degraded lock check fails open; the constraint still
// catches true duplicates.
func (s *VoteService) admit(ctx context.Context, vote *model.Vote) (Admission, error) {
	locked := try("vote lock", func() (bool, error) {
		return s.voteLocks.IsLocked(ctx, vote.VoterIP, vote.PollID)
	})
	if !locked.degraded && locked.value {
		return RejectedNetwork, nil
	}

	if err := s.voteRepo.Insert(ctx, vote); err != nil {
		if errors.Is(err, repository.ErrDuplicateVote) {
			return RejectedIdentity, nil
		}
		return Admitted, err
	}

	return Admitted, nil
}
