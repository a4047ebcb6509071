package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pulsepoll/internal/cache"
	"pulsepoll/internal/model"
	"pulsepoll/internal/repository"
)

const (
	maxQuestionLength = 500
	maxOptionLength   = 200
	minOptions        = 2
	maxOptions        = 10

	// No ambiguous characters (0/O, 1/l/I) in share codes.
	shareCodeAlphabet = "2345679abcdefghjkmnpqrstuvwxyz"
	shareCodeLength   = 8
)

// PollService handles poll creation and reads.
type PollService struct {
	pollRepo   repository.PollRepo
	voteRepo   repository.VoteRepo
	tallyCache cache.TallyCache
}

// NewPollService creates a new poll service.
func NewPollService(pollRepo repository.PollRepo, voteRepo repository.VoteRepo, tallyCache cache.TallyCache) *PollService {
	return &PollService{
		pollRepo:   pollRepo,
		voteRepo:   voteRepo,
		tallyCache: tallyCache,
	}
}

// CreatePoll validates and persists a new poll with its option set.
// rawFingerprint is optional; when present it is stored hashed as the
// creator's identity.
func (s *PollService) CreatePoll(ctx context.Context, question string, options []string, rawFingerprint string) (*model.Poll, error) {
	if question == "" {
		return nil, ValidationError("Question is required")
	}
	if len(options) < minOptions {
		return nil, ValidationError("At least 2 options are required")
	}
	if len(options) > maxOptions {
		return nil, ValidationError("Maximum 10 options allowed")
	}

	cleanQuestion := sanitizeText(question, maxQuestionLength)
	if cleanQuestion == "" {
		return nil, ValidationError("Question cannot be empty after sanitization")
	}

	cleanOptions := make([]string, 0, len(options))
	for _, opt := range options {
		if clean := sanitizeText(opt, maxOptionLength); clean != "" {
			cleanOptions = append(cleanOptions, clean)
		}
	}
	if len(cleanOptions) < minOptions {
		return nil, ValidationError("At least 2 non-empty options are required")
	}

	seen := map[string]bool{}
	for _, opt := range cleanOptions {
		lower := strings.ToLower(opt)
		if seen[lower] {
			return nil, ValidationError("Duplicate options are not allowed")
		}
		seen[lower] = true
	}

	shareCode, err := s.generateShareCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate share code: %w", err)
	}

	poll := &model.Poll{
		ID:        uuid.New().String(),
		Question:  cleanQuestion,
		ShareCode: shareCode,
		Options:   make([]model.Option, len(cleanOptions)),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	for i, label := range cleanOptions {
		poll.Options[i] = model.Option{
			ID:       uuid.New().String(),
			Label:    label,
			Position: i,
		}
	}
	if rawFingerprint != "" {
		poll.CreatorFingerprint = HashFingerprint(rawFingerprint)
	}

	if err := s.pollRepo.Create(ctx, poll); err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}

	return poll, nil
}

// GetByShareCode returns the poll, or ErrPollNotFound.
func (s *PollService) GetByShareCode(ctx context.Context, shareCode string) (*model.Poll, error) {
	poll, err := s.pollRepo.GetByShareCode(ctx, shareCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	if poll == nil {
		return nil, ErrPollNotFound
	}
	return poll, nil
}

// GetPoll returns a poll with per-option vote counts and, when
// rawFingerprint is supplied, whether that identity has already voted.
func (s *PollService) GetPoll(ctx context.Context, shareCode, rawFingerprint string) (*model.PollDetail, error) {
	poll, err := s.GetByShareCode(ctx, shareCode)
	if err != nil {
		return nil, err
	}

	tally, err := s.Tallies(ctx, poll.ID)
	if err != nil {
		return nil, err
	}

	hasVoted := false
	if rawFingerprint != "" {
		voted, err := s.voteRepo.HasVoted(ctx, poll.ID, HashFingerprint(rawFingerprint))
		if err != nil {
			return nil, fmt.Errorf("failed to check vote: %w", err)
		}
		hasVoted = voted
	}

	detail := &model.PollDetail{
		Poll: model.PollSummary{
			ID:        poll.ID,
			Question:  poll.Question,
			ShareCode: poll.ShareCode,
			CreatedAt: poll.CreatedAt,
			IsActive:  poll.IsActive,
		},
		Options:    make([]model.OptionDetail, len(poll.Options)),
		TotalVotes: tally.Total,
		HasVoted:   hasVoted,
	}
	for i, opt := range poll.Options {
		detail.Options[i] = model.OptionDetail{
			ID:        opt.ID,
			Label:     opt.Label,
			Position:  opt.Position,
			VoteCount: tally.Counts[opt.ID],
		}
	}

	return detail, nil
}

// Tallies returns the current tally for a poll, read through the cache.
// Cache trouble never blocks the read; the vote set is authoritative.
func (s *PollService) Tallies(ctx context.Context, pollID string) (*model.Tally, error) {
	cached := try("tally cache", func() (*model.Tally, error) {
		return s.tallyCache.Get(ctx, pollID)
	})
	if !cached.degraded && cached.value != nil {
		return cached.value, nil
	}

	counts, err := s.voteRepo.CountByOption(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	tally := model.NewTally(counts)

	tryVoid("tally cache", func() error {
		return s.tallyCache.Set(ctx, pollID, tally)
	})

	return tally, nil
}

// State returns the room snapshot for a poll. ViewerCount is filled in by
// the transport layer, which owns room membership.
func (s *PollService) State(ctx context.Context, shareCode string) (*model.PollState, error) {
	poll, err := s.GetByShareCode(ctx, shareCode)
	if err != nil {
		return nil, err
	}

	tally, err := s.Tallies(ctx, poll.ID)
	if err != nil {
		return nil, err
	}

	return &model.PollState{
		Tallies:    tally.Counts,
		TotalVotes: tally.Total,
		IsActive:   poll.IsActive,
	}, nil
}

// SetActive flips the poll's active flag. Deactivated polls reject votes
// with 403 but stay readable.
func (s *PollService) SetActive(ctx context.Context, shareCode string, active bool) error {
	poll, err := s.GetByShareCode(ctx, shareCode)
	if err != nil {
		return err
	}
	if err := s.pollRepo.SetActive(ctx, poll.ID, active); err != nil {
		return fmt.Errorf("failed to update poll: %w", err)
	}
	return nil
}

// DeletePoll removes a poll and its votes.
func (s *PollService) DeletePoll(ctx context.Context, shareCode string) error {
	poll, err := s.GetByShareCode(ctx, shareCode)
	if err != nil {
		return err
	}
	if err := s.voteRepo.DeleteByPoll(ctx, poll.ID); err != nil {
		return fmt.Errorf("failed to delete votes: %w", err)
	}
	if err := s.pollRepo.Delete(ctx, poll.ID); err != nil {
		return fmt.Errorf("failed to delete poll: %w", err)
	}
	tryVoid("tally cache", func() error {
		return s.tallyCache.Invalidate(ctx, poll.ID)
	})
	return nil
}

// generateShareCode creates a short public code from the unambiguous
// alphabet, retrying on the rare collision.
func (s *PollService) generateShareCode(ctx context.Context) (string, error) {
	for attempts := 0; attempts < 10; attempts++ {
		b := make([]byte, shareCodeLength)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}

		code := make([]byte, shareCodeLength)
		for i := range code {
			code[i] = shareCodeAlphabet[int(b[i])%len(shareCodeAlphabet)]
		}
		codeStr := string(code)

		exists, err := s.pollRepo.ShareCodeExists(ctx, codeStr)
		if err != nil {
			return "", err
		}
		if !exists {
			return codeStr, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique share code")
}
