package service

import "errors"

var (
	ErrPollNotFound = errors.New("poll not found")
	ErrPollInactive = errors.New("poll is no longer accepting votes")
	// ErrInvalidOption covers option ids that do not belong to the target
	// poll, including ids copied from a different poll.
	ErrInvalidOption = errors.New("invalid option for this poll")
	// ErrDuplicateNetwork and ErrDuplicateIdentity are both conflicts but
	// must stay distinguishable: they come from independent guards.
	ErrDuplicateNetwork  = errors.New("vote from this network already recorded")
	ErrDuplicateIdentity = errors.New("identity already voted on this poll")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// ValidationError marks a client-correctable input problem.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }
