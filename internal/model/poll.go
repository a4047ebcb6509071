package model

import "time"

// Option is a single answer on a poll. Options are created with their poll
// and never change afterwards; Position fixes display and tally order.
type Option struct {
	ID       string `json:"id" bson:"id"`
	Label    string `json:"label" bson:"label"`
	Position int    `json:"position" bson:"position"`
}

// Poll is the durable poll document. Options are embedded so a poll and its
// option set are written in a single insert. Only IsActive ever changes.
type Poll struct {
	ID                 string    `json:"id" bson:"_id"`
	Question           string    `json:"question" bson:"question"`
	ShareCode          string    `json:"shareCode" bson:"shareCode"`
	Options            []Option  `json:"options" bson:"options"`
	CreatorFingerprint string    `json:"-" bson:"creatorFingerprint,omitempty"`
	IsActive           bool      `json:"isActive" bson:"isActive"`
	CreatedAt          time.Time `json:"createdAt" bson:"createdAt"`
}

// OptionByID returns the embedded option with the given id, or nil if the
// id does not belong to this poll.
func (p *Poll) OptionByID(optionID string) *Option {
	for i := range p.Options {
		if p.Options[i].ID == optionID {
			return &p.Options[i]
		}
	}
	return nil
}

// PollSummary is the poll object embedded in REST responses.
type PollSummary struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	ShareCode string    `json:"shareCode"`
	CreatedAt time.Time `json:"createdAt"`
	IsActive  bool      `json:"isActive"`
}

// OptionDetail is an option enriched with its current vote count.
type OptionDetail struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Position  int    `json:"position"`
	VoteCount int    `json:"voteCount"`
}

// PollDetail is the response body for fetching a poll by share code.
type PollDetail struct {
	Poll       PollSummary    `json:"poll"`
	Options    []OptionDetail `json:"options"`
	TotalVotes int            `json:"totalVotes"`
	HasVoted   bool           `json:"hasVoted"`
}
