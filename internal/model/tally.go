package model

// Tally is per-option vote counts plus the derived total for one poll. It is
// a derived value, always reconstructable from the vote set; the cached copy
// carries a short TTL and is invalidated on every accepted vote.
type Tally struct {
	Counts map[string]int `json:"tallies"`
	Total  int            `json:"totalVotes"`
}

// NewTally builds a tally from per-option counts, deriving the total.
func NewTally(counts map[string]int) *Tally {
	if counts == nil {
		counts = map[string]int{}
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	return &Tally{Counts: counts, Total: total}
}

// PollState is the snapshot sent to a connection when it joins a poll room.
type PollState struct {
	Tallies     map[string]int `json:"tallies"`
	TotalVotes  int            `json:"totalVotes"`
	ViewerCount int            `json:"viewerCount"`
	IsActive    bool           `json:"isActive"`
}
