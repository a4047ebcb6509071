package model

import "time"

// Vote is one accepted vote. The store enforces uniqueness on
// (pollId, voterFingerprint); that constraint is the system of record for
// "has this identity voted". Votes are never mutated.
type Vote struct {
	ID               string    `bson:"_id"`
	PollID           string    `bson:"pollId"`
	OptionID         string    `bson:"optionId"`
	VoterFingerprint string    `bson:"voterFingerprint"`
	VoterIP          string    `bson:"voterIp"`
	CreatedAt        time.Time `bson:"createdAt"`
}
