package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pulsepoll/internal/model"
)

// ErrDuplicateVote is returned by Insert when the store's uniqueness
// constraint on (pollId, voterFingerprint) rejects the vote.
var ErrDuplicateVote = errors.New("duplicate vote")

type VoteRepo interface {
	// Insert records a vote. The unique index on (pollId, voterFingerprint)
	// is the single serialization point for duplicate detection: under
	// concurrent inserts for the same identity exactly one succeeds.
	Insert(ctx context.Context, vote *model.Vote) error
	CountByOption(ctx context.Context, pollID string) (map[string]int, error)
	HasVoted(ctx context.Context, pollID, voterFingerprint string) (bool, error)
	DeleteByPoll(ctx context.Context, pollID string) error
}

type voteRepo struct {
	collection *mongo.Collection
}

func NewVoteRepo(db *mongo.Database) VoteRepo {
	return &voteRepo{
		collection: db.Collection("votes"),
	}
}

func (r *voteRepo) Insert(ctx context.Context, vote *model.Vote) error {
	_, err := r.collection.InsertOne(ctx, vote)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateVote
		}
		return err
	}
	return nil
}

func (r *voteRepo) CountByOption(ctx context.Context, pollID string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"pollId": pollID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$optionId",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := map[string]int{}
	for cursor.Next(ctx) {
		var row struct {
			OptionID string `bson:"_id"`
			Count    int    `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.OptionID] = row.Count
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *voteRepo) HasVoted(ctx context.Context, pollID, voterFingerprint string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{
		"pollId":           pollID,
		"voterFingerprint": voterFingerprint,
	})
	return n > 0, err
}

func (r *voteRepo) DeleteByPoll(ctx context.Context, pollID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"pollId": pollID})
	return err
}
