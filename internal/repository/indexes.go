package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the repositories rely on. The unique
// compound index on votes is not an optimization: it is the authoritative
// duplicate-vote guard and must exist before any vote is accepted.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("polls").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "shareCode", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = db.Collection("votes").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "pollId", Value: 1},
				{Key: "voterFingerprint", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "pollId", Value: 1}},
		},
	})
	return err
}
