package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"pulsepoll/internal/model"
)

type PollRepo interface {
	Create(ctx context.Context, poll *model.Poll) error
	GetByShareCode(ctx context.Context, shareCode string) (*model.Poll, error)
	ShareCodeExists(ctx context.Context, shareCode string) (bool, error)
	SetActive(ctx context.Context, pollID string, active bool) error
	Delete(ctx context.Context, pollID string) error
}

type pollRepo struct {
	collection *mongo.Collection
}

func NewPollRepo(db *mongo.Database) PollRepo {
	return &pollRepo{
		collection: db.Collection("polls"),
	}
}

func (r *pollRepo) Create(ctx context.Context, poll *model.Poll) error {
	// Options are embedded, so the poll and its option set land atomically.
	_, err := r.collection.InsertOne(ctx, poll)
	return err
}

func (r *pollRepo) GetByShareCode(ctx context.Context, shareCode string) (*model.Poll, error) {
	var poll model.Poll
	err := r.collection.FindOne(ctx, bson.M{"shareCode": shareCode}).Decode(&poll)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Poll not found
		}
		return nil, err
	}

	return &poll, nil
}

func (r *pollRepo) ShareCodeExists(ctx context.Context, shareCode string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"shareCode": shareCode})
	return n > 0, err
}

func (r *pollRepo) SetActive(ctx context.Context, pollID string, active bool) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": pollID},
		bson.M{"$set": bson.M{"isActive": active}},
	)
	return err
}

func (r *pollRepo) Delete(ctx context.Context, pollID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": pollID})
	return err
}
