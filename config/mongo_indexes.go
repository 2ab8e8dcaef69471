package config

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongorepo "github.com/yoockh/virtualvisits/internal/repositories/mongo"
)

func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	surveys := db.Collection(mongorepo.SurveyCollection)
	_, err := surveys.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// one survey per user per call
		{
			Keys: bson.D{{Key: "call_id", Value: 1}, {Key: "acs_user_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_call_user").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_created"),
		},
	})
	return err
}
