package mongo

import (
	"context"
	"time"

	"github.com/yoockh/virtualvisits/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SurveyCollection = "surveys"

type SurveyRepository interface {
	Upsert(ctx context.Context, s *models.SurveyResult) error
}

type surveyRepo struct {
	col *mongo.Collection
}

func NewSurveyRepo(db *mongo.Database) SurveyRepository {
	return &surveyRepo{col: db.Collection(SurveyCollection)}
}

// Upsert keeps one document per (call, user); a resubmission replaces the response.
func (r *surveyRepo) Upsert(ctx context.Context, s *models.SurveyResult) error {
	now := time.Now().UTC()
	s.UpdatedAt = now
	_, err := r.col.UpdateOne(ctx,
		bson.M{"call_id": s.CallID, "acs_user_id": s.ACSUserID},
		bson.M{
			"$set": bson.M{
				"meeting_link": s.MeetingLink,
				"response":     s.Response,
				"updated_at":   s.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	return err
}
