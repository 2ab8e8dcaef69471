package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SurveyResult is one post-call survey answer; call_id is the partition field.
type SurveyResult struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	CallID      string             `bson:"call_id" json:"callId"`
	ACSUserID   string             `bson:"acs_user_id" json:"acsUserId"`
	MeetingLink string             `bson:"meeting_link,omitempty" json:"meetingLink,omitempty"`
	Response    any                `bson:"response" json:"response"`
	CreatedAt   time.Time          `bson:"created_at" json:"-"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"-"`
}
