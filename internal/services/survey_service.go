package services

import (
	"context"
	"strings"

	"github.com/yoockh/virtualvisits/internal/models"
	mongorepo "github.com/yoockh/virtualvisits/internal/repositories/mongo"
	"github.com/yoockh/virtualvisits/internal/utils"
)

type SurveyService interface {
	Submit(ctx context.Context, in *models.SurveyResult) error
}

type surveyService struct {
	surveys mongorepo.SurveyRepository
}

// NewSurveyService accepts a nil repository when no database is configured;
// submissions then answer 503.
func NewSurveyService(surveys mongorepo.SurveyRepository) SurveyService {
	return &surveyService{surveys: surveys}
}

func (s *surveyService) Submit(ctx context.Context, in *models.SurveyResult) error {
	const op = "SurveyService.Submit"

	if in == nil {
		return utils.E(utils.CodeInvalidArgument, op, "survey result is required", nil)
	}
	in.CallID = strings.TrimSpace(in.CallID)
	in.ACSUserID = strings.TrimSpace(in.ACSUserID)
	if in.CallID == "" || in.ACSUserID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "callId and acsUserId are required", nil)
	}
	if s.surveys == nil {
		return utils.E(utils.CodeUnavailable, op, "survey storage is not configured", nil)
	}

	if err := s.surveys.Upsert(ctx, in); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to save survey result", err)
	}
	return nil
}
