package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"dinein-service/internal/apperr"
	"dinein-service/internal/models"
	"dinein-service/internal/store"
	"dinein-service/internal/util"

	"go.uber.org/zap"
)

type FeedbackService struct {
	repo   Transactor
	logger *zap.Logger
	now    func() time.Time
}

func NewFeedbackService(repo Transactor) *FeedbackService {
	return &FeedbackService{repo: repo, logger: util.GetLogger(), now: time.Now}
}

// FeedbackRequest rates a dining session
type FeedbackRequest struct {
	SessionID  string                    `json:"sessionId" binding:"required"`
	Rating     int                       `json:"rating" binding:"required,min=1,max=5"`
	Comments   string                    `json:"comments,omitempty"`
	Categories []models.FeedbackCategory `json:"categories,omitempty"`
}

// Submit stores the feedback of a session. Only one submission per session
// is accepted.
func (s *FeedbackService) Submit(ctx context.Context, req FeedbackRequest) (*models.Feedback, error) {
	ctx, span := util.StartSpan(ctx, "FeedbackService.Submit")
	var err error
	defer func() { util.EndSpan(span, err) }()

	if req.Rating < 1 || req.Rating > 5 {
		err = apperr.Wrap(apperr.ErrInvalidInput, "rating must be between 1 and 5")
		return nil, err
	}
	for _, c := range req.Categories {
		if strings.TrimSpace(c.Category) == "" || c.Rating < 1 || c.Rating > 5 {
			err = apperr.Wrap(apperr.ErrInvalidInput, "category ratings must name a category and be between 1 and 5")
			return nil, err
		}
	}

	session, err := s.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		err = lookup(err, apperr.ErrSessionNotFound)
		return nil, err
	}

	categories := models.FeedbackCategories(req.Categories)
	if categories == nil {
		categories = models.FeedbackCategories{}
	}
	feedback := &models.Feedback{
		ID:           newID(),
		SessionID:    session.ID,
		RestaurantID: session.RestaurantID,
		Rating:       req.Rating,
		Comments:     strings.TrimSpace(req.Comments),
		Categories:   categories,
		SubmittedAt:  s.now().UTC(),
	}

	if err = s.repo.CreateFeedback(ctx, feedback); err != nil {
		if errors.Is(err, store.ErrConflict) {
			err = apperr.ErrFeedbackExists
			return nil, err
		}
		err = classify("create feedback", err)
		return nil, err
	}

	s.logger.Info("Feedback submitted",
		zap.String("session_id", session.ID),
		zap.Int("rating", feedback.Rating))
	return feedback, nil
}
