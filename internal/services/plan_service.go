package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/studyhub/assessment-service/internal/events"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/utils"
	"github.com/studyhub/assessment-service/internal/validator"
)

type planService struct {
	repo      repositories.Repository
	logger    utils.Logger
	validator *validator.Validator
	publisher events.Publisher
}

func NewPlanService(repo repositories.Repository, logger utils.Logger, validator *validator.Validator, publisher events.Publisher) PlanService {
	return &planService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// EditPlan rewrites the attempt's analysis and re-derives its detail in one
// transaction. Without ExpectedVersion the last write wins.
func (s *planService) EditPlan(ctx context.Context, detailID uint, patch *PlanPatch, userID string) (*AttemptDetailResponse, error) {
	s.logger.Info("Editing plan", "attempt_detail_id", detailID, "user_id", userID)

	if err := s.validator.Validate(patch); err != nil {
		return nil, err
	}

	detail, err := loadDetail(ctx, s.repo, detailID)
	if err != nil {
		return nil, err
	}
	allowed, err := canViewDetail(ctx, s.repo, detail, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError(userID, detailID, "attempt_detail", "edit_plan", "attempt belongs to another learner")
	}
	if patch.IsEmpty() {
		resp := detailResponse(detail)
		resp.Notice = models.InfoNotice("Nothing to change")
		return resp, nil
	}

	var updated *models.AttemptDetail
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := loadAttempt(ctx, s.repo, tx, detail.AttemptID, true)
		if err != nil {
			return err
		}
		if !attempt.IsGraded() {
			return ErrAttemptNotGraded
		}
		if patch.ExpectedVersion != nil && *patch.ExpectedVersion != attempt.Version {
			return &StaleWriteConflict{
				AttemptDetailID: detailID,
				Expected:        *patch.ExpectedVersion,
				Actual:          attempt.Version,
			}
		}

		analysis, err := ApplyPlanPatch(attempt.AnalysisResult(), patch)
		if err != nil {
			return err
		}
		attempt.SetAnalysisResult(analysis)
		attempt.Version++
		if err := s.repo.Attempt().Update(ctx, tx, attempt); err != nil {
			return fmt.Errorf("failed to store plan: %w", err)
		}

		test, err := loadTest(ctx, s.repo, tx, attempt.TestID)
		if err != nil {
			return err
		}

		// Re-read the projection inside the transaction so the certificate link survives
		current, err := s.repo.AttemptDetail().GetByAttemptID(ctx, tx, attempt.ID)
		if err != nil {
			return fmt.Errorf("failed to get attempt detail: %w", err)
		}
		current.ProjectFrom(attempt, test)
		if err := s.repo.AttemptDetail().Upsert(ctx, tx, current); err != nil {
			return fmt.Errorf("failed to project attempt detail: %w", err)
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Plan edited", "attempt_detail_id", detailID, "version", updated.Version)
	publishEvent(ctx, s.publisher, s.logger, events.PlanEdited, events.PlanEditedData{
		AttemptID:       updated.AttemptID,
		AttemptDetailID: updated.ID,
		EditorID:        userID,
		Version:         updated.Version,
	})

	resp := detailResponse(updated)
	resp.Notice = models.SuccessNotice("Study plan updated")
	if patch.ExpectedVersion == nil {
		resp.Notice = models.SuccessNotice("Study plan updated. Concurrent edits were not checked")
	}
	return resp, nil
}
