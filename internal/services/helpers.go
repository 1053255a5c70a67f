package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/studyhub/assessment-service/internal/events"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/utils"
)

// ===== LOADERS =====

func loadUser(ctx context.Context, repo repositories.Repository, userID string) (*models.User, error) {
	user, err := repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func loadTest(ctx context.Context, repo repositories.Repository, tx *gorm.DB, id uint) (*models.Test, error) {
	test, err := repo.Test().GetByID(ctx, tx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return test, nil
}

func loadAttempt(ctx context.Context, repo repositories.Repository, tx *gorm.DB, id uint, forUpdate bool) (*models.Attempt, error) {
	var (
		attempt *models.Attempt
		err     error
	)
	if forUpdate {
		attempt, err = repo.Attempt().GetByIDForUpdate(ctx, tx, id)
	} else {
		attempt, err = repo.Attempt().GetByID(ctx, tx, id)
	}
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

func loadDetail(ctx context.Context, repo repositories.Repository, id uint) (*models.AttemptDetail, error) {
	detail, err := repo.AttemptDetail().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptDetailNotFound
		}
		return nil, fmt.Errorf("failed to get attempt detail: %w", err)
	}
	return detail, nil
}

// ===== ACCESS =====

// canManageTest: the creator, or any teacher or admin
func canManageTest(test *models.Test, user *models.User) bool {
	return user.IsStaff() || test.CreatedBy == user.ID
}

// canViewDetail: the learner who took the attempt, or staff
func canViewDetail(ctx context.Context, repo repositories.Repository, detail *models.AttemptDetail, userID string) (bool, error) {
	if detail.LearnerID == userID {
		return true, nil
	}
	user, err := loadUser(ctx, repo, userID)
	if err != nil {
		return false, err
	}
	return user.IsStaff(), nil
}

// ===== EVENTS =====

// publishEvent never fails the caller; delivery problems are logged
func publishEvent(ctx context.Context, publisher events.Publisher, logger utils.Logger, eventType events.EventType, data interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, events.NewEvent(eventType, data)); err != nil {
		logger.Warn("Failed to publish event", "event_type", eventType, "error", err)
	}
}

// ===== RESPONSE BUILDERS =====

func questionsForAttempt(questions []*models.Question) []QuestionForAttempt {
	out := make([]QuestionForAttempt, 0, len(questions))
	for _, q := range questions {
		item := QuestionForAttempt{
			ID:       q.ID,
			Type:     q.Type,
			Text:     q.Text,
			Points:   q.Points,
			Position: q.Position,
		}
		for _, opt := range q.Options {
			item.Options = append(item.Options, OptionForAttempt{ID: opt.ID, Text: opt.Text})
		}
		out = append(out, item)
	}
	return out
}

// remainingAttempts is nil for unlimited tests
func remainingAttempts(test *models.Test, used int64) *int {
	if !test.HasAttemptCeiling() {
		return nil
	}
	remaining := *test.MaxAttempts - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

func detailResponse(detail *models.AttemptDetail) *AttemptDetailResponse {
	return &AttemptDetailResponse{
		AttemptDetail:  detail,
		HasCertificate: hasCertificate(detail),
		CanEditPlan:    detail.IsGraded,
	}
}
