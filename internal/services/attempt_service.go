package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/studyhub/assessment-service/internal/events"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/utils"
	"github.com/studyhub/assessment-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	logger    utils.Logger
	validator *validator.Validator
	publisher events.Publisher
}

func NewAttemptService(repo repositories.Repository, logger utils.Logger, validator *validator.Validator, publisher events.Publisher) AttemptService {
	return &attemptService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// Start resumes the learner's in-progress attempt or opens the next one.
// The attempt ceiling is checked under a row lock on the test.
func (s *attemptService) Start(ctx context.Context, testID uint, learnerID string) (*AttemptResponse, error) {
	s.logger.Info("Starting attempt", "test_id", testID, "learner_id", learnerID)

	test, questions, err := s.loadPublishedTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	if current, err := s.repo.Attempt().GetInProgress(ctx, nil, testID, learnerID); err == nil {
		return s.resume(ctx, test, questions, current)
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check in-progress attempt: %w", err)
	}

	var (
		attempt *models.Attempt
		used    int64
		resumed bool
	)
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.Test().GetByIDForUpdate(ctx, tx, testID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrTestNotFound
			}
			return fmt.Errorf("failed to lock test: %w", err)
		}

		// A concurrent start may have won the lock first
		if current, err := s.repo.Attempt().GetInProgress(ctx, tx, testID, learnerID); err == nil {
			attempt = current
			resumed = true
			return nil
		} else if !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to check in-progress attempt: %w", err)
		}

		count, err := s.repo.Attempt().CountByLearner(ctx, tx, testID, learnerID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		if locked.HasAttemptCeiling() && count >= int64(*locked.MaxAttempts) {
			return &AttemptLimitError{
				TestID:      testID,
				MaxAttempts: *locked.MaxAttempts,
				Used:        count,
				Remaining:   0,
			}
		}

		attempt = &models.Attempt{
			TestID:        testID,
			LearnerID:     learnerID,
			AttemptNumber: int(count) + 1,
			Status:        models.AttemptInProgress,
			StartTime:     time.Now().UTC(),
			Version:       1,
		}
		if err := s.repo.Attempt().Create(ctx, tx, attempt); err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}
		used = count + 1
		return nil
	})
	if err != nil {
		var limitErr *AttemptLimitError
		if errors.As(err, &limitErr) {
			s.logger.Info("Attempt limit reached", "test_id", testID, "learner_id", learnerID, "used", limitErr.Used)
			return nil, err
		}
		if repositories.IsDuplicateError(err) {
			// Lost the race on the unique attempt number
			current, getErr := s.repo.Attempt().GetInProgress(ctx, nil, testID, learnerID)
			if getErr == nil {
				return s.resume(ctx, test, questions, current)
			}
		}
		return nil, err
	}
	if resumed {
		return s.resume(ctx, test, questions, attempt)
	}

	s.logger.Info("Attempt started", "attempt_id", attempt.ID, "attempt_number", attempt.AttemptNumber)
	publishEvent(ctx, s.publisher, s.logger, events.AttemptStarted, events.AttemptStartedData{
		AttemptID:     attempt.ID,
		TestID:        testID,
		LearnerID:     learnerID,
		AttemptNumber: attempt.AttemptNumber,
	})

	resp := s.buildResponse(test, attempt, questions, used)
	resp.Notice = models.InfoNotice(fmt.Sprintf("Attempt %d started", attempt.AttemptNumber))
	return resp, nil
}

func (s *attemptService) resume(ctx context.Context, test *models.Test, questions []*models.Question, attempt *models.Attempt) (*AttemptResponse, error) {
	used, err := s.repo.Attempt().CountByLearner(ctx, nil, test.ID, attempt.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	s.logger.Info("Resuming attempt", "attempt_id", attempt.ID, "learner_id", attempt.LearnerID)
	resp := s.buildResponse(test, attempt, questions, used)
	resp.Resumed = true
	resp.Notice = models.InfoNotice("Resuming your unfinished attempt")
	return resp, nil
}

// GetCurrent returns the in-progress attempt, else the latest one
func (s *attemptService) GetCurrent(ctx context.Context, testID uint, learnerID string) (*AttemptResponse, error) {
	test, err := loadTest(ctx, s.repo, nil, testID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetInProgress(ctx, nil, testID, learnerID)
	if repositories.IsNotFoundError(err) {
		attempt, err = s.repo.Attempt().GetLatest(ctx, nil, testID, learnerID)
	}
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNoPriorAttempt
		}
		return nil, fmt.Errorf("failed to get current attempt: %w", err)
	}

	var questions []*models.Question
	if attempt.IsInProgress() {
		questions, err = s.repo.Question().ListByTest(ctx, nil, testID)
		if err != nil {
			return nil, fmt.Errorf("failed to load questions: %w", err)
		}
	}

	used, err := s.repo.Attempt().CountByLearner(ctx, nil, testID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	return s.buildResponse(test, attempt, questions, used), nil
}

func (s *attemptService) GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error) {
	attempt, err := loadAttempt(ctx, s.repo, nil, id, false)
	if err != nil {
		return nil, err
	}
	if attempt.LearnerID != userID {
		user, err := loadUser(ctx, s.repo, userID)
		if err != nil {
			return nil, err
		}
		if !user.IsStaff() {
			return nil, NewPermissionError(userID, id, "attempt", "read", "attempt belongs to another learner")
		}
	}

	test, err := loadTest(ctx, s.repo, nil, attempt.TestID)
	if err != nil {
		return nil, err
	}

	var questions []*models.Question
	if attempt.IsInProgress() {
		questions, err = s.repo.Question().ListByTest(ctx, nil, attempt.TestID)
		if err != nil {
			return nil, fmt.Errorf("failed to load questions: %w", err)
		}
	}

	used, err := s.repo.Attempt().CountByLearner(ctx, nil, attempt.TestID, attempt.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	return s.buildResponse(test, attempt, questions, used), nil
}

// SaveProgress stores in-progress answers without submitting
func (s *attemptService) SaveProgress(ctx context.Context, id uint, req *SaveProgressRequest, learnerID string) (*AttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := loadAttempt(ctx, s.repo, nil, id, false)
	if err != nil {
		return nil, err
	}
	if attempt.LearnerID != learnerID {
		return nil, NewPermissionError(learnerID, id, "attempt", "update", "attempt belongs to another learner")
	}
	if !attempt.IsInProgress() {
		return nil, ErrAttemptNotEditable
	}

	questions, err := s.repo.Question().ListByTest(ctx, nil, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	answers, err := normalizeAnswers(req.Answers, questions)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		locked, err := loadAttempt(ctx, s.repo, tx, id, true)
		if err != nil {
			return err
		}
		if !locked.IsInProgress() {
			return ErrAttemptNotEditable
		}
		locked.Answers = answers
		attempt = locked
		return s.repo.Attempt().Update(ctx, tx, locked)
	})
	if err != nil {
		return nil, err
	}

	test, err := loadTest(ctx, s.repo, nil, attempt.TestID)
	if err != nil {
		return nil, err
	}
	used, err := s.repo.Attempt().CountByLearner(ctx, nil, attempt.TestID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	resp := s.buildResponse(test, attempt, nil, used)
	resp.Notice = models.SuccessNotice("Progress saved")
	return resp, nil
}

func (s *attemptService) GetRemaining(ctx context.Context, testID uint, learnerID string) (*RemainingAttemptsResponse, error) {
	test, err := loadTest(ctx, s.repo, nil, testID)
	if err != nil {
		return nil, err
	}
	used, err := s.repo.Attempt().CountByLearner(ctx, nil, testID, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}

	return &RemainingAttemptsResponse{
		TestID:      testID,
		MaxAttempts: test.MaxAttempts,
		Used:        used,
		Remaining:   remainingAttempts(test, used),
		Unlimited:   !test.HasAttemptCeiling(),
	}, nil
}

// ===== HELPERS =====

func (s *attemptService) loadPublishedTest(ctx context.Context, testID uint) (*models.Test, []*models.Question, error) {
	test, err := loadTest(ctx, s.repo, nil, testID)
	if err != nil {
		return nil, nil, err
	}
	questions, err := s.repo.Question().ListByTest(ctx, nil, testID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load questions: %w", err)
	}
	if !test.IsPublished(len(questions)) {
		return nil, nil, ErrTestNotPublished
	}
	return test, questions, nil
}

func (s *attemptService) buildResponse(test *models.Test, attempt *models.Attempt, questions []*models.Question, used int64) *AttemptResponse {
	resp := &AttemptResponse{
		Attempt:           attempt,
		RemainingAttempts: remainingAttempts(test, used),
		DurationMin:       test.DurationMin,
	}
	if attempt.IsInProgress() && len(questions) > 0 {
		resp.Questions = questionsForAttempt(questions)
	}
	return resp
}

// normalizeAnswers keeps the last answer per question and rejects answers
// for questions or options outside the test.
func normalizeAnswers(answers []models.SubmittedAnswer, questions []*models.Question) ([]models.SubmittedAnswer, error) {
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	var errs ValidationErrors
	index := make(map[uint]int, len(answers))
	out := make([]models.SubmittedAnswer, 0, len(answers))
	for i, answer := range answers {
		q, ok := byID[answer.QuestionID]
		if !ok {
			errs = append(errs, validator.ValidationError{
				Field:   fmt.Sprintf("answers[%d].question_id", i),
				Message: "question does not belong to this test",
				Value:   answer.QuestionID,
				Rule:    "question_in_test",
			})
			continue
		}
		if answer.SelectedOptionID != nil {
			opt := q.FindOption(*answer.SelectedOptionID)
			if opt == nil {
				errs = append(errs, validator.ValidationError{
					Field:   fmt.Sprintf("answers[%d].selected_option_id", i),
					Message: "option does not belong to this question",
					Value:   *answer.SelectedOptionID,
					Rule:    "option_in_question",
				})
				continue
			}
			answer.AnswerText = opt.Text
		}

		if pos, seen := index[answer.QuestionID]; seen {
			out[pos] = answer
			continue
		}
		index[answer.QuestionID] = len(out)
		out = append(out, answer)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}
