package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/studyhub/assessment-service/internal/events"
	"github.com/studyhub/assessment-service/internal/grading"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/utils"
	"github.com/studyhub/assessment-service/internal/validator"
)

type submissionService struct {
	repo      repositories.Repository
	logger    utils.Logger
	validator *validator.Validator
	publisher events.Publisher
	grader    grading.Grader
	useGemini bool
	timeout   time.Duration
}

type SubmissionConfig struct {
	UseGemini bool
	Timeout   time.Duration
}

func NewSubmissionService(
	repo repositories.Repository,
	logger utils.Logger,
	validator *validator.Validator,
	publisher events.Publisher,
	grader grading.Grader,
	cfg SubmissionConfig,
) SubmissionService {
	return &submissionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		grader:    grader,
		useGemini: cfg.UseGemini,
		timeout:   cfg.Timeout,
	}
}

// Submit persists answers, grades and commits the result. Each step keeps
// what earlier steps committed, so a resubmission resumes where it failed.
func (s *submissionService) Submit(ctx context.Context, attemptID uint, req *SubmitAttemptRequest, learnerID string) (*AttemptDetailResponse, error) {
	s.logger.Info("Submitting attempt", "attempt_id", attemptID, "learner_id", learnerID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := loadAttempt(ctx, s.repo, nil, attemptID, false)
	if err != nil {
		return nil, err
	}
	if attempt.LearnerID != learnerID {
		return nil, NewPermissionError(learnerID, attemptID, "attempt", "submit", "attempt belongs to another learner")
	}

	if attempt.IsGraded() {
		return s.existingResult(ctx, attempt)
	}

	if attempt.IsInProgress() {
		attempt, err = s.persistAnswers(ctx, attempt, req)
		if err != nil {
			var verrs ValidationErrors
			if errors.As(err, &verrs) {
				return nil, err
			}
			return nil, &SubmissionError{AttemptID: attemptID, Step: StepPersistAnswers, Cause: err}
		}
		if attempt.IsGraded() {
			return s.existingResult(ctx, attempt)
		}
	} else {
		s.logger.Info("Resuming grading of submitted attempt", "attempt_id", attemptID)
	}

	outcome, err := s.grade(ctx, attempt)
	if err != nil {
		s.logger.Error("Grading failed", "attempt_id", attemptID, "error", err)
		return nil, &SubmissionError{AttemptID: attemptID, Step: StepGrade, Cause: err}
	}

	resp, err := s.CommitGradingResult(ctx, attemptID, outcome)
	if err != nil {
		s.logger.Error("Failed to commit grading result", "attempt_id", attemptID, "error", err)
		return nil, &SubmissionError{AttemptID: attemptID, Step: StepCommit, Cause: err}
	}
	return resp, nil
}

// persistAnswers stamps the end time and moves the attempt to submitted.
// A concurrent submit that got there first wins and its state is returned.
func (s *submissionService) persistAnswers(ctx context.Context, attempt *models.Attempt, req *SubmitAttemptRequest) (*models.Attempt, error) {
	questions, err := s.repo.Question().ListByTest(ctx, nil, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	answers, err := normalizeAnswers(req.Answers, questions)
	if err != nil {
		return nil, err
	}

	var (
		saved       *models.Attempt
		transitions bool
	)
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		locked, err := loadAttempt(ctx, s.repo, tx, attempt.ID, true)
		if err != nil {
			return err
		}
		saved = locked
		if !locked.IsInProgress() {
			return nil
		}

		now := time.Now().UTC()
		if req.StartTime != nil && !req.StartTime.IsZero() && req.StartTime.Before(now) {
			locked.StartTime = req.StartTime.UTC()
		}
		locked.Answers = answers
		locked.EndTime = &now
		locked.Status = models.AttemptSubmitted
		transitions = true
		return s.repo.Attempt().Update(ctx, tx, locked)
	})
	if err != nil {
		return nil, err
	}

	if transitions {
		s.logger.Info("Answers persisted", "attempt_id", saved.ID, "answers", len(answers))
		publishEvent(ctx, s.publisher, s.logger, events.AttemptSubmitted, events.AttemptSubmittedData{
			AttemptID:   saved.ID,
			TestID:      saved.TestID,
			LearnerID:   saved.LearnerID,
			AnswerCount: len(answers),
		})
	}
	return saved, nil
}

// grade loads the test, its questions and the learner profile concurrently
// and calls the grader within the configured timeout.
func (s *submissionService) grade(ctx context.Context, attempt *models.Attempt) (*GradingOutcome, error) {
	var (
		test      *models.Test
		questions []*models.Question
		profile   *grading.Profile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		test, err = loadTest(gctx, s.repo, nil, attempt.TestID)
		return err
	})
	g.Go(func() error {
		var err error
		questions, err = s.repo.Question().ListByTest(gctx, nil, attempt.TestID)
		if err != nil {
			return fmt.Errorf("failed to load questions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		profile = s.loadProfile(gctx, attempt.LearnerID, attempt.TestID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	req := buildGradingRequest(test, questions, attempt.Answers, profile, s.useGemini)

	gradeCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		gradeCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.grader.Grade(gradeCtx, req)
	if err != nil {
		return nil, err
	}
	return scoreSubmission(test, questions, attempt.Answers, result), nil
}

// loadProfile is best effort; grading proceeds without the profile parts it cannot load
func (s *submissionService) loadProfile(ctx context.Context, learnerID string, testID uint) *grading.Profile {
	profile := &grading.Profile{StudentID: learnerID}

	user, err := s.repo.User().GetByID(ctx, learnerID)
	if err != nil {
		s.logger.Warn("Failed to load learner profile", "learner_id", learnerID, "error", err)
	} else {
		profile.Name = user.FullName
		profile.CurrentLevel = user.CurrentLevel
		profile.StudyHoursPerWeek = user.StudyHoursPerWeek
		profile.LearningGoals = user.LearningGoals
		profile.LearningPreferences = user.LearningPreferences
		profile.StudyMethods = user.StudyMethods
	}

	history, err := s.repo.AttemptDetail().ListHistory(ctx, nil, learnerID, testID)
	if err != nil {
		s.logger.Warn("Failed to load test history", "learner_id", learnerID, "test_id", testID, "error", err)
		return profile
	}
	for _, d := range history {
		item := grading.HistoryItem{
			TestDate: d.SubmittedAt.Format(time.DateOnly),
			Score:    d.ScorePercent,
		}
		if analysis := d.AnalysisResult(); analysis != nil {
			item.LevelAtTest = analysis.PostTestLevel
		}
		profile.TestHistory = append(profile.TestHistory, item)
	}
	return profile
}

func (s *submissionService) CommitGradingResult(ctx context.Context, attemptID uint, outcome *GradingOutcome) (*AttemptDetailResponse, error) {
	var (
		detail        *models.AttemptDetail
		test          *models.Test
		certificate   *models.Certificate
		alreadyGraded bool
	)

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := loadAttempt(ctx, s.repo, tx, attemptID, true)
		if err != nil {
			return err
		}

		existing, err := s.repo.AttemptDetail().GetByAttemptID(ctx, tx, attemptID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to get attempt detail: %w", err)
		}
		if attempt.IsGraded() && existing != nil {
			detail = existing
			alreadyGraded = true
			return nil
		}

		switch {
		case attempt.IsInProgress():
			return NewValidationError("status", "attempt must be submitted before grading", attempt.Status)
		case !attempt.IsGraded():
			if outcome == nil || outcome.Analysis == nil {
				return fmt.Errorf("no grading outcome for attempt %d", attemptID)
			}
			now := time.Now().UTC()
			attempt.SetAnalysisResult(outcome.Analysis)
			attempt.CorrectCount = outcome.CorrectCount
			attempt.ScorePercent = outcome.ScorePercent
			attempt.Passed = outcome.Passed
			attempt.Status = models.AttemptGraded
			attempt.GradedAt = &now
			attempt.Version++
			if err := s.repo.Attempt().Update(ctx, tx, attempt); err != nil {
				return fmt.Errorf("failed to store analysis: %w", err)
			}
		}

		test, err = loadTest(ctx, s.repo, tx, attempt.TestID)
		if err != nil {
			return err
		}

		if existing == nil {
			existing = &models.AttemptDetail{}
		}
		if outcome != nil && outcome.Certificate != nil && existing.CertificateID == nil {
			cert := &models.Certificate{
				LearnerID: attempt.LearnerID,
				TestID:    attempt.TestID,
				CourseID:  test.CourseID,
				AttemptID: attempt.ID,
				CertCode:  outcome.Certificate.CertCode,
				IssuedAt:  time.Now().UTC(),
			}
			if outcome.Certificate.ArtifactURL != "" {
				url := outcome.Certificate.ArtifactURL
				cert.ArtifactURL = &url
			}
			certificate, err = s.repo.Certificate().Create(ctx, tx, cert)
			if err != nil {
				return fmt.Errorf("failed to record certificate: %w", err)
			}
			existing.CertificateID = &certificate.ID
		}

		existing.ProjectFrom(attempt, test)
		if err := s.repo.AttemptDetail().Upsert(ctx, tx, existing); err != nil {
			return fmt.Errorf("failed to project attempt detail: %w", err)
		}
		detail = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := detailResponse(detail)
	if alreadyGraded {
		resp.Notice = models.InfoNotice("This attempt was already graded")
		return resp, nil
	}

	s.logger.Info("Attempt graded",
		"attempt_id", attemptID,
		"score_percent", detail.ScorePercent,
		"passed", detail.Passed)
	publishEvent(ctx, s.publisher, s.logger, events.AttemptGraded, events.AttemptGradedData{
		AttemptID:    attemptID,
		TestID:       detail.TestID,
		LearnerID:    detail.LearnerID,
		ScorePercent: detail.ScorePercent,
		Passed:       detail.Passed,
	})
	if certificate != nil {
		publishEvent(ctx, s.publisher, s.logger, events.CertificateSurfaced, events.CertificateSurfacedData{
			CertificateID: certificate.ID,
			AttemptID:     attemptID,
			TestID:        certificate.TestID,
			LearnerID:     certificate.LearnerID,
			CertCode:      certificate.CertCode,
		})
	}

	resp.Notice = resultNotice(detail, test)
	return resp, nil
}

func (s *submissionService) existingResult(ctx context.Context, attempt *models.Attempt) (*AttemptDetailResponse, error) {
	detail, err := s.repo.AttemptDetail().GetByAttemptID(ctx, nil, attempt.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			// graded but never projected; the commit re-derives the detail
			return s.CommitGradingResult(ctx, attempt.ID, nil)
		}
		return nil, fmt.Errorf("failed to get attempt detail: %w", err)
	}
	resp := detailResponse(detail)
	resp.Notice = models.InfoNotice("This attempt was already graded")
	return resp, nil
}

func (s *submissionService) GetDetail(ctx context.Context, detailID uint, userID string) (*AttemptDetailResponse, error) {
	detail, err := loadDetail(ctx, s.repo, detailID)
	if err != nil {
		return nil, err
	}
	allowed, err := canViewDetail(ctx, s.repo, detail, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError(userID, detailID, "attempt_detail", "read", "attempt belongs to another learner")
	}
	return detailResponse(detail), nil
}

func (s *submissionService) ListHistory(ctx context.Context, learnerID string, testID uint) (*HistoryResponse, error) {
	if _, err := loadTest(ctx, s.repo, nil, testID); err != nil {
		return nil, err
	}

	details, err := s.repo.AttemptDetail().ListHistory(ctx, nil, learnerID, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	out := make([]*AttemptDetailResponse, 0, len(details))
	for _, d := range details {
		out = append(out, detailResponse(d))
	}
	return &HistoryResponse{TestID: testID, Details: out, Total: len(out)}, nil
}

func resultNotice(detail *models.AttemptDetail, test *models.Test) *models.Notice {
	if detail.Passed {
		msg := fmt.Sprintf("Passed with %d%%", detail.ScorePercent)
		if hasCertificate(detail) {
			msg += ". Your certificate is available"
		}
		return models.SuccessNotice(msg)
	}
	if test == nil {
		return models.InfoNotice(fmt.Sprintf("Scored %d%%", detail.ScorePercent))
	}
	return models.InfoNotice(fmt.Sprintf("Scored %d%%; %d%% is needed to pass", detail.ScorePercent, test.PassingPercent()))
}
