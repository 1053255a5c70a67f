package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/studyhub/assessment-service/internal/events"
	"github.com/studyhub/assessment-service/internal/generation"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/utils"
	"github.com/studyhub/assessment-service/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	logger    utils.Logger
	validator *validator.Validator
	publisher events.Publisher
	generator generation.Generator
	timeout   time.Duration
}

func NewQuestionService(
	repo repositories.Repository,
	logger utils.Logger,
	validator *validator.Validator,
	publisher events.Publisher,
	generator generation.Generator,
	timeout time.Duration,
) QuestionService {
	return &questionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		generator: generator,
		timeout:   timeout,
	}
}

// ===== GENERATION =====

func (s *questionService) RequestGeneration(ctx context.Context, testID uint, req *GenerationRequest, userID string) (*GenerationHandle, error) {
	s.logger.Info("Requesting question generation", "test_id", testID, "user_id", userID)

	if req == nil {
		req = &GenerationRequest{}
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	test, err := s.loadManagedTest(ctx, testID, userID, "generate")
	if err != nil {
		return nil, err
	}
	if test.Status == models.TestPublished && !test.Reopened {
		return nil, ErrTestPublished
	}

	existing, err := s.repo.Question().CountByTest(ctx, nil, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	if existing > 0 {
		return nil, NewValidationError("questions", "test already has questions; delete them before generating", existing)
	}

	params := generationParams(test, req)
	if err := s.validator.Validate(&validator.GenerationSchema{
		ExamType:      params.ExamType,
		Topic:         params.Topic,
		QuestionTypes: params.QuestionTypes,
		NumQuestions:  params.NumQuestions,
		ScoreRange:    params.ScoreRange,
	}); err != nil {
		return nil, err
	}

	if err := s.repo.Test().UpdateStatus(ctx, nil, testID, models.TestQuestionsPending, test.Reopened); err != nil {
		return nil, fmt.Errorf("failed to mark test pending: %w", err)
	}

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	generated, err := s.generator.Generate(genCtx, params)
	if err != nil {
		s.logger.Error("Question generation failed", "test_id", testID, "error", err)
		return nil, &GenerationFailure{TestID: testID, Cause: err}
	}

	questions := make([]*models.Question, 0, len(generated))
	for i, g := range generated {
		questions = append(questions, g.ToQuestion(testID, i+1))
	}

	// The whole set lands together or not at all
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Question().CreateBatch(ctx, tx, questions); err != nil {
			return fmt.Errorf("failed to store generated questions: %w", err)
		}
		if err := s.repo.Test().UpdateStatus(ctx, tx, testID, models.TestPublished, false); err != nil {
			return fmt.Errorf("failed to publish test: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Questions generated", "test_id", testID, "count", len(questions))
	publishEvent(ctx, s.publisher, s.logger, events.QuestionsGenerated, events.QuestionsGeneratedData{
		TestID:        testID,
		QuestionCount: len(questions),
		RequestedBy:   userID,
	})

	notice := models.SuccessNotice(fmt.Sprintf("Generated %d questions", len(questions)))
	if len(questions) < params.NumQuestions {
		notice = models.WarningNotice(fmt.Sprintf("Generated %d of %d requested questions", len(questions), params.NumQuestions))
	}

	return &GenerationHandle{
		TestID:        testID,
		Status:        models.TestPublished,
		QuestionCount: len(questions),
		Questions:     questions,
		Notice:        notice,
	}, nil
}

// generationParams fills absent request fields from the test
func generationParams(test *models.Test, req *GenerationRequest) generation.Params {
	params := generation.Params{
		ExamType:      test.ExamType,
		QuestionTypes: append([]string(nil), test.QuestionTypes...),
		NumQuestions:  test.NumQuestions,
	}
	if test.ScoreRange != nil {
		params.ScoreRange = *test.ScoreRange
	}

	topics := append(append([]string(nil), test.GrammarTopics...), test.VocabularyTopics...)
	if len(topics) > 0 {
		params.Topic = strings.Join(topics, ", ")
	} else {
		params.Topic = test.Title
	}

	if req == nil {
		return params
	}
	if req.ExamType != "" {
		params.ExamType = req.ExamType
	}
	if req.Topic != "" {
		params.Topic = req.Topic
	}
	if len(req.QuestionTypes) > 0 {
		params.QuestionTypes = req.QuestionTypes
	}
	if req.NumQuestions > 0 {
		params.NumQuestions = req.NumQuestions
	}
	if req.ScoreRange != "" {
		params.ScoreRange = req.ScoreRange
	}
	return params
}

// ===== REVIEW CONTRACT =====

func (s *questionService) List(ctx context.Context, testID uint, userID string) (*QuestionListResponse, error) {
	if _, err := s.loadManagedTest(ctx, testID, userID, "review"); err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().ListByTest(ctx, nil, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return &QuestionListResponse{TestID: testID, Questions: questions, Total: len(questions)}, nil
}

func (s *questionService) Add(ctx context.Context, testID uint, req *CreateQuestionRequest, userID string) (*models.Question, error) {
	s.logger.Info("Adding question", "test_id", testID, "user_id", userID)

	test, err := s.loadManagedTest(ctx, testID, userID, "add_question")
	if err != nil {
		return nil, err
	}
	if err := s.ensureQuestionsEditable(ctx, test); err != nil {
		return nil, err
	}
	if req.Points == 0 {
		req.Points = 1
	}
	if err := s.validateQuestion(req); err != nil {
		return nil, err
	}

	count, err := s.repo.Question().CountByTest(ctx, nil, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	question := &models.Question{TestID: testID, Position: int(count) + 1}
	applyQuestionSchema(question, req)

	if err := s.repo.Question().Create(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	// The first question publishes the test; a reopened test stays closed
	// to learners until the owner publishes it again.
	if test.Status != models.TestPublished {
		if err := s.repo.Test().UpdateStatus(ctx, nil, testID, models.TestPublished, test.Reopened); err != nil {
			return nil, fmt.Errorf("failed to update test status: %w", err)
		}
	}

	s.logger.Info("Question added", "test_id", testID, "question_id", question.ID)
	return question, nil
}

func (s *questionService) Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*models.Question, error) {
	s.logger.Info("Updating question", "question_id", id, "user_id", userID)

	question, test, err := s.loadManagedQuestion(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}
	if err := s.ensureQuestionsEditable(ctx, test); err != nil {
		return nil, err
	}

	schema := questionToSchema(question)
	if req.Text != nil {
		schema.Text = *req.Text
	}
	if req.Options != nil {
		schema.Options = *req.Options
	}
	if req.Answer != nil {
		schema.Answer = req.Answer
	}
	if req.Skill != nil {
		schema.Skill = req.Skill
	}
	if req.Topic != nil {
		schema.Topic = req.Topic
	}
	if req.Explanation != nil {
		schema.Explanation = req.Explanation
	}
	if req.Points != nil {
		schema.Points = *req.Points
	}

	if err := s.validateQuestion(&schema); err != nil {
		return nil, err
	}

	applyQuestionSchema(question, &schema)
	if err := s.repo.Question().Update(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	s.logger.Info("Question updated", "question_id", id)
	return question, nil
}

func (s *questionService) Delete(ctx context.Context, id uint, userID string) (*models.Notice, error) {
	s.logger.Info("Deleting question", "question_id", id, "user_id", userID)

	_, test, err := s.loadManagedQuestion(ctx, id, userID, "delete")
	if err != nil {
		return nil, err
	}
	if err := s.ensureQuestionsEditable(ctx, test); err != nil {
		return nil, err
	}

	var remaining int64
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Question().Delete(ctx, tx, id); err != nil {
			return err
		}
		count, err := s.repo.Question().CountByTest(ctx, tx, test.ID)
		if err != nil {
			return fmt.Errorf("failed to count questions: %w", err)
		}
		remaining = count
		if count == 0 {
			return s.repo.Test().UpdateStatus(ctx, tx, test.ID, models.TestQuestionsPending, test.Reopened)
		}
		return nil
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.Info("Question deleted", "question_id", id, "remaining", remaining)
	if remaining == 0 {
		return models.WarningNotice("Last question deleted. The test is waiting for questions again"), nil
	}
	return models.SuccessNotice("Question deleted"), nil
}

func (s *questionService) SetCorrectOption(ctx context.Context, questionID, optionID uint, userID string) (*models.Question, error) {
	question, test, err := s.loadManagedQuestion(ctx, questionID, userID, "update")
	if err != nil {
		return nil, err
	}
	if err := s.ensureQuestionsEditable(ctx, test); err != nil {
		return nil, err
	}
	if question.Type != models.MultipleChoice {
		return nil, NewValidationError("option_id", "only multiple choice questions have options", optionID)
	}
	if question.FindOption(optionID) == nil {
		return nil, ErrOptionNotFound
	}

	if err := s.repo.Question().SetCorrectOption(ctx, nil, questionID, optionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrOptionNotFound
		}
		return nil, fmt.Errorf("failed to set correct option: %w", err)
	}

	for i := range question.Options {
		question.Options[i].IsCorrect = question.Options[i].ID == optionID
	}
	s.logger.Info("Correct option set", "question_id", questionID, "option_id", optionID)
	return question, nil
}

// ===== HELPERS =====

func (s *questionService) loadManagedTest(ctx context.Context, testID uint, userID, action string) (*models.Test, error) {
	test, err := loadTest(ctx, s.repo, nil, testID)
	if err != nil {
		return nil, err
	}
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	if !canManageTest(test, user) {
		return nil, NewPermissionError(userID, testID, "test", action, "not owner or insufficient permissions")
	}
	return test, nil
}

func (s *questionService) loadManagedQuestion(ctx context.Context, id uint, userID, action string) (*models.Question, *models.Test, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrQuestionNotFound
		}
		return nil, nil, fmt.Errorf("failed to get question: %w", err)
	}
	test, err := loadTest(ctx, s.repo, nil, question.TestID)
	if err != nil {
		return nil, nil, err
	}
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, nil, err
	}
	if !canManageTest(test, user) {
		return nil, nil, NewPermissionError(userID, id, "question", action, "not owner or insufficient permissions")
	}
	return question, test, nil
}

// ensureQuestionsEditable allows review edits until learners have attempted a
// published test; after that the test must be reopened first.
func (s *questionService) ensureQuestionsEditable(ctx context.Context, test *models.Test) error {
	if test.Status != models.TestPublished || test.Reopened {
		return nil
	}
	attempts, err := s.repo.Attempt().CountByTest(ctx, nil, test.ID)
	if err != nil {
		return fmt.Errorf("failed to count attempts: %w", err)
	}
	if attempts > 0 {
		return ErrTestPublished
	}
	return nil
}

// validateQuestion runs the schema plus the per-type answer rules
func (s *questionService) validateQuestion(schema *validator.QuestionSchema) error {
	if err := s.validator.Validate(schema); err != nil {
		return err
	}

	switch models.QuestionType(schema.Type) {
	case models.MultipleChoice:
		if len(schema.Options) < 2 {
			return NewValidationError("options", "multiple choice questions need at least 2 options", len(schema.Options))
		}
		correct := 0
		for _, opt := range schema.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return NewValidationError("options", "exactly one option must be correct", correct)
		}
	case models.FillInBlank:
		if schema.Answer == nil || strings.TrimSpace(*schema.Answer) == "" {
			return NewValidationError("answer", "is required for fill in blank questions", nil)
		}
	}
	return nil
}

func questionToSchema(q *models.Question) validator.QuestionSchema {
	schema := validator.QuestionSchema{
		Type:        string(q.Type),
		Text:        q.Text,
		Answer:      q.Answer,
		Skill:       q.Skill,
		Topic:       q.Topic,
		Explanation: q.Explanation,
		Points:      q.Points,
	}
	for _, opt := range q.Options {
		schema.Options = append(schema.Options, validator.OptionSchema{Text: opt.Text, IsCorrect: opt.IsCorrect})
	}
	return schema
}

// applyQuestionSchema replaces the option set; ids are reassigned on save
func applyQuestionSchema(q *models.Question, schema *validator.QuestionSchema) {
	q.Type = models.QuestionType(schema.Type)
	q.Text = strings.TrimSpace(schema.Text)
	q.Points = schema.Points
	q.Topic = schema.Topic
	q.Explanation = schema.Explanation
	if schema.Skill != nil {
		skill := strings.ToLower(strings.TrimSpace(*schema.Skill))
		q.Skill = &skill
	} else {
		q.Skill = nil
	}

	q.Options = nil
	if q.Type == models.MultipleChoice {
		q.Answer = nil
		for i, opt := range schema.Options {
			q.Options = append(q.Options, models.QuestionOption{
				QuestionID: q.ID,
				Text:       strings.TrimSpace(opt.Text),
				IsCorrect:  opt.IsCorrect,
				Position:   i,
			})
		}
		return
	}

	if schema.Answer != nil {
		answer := strings.TrimSpace(*schema.Answer)
		q.Answer = &answer
	}
}
