package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/studyhub/assessment-service/internal/events"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/utils"
	"github.com/studyhub/assessment-service/internal/validator"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type testService struct {
	repo      repositories.Repository
	logger    utils.Logger
	validator *validator.Validator
	publisher events.Publisher
}

func NewTestService(repo repositories.Repository, logger utils.Logger, validator *validator.Validator, publisher events.Publisher) TestService {
	return &testService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *testService) Create(ctx context.Context, req *CreateTestRequest, creatorID string) (*TestResponse, error) {
	s.logger.Info("Creating test", "creator_id", creatorID, "title", req.Title)

	user, err := loadUser(ctx, s.repo, creatorID)
	if err != nil {
		return nil, err
	}

	kind := req.Kind
	if kind == "" {
		kind = models.TestKindCustom
		if req.CourseID != nil || req.LessonID != nil {
			kind = models.TestKindCourse
		}
	}
	if kind == models.TestKindCourse && !user.IsStaff() {
		return nil, NewPermissionError(creatorID, 0, "test", "create", "only teachers and admins can create course tests")
	}

	schema := req.TestSchema
	courseID, err := s.resolveCourse(ctx, &schema, req.CourseID, req.LessonID)
	if err != nil {
		return nil, err
	}
	if kind == models.TestKindCourse && courseID == nil {
		return nil, NewValidationError("course_id", "is required for course tests", nil)
	}

	if err := s.validator.Validate(&schema); err != nil {
		return nil, err
	}

	test := &models.Test{
		Kind:      kind,
		CourseID:  courseID,
		LessonID:  req.LessonID,
		CreatedBy: creatorID,
		Status:    models.TestDraft,
	}
	applySchema(test, &schema)

	if err := s.repo.Test().Create(ctx, nil, test); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}

	// Lesson registration is a separate write; the test stands if it fails
	notice := models.SuccessNotice("Test created")
	if test.LessonID != nil {
		if err := s.repo.Course().RegisterLessonTest(ctx, nil, *test.LessonID, test.ID); err != nil {
			s.logger.Warn("Failed to register test with lesson",
				"test_id", test.ID,
				"lesson_id", *test.LessonID,
				"error", err)
			notice = models.WarningNotice("Test created but could not be linked to the lesson")
		}
	}

	s.logger.Info("Test created successfully", "test_id", test.ID, "kind", test.Kind)
	publishEvent(ctx, s.publisher, s.logger, events.TestCreated, events.TestCreatedData{
		TestID:    test.ID,
		CreatedBy: creatorID,
		Kind:      string(test.Kind),
		CourseID:  test.CourseID,
		LessonID:  test.LessonID,
	})

	resp := s.buildResponse(test, user, 0)
	resp.Notice = notice
	return resp, nil
}

func (s *testService) GetByID(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	test, err := loadTest(ctx, s.repo, nil, id)
	if err != nil {
		return nil, err
	}
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.Question().CountByTest(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	if !canManageTest(test, user) && !test.IsPublished(int(count)) {
		return nil, NewPermissionError(userID, id, "test", "read", "test is not published")
	}
	test.QuestionsCount = int(count)

	return s.buildResponse(test, user, int(count)), nil
}

func (s *testService) Update(ctx context.Context, id uint, req *UpdateTestRequest, userID string) (*TestResponse, error) {
	s.logger.Info("Updating test", "test_id", id, "user_id", userID)

	test, user, err := s.loadEditable(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	schema := toSchema(test)
	mergeUpdate(&schema, req)

	if test.CourseID != nil && req.ExamType != nil {
		course, err := s.repo.Course().GetCourse(ctx, nil, *test.CourseID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrCourseNotFound
			}
			return nil, fmt.Errorf("failed to get course: %w", err)
		}
		if err := applyCourseExamType(&schema, course); err != nil {
			return nil, err
		}
	}

	if err := s.validator.Validate(&schema); err != nil {
		return nil, err
	}

	applySchema(test, &schema)
	if err := s.repo.Test().Update(ctx, nil, test); err != nil {
		return nil, fmt.Errorf("failed to update test: %w", err)
	}

	s.logger.Info("Test updated successfully", "test_id", id)
	resp := s.buildResponse(test, user, test.QuestionsCount)
	resp.Notice = models.SuccessNotice("Test updated")
	return resp, nil
}

func (s *testService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting test", "test_id", id, "user_id", userID)

	test, err := loadTest(ctx, s.repo, nil, id)
	if err != nil {
		return err
	}
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return err
	}
	if !canManageTest(test, user) {
		return NewPermissionError(userID, id, "test", "delete", "not owner or insufficient permissions")
	}

	attempts, err := s.repo.Attempt().CountByTest(ctx, nil, id)
	if err != nil {
		return fmt.Errorf("failed to count attempts: %w", err)
	}
	if attempts > 0 {
		return ErrTestHasAttempts
	}

	if err := s.repo.Test().Delete(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to delete test: %w", err)
	}

	s.logger.Info("Test deleted successfully", "test_id", id)
	return nil
}

func (s *testService) List(ctx context.Context, filters repositories.TestFilters, userID string) (*TestListResponse, error) {
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	// Learners only browse open tests unless they list their own
	if !user.IsStaff() && (filters.CreatedBy == nil || *filters.CreatedBy != userID) {
		filters.OpenOnly = true
	}
	if filters.Limit <= 0 {
		filters.Limit = defaultPageSize
	}
	if filters.Limit > maxPageSize {
		filters.Limit = maxPageSize
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	tests, total, err := s.repo.Test().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}

	responses := make([]*TestResponse, 0, len(tests))
	for _, test := range tests {
		responses = append(responses, s.buildResponse(test, user, test.QuestionsCount))
	}

	return &TestListResponse{
		Tests: responses,
		Total: total,
		Page:  filters.Offset/filters.Limit + 1,
		Size:  filters.Limit,
	}, nil
}

// ===== TOPIC PICKER =====

func (s *testService) SelectTopic(ctx context.Context, id uint, req *TopicRequest, userID string) (*TestResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	test, user, err := s.loadEditable(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	picker := validator.NewTopicPicker(test.GrammarTopics, test.VocabularyTopics)
	if verr := picker.Select(models.TopicCategory(req.Category), req.Name); verr != nil {
		return nil, ValidationErrors{*verr}
	}

	return s.saveTopics(ctx, test, user, picker)
}

func (s *testService) DeselectTopic(ctx context.Context, id uint, req *TopicRequest, userID string) (*TestResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	test, user, err := s.loadEditable(ctx, id, userID, "update")
	if err != nil {
		return nil, err
	}

	picker := validator.NewTopicPicker(test.GrammarTopics, test.VocabularyTopics)
	if !picker.Deselect(models.TopicCategory(req.Category), req.Name) {
		return nil, NewValidationError("name", "topic is not selected", req.Name)
	}

	return s.saveTopics(ctx, test, user, picker)
}

func (s *testService) saveTopics(ctx context.Context, test *models.Test, user *models.User, picker *validator.TopicPicker) (*TestResponse, error) {
	test.GrammarTopics = picker.Grammar
	test.VocabularyTopics = picker.Vocabulary
	if err := s.repo.Test().Update(ctx, nil, test); err != nil {
		return nil, fmt.Errorf("failed to update topics: %w", err)
	}

	resp := s.buildResponse(test, user, test.QuestionsCount)
	if picker.Count() >= models.MaxSelectedTopics {
		resp.Notice = models.InfoNotice(fmt.Sprintf("Topic limit of %d reached", models.MaxSelectedTopics))
	}
	return resp, nil
}

// ===== REVIEW LIFECYCLE =====

func (s *testService) Reopen(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	test, user, err := s.loadManaged(ctx, id, userID, "reopen")
	if err != nil {
		return nil, err
	}
	if test.Status != models.TestPublished {
		return nil, NewValidationError("status", "only published tests can be reopened", test.Status)
	}

	if err := s.repo.Test().UpdateStatus(ctx, nil, id, models.TestPublished, true); err != nil {
		return nil, fmt.Errorf("failed to reopen test: %w", err)
	}
	test.Reopened = true

	s.logger.Info("Test reopened for review", "test_id", id, "user_id", userID)
	resp := s.buildResponse(test, user, 0)
	resp.Notice = models.InfoNotice("Test reopened. Learners cannot start it until it is published again")
	return resp, nil
}

func (s *testService) Publish(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	test, user, err := s.loadManaged(ctx, id, userID, "publish")
	if err != nil {
		return nil, err
	}

	count, err := s.repo.Question().CountByTest(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	if count == 0 {
		return nil, ErrNoQuestions
	}

	if err := s.repo.Test().UpdateStatus(ctx, nil, id, models.TestPublished, false); err != nil {
		return nil, fmt.Errorf("failed to publish test: %w", err)
	}
	test.Status = models.TestPublished
	test.Reopened = false
	test.QuestionsCount = int(count)

	s.logger.Info("Test published", "test_id", id, "questions", count)
	resp := s.buildResponse(test, user, int(count))
	resp.Notice = models.SuccessNotice("Test published")
	return resp, nil
}

// ===== HELPERS =====

func (s *testService) loadManaged(ctx context.Context, id uint, userID, action string) (*models.Test, *models.User, error) {
	test, err := loadTest(ctx, s.repo, nil, id)
	if err != nil {
		return nil, nil, err
	}
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, nil, err
	}
	if !canManageTest(test, user) {
		return nil, nil, NewPermissionError(userID, id, "test", action, "not owner or insufficient permissions")
	}
	return test, user, nil
}

// loadEditable also refuses published tests that were not reopened
func (s *testService) loadEditable(ctx context.Context, id uint, userID, action string) (*models.Test, *models.User, error) {
	test, user, err := s.loadManaged(ctx, id, userID, action)
	if err != nil {
		return nil, nil, err
	}
	if test.Status == models.TestPublished && !test.Reopened {
		return nil, nil, ErrTestPublished
	}
	return test, user, nil
}

// resolveCourse validates the course and lesson links and derives the exam type.
// A lesson without a course implies the lesson's course.
func (s *testService) resolveCourse(ctx context.Context, schema *validator.TestSchema, courseID, lessonID *uint) (*uint, error) {
	if lessonID != nil {
		lesson, err := s.repo.Course().GetLesson(ctx, nil, *lessonID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrLessonNotFound
			}
			return nil, fmt.Errorf("failed to get lesson: %w", err)
		}
		if courseID == nil {
			id := lesson.CourseID
			courseID = &id
		} else if *courseID != lesson.CourseID {
			return nil, NewValidationError("lesson_id", "lesson does not belong to the selected course", *lessonID)
		}
	}

	if courseID == nil {
		return nil, nil
	}

	course, err := s.repo.Course().GetCourse(ctx, nil, *courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if err := applyCourseExamType(schema, course); err != nil {
		return nil, err
	}
	return courseID, nil
}

func (s *testService) buildResponse(test *models.Test, user *models.User, questionCount int) *TestResponse {
	manage := canManageTest(test, user)
	published := test.IsPublished(questionCount)
	return &TestResponse{
		Test:                test,
		PassingScorePercent: test.PassingPercent(),
		IsPublished:         published,
		CanEdit:             manage && (test.Status != models.TestPublished || test.Reopened),
		CanDelete:           manage,
		CanTake:             published,
	}
}

// applyCourseExamType makes the course's exam type read-only on the schema
func applyCourseExamType(schema *validator.TestSchema, course *models.Course) error {
	if course.ExamType == "" {
		return nil
	}
	explicit := strings.TrimSpace(schema.ExamType)
	if explicit != "" && !strings.EqualFold(explicit, course.ExamType) {
		return NewValidationError("exam_type", "is derived from the course and cannot be changed", schema.ExamType)
	}
	schema.ExamType = course.ExamType
	return nil
}

// toSchema renders a stored test in input units so updates are revalidated as a whole
func toSchema(test *models.Test) validator.TestSchema {
	picker := validator.NewTopicPicker(test.GrammarTopics, test.VocabularyTopics)
	return validator.TestSchema{
		Title:         test.Title,
		Description:   test.Description,
		Topics:        picker.Selections(),
		Skills:        append([]string(nil), test.Skills...),
		QuestionTypes: append([]string(nil), test.QuestionTypes...),
		ExamType:      test.ExamType,
		ScoreRange:    test.ScoreRange,
		NumQuestions:  test.NumQuestions,
		DurationMin:   test.DurationMin,
		PassingScore:  test.PassingPercent(),
		MaxAttempts:   test.MaxAttempts,
		IsTheLastTest: test.IsTheLastTest,
	}
}

func mergeUpdate(schema *validator.TestSchema, req *UpdateTestRequest) {
	if req.Title != nil {
		schema.Title = *req.Title
	}
	if req.Description != nil {
		schema.Description = req.Description
	}
	if req.Topics != nil {
		schema.Topics = *req.Topics
	}
	if req.Skills != nil {
		schema.Skills = *req.Skills
	}
	if req.QuestionTypes != nil {
		schema.QuestionTypes = *req.QuestionTypes
	}
	if req.ExamType != nil {
		schema.ExamType = *req.ExamType
	}
	if req.ScoreRange != nil {
		schema.ScoreRange = req.ScoreRange
	}
	if req.NumQuestions != nil {
		schema.NumQuestions = *req.NumQuestions
	}
	if req.DurationMin != nil {
		schema.DurationMin = *req.DurationMin
	}
	if req.PassingScore != nil {
		schema.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		if *req.MaxAttempts == 0 {
			schema.MaxAttempts = nil
		} else {
			schema.MaxAttempts = req.MaxAttempts
		}
	}
	if req.IsTheLastTest != nil {
		schema.IsTheLastTest = *req.IsTheLastTest
	}
}

// applySchema copies a validated schema onto the test
func applySchema(test *models.Test, schema *validator.TestSchema) {
	picker, _ := validator.FromSelections(schema.Topics)

	test.Title = strings.TrimSpace(schema.Title)
	test.Description = schema.Description
	test.GrammarTopics = picker.Grammar
	test.VocabularyTopics = picker.Vocabulary
	test.Skills = lowerAll(schema.Skills)
	test.QuestionTypes = append([]string(nil), schema.QuestionTypes...)
	test.ExamType = strings.TrimSpace(schema.ExamType)
	test.ScoreRange = schema.ScoreRange
	test.NumQuestions = schema.NumQuestions
	test.DurationMin = schema.DurationMin
	test.PassingScore = float64(schema.PassingScore) / models.PassingScoreScale
	test.MaxAttempts = schema.MaxAttempts
	test.IsTheLastTest = schema.IsTheLastTest
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(strings.TrimSpace(v)))
	}
	return out
}
