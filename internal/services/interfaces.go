package services

import (
	"context"
	"time"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Test definition requests map onto the validator schema
type TopicSelection = validator.TopicSelection

type CreateTestRequest struct {
	validator.TestSchema
	Kind     models.TestKind `json:"kind" validate:"omitempty,oneof=course custom"`
	CourseID *uint           `json:"course_id"`
	LessonID *uint           `json:"lesson_id"`
}

// UpdateTestRequest is a partial update. Absent fields keep their stored value.
// MaxAttempts 0 clears the ceiling.
type UpdateTestRequest struct {
	Title         *string           `json:"title"`
	Description   *string           `json:"description"`
	Topics        *[]TopicSelection `json:"topics"`
	Skills        *[]string         `json:"skill"`
	QuestionTypes *[]string         `json:"question_types"`
	ExamType      *string           `json:"exam_type"`
	ScoreRange    *string           `json:"score_range"`
	NumQuestions  *int              `json:"num_questions"`
	DurationMin   *int              `json:"duration_min"`
	PassingScore  *int              `json:"passing_score"`
	MaxAttempts   *int              `json:"max_attempts"`
	IsTheLastTest *bool             `json:"is_the_last_test"`
}

type TopicRequest struct {
	Category string `json:"category" validate:"required,oneof=grammar vocabulary"`
	Name     string `json:"name" validate:"required,max=100"`
}

type TestResponse struct {
	*models.Test
	PassingScorePercent int            `json:"passing_score_percent"`
	IsPublished         bool           `json:"is_published"`
	CanEdit             bool           `json:"can_edit"`
	CanDelete           bool           `json:"can_delete"`
	CanTake             bool           `json:"can_take"`
	Notice              *models.Notice `json:"-"`
}

type TestListResponse struct {
	Tests []*TestResponse `json:"tests"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
}

// ===== QUESTION RELATED DTOs =====

// GenerationRequest overrides the test's own parameters; empty fields default from the test
type GenerationRequest struct {
	ExamType      string   `json:"exam_type" validate:"omitempty,max=50"`
	Topic         string   `json:"topic" validate:"omitempty,max=500"`
	QuestionTypes []string `json:"question_types" validate:"omitempty,dive,question_type"`
	NumQuestions  int      `json:"num_questions" validate:"omitempty,num_questions"`
	ScoreRange    string   `json:"score_range" validate:"omitempty,max=50"`
}

type GenerationHandle struct {
	TestID        uint               `json:"test_id"`
	Status        models.TestStatus  `json:"status"`
	QuestionCount int                `json:"question_count"`
	Questions     []*models.Question `json:"questions"`
	Notice        *models.Notice     `json:"-"`
}

type CreateQuestionRequest = validator.QuestionSchema

type UpdateQuestionRequest struct {
	Text        *string                   `json:"text"`
	Options     *[]validator.OptionSchema `json:"options"`
	Answer      *string                   `json:"answer"`
	Skill       *string                   `json:"skill"`
	Topic       *string                   `json:"topic"`
	Explanation *string                   `json:"explanation"`
	Points      *int                      `json:"points"`
}

type SetCorrectOptionRequest struct {
	OptionID uint `json:"option_id" validate:"required"`
}

type QuestionListResponse struct {
	TestID    uint               `json:"test_id"`
	Questions []*models.Question `json:"questions"`
	Total     int                `json:"total"`
}

// ===== ATTEMPT RELATED DTOs =====

type StartAttemptRequest struct {
	TestID uint `json:"test_id" validate:"required"`
}

type SaveProgressRequest struct {
	Answers []models.SubmittedAnswer `json:"answers" validate:"dive"`
}

type SubmitAttemptRequest struct {
	Answers   []models.SubmittedAnswer `json:"answers" validate:"dive"`
	StartTime *time.Time               `json:"start_time"`
}

type AttemptResponse struct {
	*models.Attempt
	Resumed           bool                 `json:"resumed"`
	RemainingAttempts *int                 `json:"remaining_attempts"`
	DurationMin       int                  `json:"duration_min"`
	Questions         []QuestionForAttempt `json:"questions,omitempty"`
	Notice            *models.Notice       `json:"-"`
}

// QuestionForAttempt hides answers and correctness from learners
type QuestionForAttempt struct {
	ID       uint                `json:"id"`
	Type     models.QuestionType `json:"type"`
	Text     string              `json:"text"`
	Points   int                 `json:"points"`
	Position int                 `json:"position"`
	Options  []OptionForAttempt  `json:"options,omitempty"`
}

type OptionForAttempt struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

type RemainingAttemptsResponse struct {
	TestID      uint  `json:"test_id"`
	MaxAttempts *int  `json:"max_attempts"`
	Used        int64 `json:"used"`
	Remaining   *int  `json:"remaining"`
	Unlimited   bool  `json:"unlimited"`
}

type AttemptDetailResponse struct {
	*models.AttemptDetail
	HasCertificate bool           `json:"has_certificate"`
	CanEditPlan    bool           `json:"can_edit_plan"`
	Notice         *models.Notice `json:"-"`
}

type HistoryResponse struct {
	TestID  uint                     `json:"test_id"`
	Details []*AttemptDetailResponse `json:"details"`
	Total   int                      `json:"total"`
}

// ===== CERTIFICATE / EXPORT DTOs =====

type CertificateResponse struct {
	AttemptDetailID uint                `json:"attempt_detail_id"`
	Eligible        bool                `json:"eligible"`
	Certificate     *models.Certificate `json:"certificate,omitempty"`
	Notice          *models.Notice      `json:"-"`
}

type ExportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

type PublishedExport struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

// ===== SERVICE INTERFACES =====

type TestService interface {
	Create(ctx context.Context, req *CreateTestRequest, creatorID string) (*TestResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*TestResponse, error)
	Update(ctx context.Context, id uint, req *UpdateTestRequest, userID string) (*TestResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.TestFilters, userID string) (*TestListResponse, error)

	// Incremental topic picker
	SelectTopic(ctx context.Context, id uint, req *TopicRequest, userID string) (*TestResponse, error)
	DeselectTopic(ctx context.Context, id uint, req *TopicRequest, userID string) (*TestResponse, error)

	// Review lifecycle
	Reopen(ctx context.Context, id uint, userID string) (*TestResponse, error)
	Publish(ctx context.Context, id uint, userID string) (*TestResponse, error)
}

type QuestionService interface {
	RequestGeneration(ctx context.Context, testID uint, req *GenerationRequest, userID string) (*GenerationHandle, error)
	List(ctx context.Context, testID uint, userID string) (*QuestionListResponse, error)
	Add(ctx context.Context, testID uint, req *CreateQuestionRequest, userID string) (*models.Question, error)
	Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*models.Question, error)
	Delete(ctx context.Context, id uint, userID string) (*models.Notice, error)
	SetCorrectOption(ctx context.Context, questionID, optionID uint, userID string) (*models.Question, error)
}

type AttemptService interface {
	Start(ctx context.Context, testID uint, learnerID string) (*AttemptResponse, error)
	GetCurrent(ctx context.Context, testID uint, learnerID string) (*AttemptResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*AttemptResponse, error)
	SaveProgress(ctx context.Context, id uint, req *SaveProgressRequest, learnerID string) (*AttemptResponse, error)
	GetRemaining(ctx context.Context, testID uint, learnerID string) (*RemainingAttemptsResponse, error)
}

type SubmissionService interface {
	Submit(ctx context.Context, attemptID uint, req *SubmitAttemptRequest, learnerID string) (*AttemptDetailResponse, error)
	// CommitGradingResult is idempotent: an already graded attempt keeps its result
	CommitGradingResult(ctx context.Context, attemptID uint, outcome *GradingOutcome) (*AttemptDetailResponse, error)
	GetDetail(ctx context.Context, detailID uint, userID string) (*AttemptDetailResponse, error)
	ListHistory(ctx context.Context, learnerID string, testID uint) (*HistoryResponse, error)
}

type PlanService interface {
	EditPlan(ctx context.Context, detailID uint, patch *PlanPatch, userID string) (*AttemptDetailResponse, error)
}

type CertificateService interface {
	HasCertificate(detail *models.AttemptDetail) bool
	GetCertificate(ctx context.Context, detailID uint, userID string) (*CertificateResponse, error)
}

type ExportService interface {
	ExportHistory(ctx context.Context, learnerID string, testID uint) (*ExportFile, error)
	PublishHistory(ctx context.Context, learnerID string, testID uint) (*PublishedExport, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Test() TestService
	Question() QuestionService
	Attempt() AttemptService
	Submission() SubmissionService
	Plan() PlanService
	Certificate() CertificateService
	Export() ExportService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
