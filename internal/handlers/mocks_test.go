package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/services"
)

type MockTestService struct {
	mock.Mock
}

func (m *MockTestService) Create(ctx context.Context, req *services.CreateTestRequest, creatorID string) (*services.TestResponse, error) {
	args := m.Called(ctx, req, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TestResponse), args.Error(1)
}

func (m *MockTestService) GetByID(ctx context.Context, id uint, userID string) (*services.TestResponse, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TestResponse), args.Error(1)
}

func (m *MockTestService) Update(ctx context.Context, id uint, req *services.UpdateTestRequest, userID string) (*services.TestResponse, error) {
	args := m.Called(ctx, id, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TestResponse), args.Error(1)
}

func (m *MockTestService) Delete(ctx context.Context, id uint, userID string) error {
	return m.Called(ctx, id, userID).Error(0)
}

func (m *MockTestService) List(ctx context.Context, filters repositories.TestFilters, userID string) (*services.TestListResponse, error) {
	args := m.Called(ctx, filters, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TestListResponse), args.Error(1)
}

func (m *MockTestService) SelectTopic(ctx context.Context, id uint, req *services.TopicRequest, userID string) (*services.TestResponse, error) {
	args := m.Called(ctx, id, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TestResponse), args.Error(1)
}

func (m *MockTestService) DeselectTopic(ctx context.Context, id uint, req *services.TopicRequest, userID string) (*services.TestResponse, error) {
	args := m.Called(ctx, id, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TestResponse), args.Error(1)
}

func (m *MockTestService) Reopen(ctx context.Context, id uint, userID string) (*services.TestResponse, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TestResponse), args.Error(1)
}

func (m *MockTestService) Publish(ctx context.Context, id uint, userID string) (*services.TestResponse, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TestResponse), args.Error(1)
}

type MockQuestionService struct {
	mock.Mock
}

func (m *MockQuestionService) RequestGeneration(ctx context.Context, testID uint, req *services.GenerationRequest, userID string) (*services.GenerationHandle, error) {
	args := m.Called(ctx, testID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.GenerationHandle), args.Error(1)
}

func (m *MockQuestionService) List(ctx context.Context, testID uint, userID string) (*services.QuestionListResponse, error) {
	args := m.Called(ctx, testID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.QuestionListResponse), args.Error(1)
}

func (m *MockQuestionService) Add(ctx context.Context, testID uint, req *services.CreateQuestionRequest, userID string) (*models.Question, error) {
	args := m.Called(ctx, testID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionService) Update(ctx context.Context, id uint, req *services.UpdateQuestionRequest, userID string) (*models.Question, error) {
	args := m.Called(ctx, id, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockQuestionService) Delete(ctx context.Context, id uint, userID string) (*models.Notice, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notice), args.Error(1)
}

func (m *MockQuestionService) SetCorrectOption(ctx context.Context, questionID, optionID uint, userID string) (*models.Question, error) {
	args := m.Called(ctx, questionID, optionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

type MockAttemptService struct {
	mock.Mock
}

func (m *MockAttemptService) Start(ctx context.Context, testID uint, learnerID string) (*services.AttemptResponse, error) {
	args := m.Called(ctx, testID, learnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AttemptResponse), args.Error(1)
}

func (m *MockAttemptService) GetCurrent(ctx context.Context, testID uint, learnerID string) (*services.AttemptResponse, error) {
	args := m.Called(ctx, testID, learnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AttemptResponse), args.Error(1)
}

func (m *MockAttemptService) GetByID(ctx context.Context, id uint, userID string) (*services.AttemptResponse, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AttemptResponse), args.Error(1)
}

func (m *MockAttemptService) SaveProgress(ctx context.Context, id uint, req *services.SaveProgressRequest, learnerID string) (*services.AttemptResponse, error) {
	args := m.Called(ctx, id, req, learnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AttemptResponse), args.Error(1)
}

func (m *MockAttemptService) GetRemaining(ctx context.Context, testID uint, learnerID string) (*services.RemainingAttemptsResponse, error) {
	args := m.Called(ctx, testID, learnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RemainingAttemptsResponse), args.Error(1)
}

type MockSubmissionService struct {
	mock.Mock
}

func (m *MockSubmissionService) Submit(ctx context.Context, attemptID uint, req *services.SubmitAttemptRequest, learnerID string) (*services.AttemptDetailResponse, error) {
	args := m.Called(ctx, attemptID, req, learnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AttemptDetailResponse), args.Error(1)
}

func (m *MockSubmissionService) CommitGradingResult(ctx context.Context, attemptID uint, outcome *services.GradingOutcome) (*services.AttemptDetailResponse, error) {
	args := m.Called(ctx, attemptID, outcome)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AttemptDetailResponse), args.Error(1)
}

func (m *MockSubmissionService) GetDetail(ctx context.Context, detailID uint, userID string) (*services.AttemptDetailResponse, error) {
	args := m.Called(ctx, detailID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AttemptDetailResponse), args.Error(1)
}

func (m *MockSubmissionService) ListHistory(ctx context.Context, learnerID string, testID uint) (*services.HistoryResponse, error) {
	args := m.Called(ctx, learnerID, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.HistoryResponse), args.Error(1)
}

type MockPlanService struct {
	mock.Mock
}

func (m *MockPlanService) EditPlan(ctx context.Context, detailID uint, patch *services.PlanPatch, userID string) (*services.AttemptDetailResponse, error) {
	args := m.Called(ctx, detailID, patch, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AttemptDetailResponse), args.Error(1)
}

type MockCertificateService struct {
	mock.Mock
}

func (m *MockCertificateService) HasCertificate(detail *models.AttemptDetail) bool {
	return m.Called(detail).Bool(0)
}

func (m *MockCertificateService) GetCertificate(ctx context.Context, detailID uint, userID string) (*services.CertificateResponse, error) {
	args := m.Called(ctx, detailID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CertificateResponse), args.Error(1)
}

type MockExportService struct {
	mock.Mock
}

func (m *MockExportService) ExportHistory(ctx context.Context, learnerID string, testID uint) (*services.ExportFile, error) {
	args := m.Called(ctx, learnerID, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ExportFile), args.Error(1)
}

func (m *MockExportService) PublishHistory(ctx context.Context, learnerID string, testID uint) (*services.PublishedExport, error) {
	args := m.Called(ctx, learnerID, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PublishedExport), args.Error(1)
}

// mockServiceManager hands out the mocks above
type mockServiceManager struct {
	tests       *MockTestService
	questions   *MockQuestionService
	attempts    *MockAttemptService
	submissions *MockSubmissionService
	plans       *MockPlanService
	certs       *MockCertificateService
	exports     *MockExportService
	healthErr   error
}

func newMockServiceManager() *mockServiceManager {
	return &mockServiceManager{
		tests:       &MockTestService{},
		questions:   &MockQuestionService{},
		attempts:    &MockAttemptService{},
		submissions: &MockSubmissionService{},
		plans:       &MockPlanService{},
		certs:       &MockCertificateService{},
		exports:     &MockExportService{},
	}
}

func (m *mockServiceManager) Test() services.TestService               { return m.tests }
func (m *mockServiceManager) Question() services.QuestionService       { return m.questions }
func (m *mockServiceManager) Attempt() services.AttemptService         { return m.attempts }
func (m *mockServiceManager) Submission() services.SubmissionService   { return m.submissions }
func (m *mockServiceManager) Plan() services.PlanService               { return m.plans }
func (m *mockServiceManager) Certificate() services.CertificateService { return m.certs }
func (m *mockServiceManager) Export() services.ExportService           { return m.exports }

func (m *mockServiceManager) Initialize(ctx context.Context) error  { return nil }
func (m *mockServiceManager) HealthCheck(ctx context.Context) error { return m.healthErr }
func (m *mockServiceManager) Shutdown(ctx context.Context) error    { return nil }
