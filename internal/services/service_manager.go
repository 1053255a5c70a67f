package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/studyhub/assessment-service/internal/events"
	"github.com/studyhub/assessment-service/internal/generation"
	"github.com/studyhub/assessment-service/internal/grading"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/storage"
	"github.com/studyhub/assessment-service/internal/utils"
	"github.com/studyhub/assessment-service/internal/validator"
)

// ServiceManagerConfig holds the collaborators and limits the services need
type ServiceManagerConfig struct {
	Publisher events.Publisher
	Generator generation.Generator
	Grader    grading.Grader
	Uploader  storage.Uploader

	GenerationTimeout time.Duration
	GradingTimeout    time.Duration
	UseGemini         bool
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	repo      repositories.Repository
	logger    utils.Logger
	validator *validator.Validator
	config    ServiceManagerConfig

	// Service instances
	testService        TestService
	questionService    QuestionService
	attemptService     AttemptService
	submissionService  SubmissionService
	planService        PlanService
	certificateService CertificateService
	exportService      ExportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(repo repositories.Repository, logger utils.Logger, validator *validator.Validator, config ServiceManagerConfig) ServiceManager {
	if config.Uploader == nil {
		config.Uploader = storage.DisabledUploader{}
	}
	return &serviceManager{
		repo:      repo,
		logger:    logger,
		validator: validator,
		config:    config,
	}
}

func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.config.Generator == nil {
		return fmt.Errorf("question generator is required")
	}
	if sm.config.Grader == nil {
		return fmt.Errorf("grader is required")
	}

	sm.logger.Info("Initializing services")

	publisher := sm.config.Publisher
	sm.testService = NewTestService(sm.repo, sm.logger.With("service", "test"), sm.validator, publisher)
	sm.questionService = NewQuestionService(sm.repo, sm.logger.With("service", "question"), sm.validator, publisher,
		sm.config.Generator, sm.config.GenerationTimeout)
	sm.attemptService = NewAttemptService(sm.repo, sm.logger.With("service", "attempt"), sm.validator, publisher)
	sm.submissionService = NewSubmissionService(sm.repo, sm.logger.With("service", "submission"), sm.validator, publisher,
		sm.config.Grader, SubmissionConfig{UseGemini: sm.config.UseGemini, Timeout: sm.config.GradingTimeout})
	sm.planService = NewPlanService(sm.repo, sm.logger.With("service", "plan"), sm.validator, publisher)
	sm.certificateService = NewCertificateService(sm.repo, sm.logger.With("service", "certificate"))
	sm.exportService = NewExportService(sm.repo, sm.logger.With("service", "export"), sm.config.Uploader)

	sm.initialized = true
	sm.logger.Info("Services initialized")
	return nil
}

// ===== SERVICE GETTERS =====

func (sm *serviceManager) Test() TestService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.testService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.questionService
}

func (sm *serviceManager) Attempt() AttemptService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.attemptService
}

func (sm *serviceManager) Submission() SubmissionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.submissionService
}

func (sm *serviceManager) Plan() PlanService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.planService
}

func (sm *serviceManager) Certificate() CertificateService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.certificateService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.exportService
}

// ===== LIFECYCLE =====

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("services not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("services are shutting down")
	}
	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}
	sm.shutdown = true
	sm.logger.Info("Shutting down services")

	if sm.config.Publisher != nil {
		if err := sm.config.Publisher.Close(); err != nil {
			sm.logger.Warn("Failed to close event publisher", "error", err)
		}
	}
	return nil
}
