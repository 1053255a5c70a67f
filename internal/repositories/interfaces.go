package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/studyhub/assessment-service/internal/models"
)

// ===== FILTERS =====

type TestFilters struct {
	CreatedBy *string            `json:"created_by"`
	CourseID  *uint              `json:"course_id"`
	LessonID  *uint              `json:"lesson_id"`
	Kind      *models.TestKind   `json:"kind"`
	Status    *models.TestStatus `json:"status"`
	OpenOnly  bool               `json:"-"` // published and not reopened
	ExamType  *string            `json:"exam_type"`
	Search    string             `json:"search"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title", "updated_at"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

// ===== TEST DEFINITION =====

type TestRepository interface {
	Create(ctx context.Context, tx *gorm.DB, test *models.Test) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error)
	// GetByIDForUpdate locks the test row until tx ends
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error)
	Update(ctx context.Context, tx *gorm.DB, test *models.Test) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.TestStatus, reopened bool) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters TestFilters) ([]*models.Test, int64, error)
}

type CourseRepository interface {
	GetCourse(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error)
	GetLesson(ctx context.Context, tx *gorm.DB, id uint) (*models.Lesson, error)
	RegisterLessonTest(ctx context.Context, tx *gorm.DB, lessonID, testID uint) error
}

// ===== ATTEMPTS =====

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	// GetByIDForUpdate locks the attempt row until tx ends
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetInProgress(ctx context.Context, tx *gorm.DB, testID uint, learnerID string) (*models.Attempt, error)
	GetLatest(ctx context.Context, tx *gorm.DB, testID uint, learnerID string) (*models.Attempt, error)
	CountByLearner(ctx context.Context, tx *gorm.DB, testID uint, learnerID string) (int64, error)
	CountByTest(ctx context.Context, tx *gorm.DB, testID uint) (int64, error)
}

type AttemptDetailRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptDetail, error)
	GetByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.AttemptDetail, error)
	// Upsert writes the projection keyed by attempt_id
	Upsert(ctx context.Context, tx *gorm.DB, detail *models.AttemptDetail) error
	// ListHistory returns a learner's details for a test, newest completion first
	ListHistory(ctx context.Context, tx *gorm.DB, learnerID string, testID uint) ([]*models.AttemptDetail, error)
}

type CertificateRepository interface {
	// Create inserts a certificate; an existing one for the attempt is kept and returned
	Create(ctx context.Context, tx *gorm.DB, certificate *models.Certificate) (*models.Certificate, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Certificate, error)
	GetByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.Certificate, error)
}
