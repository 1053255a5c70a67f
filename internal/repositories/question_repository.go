package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/studyhub/assessment-service/internal/models"
)

// QuestionRepository stores questions together with their ordered options
type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	// Update saves question fields and replaces the whole option set
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	ListByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]*models.Question, error)
	CountByTest(ctx context.Context, tx *gorm.DB, testID uint) (int64, error)

	// SetCorrectOption clears every sibling and marks one option correct
	SetCorrectOption(ctx context.Context, tx *gorm.DB, questionID, optionID uint) error
}
