package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyhub/assessment-service/internal/cache"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

func (q *QuestionPostgreSQL) invalidateTest(ctx context.Context, tx *gorm.DB, testID uint) {
	afterCommit(tx, func() { cache.InvalidateTestCache(ctx, q.cacheManager, testID) })
}

func orderedOptions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, id ASC")
}

// ===== BASIC CRUD OPERATIONS =====

// Create inserts a question with its options
func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := q.getDB(tx).WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	q.invalidateTest(ctx, tx, question.TestID)
	return nil
}

// CreateBatch inserts generated questions and their options
func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	if err := q.getDB(tx).WithContext(ctx).CreateInBatches(questions, 100).Error; err != nil {
		return fmt.Errorf("failed to create questions batch: %w", err)
	}

	seen := make(map[uint]bool)
	for _, question := range questions {
		if !seen[question.TestID] {
			seen[question.TestID] = true
			q.invalidateTest(ctx, tx, question.TestID)
		}
	}
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.getDB(tx).WithContext(ctx).
		Preload("Options", orderedOptions).
		First(&question, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

// Update saves the question row and swaps its option set
func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	update := func(db *gorm.DB) error {
		if err := db.WithContext(ctx).Omit(clause.Associations).Save(question).Error; err != nil {
			return fmt.Errorf("failed to update question: %w", err)
		}
		if err := db.WithContext(ctx).Where("question_id = ?", question.ID).Delete(&models.QuestionOption{}).Error; err != nil {
			return fmt.Errorf("failed to clear question options: %w", err)
		}
		if len(question.Options) == 0 {
			return nil
		}
		for i := range question.Options {
			question.Options[i].ID = 0
			question.Options[i].QuestionID = question.ID
			question.Options[i].Position = i
		}
		if err := db.WithContext(ctx).Create(&question.Options).Error; err != nil {
			return fmt.Errorf("failed to create question options: %w", err)
		}
		return nil
	}

	var err error
	if tx != nil {
		err = update(tx)
	} else {
		err = q.db.WithContext(ctx).Transaction(update)
	}
	if err != nil {
		return err
	}

	q.invalidateTest(ctx, tx, question.TestID)
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.getDB(tx)

	var question models.Question
	if err := db.WithContext(ctx).Select("id, test_id").First(&question, id).Error; err != nil {
		return fmt.Errorf("failed to get question before delete: %w", err)
	}

	// options cascade at the schema level
	if err := db.WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	q.invalidateTest(ctx, tx, question.TestID)
	return nil
}

// ===== TEST QUESTION LISTS =====

// ListByTest returns a test's questions in position order, cached outside transactions
func (q *QuestionPostgreSQL) ListByTest(ctx context.Context, tx *gorm.DB, testID uint) ([]*models.Question, error) {
	load := func() ([]*models.Question, error) {
		var questions []*models.Question
		if err := q.getDB(tx).WithContext(ctx).
			Preload("Options", orderedOptions).
			Where("test_id = ?", testID).
			Order("position ASC, id ASC").
			Find(&questions).Error; err != nil {
			return nil, fmt.Errorf("failed to list questions: %w", err)
		}
		return questions, nil
	}

	if tx != nil {
		return load()
	}

	var questions []*models.Question
	err := q.cacheManager.Question.CacheOrExecute(ctx, cache.TestQuestionsKey(testID), &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) CountByTest(ctx context.Context, tx *gorm.DB, testID uint) (int64, error) {
	var count int64
	if err := q.getDB(tx).WithContext(ctx).
		Model(&models.Question{}).
		Where("test_id = ?", testID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// SetCorrectOption leaves exactly one correct option on the question
func (q *QuestionPostgreSQL) SetCorrectOption(ctx context.Context, tx *gorm.DB, questionID, optionID uint) error {
	db := q.getDB(tx)

	var question models.Question
	if err := db.WithContext(ctx).Select("id, test_id").First(&question, questionID).Error; err != nil {
		return fmt.Errorf("failed to get question: %w", err)
	}

	var marked int64
	if err := db.WithContext(ctx).
		Model(&models.QuestionOption{}).
		Where("question_id = ? AND id = ?", questionID, optionID).
		Count(&marked).Error; err != nil {
		return fmt.Errorf("failed to verify correct option: %w", err)
	}
	if marked == 0 {
		return repositories.ErrNotFound
	}

	result := db.WithContext(ctx).
		Model(&models.QuestionOption{}).
		Where("question_id = ?", questionID).
		Update("is_correct", gorm.Expr("id = ?", optionID))
	if result.Error != nil {
		return fmt.Errorf("failed to set correct option: %w", result.Error)
	}

	q.invalidateTest(ctx, tx, question.TestID)
	return nil
}
