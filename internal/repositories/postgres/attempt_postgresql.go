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

type AttemptPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	if err := a.getDB(tx).WithContext(ctx).Omit(clause.Associations).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

// GetByID is never cached: attempts change on every submission step
func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.getDB(tx).WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.getDB(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, id).Error; err != nil {
		return nil, fmt.Errorf("failed to lock attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	if err := a.getDB(tx).WithContext(ctx).Omit(clause.Associations).Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	learnerID, testID := attempt.LearnerID, attempt.TestID
	afterCommit(tx, func() { cache.InvalidateHistoryCache(ctx, a.cacheManager, learnerID, testID, 0) })
	return nil
}

// GetInProgress returns the learner's open attempt, newest first
func (a *AttemptPostgreSQL) GetInProgress(ctx context.Context, tx *gorm.DB, testID uint, learnerID string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.getDB(tx).WithContext(ctx).
		Where("test_id = ? AND learner_id = ? AND status = ?", testID, learnerID, models.AttemptInProgress).
		Order("attempt_number DESC").
		First(&attempt).Error; err != nil {
		return nil, fmt.Errorf("failed to get in-progress attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetLatest(ctx context.Context, tx *gorm.DB, testID uint, learnerID string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.getDB(tx).WithContext(ctx).
		Where("test_id = ? AND learner_id = ?", testID, learnerID).
		Order("attempt_number DESC").
		First(&attempt).Error; err != nil {
		return nil, fmt.Errorf("failed to get latest attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountByLearner(ctx context.Context, tx *gorm.DB, testID uint, learnerID string) (int64, error) {
	var count int64
	if err := a.getDB(tx).WithContext(ctx).
		Model(&models.Attempt{}).
		Where("test_id = ? AND learner_id = ?", testID, learnerID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count, nil
}

func (a *AttemptPostgreSQL) CountByTest(ctx context.Context, tx *gorm.DB, testID uint) (int64, error) {
	var count int64
	if err := a.getDB(tx).WithContext(ctx).
		Model(&models.Attempt{}).
		Where("test_id = ?", testID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count test attempts: %w", err)
	}
	return count, nil
}
