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

// AttemptDetailPostgreSQL stores the history projection of attempts
type AttemptDetailPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAttemptDetailPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptDetailRepository {
	return &AttemptDetailPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (d *AttemptDetailPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return d.db
}

func (d *AttemptDetailPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.AttemptDetail, error) {
	load := func() (*models.AttemptDetail, error) {
		var detail models.AttemptDetail
		if err := d.getDB(tx).WithContext(ctx).First(&detail, id).Error; err != nil {
			return nil, fmt.Errorf("failed to get attempt detail: %w", err)
		}
		return &detail, nil
	}

	if tx != nil {
		return load()
	}

	var detail models.AttemptDetail
	err := d.cacheManager.History.CacheOrExecute(ctx, cache.DetailKey(id), &detail, cache.HistoryCacheConfig.TTL, func() (interface{}, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (d *AttemptDetailPostgreSQL) GetByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.AttemptDetail, error) {
	var detail models.AttemptDetail
	if err := d.getDB(tx).WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		First(&detail).Error; err != nil {
		return nil, fmt.Errorf("failed to get attempt detail by attempt: %w", err)
	}
	return &detail, nil
}

// Upsert keeps one row per attempt; the row id and certificate link survive re-projection
func (d *AttemptDetailPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, detail *models.AttemptDetail) error {
	err := d.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attempt_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"test_title", "start_time", "end_time", "submitted_at",
				"answers", "analysis", "total_score", "score_percent",
				"passed", "is_graded", "is_the_last_test", "certificate_id",
				"version", "updated_at",
			}),
		}).
		Create(detail).Error
	if err != nil {
		return fmt.Errorf("failed to upsert attempt detail: %w", err)
	}

	learnerID, testID, detailID := detail.LearnerID, detail.TestID, detail.ID
	afterCommit(tx, func() { cache.InvalidateHistoryCache(ctx, d.cacheManager, learnerID, testID, detailID) })
	return nil
}

// ListHistory is cached per learner and test outside transactions
func (d *AttemptDetailPostgreSQL) ListHistory(ctx context.Context, tx *gorm.DB, learnerID string, testID uint) ([]*models.AttemptDetail, error) {
	load := func() ([]*models.AttemptDetail, error) {
		var details []*models.AttemptDetail
		if err := d.getDB(tx).WithContext(ctx).
			Where("learner_id = ? AND test_id = ?", learnerID, testID).
			Order("submitted_at DESC, id DESC").
			Find(&details).Error; err != nil {
			return nil, fmt.Errorf("failed to list attempt history: %w", err)
		}
		return details, nil
	}

	if tx != nil {
		return load()
	}

	var details []*models.AttemptDetail
	err := d.cacheManager.History.CacheOrExecute(ctx, cache.HistoryKey(learnerID, testID), &details, cache.HistoryCacheConfig.TTL, func() (interface{}, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}
