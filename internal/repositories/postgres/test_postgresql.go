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

type TestPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewTestPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.TestRepository {
	return &TestPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// getDB returns the transaction DB if provided, otherwise returns the default DB
func (t *TestPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return t.db
}

func (t *TestPostgreSQL) invalidate(ctx context.Context, tx *gorm.DB, id uint) {
	afterCommit(tx, func() { cache.InvalidateTestCache(ctx, t.cacheManager, id) })
}

func (t *TestPostgreSQL) Create(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	if err := t.getDB(tx).WithContext(ctx).Create(test).Error; err != nil {
		return fmt.Errorf("failed to create test: %w", err)
	}
	return nil
}

// GetByID reads through the cache outside transactions
func (t *TestPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error) {
	load := func() (*models.Test, error) {
		var test models.Test
		if err := t.getDB(tx).WithContext(ctx).Preload("Course").First(&test, id).Error; err != nil {
			return nil, fmt.Errorf("failed to get test: %w", err)
		}
		return &test, nil
	}

	if tx != nil {
		return load()
	}

	var test models.Test
	err := t.cacheManager.Test.CacheOrExecute(ctx, cache.TestKey(id), &test, cache.TestCacheConfig.TTL, func() (interface{}, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (t *TestPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Test, error) {
	var test models.Test
	if err := t.getDB(tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&test, id).Error; err != nil {
		return nil, fmt.Errorf("failed to lock test: %w", err)
	}
	return &test, nil
}

func (t *TestPostgreSQL) Update(ctx context.Context, tx *gorm.DB, test *models.Test) error {
	if err := t.getDB(tx).WithContext(ctx).Omit(clause.Associations).Save(test).Error; err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}
	t.invalidate(ctx, tx, test.ID)
	return nil
}

func (t *TestPostgreSQL) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.TestStatus, reopened bool) error {
	result := t.getDB(tx).WithContext(ctx).
		Model(&models.Test{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "reopened": reopened})
	if result.Error != nil {
		return fmt.Errorf("failed to update test status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	t.invalidate(ctx, tx, id)
	return nil
}

func (t *TestPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := t.getDB(tx).WithContext(ctx).Delete(&models.Test{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete test: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	t.invalidate(ctx, tx, id)
	return nil
}

func (t *TestPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	db := t.getDB(tx)
	var (
		tests []*models.Test
		total int64
	)

	query := t.helpers.ApplyTestFilters(db.WithContext(ctx).Model(&models.Test{}), filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tests: %w", err)
	}

	query = t.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&tests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list tests: %w", err)
	}

	if err := t.fillQuestionCounts(ctx, db, tests); err != nil {
		return nil, 0, err
	}
	return tests, total, nil
}

func (t *TestPostgreSQL) fillQuestionCounts(ctx context.Context, db *gorm.DB, tests []*models.Test) error {
	if len(tests) == 0 {
		return nil
	}

	ids := make([]uint, len(tests))
	for i, test := range tests {
		ids[i] = test.ID
	}

	var rows []struct {
		TestID uint
		Count  int
	}
	if err := db.WithContext(ctx).
		Model(&models.Question{}).
		Select("test_id, COUNT(*) AS count").
		Where("test_id IN ?", ids).
		Group("test_id").
		Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}

	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.TestID] = row.Count
	}
	for _, test := range tests {
		test.QuestionsCount = counts[test.ID]
	}
	return nil
}
