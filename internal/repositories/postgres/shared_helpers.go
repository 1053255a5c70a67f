package postgres

import (
	"strings"
	"sync"

	"gorm.io/gorm"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
)

// SharedHelpers holds query builders reused across repositories
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

// ApplyTestFilters narrows a tests query
func (h *SharedHelpers) ApplyTestFilters(query *gorm.DB, filters repositories.TestFilters) *gorm.DB {
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.LessonID != nil {
		query = query.Where("id IN (?)",
			h.db.Table("lesson_tests").Select("test_id").Where("lesson_id = ?", *filters.LessonID))
	}
	if filters.Kind != nil {
		query = query.Where("kind = ?", *filters.Kind)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.OpenOnly {
		query = query.Where("status = ? AND reopened = ?", models.TestPublished, false)
	}
	if filters.ExamType != nil {
		query = query.Where("exam_type = ?", *filters.ExamType)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		query = query.Where("title ILIKE ?", "%"+search+"%")
	}
	return query
}

// ApplyPaginationAndSort applies whitelisted ordering and paging
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	allowedSortColumns := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"id":         true,
		"title":      true,
		"status":     true,
	}

	if !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}
	if strings.EqualFold(sortOrder, "asc") {
		sortOrder = "ASC"
	} else {
		sortOrder = "DESC"
	}

	query = query.Order(sortBy + " " + sortOrder)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

type commitHooksKey struct{}

// commitHooks collects cache invalidations for a running transaction
type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

func (h *commitHooks) add(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

func (h *commitHooks) run() {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// afterCommit defers fn until the transaction opened by WithTransaction
// commits. Outside such a transaction fn runs immediately; on rollback it
// never runs, so readers cannot re-cache rows that were never committed.
func afterCommit(tx *gorm.DB, fn func()) {
	if tx != nil && tx.Statement != nil && tx.Statement.Context != nil {
		if hooks, ok := tx.Statement.Context.Value(commitHooksKey{}).(*commitHooks); ok {
			hooks.add(fn)
			return
		}
	}
	fn()
}
