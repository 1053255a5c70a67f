package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregates every repository the services use
type Repository interface {
	// Test definition domain
	Test() TestRepository
	Question() QuestionRepository
	Course() CourseRepository

	// Attempt domain
	Attempt() AttemptRepository
	AttemptDetail() AttemptDetailRepository
	Certificate() CertificateRepository

	// User domain (read-only, backed by the identity provider)
	User() UserRepository

	// WithTransaction runs fn in one database transaction. Repository methods
	// called with the given tx join it; a nil tx uses the pool.
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
