package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
)

type CertificatePostgreSQL struct {
	db *gorm.DB
}

func NewCertificatePostgreSQL(db *gorm.DB) repositories.CertificateRepository {
	return &CertificatePostgreSQL{db: db}
}

func (c *CertificatePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}

// Create inserts at most one certificate per attempt and returns the stored row
func (c *CertificatePostgreSQL) Create(ctx context.Context, tx *gorm.DB, certificate *models.Certificate) (*models.Certificate, error) {
	db := c.getDB(tx)
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "attempt_id"}}, DoNothing: true}).
		Create(certificate)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return certificate, nil
	}
	return c.GetByAttemptID(ctx, tx, certificate.AttemptID)
}

func (c *CertificatePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Certificate, error) {
	var certificate models.Certificate
	if err := c.getDB(tx).WithContext(ctx).First(&certificate, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return &certificate, nil
}

func (c *CertificatePostgreSQL) GetByAttemptID(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.Certificate, error) {
	var certificate models.Certificate
	if err := c.getDB(tx).WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		First(&certificate).Error; err != nil {
		return nil, fmt.Errorf("failed to get certificate by attempt: %w", err)
	}
	return &certificate, nil
}
