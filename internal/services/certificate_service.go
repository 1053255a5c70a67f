package services

import (
	"context"
	"fmt"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/utils"
)

type certificateService struct {
	repo   repositories.Repository
	logger utils.Logger
}

func NewCertificateService(repo repositories.Repository, logger utils.Logger) CertificateService {
	return &certificateService{repo: repo, logger: logger}
}

// hasCertificate: a graded, passed attempt of the course's final test
func hasCertificate(detail *models.AttemptDetail) bool {
	return detail != nil && detail.IsTheLastTest && detail.IsGraded && detail.Passed
}

func (s *certificateService) HasCertificate(detail *models.AttemptDetail) bool {
	return hasCertificate(detail)
}

func (s *certificateService) GetCertificate(ctx context.Context, detailID uint, userID string) (*CertificateResponse, error) {
	detail, err := loadDetail(ctx, s.repo, detailID)
	if err != nil {
		return nil, err
	}
	allowed, err := canViewDetail(ctx, s.repo, detail, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, NewPermissionError(userID, detailID, "certificate", "read", "attempt belongs to another learner")
	}
	if !hasCertificate(detail) {
		return nil, ErrCertificateNotFound
	}

	var cert *models.Certificate
	if detail.CertificateID != nil {
		cert, err = s.repo.Certificate().GetByID(ctx, nil, *detail.CertificateID)
	} else {
		cert, err = s.repo.Certificate().GetByAttemptID(ctx, nil, detail.AttemptID)
	}
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	resp := &CertificateResponse{AttemptDetailID: detailID, Eligible: true, Certificate: cert}
	if cert == nil {
		s.logger.Info("Eligible attempt without issued certificate", "attempt_detail_id", detailID)
		resp.Notice = models.InfoNotice("You passed the final test. Your certificate has not been issued yet")
	}
	return resp, nil
}
