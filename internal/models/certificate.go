package models

import "time"

// Certificate records an issuance reported by the grading service.
type Certificate struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	LearnerID   string    `json:"learner_id" gorm:"not null;index;size:255"`
	TestID      uint      `json:"test_id" gorm:"not null;index"`
	CourseID    *uint     `json:"course_id" gorm:"index"`
	AttemptID   uint      `json:"attempt_id" gorm:"not null;uniqueIndex"`
	CertCode    string    `json:"cert_code" gorm:"not null;size:100;uniqueIndex"`
	ArtifactURL *string   `json:"artifact_url" gorm:"size:500"`
	IssuedAt    time.Time `json:"issued_at" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Certificate) TableName() string {
	return "certificates"
}
