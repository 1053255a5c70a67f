package models

import (
	"time"

	"gorm.io/datatypes"
)

// AttemptDetail is the history projection of a graded attempt. It is always
// derived from the canonical Attempt row and rewritten together with it.
type AttemptDetail struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	AttemptID     uint   `json:"attempt_id" gorm:"not null;uniqueIndex"`
	TestID        uint   `json:"test_id" gorm:"not null;index"`
	LearnerID     string `json:"learner_id" gorm:"not null;index;size:255"`
	AttemptNumber int    `json:"attempt_number" gorm:"not null"`
	TestTitle     string `json:"test_title" gorm:"size:200"`

	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	SubmittedAt time.Time  `json:"submitted_at" gorm:"index"`

	Answers  datatypes.JSONSlice[SubmittedAnswer] `json:"answers" gorm:"type:jsonb"`
	Analysis datatypes.JSONType[*AnalysisResult]  `json:"analysis_result" gorm:"type:jsonb"`

	TotalScore    int   `json:"total_score"`
	ScorePercent  int   `json:"score_percent"`
	Passed        bool  `json:"passed"`
	IsGraded      bool  `json:"is_graded"`
	IsTheLastTest bool  `json:"is_the_last_test"`
	CertificateID *uint `json:"certificate_id"`

	// Mirrors Attempt.Version at projection time
	Version int `json:"version" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AttemptDetail) TableName() string {
	return "attempt_details"
}

// AnalysisResult returns the projected grading output.
func (d *AttemptDetail) AnalysisResult() *AnalysisResult {
	return d.Analysis.Data()
}

// ProjectFrom rewrites every derived field from the canonical attempt and its test.
// The row identity and certificate reference are preserved.
func (d *AttemptDetail) ProjectFrom(attempt *Attempt, test *Test) {
	d.AttemptID = attempt.ID
	d.TestID = attempt.TestID
	d.LearnerID = attempt.LearnerID
	d.AttemptNumber = attempt.AttemptNumber
	d.StartTime = attempt.StartTime
	d.EndTime = attempt.EndTime
	d.SubmittedAt = attempt.CompletedAt()
	d.Answers = attempt.Answers
	d.Analysis = attempt.Analysis
	d.TotalScore = attempt.CorrectCount
	d.ScorePercent = attempt.ScorePercent
	d.Passed = attempt.Passed
	d.IsGraded = attempt.IsGraded()
	d.Version = attempt.Version
	if test != nil {
		d.TestTitle = test.Title
		d.IsTheLastTest = test.IsTheLastTest
	}
}
