package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
)

type Attempt struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	TestID        uint          `json:"test_id" gorm:"not null;index;uniqueIndex:idx_attempt_test_learner_number"`
	LearnerID     string        `json:"learner_id" gorm:"not null;index;size:255;uniqueIndex:idx_attempt_test_learner_number"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;uniqueIndex:idx_attempt_test_learner_number"`
	Status        AttemptStatus `json:"status" gorm:"size:20;default:in_progress;index"`

	// Timing
	StartTime time.Time  `json:"start_time" gorm:"not null"`
	EndTime   *time.Time `json:"end_time"`

	// Raw answers and grading output
	Answers  datatypes.JSONSlice[SubmittedAnswer] `json:"answers" gorm:"type:jsonb"`
	Analysis datatypes.JSONType[*AnalysisResult]  `json:"analysis_result" gorm:"type:jsonb"`

	// Scoring
	CorrectCount int        `json:"correct_count"`
	ScorePercent int        `json:"score_percent"`
	Passed       bool       `json:"passed"`
	GradedAt     *time.Time `json:"graded_at"`

	// Incremented on every committed analysis change
	Version int `json:"version" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Test *Test `json:"test,omitempty" gorm:"foreignKey:TestID"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// SubmittedAnswer is one learner answer as sent by the client.
type SubmittedAnswer struct {
	QuestionID       uint   `json:"question_id"`
	SelectedOptionID *uint  `json:"selected_option_id,omitempty"`
	AnswerText       string `json:"answer_text"`
}

// AnalysisResult returns the stored grading output, nil before grading.
func (a *Attempt) AnalysisResult() *AnalysisResult {
	return a.Analysis.Data()
}

// SetAnalysisResult replaces the stored grading output.
func (a *Attempt) SetAnalysisResult(result *AnalysisResult) {
	a.Analysis = datatypes.NewJSONType(result)
}

func (a *Attempt) IsGraded() bool {
	return a.Status == AttemptGraded
}

func (a *Attempt) IsInProgress() bool {
	return a.Status == AttemptInProgress
}

// CompletedAt is the time used to order history entries.
func (a *Attempt) CompletedAt() time.Time {
	if a.EndTime != nil {
		return *a.EndTime
	}
	return a.StartTime
}
