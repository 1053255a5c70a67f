package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventSource  = "assessment-service"
	EventVersion = "1.0"
)

type EventType string

const (
	TestCreated         EventType = "test.created"
	QuestionsGenerated  EventType = "test.questions_generated"
	AttemptStarted      EventType = "attempt.started"
	AttemptSubmitted    EventType = "attempt.submitted"
	AttemptGraded       EventType = "attempt.graded"
	PlanEdited          EventType = "attempt.plan_edited"
	CertificateSurfaced EventType = "certificate.surfaced"
)

// Event is the envelope published for every domain change.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

func NewEvent(eventType EventType, data interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    EventSource,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Publisher delivers events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// ===== PAYLOADS =====

type TestCreatedData struct {
	TestID    uint   `json:"test_id"`
	CreatedBy string `json:"created_by"`
	Kind      string `json:"kind"`
	CourseID  *uint  `json:"course_id,omitempty"`
	LessonID  *uint  `json:"lesson_id,omitempty"`
}

type QuestionsGeneratedData struct {
	TestID        uint   `json:"test_id"`
	QuestionCount int    `json:"question_count"`
	RequestedBy   string `json:"requested_by"`
}

type AttemptStartedData struct {
	AttemptID     uint   `json:"attempt_id"`
	TestID        uint   `json:"test_id"`
	LearnerID     string `json:"learner_id"`
	AttemptNumber int    `json:"attempt_number"`
}

type AttemptSubmittedData struct {
	AttemptID   uint   `json:"attempt_id"`
	TestID      uint   `json:"test_id"`
	LearnerID   string `json:"learner_id"`
	AnswerCount int    `json:"answer_count"`
}

type AttemptGradedData struct {
	AttemptID    uint   `json:"attempt_id"`
	TestID       uint   `json:"test_id"`
	LearnerID    string `json:"learner_id"`
	ScorePercent int    `json:"score_percent"`
	Passed       bool   `json:"passed"`
}

type PlanEditedData struct {
	AttemptID       uint   `json:"attempt_id"`
	AttemptDetailID uint   `json:"attempt_detail_id"`
	EditorID        string `json:"editor_id"`
	Version         int    `json:"version"`
}

type CertificateSurfacedData struct {
	CertificateID uint   `json:"certificate_id"`
	AttemptID     uint   `json:"attempt_id"`
	TestID        uint   `json:"test_id"`
	LearnerID     string `json:"learner_id"`
	CertCode      string `json:"cert_code"`
}
