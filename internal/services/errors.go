package services

import (
	"errors"
	"fmt"

	"github.com/studyhub/assessment-service/internal/validator"
)

// ===== SENTINELS =====

var (
	ErrTestNotFound          = errors.New("test not found")
	ErrCourseNotFound        = errors.New("course not found")
	ErrLessonNotFound        = errors.New("lesson not found")
	ErrQuestionNotFound      = errors.New("question not found")
	ErrOptionNotFound        = errors.New("option not found")
	ErrAttemptNotFound       = errors.New("attempt not found")
	ErrNoPriorAttempt        = errors.New("no prior attempt")
	ErrAttemptDetailNotFound = errors.New("attempt detail not found")
	ErrCertificateNotFound   = errors.New("certificate not found")
	ErrUserNotFound          = errors.New("user not found")

	ErrTestNotPublished   = errors.New("test is not published")
	ErrTestPublished      = errors.New("published test must be reopened before editing")
	ErrTestHasAttempts    = errors.New("test already has attempts")
	ErrAttemptNotEditable = errors.New("attempt is not in progress")
	ErrAttemptNotGraded   = errors.New("attempt has not been graded")
	ErrNoQuestions        = errors.New("test has no questions")
	ErrExportUnavailable  = errors.New("export storage is not configured")
)

// ValidationErrors is the typed result of schema validation
type ValidationErrors = validator.ValidationErrors

// NewValidationError builds a single-field validation failure
func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message, Value: value, Rule: "invalid"}}
}

// ===== TYPED ERRORS =====

// PermissionError is returned when the caller may not act on a resource
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

// AttemptLimitError is returned once a learner used every allowed attempt
type AttemptLimitError struct {
	TestID      uint
	MaxAttempts int
	Used        int64
	Remaining   int
}

func (e *AttemptLimitError) Error() string {
	return fmt.Sprintf("attempt limit reached for test %d: %d of %d used", e.TestID, e.Used, e.MaxAttempts)
}

// GenerationFailure wraps a failed or timed out question synthesis
type GenerationFailure struct {
	TestID uint
	Cause  error
}

func (e *GenerationFailure) Error() string {
	return fmt.Sprintf("question generation failed for test %d: %v", e.TestID, e.Cause)
}

func (e *GenerationFailure) Unwrap() error {
	return e.Cause
}

// Submission steps, in order
const (
	StepPersistAnswers = "persist_answers"
	StepGrade          = "grade"
	StepCommit         = "commit_result"
)

// SubmissionError names the step that failed. Earlier steps stay committed.
type SubmissionError struct {
	AttemptID uint
	Step      string
	Cause     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission of attempt %d failed at %s: %v", e.AttemptID, e.Step, e.Cause)
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// StaleWriteConflict is returned when a plan edit was based on an older version
type StaleWriteConflict struct {
	AttemptDetailID uint
	Expected        int
	Actual          int
}

func (e *StaleWriteConflict) Error() string {
	return fmt.Sprintf("attempt detail %d changed: expected version %d, found %d", e.AttemptDetailID, e.Expected, e.Actual)
}
