package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TestStatus string

const (
	TestDraft            TestStatus = "draft"
	TestQuestionsPending TestStatus = "questions_pending"
	TestPublished        TestStatus = "published"
)

type TestKind string

const (
	TestKindCourse TestKind = "course"
	TestKindCustom TestKind = "custom"
)

type TopicCategory string

const (
	TopicGrammar    TopicCategory = "grammar"
	TopicVocabulary TopicCategory = "vocabulary"
)

// MaxSelectedTopics caps grammar and vocabulary topics combined.
const MaxSelectedTopics = 5

// PassingScoreScale converts between the 0-100 input scale and the stored 0-10 scale.
const PassingScoreScale = 10.0

type Test struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:200;index"`
	Description *string `json:"description" gorm:"type:text"`

	// Content selection
	GrammarTopics    datatypes.JSONSlice[string] `json:"grammar_topics" gorm:"type:jsonb"`
	VocabularyTopics datatypes.JSONSlice[string] `json:"vocabulary_topics" gorm:"type:jsonb"`
	Skills           datatypes.JSONSlice[string] `json:"skills" gorm:"type:jsonb"`
	QuestionTypes    datatypes.JSONSlice[string] `json:"question_types" gorm:"type:jsonb"`
	ExamType         string                      `json:"exam_type" gorm:"size:50;index"`
	ScoreRange       *string                     `json:"score_range" gorm:"size:50"`

	// Rules
	NumQuestions  int     `json:"num_questions" gorm:"not null"`
	DurationMin   int     `json:"duration_min" gorm:"not null"`
	PassingScore  float64 `json:"passing_score" gorm:"not null"` // 0-10 scale
	MaxAttempts   *int    `json:"max_attempts"`                  // nil means unlimited
	IsTheLastTest bool    `json:"is_the_last_test" gorm:"default:false"`

	// Ownership
	Kind      TestKind `json:"kind" gorm:"size:20;default:course"`
	CourseID  *uint    `json:"course_id" gorm:"index"`
	LessonID  *uint    `json:"lesson_id" gorm:"index"`
	CreatedBy string   `json:"created_by" gorm:"not null;index;size:255"`

	// Lifecycle
	Status   TestStatus `json:"status" gorm:"size:30;default:draft;index"`
	Reopened bool       `json:"reopened" gorm:"default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Course    *Course    `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:TestID"`

	// Computed fields (not stored)
	QuestionsCount int `json:"questions_count" gorm:"-"`
}

func (Test) TableName() string {
	return "tests"
}

// TopicCount returns the number of selected grammar and vocabulary topics.
func (t *Test) TopicCount() int {
	return len(t.GrammarTopics) + len(t.VocabularyTopics)
}

// HasAttemptCeiling reports whether the test limits the number of attempts.
func (t *Test) HasAttemptCeiling() bool {
	return t.MaxAttempts != nil
}

// PassingPercent is the minimum score percent required to pass.
func (t *Test) PassingPercent() int {
	return int(t.PassingScore*PassingScoreScale + 0.5)
}

// IsPublished reports whether learners may attempt the test. Publication
// follows from content: any question on a test that is not reopened.
func (t *Test) IsPublished(questionCount int) bool {
	return questionCount > 0 && !t.Reopened
}

// LessonTest registers a test against a lesson.
type LessonTest struct {
	LessonID  uint      `json:"lesson_id" gorm:"primaryKey"`
	TestID    uint      `json:"test_id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

func (LessonTest) TableName() string {
	return "lesson_tests"
}
