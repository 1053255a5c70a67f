package models

import (
	"strings"
	"time"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	FillInBlank    QuestionType = "fill_in_blank"
)

type Question struct {
	ID       uint         `json:"id" gorm:"primaryKey"`
	TestID   uint         `json:"test_id" gorm:"not null;index"`
	Type     QuestionType `json:"type" gorm:"not null;size:30;index"`
	Text     string       `json:"text" gorm:"type:text;not null"`
	Points   int          `json:"points" gorm:"default:1"`
	Position int          `json:"position" gorm:"default:0"`

	// Expected answer for fill-in-blank questions. Multiple choice uses the correct option.
	Answer *string `json:"answer" gorm:"type:text"`

	// Categorization
	Skill       *string `json:"skill" gorm:"size:50"`
	Topic       *string `json:"topic" gorm:"size:200"`
	Explanation *string `json:"explanation" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Options []QuestionOption `json:"options" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

type QuestionOption struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	QuestionID uint      `json:"question_id" gorm:"not null;index"`
	Text       string    `json:"text" gorm:"type:text;not null"`
	IsCorrect  bool      `json:"is_correct" gorm:"default:false"`
	Position   int       `json:"position" gorm:"default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (QuestionOption) TableName() string {
	return "question_options"
}

// CorrectOptionCount counts the options flagged as correct.
func (q *Question) CorrectOptionCount() int {
	count := 0
	for _, opt := range q.Options {
		if opt.IsCorrect {
			count++
		}
	}
	return count
}

// ExpectedAnswer returns the text a submission is compared against.
func (q *Question) ExpectedAnswer() string {
	if q.Type == MultipleChoice {
		for _, opt := range q.Options {
			if opt.IsCorrect {
				return opt.Text
			}
		}
		return ""
	}
	if q.Answer != nil {
		return *q.Answer
	}
	return ""
}

// FindOption returns the option with the given id or nil.
func (q *Question) FindOption(optionID uint) *QuestionOption {
	for i := range q.Options {
		if q.Options[i].ID == optionID {
			return &q.Options[i]
		}
	}
	return nil
}

// AnswersMatch is the fallback correctness check: trimmed, case-insensitive equality.
func AnswersMatch(submitted, expected string) bool {
	s := strings.TrimSpace(submitted)
	e := strings.TrimSpace(expected)
	if s == "" || e == "" {
		return false
	}
	return strings.EqualFold(s, e)
}
