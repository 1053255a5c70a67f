package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/studyhub/assessment-service/internal/models"
)

const (
	MinQuestions    = 1
	MaxQuestions    = 30
	MinDuration     = 1
	MaxDuration     = 120
	MinPassingScore = 0
	MaxPassingScore = 100
)

var (
	Skills        = []string{"grammar", "vocabulary", "reading", "listening", "speaking", "writing"}
	QuestionTypes = []string{string(models.MultipleChoice), string(models.FillInBlank)}
)

// registerBusinessRules registers custom business rule validators
func (v *Validator) registerBusinessRules() {
	v.validate.RegisterValidation("num_questions", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n >= MinQuestions && n <= MaxQuestions
	})

	v.validate.RegisterValidation("duration_min", func(fl validator.FieldLevel) bool {
		d := fl.Field().Int()
		return d >= MinDuration && d <= MaxDuration
	})

	v.validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Int()
		return score >= MinPassingScore && score <= MaxPassingScore
	})

	v.validate.RegisterValidation("test_title", func(fl validator.FieldLevel) bool {
		title := strings.TrimSpace(fl.Field().String())
		return len(title) >= 1 && len(title) <= 200
	})

	v.validate.RegisterValidation("skill", func(fl validator.FieldLevel) bool {
		return contains(Skills, strings.ToLower(fl.Field().String()))
	})

	v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		return contains(QuestionTypes, fl.Field().String())
	})

	// Empty input is an in-progress edit and passes; it is never persisted
	v.validate.RegisterValidation("goal_hours", func(fl validator.FieldLevel) bool {
		_, _, err := ParseHours(fl.Field().String())
		return err == nil
	})

	v.validate.RegisterStructValidation(topicSelectionRule, TestSchema{})
}

// topicSelectionRule caps grammar and vocabulary topics combined. The first
// MaxSelectedTopics selections win and every later one is reported.
func topicSelectionRule(sl validator.StructLevel) {
	var schema TestSchema
	switch current := sl.Current().Interface().(type) {
	case TestSchema:
		schema = current
	case *TestSchema:
		schema = *current
	default:
		return
	}

	seen := make(map[string]bool, len(schema.Topics))
	accepted := 0
	for i, sel := range schema.Topics {
		field := fmt.Sprintf("topics[%d]", i)
		key := sel.Category + "/" + strings.ToLower(strings.TrimSpace(sel.Name))
		if seen[key] {
			sl.ReportError(sel.Name, field, field, "topic_unique", "")
			continue
		}
		seen[key] = true

		if accepted >= models.MaxSelectedTopics {
			sl.ReportError(sel.Name, field, field, "topic_limit", strconv.Itoa(models.MaxSelectedTopics))
			continue
		}
		accepted++
	}
}

// ParseHours interprets raw weekly-goal hours input. An empty value is a
// pending edit (pending=true). Zero is raised to the minimum; negative and
// non-numeric values are rejected.
func ParseHours(raw string) (hours int, pending bool, err error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, true, nil
	}

	n, convErr := strconv.Atoi(value)
	if convErr != nil {
		return 0, false, fmt.Errorf("hours %q is not a number", raw)
	}
	if n < 0 {
		return 0, false, fmt.Errorf("hours cannot be negative")
	}
	if n < models.MinGoalHours {
		return models.MinGoalHours, false, nil
	}
	return n, false, nil
}

func contains(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}
