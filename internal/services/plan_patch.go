package services

import (
	"fmt"
	"strings"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/validator"
)

// Material operations
const (
	MaterialAppend = "append"
	MaterialRemove = "remove"
	MaterialUpdate = "update"
)

// PlanPatch edits the plan part of an analysis. Answers and per-question
// correctness have no field here and cannot change.
type PlanPatch struct {
	ExpectedVersion *int                `json:"expected_version" validate:"omitempty,min=1"`
	WeakTopics      *[]string           `json:"weak_topics" validate:"omitempty,max=20,dive,max=200"`
	Notes           *string             `json:"notes" validate:"omitempty,max=5000"`
	ProgressSpeed   *ProgressSpeedPatch `json:"progress_speed"`
	WeeklyGoals     []WeeklyGoalPatch   `json:"weekly_goals" validate:"omitempty,max=52,dive"`
}

type ProgressSpeedPatch struct {
	Category       *string `json:"category" validate:"omitempty,max=100"`
	Description    *string `json:"description" validate:"omitempty,max=2000"`
	Recommendation *string `json:"recommendation" validate:"omitempty,max=2000"`
}

// WeeklyGoalPatch edits the goal at Index. Hours is raw user input.
type WeeklyGoalPatch struct {
	Index       int          `json:"index" validate:"min=0"`
	Topic       *string      `json:"topic" validate:"omitempty,max=200"`
	Description *string      `json:"description" validate:"omitempty,max=2000"`
	Hours       *string      `json:"hours" validate:"omitempty,goal_hours"`
	Materials   []MaterialOp `json:"materials" validate:"omitempty,dive"`
}

type MaterialOp struct {
	Op    string  `json:"op" validate:"required,oneof=append remove update"`
	Index *int    `json:"index" validate:"omitempty,min=0"`
	Title *string `json:"title" validate:"omitempty,max=300"`
	URL   *string `json:"url" validate:"omitempty,max=500"`
}

// IsEmpty reports whether the patch changes nothing
func (p *PlanPatch) IsEmpty() bool {
	return p.WeakTopics == nil && p.Notes == nil && p.ProgressSpeed == nil && len(p.WeeklyGoals) == 0
}

func (p *PlanPatch) touchesPlan() bool {
	return p.Notes != nil || p.ProgressSpeed != nil || len(p.WeeklyGoals) > 0
}

// ApplyPlanPatch edits a deep copy of analysis and returns it. The input is never modified.
func ApplyPlanPatch(analysis *models.AnalysisResult, patch *PlanPatch) (*models.AnalysisResult, error) {
	if analysis == nil {
		return nil, NewValidationError("analysis_result", "attempt has no analysis to edit", nil)
	}
	out, err := analysis.Clone()
	if err != nil {
		return nil, err
	}

	if patch.WeakTopics != nil {
		topics := make([]string, 0, len(*patch.WeakTopics))
		for _, t := range *patch.WeakTopics {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
		out.WeakTopics = topics
	}

	if !patch.touchesPlan() {
		return out, nil
	}
	if out.PersonalizedPlan == nil {
		out.PersonalizedPlan = &models.PersonalizedPlan{}
	}
	plan := out.PersonalizedPlan

	if patch.Notes != nil {
		plan.Notes = *patch.Notes
	}
	if ps := patch.ProgressSpeed; ps != nil {
		if ps.Category != nil {
			plan.ProgressSpeed.Category = *ps.Category
		}
		if ps.Description != nil {
			plan.ProgressSpeed.Description = *ps.Description
		}
		if ps.Recommendation != nil {
			plan.ProgressSpeed.Recommendation = *ps.Recommendation
		}
	}

	var errs ValidationErrors
	for i, edit := range patch.WeeklyGoals {
		field := fmt.Sprintf("weekly_goals[%d]", i)
		if edit.Index < 0 || edit.Index >= len(plan.WeeklyGoals) {
			errs = append(errs, validator.ValidationError{
				Field:   field + ".index",
				Message: fmt.Sprintf("must be between 0 and %d", len(plan.WeeklyGoals)-1),
				Value:   edit.Index,
				Rule:    "goal_index",
			})
			continue
		}
		if verrs := applyGoalEdit(&plan.WeeklyGoals[edit.Index], edit, field); len(verrs) > 0 {
			errs = append(errs, verrs...)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

func applyGoalEdit(goal *models.WeeklyGoal, edit WeeklyGoalPatch, field string) ValidationErrors {
	var errs ValidationErrors

	if edit.Topic != nil {
		goal.Topic = *edit.Topic
	}
	if edit.Description != nil {
		goal.Description = *edit.Description
	}
	if edit.Hours != nil {
		hours, pending, err := validator.ParseHours(*edit.Hours)
		switch {
		case err != nil:
			errs = append(errs, validator.ValidationError{
				Field:   field + ".hours",
				Message: err.Error(),
				Value:   *edit.Hours,
				Rule:    "goal_hours",
			})
		case !pending:
			goal.Hours = hours
		}
	}

	for j, op := range edit.Materials {
		opField := fmt.Sprintf("%s.materials[%d]", field, j)
		switch op.Op {
		case MaterialAppend:
			m := models.Material{}
			if op.Title != nil {
				m.Title = *op.Title
			}
			if op.URL != nil {
				m.URL = *op.URL
			}
			goal.Materials = append(goal.Materials, m)
		case MaterialRemove, MaterialUpdate:
			if op.Index == nil || *op.Index < 0 || *op.Index >= len(goal.Materials) {
				errs = append(errs, validator.ValidationError{
					Field:   opField + ".index",
					Message: "does not match an existing material",
					Value:   op.Index,
					Rule:    "material_index",
				})
				continue
			}
			idx := *op.Index
			if op.Op == MaterialRemove {
				goal.Materials = append(goal.Materials[:idx], goal.Materials[idx+1:]...)
				continue
			}
			if op.Title != nil {
				goal.Materials[idx].Title = *op.Title
			}
			if op.URL != nil {
				goal.Materials[idx].URL = *op.URL
			}
		default:
			errs = append(errs, validator.ValidationError{
				Field:   opField + ".op",
				Message: "must be one of: append, remove, update",
				Value:   op.Op,
				Rule:    "oneof",
			})
		}
	}
	return errs
}
