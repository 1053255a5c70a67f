package models

import (
	"encoding/json"
	"fmt"
)

// AnalysisResult is the structured grading output stored on an attempt.
type AnalysisResult struct {
	TotalScore       int               `json:"total_score"`
	TotalQuestions   int               `json:"total_questions"`
	PerQuestion      []QuestionResult  `json:"per_question"`
	SkillSummary     []SkillSummary    `json:"skill_summary"`
	WeakTopics       []string          `json:"weak_topics"`
	CurrentLevel     string            `json:"current_level"`
	PostTestLevel    string            `json:"post_test_level"`
	Recommendations  []string          `json:"recommendations,omitempty"`
	PersonalizedPlan *PersonalizedPlan `json:"personalized_plan,omitempty"`
}

type QuestionResult struct {
	QuestionID     uint    `json:"question_id"`
	Question       string  `json:"question,omitempty"`
	Correct        bool    `json:"correct"`
	ExpectedAnswer string  `json:"expected_answer"`
	UserAnswer     *string `json:"user_answer"`
	Skill          string  `json:"skill,omitempty"`
	Topic          string  `json:"topic,omitempty"`
	Explain        string  `json:"explain,omitempty"`
}

type SkillSummary struct {
	Skill    string  `json:"skill"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type PersonalizedPlan struct {
	ProgressSpeed ProgressSpeed `json:"progress_speed"`
	Notes         string        `json:"notes"`
	WeeklyGoals   []WeeklyGoal  `json:"weekly_goals"`
}

type ProgressSpeed struct {
	Category                     string        `json:"category"`
	Description                  string        `json:"description"`
	Trend                        ProgressTrend `json:"trend"`
	PredictedReachNextLevelWeeks int           `json:"predicted_reach_next_level_weeks"`
	Recommendation               string        `json:"recommendation"`
}

type ProgressTrend struct {
	PastTests          int       `json:"past_tests"`
	AccuracyGrowthRate float64   `json:"accuracy_growth_rate"`
	StrongSkills       []string  `json:"strong_skills"`
	WeakSkills         []string  `json:"weak_skills"`
	ConsistencyIndex   float64   `json:"consistency_index"`
	ScoresTrajectory   []float64 `json:"scores_trajectory"`
}

type WeeklyGoal struct {
	Week         int        `json:"week"`
	Topic        string     `json:"topic"`
	Description  string     `json:"description"`
	StudyMethods []string   `json:"study_methods"`
	Hours        int        `json:"hours"`
	Materials    []Material `json:"materials"`
}

// MinGoalHours is the lowest weekly study time a goal can hold.
const MinGoalHours = 1

type Material struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// UnmarshalJSON accepts both the object form and legacy plain-string materials.
func (m *Material) UnmarshalJSON(data []byte) error {
	var title string
	if err := json.Unmarshal(data, &title); err == nil {
		*m = Material{Title: title}
		return nil
	}

	type material Material
	var obj material
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid material: %w", err)
	}
	*m = Material(obj)
	return nil
}

// Clone returns a deep copy so edits never touch the stored value.
func (a *AnalysisResult) Clone() (*AnalysisResult, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to copy analysis result: %w", err)
	}
	var out AnalysisResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to copy analysis result: %w", err)
	}
	return &out, nil
}

// CorrectCount counts per-question results marked correct.
func (a *AnalysisResult) CorrectCount() int {
	count := 0
	for _, r := range a.PerQuestion {
		if r.Correct {
			count++
		}
	}
	return count
}
