package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/studyhub/assessment-service/internal/generation"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/utils"
)

const (
	weakTopicsPerSkill = 2
	maxWeakTopics      = 3
	unknownSkill       = "Unknown"
)

// LocalGrader grades in-process. When an LLM caller is set and the request
// asks for it, a personalized plan is added to the deterministic result.
type LocalGrader struct {
	planner generation.Caller
	logger  utils.Logger
}

func NewLocalGrader(planner generation.Caller, logger utils.Logger) *LocalGrader {
	return &LocalGrader{planner: planner, logger: logger}
}

func (g *LocalGrader) Grade(ctx context.Context, req *Request) (*Result, error) {
	result := GradeDeterministic(req)

	if !req.UseGemini || g.planner == nil {
		return result, nil
	}

	analysis, err := g.plan(ctx, req, result)
	if err != nil {
		// the score stands without a plan
		g.logger.Warn("Plan analysis failed, returning scores only",
			"test_id", req.TestInfo.ID,
			"error", err)
		return result, nil
	}

	result.Recommendations = analysis.Recommendations
	result.PersonalizedPlan = analysis.PersonalizedPlan
	if analysis.CurrentLevel != "" {
		result.CurrentLevel = analysis.CurrentLevel
	}
	if analysis.PostTestLevel != "" {
		result.PostTestLevel = analysis.PostTestLevel
	}
	return result, nil
}

// GradeDeterministic compares trimmed, case-insensitive answers and builds
// the skill summary and weak-topic list.
func GradeDeterministic(req *Request) *Result {
	type skillStats struct {
		total, correct int
		misses         map[string]int
		topicOrder     []string
	}

	result := &Result{TotalQuestions: len(req.AnswerKey)}
	if req.Profile != nil {
		result.CurrentLevel = req.Profile.CurrentLevel
	}

	stats := make(map[string]*skillStats)
	var skillOrder []string

	for _, key := range req.AnswerKey {
		expected := strings.TrimSpace(key.Answer)
		item := ResultItem{
			ID:             key.ID,
			Question:       key.Question,
			ExpectedAnswer: expected,
			Skill:          key.Skill,
			Topic:          key.Topic,
		}

		answer, answered := req.StudentAnswers[key.ID]
		if answered {
			trimmed := strings.TrimSpace(answer)
			item.UserAnswer = &trimmed
		}
		correct := answered && models.AnswersMatch(answer, expected)
		item.Correct = &correct
		if correct {
			result.TotalScore++
		} else {
			given := "no answer"
			if item.UserAnswer != nil && *item.UserAnswer != "" {
				given = *item.UserAnswer
			}
			item.Explain = fmt.Sprintf("Expected %s but got %s", expected, given)
		}
		result.PerQuestion = append(result.PerQuestion, item)

		skill := key.Skill
		if skill == "" {
			skill = unknownSkill
		}
		st, ok := stats[skill]
		if !ok {
			st = &skillStats{misses: make(map[string]int)}
			stats[skill] = st
			skillOrder = append(skillOrder, skill)
		}
		st.total++
		if correct {
			st.correct++
		}
		if key.Topic != "" {
			if _, seen := st.misses[key.Topic]; !seen {
				st.topicOrder = append(st.topicOrder, key.Topic)
				st.misses[key.Topic] = 0
			}
			if !correct {
				st.misses[key.Topic]++
			}
		}
	}

	seen := make(map[string]bool)
	for _, skill := range skillOrder {
		st := stats[skill]
		accuracy := 0.0
		if st.total > 0 {
			accuracy = math.Round(float64(st.correct)/float64(st.total)*10000) / 100
		}
		result.SkillSummary = append(result.SkillSummary, models.SkillSummary{
			Skill:    skill,
			Total:    st.total,
			Correct:  st.correct,
			Accuracy: accuracy,
		})

		topics := append([]string(nil), st.topicOrder...)
		sort.SliceStable(topics, func(i, j int) bool {
			return st.misses[topics[i]] > st.misses[topics[j]]
		})
		for i, topic := range topics {
			if i >= weakTopicsPerSkill || st.misses[topic] == 0 {
				break
			}
			label := skill + " - " + topic
			if !seen[label] && len(result.WeakTopics) < maxWeakTopics {
				seen[label] = true
				result.WeakTopics = append(result.WeakTopics, label)
			}
		}
	}

	return result
}

type planAnalysis struct {
	CurrentLevel     string                   `json:"current_level"`
	PostTestLevel    string                   `json:"post_test_level"`
	Recommendations  []string                 `json:"recommendations"`
	PersonalizedPlan *models.PersonalizedPlan `json:"personalized_plan"`
}

func (g *LocalGrader) plan(ctx context.Context, req *Request, graded *Result) (*planAnalysis, error) {
	prompt, err := buildPlanPrompt(req, graded)
	if err != nil {
		return nil, err
	}

	raw, err := g.planner.Call(ctx, prompt)
	if err != nil {
		return nil, err
	}
	payload, err := generation.ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var analysis planAnalysis
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode plan analysis: %w", err)
	}
	return &analysis, nil
}

func buildPlanPrompt(req *Request, graded *Result) (string, error) {
	profile, err := json.Marshal(req.Profile)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}
	summary, err := json.Marshal(struct {
		TestInfo     TestInfo              `json:"test_info"`
		TotalScore   int                   `json:"total_score"`
		Total        int                   `json:"total_questions"`
		SkillSummary []models.SkillSummary `json:"skill_summary"`
		WeakTopics   []string              `json:"weak_topics"`
	}{req.TestInfo, graded.TotalScore, graded.TotalQuestions, graded.SkillSummary, graded.WeakTopics})
	if err != nil {
		return "", fmt.Errorf("failed to encode grading summary: %w", err)
	}

	return fmt.Sprintf(`You are an English learning coach.
Based on the student's profile, test history and the graded test below:
- Predict the student's learning progress speed.
- Generate a personalized study plan with weekly goals and recommended study methods and materials.
- Fit the plan to the student's preferences and available weekly study hours.

Return ONLY valid JSON with fields:
current_level, post_test_level, recommendations (array of strings),
personalized_plan {progress_speed {category, description, recommendation, predicted_reach_next_level_weeks,
trend {past_tests, accuracy_growth_rate, strong_skills, weak_skills, consistency_index, scores_trajectory}},
notes, weekly_goals [{week, topic, description, study_methods, hours, materials [{title, url}]}]}.

Student profile: %s
Graded test: %s`, profile, summary), nil
}
