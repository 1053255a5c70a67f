package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/studyhub/assessment-service/internal/models"
)

// Grader scores a submission and returns the analysis
type Grader interface {
	Grade(ctx context.Context, req *Request) (*Result, error)
}

// Request is the wire shape sent to the grading service. Question ids in
// AnswerKey and StudentAnswers are positions starting at 1.
type Request struct {
	TestInfo       TestInfo       `json:"test_info"`
	AnswerKey      []KeyItem      `json:"answer_key"`
	StudentAnswers StudentAnswers `json:"student_answers"`
	UseGemini      bool           `json:"use_gemini"`
	Profile        *Profile       `json:"profile"`
}

type TestInfo struct {
	ID             uint   `json:"id"`
	Title          string `json:"title"`
	ExamType       string `json:"exam_type,omitempty"`
	TotalQuestions int    `json:"total_questions"`
	IsTheLastTest  bool   `json:"is_the_last_test"`
	PassingPercent int    `json:"passing_percent"`
}

type KeyItem struct {
	ID       int    `json:"id"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer"`
	Skill    string `json:"skill,omitempty"`
	Topic    string `json:"topic,omitempty"`
}

// StudentAnswers maps answer key ids to raw answer text
type StudentAnswers map[int]string

func (s StudentAnswers) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(s))
	for id, answer := range s {
		out[strconv.Itoa(id)] = answer
	}
	return json.Marshal(out)
}

func (s *StudentAnswers) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(StudentAnswers, len(raw))
	for key, answer := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid answer id %q: %w", key, err)
		}
		out[id] = answer
	}
	*s = out
	return nil
}

// Profile is the learner profile forwarded for plan generation
type Profile struct {
	StudentID           string        `json:"student_id"`
	Name                string        `json:"name"`
	CurrentLevel        string        `json:"current_level"`
	StudyHoursPerWeek   int           `json:"study_hours_per_week"`
	LearningGoals       string        `json:"learning_goals"`
	LearningPreferences []string      `json:"learning_preferences"`
	StudyMethods        []string      `json:"study_methods"`
	TestHistory         []HistoryItem `json:"test_history"`
}

type HistoryItem struct {
	TestDate    string `json:"test_date"`
	LevelAtTest string `json:"level_at_test"`
	Score       int    `json:"score"`
	Notes       string `json:"notes,omitempty"`
}

// Result mirrors the grading service response
type Result struct {
	TotalScore       int                      `json:"total_score"`
	TotalQuestions   int                      `json:"total_questions"`
	PerQuestion      []ResultItem             `json:"per_question"`
	SkillSummary     []models.SkillSummary    `json:"skill_summary"`
	WeakTopics       []string                 `json:"weak_topics"`
	CurrentLevel     string                   `json:"current_level,omitempty"`
	PostTestLevel    string                   `json:"post_test_level,omitempty"`
	Recommendations  []string                 `json:"recommendations,omitempty"`
	PersonalizedPlan *models.PersonalizedPlan `json:"personalized_plan,omitempty"`
	Certificate      *IssuedCertificate       `json:"certificate,omitempty"`
}

// ResultItem is one graded question. Correct is nil when the grader did not decide.
type ResultItem struct {
	ID             int     `json:"id"`
	Question       string  `json:"question,omitempty"`
	Correct        *bool   `json:"correct"`
	ExpectedAnswer string  `json:"expected_answer"`
	UserAnswer     *string `json:"user_answer"`
	Skill          string  `json:"skill,omitempty"`
	Topic          string  `json:"topic,omitempty"`
	Explain        string  `json:"explain,omitempty"`
}

// IssuedCertificate is reported when the grading service issued a certificate
type IssuedCertificate struct {
	CertCode    string `json:"cert_code"`
	ArtifactURL string `json:"artifact_url,omitempty"`
}

// ByID indexes per-question results by answer key id
func (r *Result) ByID() map[int]ResultItem {
	out := make(map[int]ResultItem, len(r.PerQuestion))
	for _, item := range r.PerQuestion {
		out[item.ID] = item
	}
	return out
}
