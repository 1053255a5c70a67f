package grading

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/assessment-service/internal/utils"
)

type stubPlanner struct {
	reply string
	err   error
}

func (s stubPlanner) Call(ctx context.Context, prompt string) (string, error) {
	return s.reply, s.err
}

func discardLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func sampleRequest() *Request {
	return &Request{
		TestInfo: TestInfo{ID: 7, Title: "Unit 3", TotalQuestions: 4},
		AnswerKey: []KeyItem{
			{ID: 1, Question: "Capital of France?", Answer: "paris", Skill: "reading", Topic: "Geography"},
			{ID: 2, Answer: "had left", Skill: "grammar", Topic: "Tenses"},
			{ID: 3, Answer: "carefully", Skill: "grammar", Topic: "Adverbs"},
			{ID: 4, Answer: "went", Skill: "grammar", Topic: "Tenses"},
		},
		StudentAnswers: StudentAnswers{1: "  Paris ", 2: "has left", 4: "goes"},
	}
}

func TestGradeDeterministic(t *testing.T) {
	result := GradeDeterministic(sampleRequest())

	assert.Equal(t, 1, result.TotalScore)
	assert.Equal(t, 4, result.TotalQuestions)

	byID := result.ByID()
	require.NotNil(t, byID[1].Correct)
	assert.True(t, *byID[1].Correct)
	assert.False(t, *byID[3].Correct)
	assert.Nil(t, byID[3].UserAnswer)
	assert.Equal(t, "Expected carefully but got no answer", byID[3].Explain)

	require.Len(t, result.SkillSummary, 2)
	assert.Equal(t, "reading", result.SkillSummary[0].Skill)
	assert.Equal(t, 100.0, result.SkillSummary[0].Accuracy)
	assert.Equal(t, 3, result.SkillSummary[1].Total)
	assert.Equal(t, 0.0, result.SkillSummary[1].Accuracy)

	// Tenses has two misses and ranks first; reading had none
	assert.Equal(t, []string{"grammar - Tenses", "grammar - Adverbs"}, result.WeakTopics)
}

func TestGradeDeterministic_WeakTopicCap(t *testing.T) {
	req := &Request{StudentAnswers: StudentAnswers{}}
	for i, st := range []struct{ skill, topic string }{
		{"grammar", "A"}, {"grammar", "B"}, {"grammar", "C"},
		{"vocabulary", "D"}, {"vocabulary", "E"},
	} {
		req.AnswerKey = append(req.AnswerKey, KeyItem{ID: i + 1, Answer: "x", Skill: st.skill, Topic: st.topic})
	}

	result := GradeDeterministic(req)
	assert.Equal(t, []string{"grammar - A", "grammar - B", "vocabulary - D"}, result.WeakTopics)
}

func TestStudentAnswers_JSONKeys(t *testing.T) {
	data, err := json.Marshal(StudentAnswers{1: "a", 12: "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":"a","12":"b"}`, string(data))

	var back StudentAnswers
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "b", back[12])
}

func TestLocalGrader_AddsPlan(t *testing.T) {
	planner := stubPlanner{reply: `<think>hm</think>{"post_test_level":"B1","recommendations":["review tenses"],
		"personalized_plan":{"notes":"steady","weekly_goals":[{"week":1,"topic":"Tenses","hours":3,"materials":["Grammar in Use"]}]}}`}
	grader := NewLocalGrader(planner, discardLogger())

	req := sampleRequest()
	req.UseGemini = true
	result, err := grader.Grade(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "B1", result.PostTestLevel)
	require.NotNil(t, result.PersonalizedPlan)
	require.Len(t, result.PersonalizedPlan.WeeklyGoals, 1)
	assert.Equal(t, "Grammar in Use", result.PersonalizedPlan.WeeklyGoals[0].Materials[0].Title)
}

func TestLocalGrader_PlanFailureKeepsScores(t *testing.T) {
	grader := NewLocalGrader(stubPlanner{err: errors.New("timeout")}, discardLogger())

	req := sampleRequest()
	req.UseGemini = true
	result, err := grader.Grade(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalScore)
	assert.Nil(t, result.PersonalizedPlan)
}

func TestHTTPGrader_Grade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/grade", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]json.RawMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `{"1":"  Paris ","2":"has left","4":"goes"}`, string(body["student_answers"]))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total_score":2,"total_questions":4,
			"per_question":[{"id":1,"correct":true,"expected_answer":"PARIS"},{"id":2,"expected_answer":"HAD LEFT"}],
			"weak_topics":["grammar - Tenses"],
			"certificate":{"cert_code":"CERT-1","artifact_url":"https://cdn.example.com/c.pdf"}}`))
	}))
	defer server.Close()

	grader := NewHTTPGrader(server.URL, 5*time.Second, discardLogger())
	result, err := grader.Grade(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalScore)
	byID := result.ByID()
	require.NotNil(t, byID[1].Correct)
	assert.Nil(t, byID[2].Correct)
	require.NotNil(t, result.Certificate)
	assert.Equal(t, "CERT-1", result.Certificate.CertCode)
}

func TestHTTPGrader_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	grader := NewHTTPGrader(server.URL, 5*time.Second, discardLogger())
	_, err := grader.Grade(context.Background(), sampleRequest())
	assert.ErrorContains(t, err, "status 500")
}
