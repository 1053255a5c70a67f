package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/utils"
)

type scriptedCaller struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) (string, error)
}

func (s *scriptedCaller) Call(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.reply(prompt)
}

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func mcqBatch(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"type":"multiple_choice","skill":"Grammar","topic":["Tenses"],"question":"Q%d ______.","options":["a","b","c","d"],"answer":"c","explanation":"because"}`, i)
	}
	return `<think>planning the batch</think>` + "```json\n" + `{"status":"success","data":[` + strings.Join(items, ",") + `]}` + "\n```"
}

func noShuffle(n int, swap func(i, j int)) {}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{"plain", `{"a":1}`, `{"a":1}`, nil},
		{"think block", "<think>{not this}</think>\n{\"a\":1}", `{"a":1}`, nil},
		{"fenced", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, nil},
		{"no json", "sorry, I cannot", "", ErrNoJSON},
		{"empty", "   ", "", ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLMGenerator_BatchesAndTruncates(t *testing.T) {
	caller := &scriptedCaller{reply: func(prompt string) (string, error) {
		// every batch over-delivers
		return mcqBatch(6), nil
	}}
	gen := NewLLMGenerator(caller, testLogger())
	gen.shuffle = noShuffle

	questions, err := gen.Generate(context.Background(), Params{
		ExamType:      "TOEIC",
		Topic:         "Tenses",
		QuestionTypes: []string{"multiple_choice"},
		NumQuestions:  12,
		ScoreRange:    "450-600",
	})
	require.NoError(t, err)

	assert.Len(t, questions, 12)
	assert.Len(t, caller.prompts, 3)
	assert.Contains(t, caller.prompts[0], "TOEIC 450-600")
}

func TestLLMGenerator_FailedBatchFailsRequest(t *testing.T) {
	boom := errors.New("connection refused")
	calls := 0
	var mu sync.Mutex
	caller := &scriptedCaller{reply: func(prompt string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 2 {
			return "", boom
		}
		return mcqBatch(5), nil
	}}
	gen := NewLLMGenerator(caller, testLogger())

	questions, err := gen.Generate(context.Background(), Params{
		ExamType:      "IELTS",
		Topic:         "Travel",
		QuestionTypes: []string{"multiple_choice"},
		NumQuestions:  10,
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, questions)
}

func TestLLMGenerator_NothingUsable(t *testing.T) {
	caller := &scriptedCaller{reply: func(string) (string, error) {
		return `{"status":"success","data":[{"type":"multiple_choice","question":"Q","options":["a","b"],"answer":"z"}]}`, nil
	}}
	gen := NewLLMGenerator(caller, testLogger())

	_, err := gen.Generate(context.Background(), Params{QuestionTypes: []string{"multiple_choice"}, NumQuestions: 1})
	assert.ErrorIs(t, err, ErrNoQuestions)
}

func TestNormalize(t *testing.T) {
	input := []GeneratedQuestion{
		{Type: "multiple_choice", Question: "ok", Options: []string{"A", "b", "a", " "}, Answer: "B"},
		{Type: "multiple_choice", Question: "answer missing from options", Options: []string{"x", "y"}, Answer: "z"},
		{Type: "fill_in_blank", Question: "She drives ______ (careful).", Answer: "carefully"},
		{Type: "essay", Question: "Write about your hometown", Answer: "n/a"},
		{Type: "multiple_choice", Question: "", Options: []string{"x", "y"}, Answer: "x"},
	}

	out := Normalize(input, Params{QuestionTypes: []string{"multiple_choice", "fill_in_blank"}, NumQuestions: 10})
	require.Len(t, out, 2)
	assert.Equal(t, []string{"A", "b"}, out[0].Options)
	assert.Equal(t, "fill_in_blank", out[1].Type)

	limited := Normalize(input, Params{QuestionTypes: []string{"multiple_choice", "fill_in_blank"}, NumQuestions: 1})
	assert.Len(t, limited, 1)
}

func TestGeneratedQuestion_ToQuestion(t *testing.T) {
	q := GeneratedQuestion{
		Type:     "multiple_choice",
		Skill:    "Grammar",
		Topic:    Topics{"Tenses", "Past perfect"},
		Question: "By the time he arrived, the train ______.",
		Options:  []string{"left", "has left", "had left", "was leaving"},
		Answer:   "had left",
	}

	question := q.ToQuestion(7, 3)
	assert.Equal(t, uint(7), question.TestID)
	assert.Equal(t, 3, question.Position)
	assert.Equal(t, models.MultipleChoice, question.Type)
	assert.Equal(t, 1, question.CorrectOptionCount())
	assert.Equal(t, "had left", question.ExpectedAnswer())
	require.NotNil(t, question.Topic)
	assert.Equal(t, "Tenses, Past perfect", *question.Topic)
	assert.Equal(t, "grammar", *question.Skill)
}

func TestTopics_UnmarshalString(t *testing.T) {
	out, err := ParseOutput(`{"status":"success","data":[{"type":"fill_in_blank","topic":"Adverbs","question":"q","answer":"a"}]}`)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, Topics{"Adverbs"}, out[0].Topic)
}
