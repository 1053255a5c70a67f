package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/utils"
)

// DefaultBatchSize is the number of questions requested per LLM call
const DefaultBatchSize = 5

var ErrNoQuestions = errors.New("generator returned no usable questions")

// Params are the inputs of one generation request
type Params struct {
	ExamType      string
	Topic         string
	QuestionTypes []string
	NumQuestions  int
	ScoreRange    string
}

// Topics accepts both a JSON array and a single string
type Topics []string

func (t *Topics) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			*t = Topics{single}
		} else {
			*t = nil
		}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("invalid topic: %w", err)
	}
	*t = Topics(list)
	return nil
}

// GeneratedQuestion is one item of the generator's output
type GeneratedQuestion struct {
	Type        string   `json:"type"`
	Skill       string   `json:"skill"`
	Topic       Topics   `json:"topic"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
}

type generatorOutput struct {
	Status string              `json:"status"`
	Data   []GeneratedQuestion `json:"data"`
}

// Generator synthesizes questions for a test
type Generator interface {
	Generate(ctx context.Context, params Params) ([]GeneratedQuestion, error)
}

// LLMGenerator prompts a language model in fixed-size batches
type LLMGenerator struct {
	caller    Caller
	logger    utils.Logger
	batchSize int
	shuffle   func(n int, swap func(i, j int))
}

func NewLLMGenerator(caller Caller, logger utils.Logger) *LLMGenerator {
	return &LLMGenerator{
		caller:    caller,
		logger:    logger,
		batchSize: DefaultBatchSize,
		shuffle:   rand.Shuffle,
	}
}

// Generate fans out one call per batch. Any failed batch fails the whole request
// so callers never see a partial set.
func (g *LLMGenerator) Generate(ctx context.Context, params Params) ([]GeneratedQuestion, error) {
	if params.NumQuestions <= 0 {
		return nil, fmt.Errorf("num_questions must be positive")
	}

	batches := splitBatches(params.NumQuestions, g.batchSize)
	results := make([][]GeneratedQuestion, len(batches))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, size := range batches {
		eg.Go(func() error {
			batchParams := params
			batchParams.NumQuestions = size

			raw, err := g.caller.Call(egCtx, BuildPrompt(batchParams))
			if err != nil {
				return err
			}
			questions, err := ParseOutput(raw)
			if err != nil {
				g.logger.Warn("Discarding unparsable generator batch", "batch", i, "error", err)
				return err
			}
			results[i] = questions
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var all []GeneratedQuestion
	for _, batch := range results {
		all = append(all, batch...)
	}

	questions := Normalize(all, params)
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	for i := range questions {
		opts := questions[i].Options
		g.shuffle(len(opts), func(a, b int) { opts[a], opts[b] = opts[b], opts[a] })
	}

	g.logger.Info("Generated questions",
		"requested", params.NumQuestions,
		"received", len(all),
		"kept", len(questions))
	return questions, nil
}

func splitBatches(total, size int) []int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var batches []int
	for remaining := total; remaining > 0; remaining -= size {
		batches = append(batches, min(remaining, size))
	}
	return batches
}

// ParseOutput decodes the {status, data} envelope out of raw model text
func ParseOutput(raw string) ([]GeneratedQuestion, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var out generatorOutput
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("failed to decode generator output: %w", err)
	}
	if out.Status != "" && !strings.EqualFold(out.Status, "success") {
		return nil, fmt.Errorf("generator reported status %q", out.Status)
	}
	return out.Data, nil
}

// Normalize drops malformed questions, keeps only requested types and
// truncates to the requested count. Multiple-choice answers must appear
// among the options.
func Normalize(questions []GeneratedQuestion, params Params) []GeneratedQuestion {
	allowed := make(map[string]bool, len(params.QuestionTypes))
	for _, t := range params.QuestionTypes {
		allowed[t] = true
	}

	out := make([]GeneratedQuestion, 0, len(questions))
	for _, q := range questions {
		q.Type = strings.TrimSpace(strings.ToLower(q.Type))
		q.Question = strings.TrimSpace(q.Question)
		q.Answer = strings.TrimSpace(q.Answer)
		q.Options = cleanOptions(q.Options)

		if q.Question == "" || q.Answer == "" {
			continue
		}
		if len(allowed) > 0 && !allowed[q.Type] {
			continue
		}
		switch models.QuestionType(q.Type) {
		case models.MultipleChoice:
			if len(q.Options) < 2 || indexOfOption(q.Options, q.Answer) < 0 {
				continue
			}
		case models.FillInBlank:
		default:
			continue
		}

		out = append(out, q)
		if len(out) == params.NumQuestions {
			break
		}
	}
	return out
}

func cleanOptions(options []string) []string {
	out := make([]string, 0, len(options))
	for _, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" || indexOfOption(out, opt) >= 0 {
			continue
		}
		out = append(out, opt)
	}
	return out
}

func indexOfOption(options []string, answer string) int {
	for i, opt := range options {
		if strings.EqualFold(opt, answer) {
			return i
		}
	}
	return -1
}

// ToQuestion converts a generated item into a question row for the test
func (q GeneratedQuestion) ToQuestion(testID uint, position int) *models.Question {
	question := &models.Question{
		TestID:   testID,
		Type:     models.QuestionType(q.Type),
		Text:     q.Question,
		Points:   1,
		Position: position,
	}
	if skill := strings.ToLower(strings.TrimSpace(q.Skill)); skill != "" {
		question.Skill = &skill
	}
	if len(q.Topic) > 0 {
		topic := strings.Join(q.Topic, ", ")
		question.Topic = &topic
	}
	if explanation := strings.TrimSpace(q.Explanation); explanation != "" {
		question.Explanation = &explanation
	}

	correct := indexOfOption(q.Options, q.Answer)
	for i, opt := range q.Options {
		question.Options = append(question.Options, models.QuestionOption{
			Text:      opt,
			IsCorrect: i == correct,
			Position:  i,
		})
	}
	if question.Type == models.FillInBlank {
		answer := q.Answer
		question.Answer = &answer
	}
	return question
}
