package validator

// TestSchema is the complete, declarative shape of a test definition.
// Create requests map onto it directly; updates are merged onto the stored
// test first so both paths are checked by the same rules.
type TestSchema struct {
	Title         string           `json:"title" validate:"required,test_title"`
	Description   *string          `json:"description" validate:"omitempty,max=1000"`
	Topics        []TopicSelection `json:"topics" validate:"dive"`
	Skills        []string         `json:"skill" validate:"required,min=1,dive,skill"`
	QuestionTypes []string         `json:"question_types" validate:"required,min=1,dive,question_type"`
	ExamType      string           `json:"exam_type" validate:"required,max=50"`
	ScoreRange    *string          `json:"score_range" validate:"omitempty,max=50"`
	NumQuestions  int              `json:"num_questions" validate:"num_questions"`
	DurationMin   int              `json:"duration_min" validate:"duration_min"`
	PassingScore  int              `json:"passing_score" validate:"passing_score"`
	MaxAttempts   *int             `json:"max_attempts" validate:"omitempty,min=1"`
	IsTheLastTest bool             `json:"is_the_last_test"`
}

// TopicSelection is one picked topic, in the order the author picked it.
type TopicSelection struct {
	Category string `json:"category" validate:"required,oneof=grammar vocabulary"`
	Name     string `json:"name" validate:"required,max=100"`
}

// GenerationSchema validates parameters sent to the question generator.
type GenerationSchema struct {
	ExamType      string   `json:"exam_type" validate:"required,max=50"`
	Topic         string   `json:"topic" validate:"required,max=500"`
	QuestionTypes []string `json:"question_types" validate:"required,min=1,dive,question_type"`
	NumQuestions  int      `json:"num_questions" validate:"num_questions"`
	ScoreRange    string   `json:"score_range" validate:"omitempty,max=50"`
}

// QuestionSchema validates a manually authored or edited question.
type QuestionSchema struct {
	Type        string         `json:"type" validate:"required,question_type"`
	Text        string         `json:"text" validate:"required,max=2000"`
	Options     []OptionSchema `json:"options" validate:"omitempty,max=10,dive"`
	Answer      *string        `json:"answer" validate:"omitempty,max=500"`
	Skill       *string        `json:"skill" validate:"omitempty,skill"`
	Topic       *string        `json:"topic" validate:"omitempty,max=200"`
	Explanation *string        `json:"explanation" validate:"omitempty,max=2000"`
	Points      int            `json:"points" validate:"min=1,max=100"`
}

type OptionSchema struct {
	Text      string `json:"text" validate:"required,max=500"`
	IsCorrect bool   `json:"is_correct"`
}
