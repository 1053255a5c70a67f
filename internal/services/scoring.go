package services

import (
	"math"
	"strings"

	"github.com/studyhub/assessment-service/internal/grading"
	"github.com/studyhub/assessment-service/internal/models"
)

// GradingOutcome is a grader result resolved against the test's own answer key
type GradingOutcome struct {
	Analysis     *models.AnalysisResult
	CorrectCount int
	ScorePercent int
	Passed       bool
	Certificate  *grading.IssuedCertificate
}

// ScorePercent rounds correct/total to a whole percent
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// IsPassed compares against the test's passing score in percent
func IsPassed(scorePercent int, test *models.Test) bool {
	return scorePercent >= test.PassingPercent()
}

// buildGradingRequest numbers questions by position starting at 1
func buildGradingRequest(test *models.Test, questions []*models.Question, answers []models.SubmittedAnswer, profile *grading.Profile, useGemini bool) *grading.Request {
	answered := answerTexts(questions, answers)

	req := &grading.Request{
		TestInfo: grading.TestInfo{
			ID:             test.ID,
			Title:          test.Title,
			ExamType:       test.ExamType,
			TotalQuestions: len(questions),
			IsTheLastTest:  test.IsTheLastTest,
			PassingPercent: test.PassingPercent(),
		},
		AnswerKey:      make([]grading.KeyItem, 0, len(questions)),
		StudentAnswers: make(grading.StudentAnswers, len(answered)),
		UseGemini:      useGemini,
		Profile:        profile,
	}

	for i, q := range questions {
		key := i + 1
		req.AnswerKey = append(req.AnswerKey, grading.KeyItem{
			ID:       key,
			Question: q.Text,
			Answer:   q.ExpectedAnswer(),
			Skill:    deref(q.Skill),
			Topic:    deref(q.Topic),
		})
		if text, ok := answered[q.ID]; ok {
			req.StudentAnswers[key] = text
		}
	}
	return req
}

// scoreSubmission merges the grader result with the stored answer key.
// A grader flag decides correctness; without one the answers are compared
// trimmed and case-insensitively.
func scoreSubmission(test *models.Test, questions []*models.Question, answers []models.SubmittedAnswer, result *grading.Result) *GradingOutcome {
	answered := answerTexts(questions, answers)
	byKey := result.ByID()

	analysis := &models.AnalysisResult{
		TotalQuestions:   len(questions),
		SkillSummary:     result.SkillSummary,
		WeakTopics:       result.WeakTopics,
		CurrentLevel:     result.CurrentLevel,
		PostTestLevel:    result.PostTestLevel,
		Recommendations:  result.Recommendations,
		PersonalizedPlan: result.PersonalizedPlan,
	}

	for i, q := range questions {
		item, graded := byKey[i+1]
		expected := strings.TrimSpace(q.ExpectedAnswer())

		var userAnswer *string
		if text, ok := answered[q.ID]; ok {
			trimmed := strings.TrimSpace(text)
			userAnswer = &trimmed
		}

		var correct bool
		if graded && item.Correct != nil {
			correct = *item.Correct
		} else {
			correct = userAnswer != nil && models.AnswersMatch(*userAnswer, expected)
		}

		analysis.PerQuestion = append(analysis.PerQuestion, models.QuestionResult{
			QuestionID:     q.ID,
			Question:       q.Text,
			Correct:        correct,
			ExpectedAnswer: expected,
			UserAnswer:     userAnswer,
			Skill:          deref(q.Skill),
			Topic:          deref(q.Topic),
			Explain:        item.Explain,
		})
	}

	if len(analysis.SkillSummary) == 0 {
		analysis.SkillSummary = skillSummary(analysis.PerQuestion)
	}

	correct := analysis.CorrectCount()
	analysis.TotalScore = correct
	percent := ScorePercent(correct, len(questions))
	passed := IsPassed(percent, test)

	outcome := &GradingOutcome{
		Analysis:     analysis,
		CorrectCount: correct,
		ScorePercent: percent,
		Passed:       passed,
	}
	// Only a passed final test surfaces a certificate
	if result.Certificate != nil && result.Certificate.CertCode != "" && passed && test.IsTheLastTest {
		outcome.Certificate = result.Certificate
	}
	return outcome
}

// answerTexts maps question id to the raw answer, resolving option ids to text
func answerTexts(questions []*models.Question, answers []models.SubmittedAnswer) map[uint]string {
	byID := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	out := make(map[uint]string, len(answers))
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			continue
		}
		text := a.AnswerText
		if a.SelectedOptionID != nil {
			if opt := q.FindOption(*a.SelectedOptionID); opt != nil {
				text = opt.Text
			}
		}
		out[a.QuestionID] = text
	}
	return out
}

func skillSummary(results []models.QuestionResult) []models.SkillSummary {
	var out []models.SkillSummary
	index := make(map[string]int)
	for _, r := range results {
		skill := r.Skill
		if skill == "" {
			skill = "Unknown"
		}
		i, ok := index[skill]
		if !ok {
			i = len(out)
			index[skill] = i
			out = append(out, models.SkillSummary{Skill: skill})
		}
		out[i].Total++
		if r.Correct {
			out[i].Correct++
		}
	}
	for i := range out {
		out[i].Accuracy = math.Round(float64(out[i].Correct)/float64(out[i].Total)*10000) / 100
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
