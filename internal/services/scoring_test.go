package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/assessment-service/internal/grading"
	"github.com/studyhub/assessment-service/internal/models"
)

func mcqQuestion(id uint, position int) *models.Question {
	return &models.Question{
		ID:       id,
		Type:     models.MultipleChoice,
		Text:     "Pick the past tense of go",
		Position: position,
		Skill:    strPtr("grammar"),
		Options: []models.QuestionOption{
			{ID: id*10 + 1, Text: "goed"},
			{ID: id*10 + 2, Text: "went", IsCorrect: true},
		},
	}
}

func TestBuildGradingRequest_ResolvesOptions(t *testing.T) {
	test := &models.Test{ID: 4, Title: "Past tense", PassingScore: 6, IsTheLastTest: true}
	questions := []*models.Question{mcqQuestion(7, 1), mcqQuestion(8, 2)}
	selected := uint(72)
	answers := []models.SubmittedAnswer{{QuestionID: 7, SelectedOptionID: &selected}}

	req := buildGradingRequest(test, questions, answers, nil, false)

	assert.Equal(t, 60, req.TestInfo.PassingPercent)
	assert.True(t, req.TestInfo.IsTheLastTest)
	require.Len(t, req.AnswerKey, 2)
	assert.Equal(t, 1, req.AnswerKey[0].ID)
	assert.Equal(t, "went", req.AnswerKey[0].Answer)
	assert.Equal(t, grading.StudentAnswers{1: "went"}, req.StudentAnswers)
}

func TestScoreSubmission_DropsCertificateUnlessEarned(t *testing.T) {
	questions := []*models.Question{mcqQuestion(7, 1)}
	selected := uint(72)
	answers := []models.SubmittedAnswer{{QuestionID: 7, SelectedOptionID: &selected}}
	result := &grading.Result{Certificate: &grading.IssuedCertificate{CertCode: "C-1"}}

	final := &models.Test{PassingScore: 5, IsTheLastTest: true}
	outcome := scoreSubmission(final, questions, answers, result)
	assert.True(t, outcome.Passed)
	assert.NotNil(t, outcome.Certificate)

	regular := &models.Test{PassingScore: 5}
	assert.Nil(t, scoreSubmission(regular, questions, answers, result).Certificate)

	noCode := &grading.Result{Certificate: &grading.IssuedCertificate{}}
	assert.Nil(t, scoreSubmission(final, questions, answers, noCode).Certificate)
}
