package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/assessment-service/internal/events"
	"github.com/studyhub/assessment-service/internal/grading"
	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/validator"
)

func samplePlan() *models.PersonalizedPlan {
	return &models.PersonalizedPlan{
		ProgressSpeed: models.ProgressSpeed{Category: "steady", Description: "Improving slowly"},
		Notes:         "Focus on tenses",
		WeeklyGoals: []models.WeeklyGoal{
			{
				Week:        1,
				Topic:       "Present perfect",
				Description: "Review rules",
				Hours:       3,
				Materials: []models.Material{
					{Title: "Video", URL: "https://videos.example.com/pp"},
					{Title: "Workbook"},
				},
			},
			{Week: 2, Topic: "Articles", Hours: 2},
		},
	}
}

func sampleAnalysis() *models.AnalysisResult {
	return &models.AnalysisResult{
		TotalScore:     1,
		TotalQuestions: 2,
		PerQuestion: []models.QuestionResult{
			{QuestionID: 1, Correct: true, ExpectedAnswer: "a1"},
			{QuestionID: 2, Correct: false, ExpectedAnswer: "a2"},
		},
		WeakTopics:       []string{"Articles"},
		PersonalizedPlan: samplePlan(),
	}
}

func TestApplyPlanPatch_Hours(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{"empty keeps previous", "", 3, false},
		{"blank keeps previous", "   ", 3, false},
		{"zero raised to minimum", "0", 1, false},
		{"plain number", "6", 6, false},
		{"negative rejected", "-2", 0, true},
		{"non numeric rejected", "two", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patch := &PlanPatch{WeeklyGoals: []WeeklyGoalPatch{{Index: 0, Hours: strPtr(tt.raw)}}}
			out, err := ApplyPlanPatch(sampleAnalysis(), patch)
			if tt.wantErr {
				var verrs ValidationErrors
				require.ErrorAs(t, err, &verrs)
				assert.Equal(t, "weekly_goals[0].hours", verrs[0].Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.PersonalizedPlan.WeeklyGoals[0].Hours)
		})
	}
}

func TestApplyPlanPatch_Materials(t *testing.T) {
	patch := &PlanPatch{WeeklyGoals: []WeeklyGoalPatch{{
		Index: 0,
		Materials: []MaterialOp{
			{Op: MaterialRemove, Index: intPtr(0)},
			{Op: MaterialUpdate, Index: intPtr(0), URL: strPtr("https://books.example.com/wb")},
			{Op: MaterialAppend},
		},
	}}}

	out, err := ApplyPlanPatch(sampleAnalysis(), patch)
	require.NoError(t, err)

	materials := out.PersonalizedPlan.WeeklyGoals[0].Materials
	require.Len(t, materials, 2)
	assert.Equal(t, models.Material{Title: "Workbook", URL: "https://books.example.com/wb"}, materials[0])
	assert.Equal(t, models.Material{}, materials[1])
}

func TestApplyPlanPatch_InvalidIndexes(t *testing.T) {
	patch := &PlanPatch{WeeklyGoals: []WeeklyGoalPatch{
		{Index: 5, Topic: strPtr("Missing")},
		{Index: 1, Materials: []MaterialOp{{Op: MaterialRemove, Index: intPtr(0)}}},
	}}

	_, err := ApplyPlanPatch(sampleAnalysis(), patch)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 2)
	assert.Equal(t, "weekly_goals[0].index", verrs[0].Field)
	assert.Equal(t, "weekly_goals[1].materials[0].index", verrs[1].Field)
}

func TestApplyPlanPatch_LeavesInputAndResultsAlone(t *testing.T) {
	analysis := sampleAnalysis()
	patch := &PlanPatch{
		WeakTopics: &[]string{" Tenses ", ""},
		Notes:      strPtr("New notes"),
		ProgressSpeed: &ProgressSpeedPatch{
			Recommendation: strPtr("Two sessions a week"),
		},
		WeeklyGoals: []WeeklyGoalPatch{{Index: 1, Topic: strPtr("Determiners")}},
	}

	out, err := ApplyPlanPatch(analysis, patch)
	require.NoError(t, err)

	assert.Equal(t, []string{"Tenses"}, out.WeakTopics)
	assert.Equal(t, "New notes", out.PersonalizedPlan.Notes)
	assert.Equal(t, "steady", out.PersonalizedPlan.ProgressSpeed.Category)
	assert.Equal(t, "Two sessions a week", out.PersonalizedPlan.ProgressSpeed.Recommendation)
	assert.Equal(t, "Determiners", out.PersonalizedPlan.WeeklyGoals[1].Topic)
	assert.Equal(t, analysis.PerQuestion, out.PerQuestion)
	assert.Equal(t, 1, out.TotalScore)

	assert.Equal(t, "Focus on tenses", analysis.PersonalizedPlan.Notes)
	assert.Equal(t, "Articles", analysis.PersonalizedPlan.WeeklyGoals[1].Topic)
	assert.Equal(t, []string{"Articles"}, analysis.WeakTopics)
}

func TestApplyPlanPatch_CreatesMissingPlan(t *testing.T) {
	analysis := sampleAnalysis()
	analysis.PersonalizedPlan = nil

	out, err := ApplyPlanPatch(analysis, &PlanPatch{Notes: strPtr("Start here")})
	require.NoError(t, err)
	require.NotNil(t, out.PersonalizedPlan)
	assert.Equal(t, "Start here", out.PersonalizedPlan.Notes)

	_, err = ApplyPlanPatch(nil, &PlanPatch{Notes: strPtr("x")})
	assert.Error(t, err)
}

type planFixture struct {
	*submissionFixture
	plans PlanService
}

// gradedDetail submits a final-test attempt whose grader returns a plan and a certificate
func newPlanFixture(t *testing.T) (*planFixture, *AttemptDetailResponse) {
	t.Helper()
	f := newSubmissionFixture(t)
	test, questions := f.repo.seedPublishedTest("teacher-1", 2, 5, nil)
	test.IsTheLastTest = true
	require.NoError(t, f.repo.Test().Update(context.Background(), nil, test))

	f.grader.result = func(req *grading.Request) *grading.Result {
		result := certificateResult(req)
		result.PersonalizedPlan = samplePlan()
		return result
	}

	attemptID := f.start(t, test.ID, "learner-1")
	detail, err := f.submission.Submit(context.Background(), attemptID, &SubmitAttemptRequest{Answers: answersFor(questions, 2)}, "learner-1")
	require.NoError(t, err)
	require.NotNil(t, detail.CertificateID)

	return &planFixture{
		submissionFixture: f,
		plans:             NewPlanService(f.repo, discardLogger(), validator.New(), f.publisher),
	}, detail
}

func TestPlanService_EditPreservesGradingAndCertificate(t *testing.T) {
	f, detail := newPlanFixture(t)
	version := detail.Version

	resp, err := f.plans.EditPlan(context.Background(), detail.ID, &PlanPatch{
		ExpectedVersion: &version,
		WeeklyGoals:     []WeeklyGoalPatch{{Index: 0, Hours: strPtr("5")}},
	}, "learner-1")
	require.NoError(t, err)

	assert.Equal(t, detail.ID, resp.ID)
	assert.Equal(t, version+1, resp.Version)
	assert.Equal(t, version+1, f.repo.attempt(detail.AttemptID).Version)
	assert.Equal(t, detail.CertificateID, resp.CertificateID)
	assert.True(t, resp.HasCertificate)
	assert.Equal(t, detail.ScorePercent, resp.ScorePercent)
	assert.Equal(t, detail.AnalysisResult().PerQuestion, resp.AnalysisResult().PerQuestion)
	assert.Equal(t, 5, resp.AnalysisResult().PersonalizedPlan.WeeklyGoals[0].Hours)
	assert.Equal(t, models.NoticeSuccess, resp.Notice.Level)

	// the canonical attempt carries the same plan
	stored := f.repo.attempt(detail.AttemptID).AnalysisResult()
	assert.Equal(t, 5, stored.PersonalizedPlan.WeeklyGoals[0].Hours)
	assert.Len(t, f.publisher.EventsOfType(events.PlanEdited), 1)
}

func TestPlanService_StaleVersion(t *testing.T) {
	f, detail := newPlanFixture(t)
	stale := detail.Version

	_, err := f.plans.EditPlan(context.Background(), detail.ID, &PlanPatch{ExpectedVersion: &stale, Notes: strPtr("first")}, "learner-1")
	require.NoError(t, err)

	_, err = f.plans.EditPlan(context.Background(), detail.ID, &PlanPatch{ExpectedVersion: &stale, Notes: strPtr("second")}, "learner-1")

	var conflict *StaleWriteConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, stale, conflict.Expected)
	assert.Equal(t, stale+1, conflict.Actual)

	current, err := f.submission.GetDetail(context.Background(), detail.ID, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, "first", current.AnalysisResult().PersonalizedPlan.Notes)
}

func TestPlanService_WithoutVersionLastWriteWins(t *testing.T) {
	f, detail := newPlanFixture(t)

	for _, notes := range []string{"one", "two"} {
		_, err := f.plans.EditPlan(context.Background(), detail.ID, &PlanPatch{Notes: strPtr(notes)}, "learner-1")
		require.NoError(t, err)
	}

	current, err := f.submission.GetDetail(context.Background(), detail.ID, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, "two", current.AnalysisResult().PersonalizedPlan.Notes)
	assert.Equal(t, detail.Version+2, current.Version)
}

func TestPlanService_Access(t *testing.T) {
	f, detail := newPlanFixture(t)

	_, err := f.plans.EditPlan(context.Background(), detail.ID, &PlanPatch{Notes: strPtr("hijack")}, "learner-2")
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	_, err = f.plans.EditPlan(context.Background(), detail.ID, &PlanPatch{Notes: strPtr("from teacher")}, "teacher-1")
	assert.NoError(t, err)
}

func TestPlanService_EmptyAndInvalidPatches(t *testing.T) {
	f, detail := newPlanFixture(t)

	resp, err := f.plans.EditPlan(context.Background(), detail.ID, &PlanPatch{}, "learner-1")
	require.NoError(t, err)
	assert.Equal(t, models.NoticeInfo, resp.Notice.Level)
	assert.Equal(t, detail.Version, resp.Version)

	_, err = f.plans.EditPlan(context.Background(), detail.ID, &PlanPatch{
		WeeklyGoals: []WeeklyGoalPatch{{Index: 0, Hours: strPtr("-4")}},
	}, "learner-1")
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, detail.Version, f.repo.attempt(detail.AttemptID).Version)

	_, err = f.plans.EditPlan(context.Background(), 9999, &PlanPatch{Notes: strPtr("x")}, "learner-1")
	assert.ErrorIs(t, err, ErrAttemptDetailNotFound)
}
