package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/studyhub/assessment-service/internal/grading"
	"github.com/studyhub/assessment-service/internal/storage"
)

type recordingUploader struct {
	path        string
	contentType string
	data        []byte
}

func (u *recordingUploader) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	u.path = objectPath
	u.contentType = contentType
	u.data = data
	return "https://files.example.com/" + objectPath, nil
}

// gradedHistory grades two attempts of one test; the second carries a plan
func gradedHistory(t *testing.T) (*submissionFixture, uint) {
	t.Helper()
	f := newSubmissionFixture(t)
	test, questions := f.repo.seedPublishedTest("teacher-1", 2, 5, nil)

	attemptID := f.start(t, test.ID, "learner-1")
	_, err := f.submission.Submit(context.Background(), attemptID, &SubmitAttemptRequest{Answers: answersFor(questions, 0)}, "learner-1")
	require.NoError(t, err)

	f.grader.result = func(req *grading.Request) *grading.Result {
		result := grading.GradeDeterministic(req)
		result.PersonalizedPlan = samplePlan()
		return result
	}
	attemptID = f.start(t, test.ID, "learner-1")
	_, err = f.submission.Submit(context.Background(), attemptID, &SubmitAttemptRequest{Answers: answersFor(questions, 2)}, "learner-1")
	require.NoError(t, err)

	return f, test.ID
}

func TestExportService_ExportHistoryWorkbook(t *testing.T) {
	f, testID := gradedHistory(t)
	svc := NewExportService(f.repo, discardLogger(), storage.DisabledUploader{})

	file, err := svc.ExportHistory(context.Background(), "learner-1", testID)
	require.NoError(t, err)
	assert.Equal(t, "unit-3-history.xlsx", file.FileName)
	assert.Equal(t, XLSXContentType, file.ContentType)

	wb, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{historySheet, planSheet}, wb.GetSheetList())

	rows, err := wb.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Attempt", rows[0][0])
	assert.Equal(t, "Score %", rows[0][4])

	// newest attempt first
	assert.Equal(t, "2", rows[1][0])
	assert.Equal(t, "100", rows[1][4])
	assert.Equal(t, "Yes", rows[1][5])
	assert.Equal(t, "1", rows[2][0])
	assert.Equal(t, "0", rows[2][4])
	assert.Equal(t, "No", rows[2][5])

	plan, err := wb.GetRows(planSheet)
	require.NoError(t, err)
	require.Len(t, plan, 3)
	assert.Equal(t, "Present perfect", plan[1][1])
	assert.Equal(t, "3", plan[1][3])
	assert.Equal(t, "Video (https://videos.example.com/pp)\nWorkbook", plan[1][5])
	assert.Equal(t, "Articles", plan[2][1])
}

func TestExportService_EmptyHistory(t *testing.T) {
	f, testID := gradedHistory(t)
	svc := NewExportService(f.repo, discardLogger(), storage.DisabledUploader{})

	file, err := svc.ExportHistory(context.Background(), "learner-2", testID)
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows(historySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = svc.ExportHistory(context.Background(), "learner-1", 9999)
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestExportService_PublishHistory(t *testing.T) {
	f, testID := gradedHistory(t)
	uploader := &recordingUploader{}
	svc := NewExportService(f.repo, discardLogger(), uploader)

	published, err := svc.PublishHistory(context.Background(), "learner-1", testID)
	require.NoError(t, err)

	assert.Equal(t, "history/learner-1-unit-3-history.xlsx", uploader.path)
	assert.Equal(t, XLSXContentType, uploader.contentType)
	assert.NotEmpty(t, uploader.data)
	assert.Equal(t, "https://files.example.com/history/learner-1-unit-3-history.xlsx", published.URL)
	assert.Equal(t, "unit-3-history.xlsx", published.FileName)
}

func TestExportService_PublishWithoutStorage(t *testing.T) {
	f, testID := gradedHistory(t)
	svc := NewExportService(f.repo, discardLogger(), storage.DisabledUploader{})

	_, err := svc.PublishHistory(context.Background(), "learner-1", testID)
	assert.ErrorIs(t, err, ErrExportUnavailable)
}
