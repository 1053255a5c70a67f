package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/studyhub/assessment-service/internal/models"
	"github.com/studyhub/assessment-service/internal/repositories"
	"github.com/studyhub/assessment-service/internal/storage"
	"github.com/studyhub/assessment-service/internal/utils"
)

const (
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	historySheet = "History"
	planSheet    = "Plan"
	exportFolder = "history"
)

var (
	historyHeader = []interface{}{"Attempt", "Submitted At", "Correct", "Questions", "Score %", "Passed", "Current Level", "Post-test Level", "Weak Topics", "Certificate"}
	planHeader    = []interface{}{"Week", "Topic", "Description", "Hours", "Study Methods", "Materials"}
)

type exportService struct {
	repo     repositories.Repository
	logger   utils.Logger
	uploader storage.Uploader
}

func NewExportService(repo repositories.Repository, logger utils.Logger, uploader storage.Uploader) ExportService {
	return &exportService{repo: repo, logger: logger, uploader: uploader}
}

// ExportHistory renders the learner's history for a test as a workbook
func (s *exportService) ExportHistory(ctx context.Context, learnerID string, testID uint) (*ExportFile, error) {
	test, err := loadTest(ctx, s.repo, nil, testID)
	if err != nil {
		return nil, err
	}
	details, err := s.repo.AttemptDetail().ListHistory(ctx, nil, learnerID, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	data, err := buildHistoryWorkbook(details)
	if err != nil {
		return nil, err
	}

	s.logger.Info("History exported", "learner_id", learnerID, "test_id", testID, "rows", len(details))
	return &ExportFile{
		FileName:    storage.ObjectPath("", "xlsx", test.Title, "history"),
		ContentType: XLSXContentType,
		Data:        data,
	}, nil
}

// PublishHistory uploads the workbook and returns its public URL
func (s *exportService) PublishHistory(ctx context.Context, learnerID string, testID uint) (*PublishedExport, error) {
	file, err := s.ExportHistory(ctx, learnerID, testID)
	if err != nil {
		return nil, err
	}

	objectPath := storage.ObjectPath(exportFolder, "xlsx", learnerID, strings.TrimSuffix(file.FileName, ".xlsx"))
	url, err := s.uploader.Upload(ctx, objectPath, file.Data, file.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrStorageDisabled) {
			return nil, ErrExportUnavailable
		}
		return nil, fmt.Errorf("failed to publish export: %w", err)
	}

	s.logger.Info("History published", "learner_id", learnerID, "test_id", testID, "path", objectPath)
	return &PublishedExport{FileName: file.FileName, URL: url}, nil
}

// buildHistoryWorkbook writes one row per attempt, newest first, and the
// weekly goals of the newest attempt
func buildHistoryWorkbook(details []*models.AttemptDetail) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(planSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeRow(f, historySheet, 1, historyHeader); err != nil {
		return nil, err
	}
	for i, d := range details {
		if err := writeRow(f, historySheet, i+2, historyRow(d)); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, planSheet, 1, planHeader); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if analysis := details[0].AnalysisResult(); analysis != nil && analysis.PersonalizedPlan != nil {
			for i, goal := range analysis.PersonalizedPlan.WeeklyGoals {
				if err := writeRow(f, planSheet, i+2, planRow(goal)); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, sheet := range []string{historySheet, planSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return nil, fmt.Errorf("failed to style header: %w", err)
		}
	}
	if err := f.SetColWidth(historySheet, "A", "J", 18); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(planSheet, "B", "F", 30); err != nil {
		return nil, fmt.Errorf("failed to size columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func historyRow(d *models.AttemptDetail) []interface{} {
	var (
		total         int
		current, post string
		weak          string
	)
	if analysis := d.AnalysisResult(); analysis != nil {
		total = analysis.TotalQuestions
		current = analysis.CurrentLevel
		post = analysis.PostTestLevel
		weak = strings.Join(analysis.WeakTopics, "; ")
	}

	passed := "No"
	if d.Passed {
		passed = "Yes"
	}
	certificate := ""
	if hasCertificate(d) {
		certificate = "Yes"
	}

	return []interface{}{
		d.AttemptNumber,
		d.SubmittedAt.UTC().Format(time.DateTime),
		d.TotalScore,
		total,
		d.ScorePercent,
		passed,
		current,
		post,
		weak,
		certificate,
	}
}

func planRow(goal models.WeeklyGoal) []interface{} {
	materials := make([]string, 0, len(goal.Materials))
	for _, m := range goal.Materials {
		switch {
		case m.URL != "" && m.Title != "":
			materials = append(materials, fmt.Sprintf("%s (%s)", m.Title, m.URL))
		case m.URL != "":
			materials = append(materials, m.URL)
		case m.Title != "":
			materials = append(materials, m.Title)
		}
	}
	return []interface{}{
		goal.Week,
		goal.Topic,
		goal.Description,
		goal.Hours,
		strings.Join(goal.StudyMethods, ", "),
		strings.Join(materials, "\n"),
	}
}
