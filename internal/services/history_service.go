package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxExportRows       = 5000

	attemptsSheet = "Attempts"
	summarySheet  = "Summary"
)

type historyService struct {
	repo   repositories.Repository
	logger *ServiceLogger
}

func NewHistoryService(repo repositories.Repository, logger *slog.Logger) HistoryService {
	return &historyService{
		repo:   repo,
		logger: NewServiceLogger(logger, LogConfig{Service: "practice-service", Component: "history"}),
	}
}

func (s *historyService) List(ctx context.Context, userID string, filters repositories.AttemptFilters) (*AttemptListResponse, error) {
	op := s.logger.WithOperation(ctx, "list_attempts", userID)

	if filters.Limit <= 0 {
		filters.Limit = defaultHistoryLimit
	}
	if filters.Limit > maxHistoryLimit {
		filters.Limit = maxHistoryLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	attempts, total, err := s.repo.Attempt().List(ctx, nil, userID, filters)
	if err != nil {
		op.LogResult(userID, "attempt", err)
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	responses := make([]*AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		responses = append(responses, toAttemptResponse(a))
	}

	op.LogResult(userID, "attempt", nil)
	return &AttemptListResponse{
		Attempts: responses,
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}, nil
}

func (s *historyService) Stats(ctx context.Context, userID string, filters repositories.AttemptFilters) (*repositories.PracticeSummary, error) {
	summary, err := s.repo.Attempt().Summary(ctx, nil, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize attempts: %w", err)
	}
	return summary, nil
}

// Export writes the user's attempts and per-subject summary to an XLSX workbook.
func (s *historyService) Export(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]byte, error) {
	op := s.logger.WithOperation(ctx, "export_attempts", userID)

	filters.Limit = maxExportRows
	filters.Offset = 0
	attempts, _, err := s.repo.Attempt().List(ctx, nil, userID, filters)
	if err != nil {
		op.LogResult(userID, "attempt", err)
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	stats, err := s.repo.Attempt().StatsBySubject(ctx, nil, userID, filters)
	if err != nil {
		op.LogResult(userID, "attempt", err)
		return nil, fmt.Errorf("failed to get subject stats: %w", err)
	}

	data, err := buildHistoryWorkbook(attempts, stats)
	op.LogResult(userID, "attempt", err)
	return data, err
}

func buildHistoryWorkbook(attempts []*models.PracticeAttempt, stats []models.SubjectStats) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attemptsSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	headers := []string{
		"Date", "Subject", "Topic", "Kind", "Difficulty", "Shape",
		"Correct", "Marks Awarded", "Marks Total", "Time Spent (s)", "Feedback",
	}
	if err := writeRow(f, attemptsSheet, 1, toCells(headers)); err != nil {
		return nil, err
	}

	for i, a := range attempts {
		awarded, total := marksOf(a)
		row := []interface{}{
			a.CreatedAt.Format("2006-01-02 15:04"),
			a.Subject,
			a.Topic,
			string(a.Kind),
			string(a.Difficulty),
			string(a.Shape),
			a.IsCorrect,
			awarded,
			total,
			a.TimeSpentSeconds,
			a.Feedback,
		}
		if err := writeRow(f, attemptsSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	index, err := f.NewSheet(summarySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	summaryHeaders := []string{"Subject", "Attempts", "Correct", "Accuracy (%)", "Average Time (s)"}
	if err := writeRow(f, summarySheet, 1, toCells(summaryHeaders)); err != nil {
		return nil, err
	}
	for i, st := range stats {
		row := []interface{}{st.Subject, st.Attempts, st.Correct, st.Accuracy, st.AvgTimeSpentSecs}
		if err := writeRow(f, summarySheet, i+2, row); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func toAttemptResponse(a *models.PracticeAttempt) *AttemptResponse {
	awarded, total := marksOf(a)
	return &AttemptResponse{
		ID:           a.ID,
		SessionID:    a.SessionID,
		QuestionID:   a.QuestionID,
		Subject:      a.Subject,
		Topic:        a.Topic,
		Kind:         a.Kind,
		Difficulty:   a.Difficulty,
		Shape:        a.Shape,
		IsCorrect:    a.IsCorrect,
		Feedback:     a.Feedback,
		PartResults:  partResultsOf(a),
		MarksAwarded: awarded,
		MarksTotal:   total,
		TimeSpent:    a.TimeSpentSeconds,
		HasImage:     a.ImageRef != "",
		CreatedAt:    a.CreatedAt,
	}
}

func partResultsOf(a *models.PracticeAttempt) []models.PartResult {
	if len(a.PartResults) == 0 {
		return nil
	}
	var parts []models.PartResult
	if err := json.Unmarshal(a.PartResults, &parts); err != nil {
		return nil
	}
	return parts
}

func marksOf(a *models.PracticeAttempt) (awarded, total int) {
	result := models.AnswerResult{PartResults: partResultsOf(a)}
	return result.MarksAwarded()
}
