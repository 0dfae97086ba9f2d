package postgres

import (
	"context"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
	"gorm.io/gorm"
)

type AttemptPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (a AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.PracticeAttempt) error {
	db := a.helpers.getDB(tx)
	return db.WithContext(ctx).Create(attempt).Error
}

func (a AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.PracticeAttempt, error) {
	db := a.helpers.getDB(tx)
	var attempt models.PracticeAttempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, userID string, filters repositories.AttemptFilters) ([]*models.PracticeAttempt, int64, error) {
	db := a.helpers.getDB(tx)
	var attempts []*models.PracticeAttempt
	var total int64

	// apply filter first
	query := db.WithContext(ctx).Model(&models.PracticeAttempt{}).Where("user_id = ?", userID)
	query = a.applyFiltersAttempt(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = a.applyPaginationAndSortAttempt(query, filters)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (a AttemptPostgreSQL) GetBySession(ctx context.Context, tx *gorm.DB, sessionID string) ([]*models.PracticeAttempt, error) {
	db := a.helpers.getDB(tx)
	var attempts []*models.PracticeAttempt
	if err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

type subjectRow struct {
	Subject      string
	Attempts     int64
	Correct      int64
	AvgTimeSpent float64
}

func (a AttemptPostgreSQL) StatsBySubject(ctx context.Context, tx *gorm.DB, userID string, filters repositories.AttemptFilters) ([]models.SubjectStats, error) {
	db := a.helpers.getDB(tx)

	query := db.WithContext(ctx).Model(&models.PracticeAttempt{}).Where("user_id = ?", userID)
	query = a.applyFiltersAttempt(query, filters)

	var rows []subjectRow
	if err := query.
		Select("subject, COUNT(*) AS attempts, " +
			"SUM(CASE WHEN is_correct THEN 1 ELSE 0 END) AS correct, " +
			"AVG(time_spent_seconds) AS avg_time_spent").
		Group("subject").
		Order("attempts DESC, subject ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := make([]models.SubjectStats, 0, len(rows))
	for _, r := range rows {
		s := models.SubjectStats{
			Subject:          r.Subject,
			Attempts:         r.Attempts,
			Correct:          r.Correct,
			AvgTimeSpentSecs: r.AvgTimeSpent,
		}
		if r.Attempts > 0 {
			s.Accuracy = float64(r.Correct) / float64(r.Attempts) * 100
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func (a AttemptPostgreSQL) Summary(ctx context.Context, tx *gorm.DB, userID string, filters repositories.AttemptFilters) (*repositories.PracticeSummary, error) {
	bySubject, err := a.StatsBySubject(ctx, tx, userID, filters)
	if err != nil {
		return nil, err
	}

	summary := &repositories.PracticeSummary{
		BySubject:         bySubject,
		SubjectsPractised: len(bySubject),
	}
	for _, s := range bySubject {
		summary.TotalAttempts += s.Attempts
		summary.CorrectAttempts += s.Correct
		summary.TotalTimeSpent += int64(s.AvgTimeSpentSecs*float64(s.Attempts) + 0.5)
	}
	if summary.TotalAttempts > 0 {
		summary.Accuracy = float64(summary.CorrectAttempts) / float64(summary.TotalAttempts) * 100
	}

	db := a.helpers.getDB(tx)
	var latest models.PracticeAttempt
	query := db.WithContext(ctx).Where("user_id = ?", userID)
	query = a.applyFiltersAttempt(query, filters)
	res := query.Order("created_at DESC").Limit(1).Find(&latest)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		at := latest.CreatedAt
		summary.LastPracticedAt = &at
	}
	return summary, nil
}

// applyFiltersAttempt applies optional filters to an attempt query
func (a AttemptPostgreSQL) applyFiltersAttempt(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.Subject != "" {
		query = query.Where("subject = ?", filters.Subject)
	}
	if filters.Kind != nil {
		query = query.Where("kind = ?", *filters.Kind)
	}
	if filters.Difficulty != nil {
		query = query.Where("difficulty = ?", *filters.Difficulty)
	}
	if filters.IsCorrect != nil {
		query = query.Where("is_correct = ?", *filters.IsCorrect)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

// applyPaginationAndSortAttempt applies pagination and sorting to a query
func (a AttemptPostgreSQL) applyPaginationAndSortAttempt(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	return a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset,
		"created_at", "subject", "time_spent_seconds")
}
