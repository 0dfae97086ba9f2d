package repositories

import (
	"time"

	"github.com/SAP-F-2025/practice-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type AttemptFilters struct {
	Subject    string                  `json:"subject"`
	Kind       *models.QuestionKind    `json:"kind"`
	Difficulty *models.DifficultyLevel `json:"difficulty"`
	IsCorrect  *bool                   `json:"is_correct"`
	DateFrom   *time.Time              `json:"date_from"`
	DateTo     *time.Time              `json:"date_to"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
	SortBy     string                  `json:"sort_by"`    // "created_at", "subject", "time_spent_seconds"
	SortOrder  string                  `json:"sort_order"` // "asc", "desc"
}

type TransactionFilters struct {
	Reason *models.CreditReason `json:"reason"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// ===== SHARED STATISTICS STRUCTS =====

type PracticeSummary struct {
	TotalAttempts     int64                 `json:"total_attempts"`
	CorrectAttempts   int64                 `json:"correct_attempts"`
	Accuracy          float64               `json:"accuracy"`
	TotalTimeSpent    int64                 `json:"total_time_spent_seconds"`
	SubjectsPractised int                   `json:"subjects_practised"`
	LastPracticedAt   *time.Time            `json:"last_practiced_at,omitempty"`
	BySubject         []models.SubjectStats `json:"by_subject"`
}
