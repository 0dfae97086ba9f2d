package repositories

import (
	"context"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"gorm.io/gorm"
)

// AttemptRepository stores graded practice submissions
type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.PracticeAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.PracticeAttempt, error)

	// Query operations
	List(ctx context.Context, tx *gorm.DB, userID string, filters AttemptFilters) ([]*models.PracticeAttempt, int64, error)
	GetBySession(ctx context.Context, tx *gorm.DB, sessionID string) ([]*models.PracticeAttempt, error)

	// Statistics
	StatsBySubject(ctx context.Context, tx *gorm.DB, userID string, filters AttemptFilters) ([]models.SubjectStats, error)
	Summary(ctx context.Context, tx *gorm.DB, userID string, filters AttemptFilters) (*PracticeSummary, error)
}
