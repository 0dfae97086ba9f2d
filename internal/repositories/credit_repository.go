package repositories

import (
	"context"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"gorm.io/gorm"
)

// CreditRepository is the credit ledger. Every balance change writes a transaction row.
type CreditRepository interface {
	// GetOrCreate opens an account with the signup grant on first use
	GetOrCreate(ctx context.Context, tx *gorm.DB, userID string, signupGrant int) (*models.CreditAccount, error)
	GetBalance(ctx context.Context, tx *gorm.DB, userID string) (int, error)

	// Deduct fails with a CreditShortfallError when the balance is below cost
	Deduct(ctx context.Context, tx *gorm.DB, userID string, cost int, reason models.CreditReason, reference string) (int, error)
	Credit(ctx context.Context, tx *gorm.DB, userID string, amount int, reason models.CreditReason, reference string) (int, error)

	ListTransactions(ctx context.Context, tx *gorm.DB, userID string, filters TransactionFilters) ([]*models.CreditTransaction, int64, error)
}
