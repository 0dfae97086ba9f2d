package postgres

import (
	"context"

	"github.com/SAP-F-2025/practice-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db      *gorm.DB
	credit  repositories.CreditRepository
	attempt repositories.AttemptRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		db:      db,
		credit:  NewCreditPostgreSQL(db),
		attempt: NewAttemptPostgreSQL(db),
	}
}

func (r *repository) Credit() repositories.CreditRepository   { return r.credit }
func (r *repository) Attempt() repositories.AttemptRepository { return r.attempt }

func (r *repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
