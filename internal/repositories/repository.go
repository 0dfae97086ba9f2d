package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository aggregates the repositories behind one database handle
type Repository interface {
	Credit() CreditRepository
	Attempt() AttemptRepository

	// WithTransaction runs fn in a transaction; repository calls inside fn take the tx
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
