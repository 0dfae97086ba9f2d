package postgres

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/practice-service/internal/errors"
	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CreditPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewCreditPostgreSQL(db *gorm.DB) repositories.CreditRepository {
	return &CreditPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (c CreditPostgreSQL) GetOrCreate(ctx context.Context, tx *gorm.DB, userID string, signupGrant int) (*models.CreditAccount, error) {
	db := c.helpers.getDB(tx).WithContext(ctx)

	var account *models.CreditAccount
	err := db.Transaction(func(tx *gorm.DB) error {
		acc := models.CreditAccount{UserID: userID, Balance: max(signupGrant, 0)}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&acc)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 1 && acc.Balance > 0 {
			if err := tx.Create(&models.CreditTransaction{
				UserID:       userID,
				Delta:        acc.Balance,
				Reason:       models.CreditReasonSignup,
				BalanceAfter: acc.Balance,
			}).Error; err != nil {
				return err
			}
		}

		var existing models.CreditAccount
		if err := tx.Where("user_id = ?", userID).First(&existing).Error; err != nil {
			return err
		}
		account = &existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (c CreditPostgreSQL) GetBalance(ctx context.Context, tx *gorm.DB, userID string) (int, error) {
	db := c.helpers.getDB(tx)
	var account models.CreditAccount
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrCreditAccountNotFound
		}
		return 0, err
	}
	return account.Balance, nil
}

func (c CreditPostgreSQL) Deduct(ctx context.Context, tx *gorm.DB, userID string, cost int, reason models.CreditReason, reference string) (int, error) {
	if cost < 0 {
		return 0, fmt.Errorf("deduct: negative cost %d", cost)
	}
	db := c.helpers.getDB(tx).WithContext(ctx)

	var balance int
	err := db.Transaction(func(tx *gorm.DB) error {
		// The guard and the decrement are one statement so concurrent deductions cannot overdraw.
		res := tx.Model(&models.CreditAccount{}).
			Where("user_id = ? AND balance >= ?", userID, cost).
			UpdateColumn("balance", gorm.Expr("balance - ?", cost))
		if res.Error != nil {
			return res.Error
		}

		current, err := c.GetBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return apperrors.NewCreditShortfall(cost, current)
		}
		balance = current

		if cost == 0 {
			return nil
		}
		return tx.Create(&models.CreditTransaction{
			UserID:       userID,
			Delta:        -cost,
			Reason:       reason,
			Reference:    reference,
			BalanceAfter: balance,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (c CreditPostgreSQL) Credit(ctx context.Context, tx *gorm.DB, userID string, amount int, reason models.CreditReason, reference string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit: amount must be positive, got %d", amount)
	}
	db := c.helpers.getDB(tx).WithContext(ctx)

	var balance int
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CreditAccount{}).
			Where("user_id = ?", userID).
			UpdateColumn("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrCreditAccountNotFound
		}

		current, err := c.GetBalance(ctx, tx, userID)
		if err != nil {
			return err
		}
		balance = current

		return tx.Create(&models.CreditTransaction{
			UserID:       userID,
			Delta:        amount,
			Reason:       reason,
			Reference:    reference,
			BalanceAfter: balance,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (c CreditPostgreSQL) ListTransactions(ctx context.Context, tx *gorm.DB, userID string, filters repositories.TransactionFilters) ([]*models.CreditTransaction, int64, error) {
	db := c.helpers.getDB(tx)
	var txns []*models.CreditTransaction
	var total int64

	query := db.WithContext(ctx).Model(&models.CreditTransaction{}).Where("user_id = ?", userID)
	if filters.Reason != nil {
		query = query.Where("reason = ?", *filters.Reason)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = c.helpers.ApplyPaginationAndSort(query, "created_at", "desc", filters.Limit, filters.Offset)
	if err := query.Order("id DESC").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
