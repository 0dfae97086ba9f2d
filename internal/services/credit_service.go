package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/practice-service/internal/credits"
	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
)

type CreditServiceConfig struct {
	SignupGrant int
	PurchaseURL string
}

type creditService struct {
	repo   repositories.Repository
	hub    *credits.Hub
	config CreditServiceConfig
	logger *ServiceLogger
}

// NewCreditService wraps the ledger. Every balance it learns is pushed into the
// user's shared store so open sessions see it.
func NewCreditService(repo repositories.Repository, hub *credits.Hub, config CreditServiceConfig, logger *slog.Logger) CreditService {
	return &creditService{
		repo:   repo,
		hub:    hub,
		config: config,
		logger: NewServiceLogger(logger, LogConfig{Service: "practice-service", Component: "credits"}),
	}
}

func (s *creditService) GetBalance(ctx context.Context, userID string) (*CreditBalanceResponse, error) {
	op := s.logger.WithOperation(ctx, "get_balance", userID)

	account, err := s.repo.Credit().GetOrCreate(ctx, nil, userID, s.config.SignupGrant)
	if err != nil {
		op.LogResult(userID, "credit_account", err)
		return nil, fmt.Errorf("failed to get credit account: %w", err)
	}
	s.publish(ctx, userID, account.Balance)

	op.LogResult(userID, "credit_account", nil)
	return &CreditBalanceResponse{
		UserID:      userID,
		Balance:     account.Balance,
		PurchaseURL: s.config.PurchaseURL,
	}, nil
}

// Charge deducts cost, opening the account first if needed. A shortfall is
// returned as a CreditShortfallError and also updates the shared store.
func (s *creditService) Charge(ctx context.Context, userID string, cost int, reason models.CreditReason, reference string) (int, error) {
	op := s.logger.WithOperation(ctx, "charge_credits", userID)

	if cost < 0 {
		err := ValidationErrors{*NewValidationError("cost", "must not be negative", cost)}
		op.LogResult(reference, "credit_transaction", err)
		return 0, err
	}

	if _, err := s.repo.Credit().GetOrCreate(ctx, nil, userID, s.config.SignupGrant); err != nil {
		op.LogResult(reference, "credit_transaction", err)
		return 0, fmt.Errorf("failed to get credit account: %w", err)
	}

	balance, err := s.repo.Credit().Deduct(ctx, nil, userID, cost, reason, reference)
	if err != nil {
		if IsInsufficientCredits(err) {
			if current, berr := s.repo.Credit().GetBalance(ctx, nil, userID); berr == nil {
				s.publish(ctx, userID, current)
			}
		}
		op.LogResult(reference, "credit_transaction", err)
		if IsInsufficientCredits(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to deduct credits: %w", err)
	}

	s.publish(ctx, userID, balance)
	op.LogResult(reference, "credit_transaction", nil)
	return balance, nil
}

func (s *creditService) Refund(ctx context.Context, userID string, amount int, reference string) (int, error) {
	op := s.logger.WithOperation(ctx, "refund_credits", userID)

	if amount <= 0 {
		balance, err := s.repo.Credit().GetBalance(ctx, nil, userID)
		op.LogResult(reference, "credit_transaction", err)
		return balance, err
	}

	balance, err := s.repo.Credit().Credit(ctx, nil, userID, amount, models.CreditReasonRefund, reference)
	if err != nil {
		op.LogResult(reference, "credit_transaction", err)
		return 0, fmt.Errorf("failed to refund credits: %w", err)
	}

	s.publish(ctx, userID, balance)
	op.LogResult(reference, "credit_transaction", nil)
	return balance, nil
}

func (s *creditService) Transactions(ctx context.Context, userID string, filters repositories.TransactionFilters) (*TransactionListResponse, error) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	txs, total, err := s.repo.Credit().ListTransactions(ctx, nil, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}

	return &TransactionListResponse{
		Transactions: txs,
		Total:        total,
		Limit:        filters.Limit,
		Offset:       filters.Offset,
	}, nil
}

func (s *creditService) publish(ctx context.Context, userID string, balance int) {
	if s.hub == nil {
		return
	}
	s.hub.Store(ctx, userID).Apply(credits.Update{Balance: balance, Source: credits.SourceLedger})
}
