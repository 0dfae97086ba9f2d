package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/practice-service/internal/credits"
	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/practice"
	"github.com/SAP-F-2025/practice-service/internal/validator"
)

// QuestionGenerator produces questions from a language model.
type QuestionGenerator interface {
	GenerateQuestion(ctx context.Context, req practice.GenerateRequest) (*models.Question, error)
	StreamQuestion(ctx context.Context, req practice.StreamRequest) (*models.Question, error)
}

type questionService struct {
	credits   CreditService
	generator QuestionGenerator
	estimator *credits.Estimator
	checker   *validator.QuestionValidator
	logger    *ServiceLogger
}

// NewQuestionService charges for a question up front and refunds the charge
// when generation fails.
func NewQuestionService(creditSvc CreditService, generator QuestionGenerator, estimator *credits.Estimator, logger *slog.Logger) practice.QuestionService {
	if estimator == nil {
		estimator = credits.NewEstimator(credits.DefaultTable)
	}
	return &questionService{
		credits:   creditSvc,
		generator: generator,
		estimator: estimator,
		checker:   validator.NewQuestionValidator(),
		logger:    NewServiceLogger(logger, LogConfig{Service: "practice-service", Component: "questions"}),
	}
}

func (s *questionService) GenerateStream(ctx context.Context, req practice.StreamRequest) (*practice.Generated, error) {
	cost := s.estimator.Estimate(req.Subject, models.KindTopical, false, "")

	return s.generate(ctx, "generate_question_stream", req.UserID, cost, func(ctx context.Context) (*models.Question, error) {
		return s.generator.StreamQuestion(ctx, req)
	})
}

func (s *questionService) Generate(ctx context.Context, req practice.GenerateRequest) (*practice.Generated, error) {
	if req.Subject == "" {
		return nil, ValidationErrors{*NewValidationError("subject", "is required", req.Subject)}
	}
	cost := s.estimator.Estimate(req.Subject, req.Kind, req.AllowImages, req.Format)

	return s.generate(ctx, "generate_question", req.UserID, cost, func(ctx context.Context) (*models.Question, error) {
		return s.generator.GenerateQuestion(ctx, req)
	})
}

func (s *questionService) generate(ctx context.Context, operation, userID string, cost int, produce func(context.Context) (*models.Question, error)) (*practice.Generated, error) {
	op := s.logger.WithOperation(ctx, operation, userID)
	reference := uuid.NewString()

	balance, err := s.credits.Charge(ctx, userID, cost, models.CreditReasonGeneration, reference)
	if err != nil {
		op.LogResult(reference, "question", err)
		return nil, err
	}

	q, err := produce(ctx)
	if err == nil {
		if q == nil {
			err = practice.ErrNoQuestionAvailable
		} else {
			err = s.checker.ValidateQuestion(q)
		}
	}
	if err != nil {
		s.refund(ctx, userID, cost, reference)
		err = fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		op.LogResult(reference, "question", err)
		return nil, err
	}

	if q.ID == "" {
		q.ID = reference
	}

	op.LogResult(q.ID, "question", nil)
	return &practice.Generated{Question: q, Credits: &balance}, nil
}

func (s *questionService) refund(ctx context.Context, userID string, amount int, reference string) {
	if amount <= 0 {
		return
	}
	if _, err := s.credits.Refund(context.WithoutCancel(ctx), userID, amount, reference); err != nil {
		s.logger.Logger().Error("Failed to refund generation charge",
			"user_id", userID,
			"amount", amount,
			"reference", reference,
			"error", err)
	}
}
