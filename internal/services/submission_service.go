package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/practice-service/internal/credits"
	"github.com/SAP-F-2025/practice-service/internal/events"
	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/practice"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
)

// AnswerGrader marks free-form and structured answers.
type AnswerGrader interface {
	Grade(ctx context.Context, req practice.SubmitRequest) (*models.AnswerResult, error)
}

// ImageStore keeps uploaded answer images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/gif":  ".gif",
}

type SubmissionServiceConfig struct {
	MaxImageBytes int64
}

type submissionService struct {
	repo      repositories.Repository
	credits   CreditService
	grader    AnswerGrader
	images    ImageStore
	publisher events.EventPublisher
	config    SubmissionServiceConfig
	logger    *ServiceLogger
}

// NewSubmissionService grades answers and records them. images may be nil,
// in which case uploads are skipped.
func NewSubmissionService(
	repo repositories.Repository,
	creditSvc CreditService,
	grader AnswerGrader,
	images ImageStore,
	publisher events.EventPublisher,
	config SubmissionServiceConfig,
	logger *slog.Logger,
) practice.SubmissionService {
	if config.MaxImageBytes <= 0 {
		config.MaxImageBytes = 8 << 20
	}
	return &submissionService{
		repo:      repo,
		credits:   creditSvc,
		grader:    grader,
		images:    images,
		publisher: publisher,
		config:    config,
		logger:    NewServiceLogger(logger, LogConfig{Service: "practice-service", Component: "submissions"}),
	}
}

// ===== GRADING =====

func (s *submissionService) Submit(ctx context.Context, req practice.SubmitRequest) (*models.AnswerResult, error) {
	op := s.logger.WithOperation(ctx, "submit_answer", req.UserID)

	if err := validateSubmitRequest(req); err != nil {
		op.LogResult(req.QuestionID, "answer", err)
		return nil, err
	}

	var result *models.AnswerResult
	if req.QuestionType == models.ShapeOption {
		result = gradeOption(req)
		if account, err := s.credits.GetBalance(ctx, req.UserID); err != nil {
			s.logger.Logger().Warn("Failed to read balance after local grading", "user_id", req.UserID, "error", err)
		} else {
			result.CreditsRemaining = &account.Balance
		}
	} else {
		graded, balance, err := s.gradeCharged(ctx, req)
		if err != nil {
			op.LogResult(req.QuestionID, "answer", err)
			return nil, err
		}
		result = graded
		result.CreditsRemaining = &balance
	}

	s.record(ctx, req, result)
	s.publishSubmitted(ctx, req, result)

	op.LogResult(req.QuestionID, "answer", nil)
	return result, nil
}

// gradeCharged charges the grading cost, then grades; the charge is refunded when grading fails.
func (s *submissionService) gradeCharged(ctx context.Context, req practice.SubmitRequest) (*models.AnswerResult, int, error) {
	cost := credits.GradingCost(req.QuestionType)

	balance, err := s.credits.Charge(ctx, req.UserID, cost, models.CreditReasonGrading, req.QuestionID)
	if err != nil {
		return nil, 0, err
	}

	result, err := s.grader.Grade(ctx, req)
	if err != nil || result == nil {
		if err == nil {
			err = fmt.Errorf("grader returned no result")
		}
		if cost > 0 {
			if refunded, rerr := s.credits.Refund(context.WithoutCancel(ctx), req.UserID, cost, req.QuestionID); rerr != nil {
				s.logger.Logger().Error("Failed to refund grading charge",
					"user_id", req.UserID,
					"question_id", req.QuestionID,
					"error", rerr)
			} else {
				balance = refunded
			}
		}
		return nil, balance, fmt.Errorf("%w: %w", ErrGradingFailed, err)
	}
	return result, balance, nil
}

// gradeOption compares the selection with the answer key, ignoring case and surrounding space.
func gradeOption(req practice.SubmitRequest) *models.AnswerResult {
	correct := strings.EqualFold(strings.TrimSpace(req.Payload), strings.TrimSpace(req.CorrectAnswer))

	feedback := "Correct."
	if !correct {
		feedback = fmt.Sprintf("Not quite. The correct answer is %s.", req.CorrectAnswer)
	}
	return &models.AnswerResult{
		IsCorrect: correct,
		Feedback:  feedback,
		Solution:  req.Solution,
		Hint:      req.Hint,
	}
}

func validateSubmitRequest(req practice.SubmitRequest) error {
	var errs ValidationErrors
	if req.UserID == "" {
		errs = append(errs, *NewValidationError("user_id", "is required", req.UserID))
	}
	if req.QuestionID == "" {
		errs = append(errs, *NewValidationError("question_id", "is required", req.QuestionID))
	}
	if len(errs) > 0 {
		return errs
	}
	if strings.TrimSpace(req.Payload) == "" && req.ImageRef == "" {
		return practice.ErrNothingToSubmit
	}
	return nil
}

// record stores the attempt. A failure is logged and does not fail the submission.
func (s *submissionService) record(ctx context.Context, req practice.SubmitRequest, result *models.AnswerResult) {
	partResults, err := json.Marshal(result.PartResults)
	if err != nil {
		partResults = []byte("[]")
	}

	attempt := &models.PracticeAttempt{
		UserID:           req.UserID,
		SessionID:        req.SessionID,
		QuestionID:       req.QuestionID,
		Subject:          req.Subject,
		Topic:            req.Topic,
		Kind:             req.Kind,
		Difficulty:       req.Difficulty,
		Shape:            req.QuestionType,
		Payload:          req.Payload,
		ImageRef:         req.ImageRef,
		IsCorrect:        result.IsCorrect,
		Feedback:         result.Feedback,
		PartResults:      datatypes.JSON(partResults),
		TimeSpentSeconds: req.TimeSpent,
	}

	if err := s.repo.Attempt().Create(context.WithoutCancel(ctx), nil, attempt); err != nil {
		s.logger.Logger().Error("Failed to record practice attempt",
			"user_id", req.UserID,
			"question_id", req.QuestionID,
			"error", err)
	}
}

func (s *submissionService) publishSubmitted(ctx context.Context, req practice.SubmitRequest, result *models.AnswerResult) {
	if s.publisher == nil {
		return
	}
	awarded, total := result.MarksAwarded()
	event := events.NewAnswerSubmittedEvent(req.UserID, events.AnswerSubmittedEvent{
		SessionID:    req.SessionID,
		QuestionID:   req.QuestionID,
		Subject:      req.Subject,
		Shape:        req.QuestionType,
		IsCorrect:    result.IsCorrect,
		MarksAwarded: awarded,
		MarksTotal:   total,
		TimeSpent:    req.TimeSpent,
		HasImage:     req.ImageRef != "",
	})
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Logger().Warn("Failed to publish answer submitted event", "question_id", req.QuestionID, "error", err)
	}
}

// ===== IMAGE UPLOAD =====

func (s *submissionService) UploadImage(ctx context.Context, userID string, img practice.Image) (string, error) {
	op := s.logger.WithOperation(ctx, "upload_answer_image", userID)

	if s.images == nil {
		op.LogResult("", "answer_image", nil)
		return "", nil
	}

	ext, err := s.checkImage(img)
	if err != nil {
		op.LogResult("", "answer_image", err)
		return "", err
	}

	key := fmt.Sprintf("answers/%s/%s%s", userID, uuid.NewString(), ext)
	url, err := s.images.Upload(ctx, key, normalizeMimeType(img.MimeType), bytes.NewReader(img.Data))
	if err != nil {
		op.LogResult(key, "answer_image", err)
		return "", fmt.Errorf("failed to upload answer image: %w", err)
	}

	op.LogResult(key, "answer_image", nil)
	return url, nil
}

func (s *submissionService) checkImage(img practice.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", ValidationErrors{*NewValidationError("image", "is empty", nil)}
	}
	if int64(len(img.Data)) > s.config.MaxImageBytes {
		return "", ErrImageTooLarge
	}
	ext, ok := imageExtensions[normalizeMimeType(img.MimeType)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, img.MimeType)
	}
	return ext, nil
}

func normalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}
