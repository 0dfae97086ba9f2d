package practice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/practice-service/internal/credits"
	apperrors "github.com/SAP-F-2025/practice-service/internal/errors"
	"github.com/SAP-F-2025/practice-service/internal/models"
)

var errEmptyResult = errors.New("submission service returned no result")

// Submit grades the draft answer. The balance is updated only from the
// server's response; local checks are advisory.
func (s *Session) Submit(ctx context.Context) (*models.AnswerResult, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case s.question == nil:
		s.mu.Unlock()
		return nil, ErrNoQuestion
	case s.result != nil:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case s.flags.Submitting:
		s.mu.Unlock()
		return nil, ErrBusy
	case !s.answer.Ready():
		s.mu.Unlock()
		return nil, ErrNothingToSubmit
	}

	q := s.question
	shape := s.answer.Shape()
	cost := credits.GradingCost(shape)
	if !s.deps.Credits.Sufficient(cost) {
		s.mu.Unlock()
		return nil, s.handoff(ctx, "submit_answer", cost)
	}

	payload := s.answer.Payload()
	var img *Image
	if a := s.answer.attachment(); a != nil {
		cp := *a
		img = &cp
	}
	elapsed := s.deps.Now().Sub(s.startedAt)
	s.flags.Submitting = true
	s.mu.Unlock()

	imageRef := s.uploadAttachment(ctx, q, img)

	res, err := s.deps.Submissions.Submit(ctx, SubmitRequest{
		UserID:        s.userID,
		SessionID:     s.id,
		QuestionID:    q.ID,
		Payload:       payload,
		ImageRef:      imageRef,
		Subject:       q.Subject,
		Topic:         q.Topic,
		Kind:          q.Kind,
		Difficulty:    q.Difficulty,
		CorrectAnswer: q.CorrectAnswer,
		Solution:      q.Solution,
		Hint:          q.Hint,
		QuestionText:  q.Text(),
		Options:       q.Options,
		Parts:         q.Parts,
		QuestionType:  shape,
		TimeSpent:     int(elapsed / time.Second),
	})

	s.mu.Lock()
	s.flags.Submitting = false
	if s.closed || s.question != q {
		s.mu.Unlock()
		s.logger.Info("Discarding result for a replaced question", "question_id", q.ID)
		return nil, ErrStaleResponse
	}

	if err != nil {
		s.mu.Unlock()
		if apperrors.IsInsufficientCredits(err) {
			s.handoff(ctx, "submit_answer", cost)
			return nil, err
		}
		s.logger.Error("Failed to submit answer", "question_id", q.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	if res == nil {
		s.mu.Unlock()
		s.logger.Error("Submission returned no result", "question_id", q.ID)
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, errEmptyResult)
	}

	s.result = res
	if res.CreditsRemaining != nil {
		s.deps.Credits.Apply(credits.Update{Balance: *res.CreditsRemaining, Source: credits.SourceSubmission})
	}
	s.mu.Unlock()

	s.logger.Info("Answer graded", "question_id", q.ID, "is_correct", res.IsCorrect)
	return res, nil
}

// uploadAttachment returns "" when there is nothing to upload, the question
// forbids image answers, or the upload fails.
func (s *Session) uploadAttachment(ctx context.Context, q *models.Question, img *Image) string {
	if img == nil {
		return ""
	}
	if !s.deps.Policy.ImageAnswersAllowed(q.Subject, q.Format) {
		s.logger.Debug("Image answers not accepted for this question, skipping upload", "subject", q.Subject, "format", q.Format)
		return ""
	}

	ref, err := s.deps.Submissions.UploadImage(ctx, s.userID, *img)
	if err != nil {
		s.logger.Warn("Image upload failed, submitting without image", "error", err)
		return ""
	}
	return ref
}

// Result returns the last graded result, if any.
func (s *Session) Result() *models.AnswerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}
