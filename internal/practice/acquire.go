package practice

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/practice-service/internal/credits"
	apperrors "github.com/SAP-F-2025/practice-service/internal/errors"
	"github.com/SAP-F-2025/practice-service/internal/models"
)

var errEmptyGeneration = errors.New("question service returned no question")

// Cost is what the next acquisition is expected to charge.
func (s *Session) Cost() int {
	p := s.params
	return s.deps.Estimator.Estimate(p.Subject, p.Kind, p.AllowImages, s.deps.Policy.FormatFor(p.Subject, p.Format))
}

// Next acquires a new question. A cached balance below the estimated cost
// hands off to credit purchase without any network call. A second call while
// one is in flight returns ErrBusy; a response arriving after Close returns
// ErrStaleResponse.
func (s *Session) Next(ctx context.Context) (*models.Question, error) {
	cost := s.Cost()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.flags.Acquiring {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if !s.deps.Credits.Sufficient(cost) {
		s.mu.Unlock()
		return nil, s.handoff(ctx, "next_question", cost)
	}
	s.acquireSeq++
	token := s.acquireSeq
	s.flags.Acquiring = true
	s.mu.Unlock()

	gen, err := s.fetch(ctx)

	s.mu.Lock()
	s.flags.Acquiring = false
	if token != s.acquireSeq {
		s.mu.Unlock()
		s.logger.Info("Discarding question response for a closed session", "token", token)
		return nil, ErrStaleResponse
	}

	if err != nil {
		s.mu.Unlock()
		if apperrors.IsInsufficientCredits(err) {
			s.handoff(ctx, "next_question", cost)
			return nil, err
		}
		s.logger.Error("Failed to acquire question", "subject", s.params.Subject, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNoQuestionAvailable, err)
	}

	if gen.Credits != nil {
		s.deps.Credits.Apply(credits.Update{Balance: *gen.Credits, Source: credits.SourceAcquisition})
	}
	s.install(gen.Question)
	q := gen.Question
	s.mu.Unlock()

	s.logger.Info("Question acquired", "question_id", q.ID, "shape", q.Shape())
	return q, nil
}

// fetch tries the streaming path when eligible and falls back to the standard path.
func (s *Session) fetch(ctx context.Context) (*Generated, error) {
	p := s.params
	policy := s.deps.Policy

	if policy.StreamEligible(p.Subject, p.Topic, p.Kind) {
		gen, err := s.deps.Questions.GenerateStream(ctx, StreamRequest{
			UserID:     s.userID,
			Subject:    p.Subject,
			Topic:      p.Topic,
			Difficulty: p.Difficulty,
			FormLevel:  p.FormLevel,
		})
		switch {
		case err != nil && apperrors.IsInsufficientCredits(err):
			return nil, err
		case err != nil:
			s.logger.Warn("Streaming generation failed, falling back", "error", err)
		case gen == nil || gen.Question == nil:
			s.logger.Debug("Streaming generation declined, falling back")
		default:
			return gen, nil
		}
	}

	gen, err := s.deps.Questions.Generate(ctx, GenerateRequest{
		UserID:      s.userID,
		Subject:     p.Subject,
		Topic:       p.Topic,
		Difficulty:  p.Difficulty,
		Kind:        p.Kind,
		Format:      policy.FormatFor(p.Subject, p.Format),
		AllowImages: p.AllowImages,
		Board:       policy.BoardFor(p.Subject, p.Board),
		FormLevel:   p.FormLevel,
	})
	if err != nil {
		return nil, err
	}
	if gen == nil || gen.Question == nil {
		return nil, errEmptyGeneration
	}
	return gen, nil
}
