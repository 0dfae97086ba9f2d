package practice

import (
	"context"
	"encoding/base64"
	"slices"
	"strings"

	"github.com/SAP-F-2025/practice-service/internal/models"
)

// ===== DIRECT INPUT =====

func (s *Session) SelectOption(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	ans, ok := s.answer.(*OptionAnswer)
	if !ok {
		return ErrAnswerShape
	}
	if value != "" && !slices.Contains(s.question.Options, value) {
		return ErrInvalidOption
	}
	ans.Selected = value
	return nil
}

func (s *Session) SetText(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	ans, ok := s.answer.(*TextAnswer)
	if !ok {
		return ErrAnswerShape
	}
	ans.Text = text
	return nil
}

// SetPart replaces one part's text, truncated to MaxPartLength.
func (s *Session) SetPart(label, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.editableLocked(); err != nil {
		return err
	}
	ans, ok := s.answer.(*StructuredAnswer)
	if !ok {
		return ErrAnswerShape
	}
	return ans.set(label, text)
}

// ===== IMAGE-DERIVED INPUT =====

// AttachImage keeps the image for upload and appends its recognized text to
// the draft. Recognition is best-effort: failures are logged and the image
// stays attached.
func (s *Session) AttachImage(ctx context.Context, img Image) error {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.flags.Extracting {
		s.mu.Unlock()
		return ErrBusy
	}

	attached := img
	switch ans := s.answer.(type) {
	case *TextAnswer:
		ans.Image = &attached
	case *StructuredAnswer:
		ans.Image = &attached
	default:
		s.mu.Unlock()
		return ErrAnswerShape
	}

	if s.deps.Extractor == nil {
		s.mu.Unlock()
		return nil
	}
	q := s.question
	s.flags.Extracting = true
	s.mu.Unlock()

	text, err := s.deps.Extractor.Extract(ctx, []ImageInput{{
		Base64:   base64.StdEncoding.EncodeToString(img.Data),
		MimeType: img.MimeType,
	}})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.Extracting = false

	if err != nil {
		s.logger.Warn("Text extraction failed", "error", err)
		return nil
	}
	if !s.stillCapturing(q) {
		s.logger.Debug("Dropping extracted text for a replaced, submitted or graded question")
		return nil
	}
	s.appendRecognizedLocked(text)
	return nil
}

// ===== VOICE-DERIVED INPUT =====

// transcribe is the media manager's audio callback.
func (s *Session) transcribe(ctx context.Context, audio Audio) {
	s.mu.Lock()
	if s.editableLocked() != nil {
		s.mu.Unlock()
		return
	}
	if s.answer.Shape() == models.ShapeOption {
		s.mu.Unlock()
		s.logger.Info("Ignoring voice input for an option question")
		return
	}
	if s.deps.Transcriber == nil {
		s.mu.Unlock()
		s.logger.Warn("No transcriber configured, discarding audio")
		return
	}
	q := s.question
	s.flags.Transcribing = true
	s.mu.Unlock()

	text, err := s.deps.Transcriber.Transcribe(ctx, audio)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags.Transcribing = false

	if err != nil {
		s.logger.Warn("Transcription failed", "error", err)
		return
	}
	if !s.stillCapturing(q) {
		s.logger.Debug("Dropping transcript for a replaced, submitted or graded question")
		return
	}
	s.appendRecognizedLocked(text)
}

// stillCapturing is false once the draft has been handed to the grader.
func (s *Session) stillCapturing(q *models.Question) bool {
	return !s.closed && s.question == q && s.result == nil && !s.flags.Submitting
}

// appendRecognizedLocked never overwrites typed text. Callers hold s.mu.
func (s *Session) appendRecognizedLocked(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	switch ans := s.answer.(type) {
	case *TextAnswer:
		ans.Text = appendLine(ans.Text, text)
	case *StructuredAnswer:
		ans.appendRecognized(text)
	}
}
