package validator

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/practice-service/internal/models"
)

const (
	minOptions = 2
	maxOptions = 10
	maxParts   = 12
	maxMarks   = 50
)

// QuestionValidator checks generated questions before they reach a session
type QuestionValidator struct{}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestion validates a complete question object
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	if question == nil {
		return fmt.Errorf("question cannot be nil")
	}
	if strings.TrimSpace(question.Subject) == "" {
		return fmt.Errorf("question subject is required")
	}

	switch question.Shape() {
	case models.ShapeStructured:
		return v.validateParts(question.Parts)
	case models.ShapeOption:
		return v.validateOptions(question.Options, question.CorrectAnswer)
	default:
		if strings.TrimSpace(question.Prompt) == "" {
			return fmt.Errorf("question prompt is required")
		}
		return nil
	}
}

// Private validation methods for each question shape

func (v *QuestionValidator) validateOptions(options []string, correct string) error {
	if len(options) < minOptions {
		return fmt.Errorf("must have at least %d options", minOptions)
	}
	if len(options) > maxOptions {
		return fmt.Errorf("cannot have more than %d options", maxOptions)
	}

	seen := make(map[string]bool, len(options))
	for _, option := range options {
		key := strings.ToLower(strings.TrimSpace(option))
		if key == "" {
			return fmt.Errorf("option text cannot be empty")
		}
		if seen[key] {
			return fmt.Errorf("duplicate option '%s'", option)
		}
		seen[key] = true
	}

	if !seen[strings.ToLower(strings.TrimSpace(correct))] {
		return fmt.Errorf("correct answer '%s' does not match any option", correct)
	}
	return nil
}

func (v *QuestionValidator) validateParts(parts []models.QuestionPart) error {
	if len(parts) > maxParts {
		return fmt.Errorf("cannot have more than %d parts", maxParts)
	}

	labels := make(map[string]bool, len(parts))
	for i, part := range parts {
		label := strings.TrimSpace(part.Label)
		if label == "" {
			return fmt.Errorf("part %d has no label", i+1)
		}
		if labels[label] {
			return fmt.Errorf("duplicate part label '%s'", label)
		}
		labels[label] = true

		if strings.TrimSpace(part.Prompt) == "" {
			return fmt.Errorf("part '%s' has no prompt", label)
		}
		if part.Marks < 0 || part.Marks > maxMarks {
			return fmt.Errorf("part '%s' marks must be between 0 and %d", label, maxMarks)
		}
	}
	return nil
}
