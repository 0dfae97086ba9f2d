package services

import (
	"errors"

	apperrors "github.com/SAP-F-2025/practice-service/internal/errors"
	"github.com/SAP-F-2025/practice-service/internal/practice"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Session specific errors
	ErrSessionNotFound     = errors.New("practice session not found")
	ErrSessionAccessDenied = errors.New("access denied to practice session")
	ErrSessionLimitReached = errors.New("too many open practice sessions")

	// Generation and grading errors
	ErrGenerationFailed = errors.New("question generation failed")
	ErrGradingFailed    = errors.New("answer grading failed")

	// Image errors
	ErrImageTooLarge       = errors.New("image exceeds the size limit")
	ErrUnsupportedImage    = errors.New("unsupported image type")
	ErrImageStoreDisabled  = errors.New("image storage is not configured")
	ErrMicrophoneConnected = errors.New("a microphone is already connected to this session")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, apperrors.ErrCreditAccountNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrSessionAccessDenied)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrImageTooLarge) ||
		errors.Is(err, ErrUnsupportedImage) ||
		practice.IsBadInput(err) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsConflict checks if error represents a state conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSessionLimitReached) ||
		errors.Is(err, ErrMicrophoneConnected) ||
		practice.IsConflict(err)
}

// IsInsufficientCredits checks if error should trigger the credit purchase flow
func IsInsufficientCredits(err error) bool {
	return apperrors.IsInsufficientCredits(err)
}

// IsUnavailable checks if error comes from an upstream that failed without a state change
func IsUnavailable(err error) bool {
	return errors.Is(err, practice.ErrNoQuestionAvailable) ||
		errors.Is(err, practice.ErrSubmissionFailed) ||
		errors.Is(err, practice.ErrDeviceUnavailable) ||
		errors.Is(err, ErrGenerationFailed) ||
		errors.Is(err, ErrGradingFailed) ||
		errors.Is(err, ErrImageStoreDisabled)
}
