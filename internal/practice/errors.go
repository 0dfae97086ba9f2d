package practice

import "errors"

var (
	ErrBusy                = errors.New("operation already in flight")
	ErrSessionClosed       = errors.New("session closed")
	ErrNoQuestion          = errors.New("no current question")
	ErrNoQuestionAvailable = errors.New("no question available")
	ErrSubmissionFailed    = errors.New("submission failed")
	ErrStaleResponse       = errors.New("response arrived after the session moved on")

	// Answer capture
	ErrAnswerFrozen      = errors.New("answer is frozen after a result")
	ErrAnswerShape       = errors.New("input does not match the question shape")
	ErrUnknownPart       = errors.New("unknown question part")
	ErrInvalidOption     = errors.New("option is not offered by the question")
	ErrNothingToSubmit   = errors.New("answer is empty")
	ErrAlreadySubmitted  = errors.New("answer already submitted")
	ErrMissingDependency = errors.New("missing session dependency")

	// Media
	ErrRecorderBusy      = errors.New("recorder is not idle")
	ErrNotRecording      = errors.New("no active recording")
	ErrDeviceUnavailable = errors.New("microphone unavailable")
	ErrMediaClosed       = errors.New("media released")
)

// IsConflict reports errors caused by the session's current state rather than bad input.
func IsConflict(err error) bool {
	return errors.Is(err, ErrBusy) ||
		errors.Is(err, ErrAnswerFrozen) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrRecorderBusy) ||
		errors.Is(err, ErrNotRecording) ||
		errors.Is(err, ErrStaleResponse)
}

// IsBadInput reports errors caused by the caller's request.
func IsBadInput(err error) bool {
	return errors.Is(err, ErrAnswerShape) ||
		errors.Is(err, ErrUnknownPart) ||
		errors.Is(err, ErrInvalidOption) ||
		errors.Is(err, ErrNothingToSubmit) ||
		errors.Is(err, ErrNoQuestion)
}
