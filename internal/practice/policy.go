package practice

import (
	"strings"

	"github.com/SAP-F-2025/practice-service/internal/credits"
	"github.com/SAP-F-2025/practice-service/internal/models"
)

// Policy holds the subject-specific rules of acquisition and submission.
type Policy struct {
	StreamSubjects       map[string]bool
	DefaultFormats       map[string]string
	DefaultBoards        map[string]string
	ImageSubjects        map[string]bool // subjects whose generated questions may carry images
	TypedOnlySubjects    map[string]bool // image answers are never uploaded
	TypedOnlyFormats     map[string]bool
	DefaultBoard         string
	MaxStreamTopicLength int
}

func DefaultPolicy() Policy {
	return Policy{
		StreamSubjects: map[string]bool{
			"mathematics": true,
			"physics":     true,
			"chemistry":   true,
			"biology":     true,
			"geography":   true,
			"history":     true,
		},
		DefaultFormats: map[string]string{
			"mathematics": "structured",
			"physics":     "structured",
			"chemistry":   "structured",
			"biology":     "structured",
			"english":     "essay",
			"kiswahili":   "essay",
		},
		DefaultBoards: map[string]string{
			"english":   "knec",
			"kiswahili": "knec",
		},
		ImageSubjects: map[string]bool{
			"mathematics": true,
			"physics":     true,
			"biology":     true,
			"geography":   true,
		},
		TypedOnlySubjects: map[string]bool{
			"english":   true,
			"kiswahili": true,
		},
		TypedOnlyFormats: map[string]bool{
			"multiple_choice": true,
			"essay":           true,
		},
		DefaultBoard:         "knec",
		MaxStreamTopicLength: 120,
	}
}

// StreamEligible reports whether the low-latency path may be tried.
func (p Policy) StreamEligible(subject, topic string, kind models.QuestionKind) bool {
	topic = strings.TrimSpace(topic)
	if kind != models.KindTopical || topic == "" {
		return false
	}
	if p.MaxStreamTopicLength > 0 && len(topic) > p.MaxStreamTopicLength {
		return false
	}
	return p.StreamSubjects[credits.NormalizeSubject(subject)]
}

func (p Policy) FormatFor(subject, requested string) string {
	if requested != "" {
		return requested
	}
	return p.DefaultFormats[credits.NormalizeSubject(subject)]
}

func (p Policy) BoardFor(subject, requested string) string {
	if requested != "" {
		return requested
	}
	if board, ok := p.DefaultBoards[credits.NormalizeSubject(subject)]; ok {
		return board
	}
	return p.DefaultBoard
}

func (p Policy) AllowImages(subject string) bool {
	return p.ImageSubjects[credits.NormalizeSubject(subject)]
}

// ImageAnswersAllowed reports whether an attached image may be uploaded with a submission.
func (p Policy) ImageAnswersAllowed(subject, format string) bool {
	if p.TypedOnlySubjects[credits.NormalizeSubject(subject)] {
		return false
	}
	return !p.TypedOnlyFormats[strings.ToLower(strings.TrimSpace(format))]
}
