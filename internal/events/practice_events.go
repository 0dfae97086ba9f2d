package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/practice-service/internal/models"
)

// EventType represents the kinds of practice events
type EventType string

const (
	// Session events
	EventSessionStarted EventType = "practice.session_started"
	EventSessionClosed  EventType = "practice.session_closed"

	// Question events
	EventQuestionAcquired EventType = "practice.question_acquired"
	EventAnswerSubmitted  EventType = "practice.answer_submitted"

	// Credit events
	EventCreditPurchaseRequired EventType = "credits.purchase_required"
)

const (
	eventSource  = "practice-service"
	eventVersion = "1.0"
)

// Event is the envelope for all practice events
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	UserID    string                 `json:"user_id"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Event payloads

type SessionStartedEvent struct {
	SessionID  string                 `json:"session_id"`
	Subject    string                 `json:"subject"`
	Topic      string                 `json:"topic,omitempty"`
	Kind       models.QuestionKind    `json:"kind"`
	Difficulty models.DifficultyLevel `json:"difficulty"`
	ResumedID  string                 `json:"resumed_id,omitempty"`
}

type SessionClosedEvent struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"` // "closed", "idle"
}

type QuestionAcquiredEvent struct {
	SessionID  string                 `json:"session_id"`
	QuestionID string                 `json:"question_id"`
	Subject    string                 `json:"subject"`
	Topic      string                 `json:"topic,omitempty"`
	Kind       models.QuestionKind    `json:"kind"`
	Difficulty models.DifficultyLevel `json:"difficulty"`
	Shape      models.QuestionShape   `json:"shape"`
	Cost       int                    `json:"cost"`
}

type AnswerSubmittedEvent struct {
	SessionID    string               `json:"session_id"`
	QuestionID   string               `json:"question_id"`
	Subject      string               `json:"subject"`
	Shape        models.QuestionShape `json:"shape"`
	IsCorrect    bool                 `json:"is_correct"`
	MarksAwarded int                  `json:"marks_awarded"`
	MarksTotal   int                  `json:"marks_total"`
	TimeSpent    int                  `json:"time_spent"` // seconds
	HasImage     bool                 `json:"has_image"`
}

type CreditPurchaseRequiredEvent struct {
	SessionID string `json:"session_id"`
	Operation string `json:"operation"`
	Required  int    `json:"required"`
	Balance   int    `json:"balance"`
}

// Event factory functions

func newEvent(eventType EventType, userID string, data interface{}) *Event {
	return &Event{
		ID:        generateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   eventVersion,
		UserID:    userID,
		Data:      data,
	}
}

func NewSessionStartedEvent(userID string, data SessionStartedEvent) *Event {
	return newEvent(EventSessionStarted, userID, data)
}

func NewSessionClosedEvent(userID, sessionID, reason string) *Event {
	return newEvent(EventSessionClosed, userID, SessionClosedEvent{SessionID: sessionID, Reason: reason})
}

func NewQuestionAcquiredEvent(userID string, data QuestionAcquiredEvent) *Event {
	return newEvent(EventQuestionAcquired, userID, data)
}

func NewAnswerSubmittedEvent(userID string, data AnswerSubmittedEvent) *Event {
	return newEvent(EventAnswerSubmitted, userID, data)
}

func NewCreditPurchaseRequiredEvent(userID string, data CreditPurchaseRequiredEvent) *Event {
	return newEvent(EventCreditPurchaseRequired, userID, data)
}

func generateEventID() string {
	return uuid.NewString()
}
