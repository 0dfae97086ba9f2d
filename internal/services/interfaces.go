package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/practice"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
)

// ===== SERVICE INTERFACES =====

type CreditService interface {
	GetBalance(ctx context.Context, userID string) (*CreditBalanceResponse, error)
	Charge(ctx context.Context, userID string, cost int, reason models.CreditReason, reference string) (int, error)
	Refund(ctx context.Context, userID string, amount int, reference string) (int, error)
	Transactions(ctx context.Context, userID string, filters repositories.TransactionFilters) (*TransactionListResponse, error)
}

type SessionService interface {
	Open(ctx context.Context, req *OpenSessionRequest, userID string) (*practice.Snapshot, error)
	Snapshot(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error)
	Next(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error)
	SetAnswer(ctx context.Context, sessionID, userID string, req *AnswerRequest) (*practice.Snapshot, error)
	AttachImage(ctx context.Context, sessionID, userID string, img practice.Image) (*practice.Snapshot, error)
	StartRecording(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error)
	StopRecording(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error)
	Submit(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error)
	Close(ctx context.Context, sessionID, userID string) error

	// Microphone returns the websocket device a client attaches to
	Microphone(ctx context.Context, sessionID, userID string) (MicrophoneDevice, error)

	ReapIdle(ctx context.Context) int
	Run(ctx context.Context)
	Shutdown(ctx context.Context)
}

type HistoryService interface {
	List(ctx context.Context, userID string, filters repositories.AttemptFilters) (*AttemptListResponse, error)
	Stats(ctx context.Context, userID string, filters repositories.AttemptFilters) (*repositories.PracticeSummary, error)
	Export(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]byte, error)
}

// ServiceManager exposes every service behind one handle
type ServiceManager interface {
	Credit() CreditService
	Session() SessionService
	History() HistoryService
	Questions() practice.QuestionService
	Submissions() practice.SubmissionService
}

// ===== REQUEST STRUCTURES =====

type OpenSessionRequest struct {
	Subject         string                 `json:"subject" validate:"required,subject"`
	Topic           string                 `json:"topic" validate:"max=200"`
	Difficulty      models.DifficultyLevel `json:"difficulty" validate:"omitempty,difficulty_level"`
	Kind            models.QuestionKind    `json:"kind" validate:"omitempty,question_kind"`
	FormLevel       string                 `json:"form_level" validate:"max=32"`
	Format          string                 `json:"format" validate:"omitempty,question_format"`
	Board           string                 `json:"board" validate:"max=32"`
	AllowImages     *bool                  `json:"allow_images"`
	ResumeSessionID string                 `json:"resume_session_id" validate:"omitempty,uuid"`
}

// AnswerRequest sets exactly one of option, text or a part
type AnswerRequest struct {
	Option *string `json:"option"`
	Text   *string `json:"text"`
	Label  string  `json:"label" validate:"max=16"`
}

// ===== RESPONSE STRUCTURES =====

type CreditBalanceResponse struct {
	UserID      string `json:"user_id"`
	Balance     int    `json:"balance"`
	PurchaseURL string `json:"purchase_url"`
}

type TransactionListResponse struct {
	Transactions []*models.CreditTransaction `json:"transactions"`
	Total        int64                       `json:"total"`
	Limit        int                         `json:"limit"`
	Offset       int                         `json:"offset"`
}

type AttemptResponse struct {
	ID           uint                   `json:"id"`
	SessionID    string                 `json:"session_id"`
	QuestionID   string                 `json:"question_id"`
	Subject      string                 `json:"subject"`
	Topic        string                 `json:"topic,omitempty"`
	Kind         models.QuestionKind    `json:"kind"`
	Difficulty   models.DifficultyLevel `json:"difficulty"`
	Shape        models.QuestionShape   `json:"shape"`
	IsCorrect    bool                   `json:"is_correct"`
	Feedback     string                 `json:"feedback"`
	PartResults  []models.PartResult    `json:"part_results,omitempty"`
	MarksAwarded int                    `json:"marks_awarded"`
	MarksTotal   int                    `json:"marks_total"`
	TimeSpent    int                    `json:"time_spent_seconds"`
	HasImage     bool                   `json:"has_image"`
	CreatedAt    time.Time              `json:"created_at"`
}

type AttemptListResponse struct {
	Attempts []*AttemptResponse `json:"attempts"`
	Total    int64              `json:"total"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}
