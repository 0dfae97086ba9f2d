package practice

import (
	"context"

	"github.com/SAP-F-2025/practice-service/internal/models"
)

// ===== REMOTE QUESTION SERVICE =====

type StreamRequest struct {
	UserID     string                 `json:"user_id"`
	Subject    string                 `json:"subject"`
	Topic      string                 `json:"topic"`
	Difficulty models.DifficultyLevel `json:"difficulty"`
	FormLevel  string                 `json:"form_level,omitempty"`
}

type GenerateRequest struct {
	UserID      string                 `json:"user_id"`
	Subject     string                 `json:"subject"`
	Topic       string                 `json:"topic,omitempty"`
	Difficulty  models.DifficultyLevel `json:"difficulty"`
	Kind        models.QuestionKind    `json:"kind"`
	Format      string                 `json:"format,omitempty"`
	AllowImages bool                   `json:"allow_images"`
	Board       string                 `json:"board,omitempty"`
	FormLevel   string                 `json:"form_level,omitempty"`
}

// Generated is a question plus the balance the server reported after charging for it.
type Generated struct {
	Question *models.Question `json:"question"`
	Credits  *int             `json:"credits,omitempty"`
}

// QuestionService produces questions. GenerateStream is best-effort and may
// return a nil Generated to decline. Both paths signal a credit shortfall with
// an error matching apperrors.ErrInsufficientCredits.
type QuestionService interface {
	GenerateStream(ctx context.Context, req StreamRequest) (*Generated, error)
	Generate(ctx context.Context, req GenerateRequest) (*Generated, error)
}

// ===== REMOTE SUBMISSION SERVICE =====

type Image struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
}

type SubmitRequest struct {
	UserID        string                 `json:"user_id"`
	SessionID     string                 `json:"session_id"`
	QuestionID    string                 `json:"question_id"`
	Payload       string                 `json:"payload"`
	ImageRef      string                 `json:"image_ref,omitempty"`
	Subject       string                 `json:"subject"`
	Topic         string                 `json:"topic,omitempty"`
	Kind          models.QuestionKind    `json:"kind,omitempty"`
	Difficulty    models.DifficultyLevel `json:"difficulty,omitempty"`
	CorrectAnswer string                 `json:"correct_answer"`
	Solution      string                 `json:"solution"`
	Hint          string                 `json:"hint"`
	QuestionText  string                 `json:"question_text"`
	Options       []string               `json:"options,omitempty"`
	Parts         []models.QuestionPart  `json:"parts,omitempty"`
	QuestionType  models.QuestionShape   `json:"question_type"`
	TimeSpent     int                    `json:"time_spent"` // seconds
}

type SubmissionService interface {
	Submit(ctx context.Context, req SubmitRequest) (*models.AnswerResult, error)
	// UploadImage returns "" when the image was not stored.
	UploadImage(ctx context.Context, userID string, img Image) (string, error)
}

// ===== RECOGNITION SERVICES =====

type ImageInput struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mime_type"`
}

type TextExtractor interface {
	Extract(ctx context.Context, images []ImageInput) (string, error)
}

type Audio struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// ===== NAVIGATION =====

type CreditHandoff struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Operation string `json:"operation"`
	Required  int    `json:"required"`
	Balance   int    `json:"balance"`
}

// Navigator takes the user to the credit purchase surface.
type Navigator interface {
	RequestCreditPurchase(ctx context.Context, handoff CreditHandoff)
}
