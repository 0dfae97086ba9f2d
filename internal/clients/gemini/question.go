package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/practice"
)

var ErrMalformedQuestion = errors.New("model returned a malformed question")

type questionWire struct {
	Topic         string                `json:"topic"`
	Prompt        string                `json:"prompt"`
	Parts         []models.QuestionPart `json:"parts"`
	Options       []string              `json:"options"`
	CorrectAnswer string                `json:"correct_answer"`
	Solution      string                `json:"solution"`
	Hint          string                `json:"hint"`
}

// GenerateQuestion asks the model for one complete question.
func (c *Client) GenerateQuestion(ctx context.Context, req practice.GenerateRequest) (*models.Question, error) {
	prompt := questionPrompt(req.Subject, req.Topic, req.Difficulty, req.Kind, req.Format, req.Board, req.FormLevel)
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate question: %w", err)
	}
	q, err := parseQuestion(raw)
	if err != nil {
		c.logger.Warn("Model output rejected", "subject", req.Subject, "error", err)
		return nil, err
	}
	fillQuestion(q, req.Subject, req.Topic, req.Difficulty, req.Kind, req.Format, req.Board, req.FormLevel)
	return q, nil
}

// StreamQuestion streams a topical question and assembles it once the stream ends.
func (c *Client) StreamQuestion(ctx context.Context, req practice.StreamRequest) (*models.Question, error) {
	prompt := questionPrompt(req.Subject, req.Topic, req.Difficulty, models.KindTopical, "", "", req.FormLevel)
	raw, err := c.stream(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("stream question: %w", err)
	}
	q, err := parseQuestion(raw)
	if err != nil {
		return nil, err
	}
	fillQuestion(q, req.Subject, req.Topic, req.Difficulty, models.KindTopical, "", "", req.FormLevel)
	return q, nil
}

func questionPrompt(subject, topic string, difficulty models.DifficultyLevel, kind models.QuestionKind, format, board, formLevel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an examiner writing one %s practice question for a secondary school student.\n", strings.ToLower(string(difficulty)))
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	if topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", topic)
	}
	if formLevel != "" {
		fmt.Fprintf(&b, "Level: %s\n", formLevel)
	}
	if kind == models.KindExam {
		fmt.Fprintf(&b, "Style: a past-paper style exam question")
		if board != "" {
			fmt.Fprintf(&b, " for the %s board", strings.ToUpper(board))
		}
		b.WriteString(".\n")
	}
	switch format {
	case "structured":
		b.WriteString("Format: a structured question with labelled parts (a), (b), ... each with marks. Leave options empty.\n")
	case "multiple_choice":
		b.WriteString("Format: multiple choice with exactly four options; correct_answer must equal one option verbatim. Leave parts empty.\n")
	case "essay":
		b.WriteString("Format: a single essay prompt. Leave parts and options empty.\n")
	}
	b.WriteString(`Respond with JSON only, in this shape:
{"topic": "", "prompt": "", "parts": [{"label": "a", "marks": 2, "prompt": ""}], "options": [], "correct_answer": "", "solution": "", "hint": ""}`)
	return b.String()
}

func parseQuestion(raw string) (*models.Question, error) {
	var w questionWire
	if err := json.Unmarshal([]byte(cleanModelOutput(raw)), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuestion, err)
	}

	parts := make([]models.QuestionPart, 0, len(w.Parts))
	for _, p := range w.Parts {
		label := strings.Trim(strings.TrimSpace(p.Label), "()")
		if label == "" || strings.TrimSpace(p.Prompt) == "" {
			continue
		}
		if p.Marks < 0 {
			p.Marks = 0
		}
		parts = append(parts, models.QuestionPart{Label: label, Marks: p.Marks, Prompt: strings.TrimSpace(p.Prompt)})
	}

	var options []string
	for _, o := range w.Options {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}

	q := &models.Question{
		Topic:         strings.TrimSpace(w.Topic),
		Prompt:        strings.TrimSpace(w.Prompt),
		Parts:         parts,
		CorrectAnswer: strings.TrimSpace(w.CorrectAnswer),
		Solution:      strings.TrimSpace(w.Solution),
		Hint:          strings.TrimSpace(w.Hint),
	}
	if len(parts) == 0 {
		q.Options = options
	}

	if q.Prompt == "" && len(q.Parts) == 0 {
		return nil, fmt.Errorf("%w: empty prompt", ErrMalformedQuestion)
	}
	if q.CorrectAnswer == "" {
		return nil, fmt.Errorf("%w: missing correct answer", ErrMalformedQuestion)
	}
	if len(q.Options) > 0 && !containsFold(q.Options, q.CorrectAnswer) {
		return nil, fmt.Errorf("%w: correct answer is not an option", ErrMalformedQuestion)
	}
	return q, nil
}

func fillQuestion(q *models.Question, subject, topic string, difficulty models.DifficultyLevel, kind models.QuestionKind, format, board, formLevel string) {
	q.ID = uuid.New().String()
	q.Subject = subject
	if q.Topic == "" {
		q.Topic = topic
	}
	q.Difficulty = difficulty
	q.Kind = kind
	q.Format = format
	q.Board = board
	q.FormLevel = formLevel
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
