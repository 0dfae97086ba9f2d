package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/practice"
)

var ErrMalformedGrade = errors.New("model returned a malformed grade")

type gradeWire struct {
	IsCorrect   bool                `json:"is_correct"`
	Feedback    string              `json:"feedback"`
	PartResults []models.PartResult `json:"part_results"`
}

// Grade marks a free-form or structured answer against the answer key.
func (c *Client) Grade(ctx context.Context, req practice.SubmitRequest) (*models.AnswerResult, error) {
	raw, err := c.complete(ctx, gradePrompt(req))
	if err != nil {
		return nil, fmt.Errorf("grade answer: %w", err)
	}
	res, err := parseGrade(raw, req.Parts)
	if err != nil {
		c.logger.Warn("Grading output rejected", "question_id", req.QuestionID, "error", err)
		return nil, err
	}
	res.Solution = req.Solution
	res.Hint = req.Hint
	return res, nil
}

func gradePrompt(req practice.SubmitRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are marking a %s answer. Be fair and brief.\n\n", req.Subject)
	fmt.Fprintf(&b, "Question:\n%s\n\n", req.QuestionText)
	fmt.Fprintf(&b, "Marking key:\n%s\n\n", req.CorrectAnswer)
	if req.Solution != "" {
		fmt.Fprintf(&b, "Worked solution:\n%s\n\n", req.Solution)
	}
	fmt.Fprintf(&b, "Student answer:\n%s\n\n", req.Payload)
	if req.ImageRef != "" {
		fmt.Fprintf(&b, "The student also attached a photo of their working at %s; the text above includes what was read from it.\n\n", req.ImageRef)
	}
	if len(req.Parts) > 0 {
		b.WriteString("Mark each part separately. Parts and marks available:\n")
		for _, p := range req.Parts {
			fmt.Fprintf(&b, "- %s (%d marks)\n", p.Label, p.Marks)
		}
		b.WriteString("\n")
	}
	b.WriteString(`Respond with JSON only:
{"is_correct": true, "feedback": "", "part_results": [{"label": "a", "correct": true, "marks": 2, "awarded": 2, "feedback": ""}]}`)
	return b.String()
}

func parseGrade(raw string, parts []models.QuestionPart) (*models.AnswerResult, error) {
	var w gradeWire
	if err := json.Unmarshal([]byte(cleanModelOutput(raw)), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGrade, err)
	}

	res := &models.AnswerResult{
		IsCorrect: w.IsCorrect,
		Feedback:  strings.TrimSpace(w.Feedback),
	}
	if len(parts) == 0 {
		return res, nil
	}

	byLabel := make(map[string]models.PartResult, len(w.PartResults))
	for _, pr := range w.PartResults {
		byLabel[strings.ToLower(strings.Trim(strings.TrimSpace(pr.Label), "()"))] = pr
	}

	// Marks come from the question, never from the model.
	allCorrect := true
	for _, p := range parts {
		pr, ok := byLabel[strings.ToLower(p.Label)]
		out := models.PartResult{Label: p.Label, Marks: p.Marks}
		if ok {
			out.Correct = pr.Correct
			out.Feedback = strings.TrimSpace(pr.Feedback)
			out.Awarded = min(max(pr.Awarded, 0), p.Marks)
			if out.Correct && pr.Awarded == 0 && p.Marks > 0 {
				out.Awarded = p.Marks
			}
		}
		if !out.Correct {
			allCorrect = false
		}
		res.PartResults = append(res.PartResults, out)
	}
	res.IsCorrect = allCorrect
	return res, nil
}
