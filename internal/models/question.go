package models

import "strings"

type QuestionKind string

const (
	KindTopical QuestionKind = "topical"
	KindExam    QuestionKind = "exam"
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "Easy"
	DifficultyMedium DifficultyLevel = "Medium"
	DifficultyHard   DifficultyLevel = "Hard"
)

// QuestionShape decides which answer representation a question accepts.
type QuestionShape string

const (
	ShapeStructured QuestionShape = "structured"
	ShapeOption     QuestionShape = "option"
	ShapeText       QuestionShape = "text"
)

// QuestionPart is one separately-marked part of a structured question.
type QuestionPart struct {
	Label  string `json:"label"`
	Marks  int    `json:"marks"`
	Prompt string `json:"prompt"`
}

// Question is replaced wholesale on every acquisition and never edited in place.
type Question struct {
	ID         string          `json:"id"`
	Subject    string          `json:"subject"`
	Topic      string          `json:"topic,omitempty"`
	Kind       QuestionKind    `json:"kind"`
	Difficulty DifficultyLevel `json:"difficulty"`
	FormLevel  string          `json:"form_level,omitempty"`
	Format     string          `json:"format,omitempty"`
	Board      string          `json:"board,omitempty"`

	// Display form: either Prompt or Parts
	Prompt   string         `json:"prompt,omitempty"`
	Parts    []QuestionPart `json:"parts,omitempty"`
	Options  []string       `json:"options,omitempty"`
	ImageURL string         `json:"image_url,omitempty"`

	// Answer key, hidden until a result exists
	CorrectAnswer string `json:"correct_answer,omitempty"`
	Solution      string `json:"solution,omitempty"`
	Hint          string `json:"hint,omitempty"`
}

func (q *Question) Shape() QuestionShape {
	switch {
	case len(q.Parts) > 0:
		return ShapeStructured
	case len(q.Options) > 0:
		return ShapeOption
	default:
		return ShapeText
	}
}

func (q *Question) HasImage() bool {
	return q.ImageURL != ""
}

// Public returns a copy with the answer key removed.
func (q *Question) Public() *Question {
	if q == nil {
		return nil
	}
	cp := *q
	cp.CorrectAnswer = ""
	cp.Solution = ""
	cp.Hint = ""
	cp.Parts = append([]QuestionPart(nil), q.Parts...)
	cp.Options = append([]string(nil), q.Options...)
	return &cp
}

// Text flattens the prompt for grading context.
func (q *Question) Text() string {
	if len(q.Parts) == 0 {
		return q.Prompt
	}
	var b strings.Builder
	if q.Prompt != "" {
		b.WriteString(q.Prompt)
		b.WriteString("\n\n")
	}
	for i, p := range q.Parts {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("(")
		b.WriteString(p.Label)
		b.WriteString(") ")
		b.WriteString(p.Prompt)
	}
	return b.String()
}
