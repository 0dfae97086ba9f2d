package practice

import (
	"strings"
	"unicode/utf8"

	"github.com/SAP-F-2025/practice-service/internal/models"
)

// MaxPartLength caps the text of one structured part, in runes.
const MaxPartLength = 2000

// Answer is the draft answer. Exactly one variant exists per question,
// chosen from the question's shape when the question is installed.
type Answer interface {
	Shape() models.QuestionShape
	// Ready reports whether the answer has content worth submitting.
	Ready() bool
	// Payload renders the canonical submission text.
	Payload() string
	attachment() *Image
}

type OptionAnswer struct {
	Selected string
}

func (a *OptionAnswer) Shape() models.QuestionShape { return models.ShapeOption }
func (a *OptionAnswer) Ready() bool                 { return a.Selected != "" }
func (a *OptionAnswer) Payload() string             { return a.Selected }
func (a *OptionAnswer) attachment() *Image          { return nil }

type TextAnswer struct {
	Text  string
	Image *Image
}

func (a *TextAnswer) Shape() models.QuestionShape { return models.ShapeText }

func (a *TextAnswer) Ready() bool {
	return strings.TrimSpace(a.Text) != "" || a.Image != nil
}

func (a *TextAnswer) Payload() string    { return strings.TrimSpace(a.Text) }
func (a *TextAnswer) attachment() *Image { return a.Image }

// StructuredAnswer keeps one text per part, rendered in part order.
type StructuredAnswer struct {
	labels []string
	parts  map[string]string
	Image  *Image
}

func newStructuredAnswer(parts []models.QuestionPart) *StructuredAnswer {
	a := &StructuredAnswer{
		labels: make([]string, 0, len(parts)),
		parts:  make(map[string]string, len(parts)),
	}
	for _, p := range parts {
		a.labels = append(a.labels, p.Label)
		a.parts[p.Label] = ""
	}
	return a
}

func (a *StructuredAnswer) Shape() models.QuestionShape { return models.ShapeStructured }

func (a *StructuredAnswer) Ready() bool {
	if a.Image != nil {
		return true
	}
	for _, text := range a.parts {
		if strings.TrimSpace(text) != "" {
			return true
		}
	}
	return false
}

// Payload joins "label: text" per part with a blank line between parts.
func (a *StructuredAnswer) Payload() string {
	lines := make([]string, 0, len(a.labels))
	for _, label := range a.labels {
		lines = append(lines, label+": "+a.parts[label])
	}
	return strings.Join(lines, "\n\n")
}

func (a *StructuredAnswer) attachment() *Image { return a.Image }

func (a *StructuredAnswer) Part(label string) (string, bool) {
	text, ok := a.parts[label]
	return text, ok
}

func (a *StructuredAnswer) Labels() []string {
	return append([]string(nil), a.labels...)
}

func (a *StructuredAnswer) set(label, text string) error {
	if _, ok := a.parts[label]; !ok {
		return ErrUnknownPart
	}
	a.parts[label] = truncateRunes(text, MaxPartLength)
	return nil
}

// appendTarget is the first part without text, or the last part when every part has text.
func (a *StructuredAnswer) appendTarget() string {
	for _, label := range a.labels {
		if strings.TrimSpace(a.parts[label]) == "" {
			return label
		}
	}
	if len(a.labels) == 0 {
		return ""
	}
	return a.labels[len(a.labels)-1]
}

func (a *StructuredAnswer) appendRecognized(text string) {
	label := a.appendTarget()
	if label == "" {
		return
	}
	a.parts[label] = truncateRunes(appendLine(a.parts[label], text), MaxPartLength)
}

func newAnswer(q *models.Question) Answer {
	switch q.Shape() {
	case models.ShapeStructured:
		return newStructuredAnswer(q.Parts)
	case models.ShapeOption:
		return &OptionAnswer{}
	default:
		return &TextAnswer{}
	}
}

// appendLine puts text on a new line after any existing content.
func appendLine(existing, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return existing
	}
	if strings.TrimSpace(existing) == "" {
		return text
	}
	if strings.HasSuffix(existing, "\n") {
		return existing + text
	}
	return existing + "\n" + text
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// ===== DRAFT VIEW =====

type PartDraft struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// DraftView is the serializable form of an Answer.
type DraftView struct {
	Shape         models.QuestionShape `json:"shape"`
	Selected      string               `json:"selected,omitempty"`
	Text          string               `json:"text,omitempty"`
	Parts         []PartDraft          `json:"parts,omitempty"`
	HasImage      bool                 `json:"has_image"`
	ImageMimeType string               `json:"image_mime_type,omitempty"`
}

func viewOf(a Answer) *DraftView {
	if a == nil {
		return nil
	}
	v := &DraftView{Shape: a.Shape()}
	switch ans := a.(type) {
	case *OptionAnswer:
		v.Selected = ans.Selected
	case *TextAnswer:
		v.Text = ans.Text
	case *StructuredAnswer:
		for _, label := range ans.labels {
			v.Parts = append(v.Parts, PartDraft{Label: label, Text: ans.parts[label]})
		}
	}
	if img := a.attachment(); img != nil {
		v.HasImage = true
		v.ImageMimeType = img.MimeType
	}
	return v
}
