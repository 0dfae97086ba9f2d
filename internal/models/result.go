package models

type PartResult struct {
	Label    string `json:"label"`
	Correct  bool   `json:"correct"`
	Marks    int    `json:"marks"`
	Awarded  int    `json:"awarded"`
	Feedback string `json:"feedback,omitempty"`
}

// AnswerResult is created once per submission and freezes the draft answer.
type AnswerResult struct {
	IsCorrect        bool         `json:"is_correct"`
	Feedback         string       `json:"feedback"`
	PartResults      []PartResult `json:"part_results,omitempty"`
	Solution         string       `json:"solution,omitempty"`
	Hint             string       `json:"hint,omitempty"`
	CreditsRemaining *int         `json:"credits_remaining,omitempty"`
}

func (r *AnswerResult) MarksAwarded() (awarded, total int) {
	for _, p := range r.PartResults {
		awarded += p.Awarded
		total += p.Marks
	}
	return awarded, total
}
