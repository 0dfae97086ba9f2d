package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/practice"
)

func newTestClient(complete, stream completeFunc) *Client {
	return &Client{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		complete: complete,
		stream:   stream,
	}
}

func reply(s string) completeFunc {
	return func(context.Context, string) (string, error) { return s, nil }
}

func TestCleanModelOutput(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanModelOutput("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanModelOutput("  {\"a\":1}  "))
	assert.Equal(t, `x`, cleanModelOutput("```x```"))
}

func TestGenerateQuestion_Structured(t *testing.T) {
	var gotPrompt string
	c := newTestClient(func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "```json\n" + `{"topic":"Algebra","prompt":"Solve the system.","parts":[{"label":"(a)","marks":2,"prompt":"Find x"},{"label":"b","marks":3,"prompt":"Find y"},{"label":"","marks":1,"prompt":"dropped"}],"options":["ignored"],"correct_answer":"x=5, y=2","solution":"substitute","hint":"eliminate y"}` + "\n```", nil
	}, nil)

	q, err := c.GenerateQuestion(context.Background(), practice.GenerateRequest{
		Subject: "maths", Topic: "algebra", Difficulty: models.DifficultyHard,
		Kind: models.KindExam, Format: "structured", Board: "knec", FormLevel: "Form 3",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, q.ID)
	assert.Equal(t, "maths", q.Subject)
	assert.Equal(t, "Algebra", q.Topic)
	assert.Equal(t, models.KindExam, q.Kind)
	assert.Equal(t, "knec", q.Board)
	assert.Equal(t, models.ShapeStructured, q.Shape())
	require.Len(t, q.Parts, 2)
	assert.Equal(t, "a", q.Parts[0].Label)
	assert.Empty(t, q.Options, "structured questions carry no options")
	assert.Contains(t, gotPrompt, "KNEC")
	assert.Contains(t, gotPrompt, "labelled parts")
}

func TestGenerateQuestion_RejectsBadOutput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "sorry, I can't"},
		{"no prompt", `{"correct_answer":"4"}`},
		{"no key", `{"prompt":"2+2?"}`},
		{"key not an option", `{"prompt":"2+2?","options":["3","5"],"correct_answer":"4"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(reply(tt.raw), nil)
			_, err := c.GenerateQuestion(context.Background(), practice.GenerateRequest{Subject: "maths"})
			assert.ErrorIs(t, err, ErrMalformedQuestion)
		})
	}
}

func TestGenerateQuestion_TransportError(t *testing.T) {
	boom := errors.New("quota")
	c := newTestClient(func(context.Context, string) (string, error) { return "", boom }, nil)
	_, err := c.GenerateQuestion(context.Background(), practice.GenerateRequest{Subject: "maths"})
	assert.ErrorIs(t, err, boom)
}

func TestStreamQuestion(t *testing.T) {
	c := newTestClient(nil, reply(`{"prompt":"2+2?","options":["3","4"],"correct_answer":"4"}`))
	q, err := c.StreamQuestion(context.Background(), practice.StreamRequest{
		Subject: "maths", Topic: "arithmetic", Difficulty: models.DifficultyEasy,
	})
	require.NoError(t, err)
	assert.Equal(t, models.KindTopical, q.Kind)
	assert.Equal(t, "arithmetic", q.Topic)
	assert.Equal(t, models.ShapeOption, q.Shape())
}

func TestGrade_Structured(t *testing.T) {
	c := newTestClient(reply(`{"is_correct":true,"feedback":"ok","part_results":[{"label":"A","correct":true,"marks":9,"awarded":9},{"label":"(b)","correct":false,"awarded":-1,"feedback":"y wrong"}]}`), nil)

	res, err := c.Grade(context.Background(), practice.SubmitRequest{
		Subject:  "maths",
		Solution: "sol",
		Hint:     "hint",
		Parts:    []models.QuestionPart{{Label: "a", Marks: 2}, {Label: "b", Marks: 3}, {Label: "c", Marks: 1}},
	})
	require.NoError(t, err)

	assert.False(t, res.IsCorrect, "overall correctness follows the parts")
	require.Len(t, res.PartResults, 3)
	assert.Equal(t, 2, res.PartResults[0].Awarded, "awarded is capped at the part's marks")
	assert.Equal(t, 0, res.PartResults[1].Awarded)
	assert.Equal(t, "y wrong", res.PartResults[1].Feedback)
	assert.False(t, res.PartResults[2].Correct, "missing parts score nothing")
	assert.Equal(t, "sol", res.Solution)
	assert.Equal(t, "hint", res.Hint)

	awarded, total := res.MarksAwarded()
	assert.Equal(t, 2, awarded)
	assert.Equal(t, 6, total)
}

func TestGrade_Text(t *testing.T) {
	c := newTestClient(reply(`{"is_correct":true,"feedback":"Well explained."}`), nil)
	res, err := c.Grade(context.Background(), practice.SubmitRequest{Subject: "biology", Payload: "osmosis"})
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, "Well explained.", res.Feedback)
	assert.Empty(t, res.PartResults)
}

func TestGrade_Malformed(t *testing.T) {
	c := newTestClient(reply("nope"), nil)
	_, err := c.Grade(context.Background(), practice.SubmitRequest{})
	assert.ErrorIs(t, err, ErrMalformedGrade)
}
