package practice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SAP-F-2025/practice-service/internal/credits"
	apperrors "github.com/SAP-F-2025/practice-service/internal/errors"
	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSubmit_StructuredPayloadAndResult(t *testing.T) {
	h := newHarness(t, Params{Subject: "Mathematics"})
	h.withQuestion(t, structuredQuestion())
	require.NoError(t, h.session.SetPart("A", "x=5"))
	h.now = h.now.Add(90 * time.Second)

	result := &models.AnswerResult{
		IsCorrect: false,
		Feedback:  "Part B missing",
		PartResults: []models.PartResult{
			{Label: "A", Correct: true, Marks: 2, Awarded: 2},
			{Label: "B", Correct: false, Marks: 3, Awarded: 0},
		},
		CreditsRemaining: intPtr(6),
	}
	h.submissions.On("Submit", mock.Anything, mock.MatchedBy(func(req SubmitRequest) bool {
		return req.Payload == "A: x=5\n\nB: " &&
			req.QuestionID == "q-structured" &&
			req.QuestionType == models.ShapeStructured &&
			req.CorrectAnswer == "x=5, y=2" &&
			req.Solution == "Substitute" &&
			req.Hint == "Start with A" &&
			len(req.Parts) == 2 &&
			req.ImageRef == "" &&
			req.TimeSpent == 90
	})).Return(result, nil).Once()

	got, err := h.session.Submit(context.Background())

	require.NoError(t, err)
	assert.Same(t, result, got)
	h.submissions.AssertExpectations(t)
	h.submissions.AssertNotCalled(t, "UploadImage", mock.Anything, mock.Anything, mock.Anything)

	balance, _ := h.credits.Balance()
	assert.Equal(t, 6, balance)

	assert.ErrorIs(t, h.session.SetPart("B", "y=2"), ErrAnswerFrozen)
	assert.False(t, h.session.CanSubmit())

	_, err = h.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmit_OptionPayloadIsLiteral(t *testing.T) {
	h := newHarness(t, Params{Subject: "Mathematics"})
	h.withQuestion(t, optionQuestion())
	require.NoError(t, h.session.SelectOption("4"))

	h.submissions.On("Submit", mock.Anything, mock.MatchedBy(func(req SubmitRequest) bool {
		return req.Payload == "4" && req.QuestionType == models.ShapeOption && len(req.Options) == 3
	})).Return(&models.AnswerResult{IsCorrect: true}, nil).Once()

	_, err := h.session.Submit(context.Background())
	require.NoError(t, err)
	h.submissions.AssertExpectations(t)
}

func TestSubmit_TextPayloadIsTrimmed(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	require.NoError(t, h.session.SetText("  water moves in  \n"))

	h.submissions.On("Submit", mock.Anything, mock.MatchedBy(func(req SubmitRequest) bool {
		return req.Payload == "water moves in" && req.QuestionText == "Describe osmosis"
	})).Return(&models.AnswerResult{}, nil).Once()

	_, err := h.session.Submit(context.Background())
	require.NoError(t, err)
	h.submissions.AssertExpectations(t)
}

func TestSubmit_EmptyAnswerRejected(t *testing.T) {
	h := newHarness(t, Params{Subject: "Mathematics"})
	h.withQuestion(t, structuredQuestion())

	_, err := h.session.Submit(context.Background())

	assert.ErrorIs(t, err, ErrNothingToSubmit)
	h.submissions.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestSubmit_UploadsPermittedImage(t *testing.T) {
	h := newHarness(t, Params{Subject: "Mathematics"})
	h.withQuestion(t, structuredQuestion())
	img := Image{Data: []byte("photo"), MimeType: "image/jpeg"}
	require.NoError(t, h.session.AttachImage(context.Background(), img))

	h.submissions.On("UploadImage", mock.Anything, "user-1", img).Return("https://cdn/answers/1.jpg", nil).Once()
	h.submissions.On("Submit", mock.Anything, mock.MatchedBy(func(req SubmitRequest) bool {
		return req.ImageRef == "https://cdn/answers/1.jpg"
	})).Return(&models.AnswerResult{}, nil).Once()

	_, err := h.session.Submit(context.Background())
	require.NoError(t, err)
	h.submissions.AssertExpectations(t)
}

func TestSubmit_UploadFailureSubmitsWithoutImage(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	require.NoError(t, h.session.AttachImage(context.Background(), Image{Data: []byte("photo"), MimeType: "image/png"}))

	h.submissions.On("UploadImage", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket down")).Once()
	h.submissions.On("Submit", mock.Anything, mock.MatchedBy(func(req SubmitRequest) bool {
		return req.ImageRef == ""
	})).Return(&models.AnswerResult{}, nil).Once()

	_, err := h.session.Submit(context.Background())
	require.NoError(t, err)
	h.submissions.AssertExpectations(t)
}

func TestSubmit_ForbiddenImageIsNotUploaded(t *testing.T) {
	h := newHarness(t, Params{Subject: "English"})
	q := &models.Question{ID: "essay", Subject: "English", Format: "essay", Prompt: "Write about rain"}
	h.withQuestion(t, q)
	require.NoError(t, h.session.AttachImage(context.Background(), Image{Data: []byte("photo"), MimeType: "image/png"}))

	h.submissions.On("Submit", mock.Anything, mock.Anything).Return(&models.AnswerResult{}, nil).Once()

	_, err := h.session.Submit(context.Background())
	require.NoError(t, err)
	h.submissions.AssertNotCalled(t, "UploadImage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_FailureLeavesAnswerEditable(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	h.credits.Apply(credits.Update{Balance: 3})
	require.NoError(t, h.session.SetText("osmosis"))

	h.submissions.On("Submit", mock.Anything, mock.Anything).Return(nil, errors.New("grader 503")).Once()

	_, err := h.session.Submit(context.Background())

	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Nil(t, h.session.Result())
	assert.NoError(t, h.session.SetText("osmosis, retried"))
	assert.True(t, h.session.CanSubmit())
	balance, _ := h.credits.Balance()
	assert.Equal(t, 3, balance, "balance only changes on confirmed success")
	assert.Equal(t, 0, h.navigator.count())
}

func TestSubmit_ServerShortfallHandsOff(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	require.NoError(t, h.session.SetText("osmosis"))

	h.submissions.On("Submit", mock.Anything, mock.Anything).Return(nil, apperrors.NewCreditShortfall(1, 0)).Once()

	_, err := h.session.Submit(context.Background())

	assert.True(t, apperrors.IsInsufficientCredits(err))
	assert.Equal(t, 1, h.navigator.count())
	assert.Equal(t, "submit_answer", h.navigator.handoffs[0].Operation)
	assert.Nil(t, h.session.Result())
	assert.True(t, h.session.CanSubmit())
}

func TestSubmit_LocalShortfallForGradedAnswer(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	require.NoError(t, h.session.SetText("osmosis"))
	h.credits.Apply(credits.Update{Balance: 0})

	_, err := h.session.Submit(context.Background())

	assert.True(t, apperrors.IsInsufficientCredits(err))
	h.submissions.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestSubmit_OptionAnswerIsFreeToGrade(t *testing.T) {
	h := newHarness(t, Params{Subject: "Mathematics"})
	h.withQuestion(t, optionQuestion())
	require.NoError(t, h.session.SelectOption("2"))
	h.credits.Apply(credits.Update{Balance: 0})

	h.submissions.On("Submit", mock.Anything, mock.Anything).Return(&models.AnswerResult{}, nil).Once()

	_, err := h.session.Submit(context.Background())
	require.NoError(t, err)
}

func TestSubmit_SecondPressWhileInFlight(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	require.NoError(t, h.session.SetText("osmosis"))

	entered := make(chan struct{})
	release := make(chan struct{})
	h.submissions.On("Submit", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(&models.AnswerResult{IsCorrect: true}, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := h.session.Submit(context.Background())
		done <- err
	}()
	<-entered

	_, err := h.session.Submit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, h.session.SetText("changed"), ErrBusy)
	assert.True(t, h.session.Snapshot().Flags.Submitting)

	close(release)
	require.NoError(t, <-done)
	h.submissions.AssertNumberOfCalls(t, "Submit", 1)
}

func TestSubmit_RecognizedTextDuringSubmissionIsDropped(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	require.NoError(t, h.session.SetText("typed"))

	extractEntered := make(chan struct{})
	extractRelease := make(chan struct{})
	h.session.deps.Extractor = extractorFunc(func(ctx context.Context, images []ImageInput) (string, error) {
		close(extractEntered)
		<-extractRelease
		return "from ocr", nil
	})

	submitEntered := make(chan struct{})
	submitRelease := make(chan struct{})
	h.submissions.On("UploadImage", mock.Anything, mock.Anything, mock.Anything).Return("", nil).Maybe()
	h.submissions.On("Submit", mock.Anything, mock.MatchedBy(func(req SubmitRequest) bool {
		return req.Payload == "typed"
	})).
		Run(func(mock.Arguments) {
			close(submitEntered)
			<-submitRelease
		}).
		Return(&models.AnswerResult{IsCorrect: true}, nil).Once()

	attached := make(chan error, 1)
	go func() {
		attached <- h.session.AttachImage(context.Background(), Image{Data: []byte{1}, MimeType: "image/png"})
	}()
	<-extractEntered

	submitted := make(chan error, 1)
	go func() {
		_, err := h.session.Submit(context.Background())
		submitted <- err
	}()
	<-submitEntered

	close(extractRelease)
	require.NoError(t, <-attached)

	close(submitRelease)
	require.NoError(t, <-submitted)

	snap := h.session.Snapshot()
	require.NotNil(t, snap.Result)
	assert.Equal(t, "typed", snap.Draft.Text, "graded draft must match what was submitted")
	h.submissions.AssertExpectations(t)
}

func TestSubmit_EmptyResultIsFailure(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	require.NoError(t, h.session.SetText("osmosis"))

	h.submissions.On("Submit", mock.Anything, mock.Anything).Return(nil, nil).Once()

	_, err := h.session.Submit(context.Background())

	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Nil(t, h.session.Result())
	assert.NoError(t, h.session.SetText("osmosis again"))
}

func TestSnapshot_HidesAnswerKeyUntilGraded(t *testing.T) {
	h := newHarness(t, Params{Subject: "Mathematics"})
	h.withQuestion(t, optionQuestion())

	snap := h.session.Snapshot()
	require.NotNil(t, snap.Question)
	assert.Empty(t, snap.Question.CorrectAnswer)
	assert.Equal(t, []string{"2", "4", "6"}, snap.Question.Options)
	assert.Equal(t, "4", h.session.Question().CorrectAnswer, "stored question keeps its key")

	require.NoError(t, h.session.SelectOption("4"))
	h.submissions.On("Submit", mock.Anything, mock.Anything).Return(&models.AnswerResult{IsCorrect: true}, nil).Once()
	_, err := h.session.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "4", h.session.Snapshot().Question.CorrectAnswer)
}

// ===== RECORDING THROUGH THE SESSION =====

func TestSession_VoiceAppendsToText(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	require.NoError(t, h.session.SetText("typed"))
	h.transcriber.text = "spoken words"

	require.NoError(t, h.session.StartRecording(context.Background()))
	h.device.recorder.emit([]byte("audio"))
	require.NoError(t, h.session.StopRecording(context.Background()))

	assert.Equal(t, "typed\nspoken words", h.session.Snapshot().Draft.Text)
	assert.Equal(t, MediaIdle, h.session.MediaState())
	require.Len(t, h.transcriber.got, 1)
	assert.Equal(t, "audio", string(h.transcriber.got[0].Data))
}

func TestSession_VoiceFailureDiscardedSilently(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	require.NoError(t, h.session.SetText("typed"))
	h.transcriber.err = errors.New("speech quota")

	require.NoError(t, h.session.StartRecording(context.Background()))
	h.device.recorder.emit([]byte("audio"))
	require.NoError(t, h.session.StopRecording(context.Background()))

	assert.Equal(t, "typed", h.session.Snapshot().Draft.Text)
	assert.Equal(t, MediaIdle, h.session.MediaState())
	assert.False(t, h.session.Snapshot().Flags.Transcribing)
}

func TestSession_VoiceOnStructuredUsesRecognitionTarget(t *testing.T) {
	h := newHarness(t, Params{Subject: "Mathematics"})
	h.withQuestion(t, structuredQuestion())
	require.NoError(t, h.session.SetPart("A", "x=5"))
	h.transcriber.text = "y equals two"

	require.NoError(t, h.session.StartRecording(context.Background()))
	h.device.recorder.emit([]byte("audio"))
	require.NoError(t, h.session.StopRecording(context.Background()))

	parts := h.session.Snapshot().Draft.Parts
	assert.Equal(t, "x=5", parts[0].Text)
	assert.Equal(t, "y equals two", parts[1].Text)
}

func TestSession_MicrophoneDenied(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())
	require.NoError(t, h.session.SetText("typed"))
	h.device.acquireErr = errors.New("NotAllowedError")

	err := h.session.StartRecording(context.Background())

	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.Equal(t, MediaIdle, h.session.MediaState())
	assert.Equal(t, "typed", h.session.Snapshot().Draft.Text)
	assert.Empty(t, h.transcriber.got)
}

func TestSession_RecordingRejectedForOptionQuestion(t *testing.T) {
	h := newHarness(t, Params{Subject: "Mathematics"})
	h.withQuestion(t, optionQuestion())

	assert.ErrorIs(t, h.session.StartRecording(context.Background()), ErrAnswerShape)
	assert.Equal(t, 0, h.device.acquired)
}

func TestSession_TeardownMidRecordingReleasesDevice(t *testing.T) {
	h := newHarness(t, Params{Subject: "Biology"})
	h.withQuestion(t, textQuestion())

	require.NoError(t, h.session.StartRecording(context.Background()))
	assert.Equal(t, MediaRecording, h.session.MediaState())

	h.session.Close()

	assert.True(t, h.device.tracksStopped(), "no leaked active stream")
	assert.Equal(t, 1, h.device.recorder.stopCount())
	assert.Equal(t, MediaIdle, h.session.MediaState())
	assert.Empty(t, h.transcriber.got)
	assert.ErrorIs(t, h.session.StartRecording(context.Background()), ErrSessionClosed)
}
