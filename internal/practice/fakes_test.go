package practice

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SAP-F-2025/practice-service/internal/credits"
	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ===== QUESTION SERVICE =====

type fakeQuestions struct {
	streamCalls   atomic.Int32
	generateCalls atomic.Int32

	stream   func(ctx context.Context, req StreamRequest) (*Generated, error)
	generate func(ctx context.Context, req GenerateRequest) (*Generated, error)

	mu          sync.Mutex
	lastRequest GenerateRequest
}

func (f *fakeQuestions) GenerateStream(ctx context.Context, req StreamRequest) (*Generated, error) {
	f.streamCalls.Add(1)
	if f.stream == nil {
		return nil, nil
	}
	return f.stream(ctx, req)
}

func (f *fakeQuestions) Generate(ctx context.Context, req GenerateRequest) (*Generated, error) {
	f.generateCalls.Add(1)
	f.mu.Lock()
	f.lastRequest = req
	f.mu.Unlock()
	if f.generate == nil {
		return nil, nil
	}
	return f.generate(ctx, req)
}

func (f *fakeQuestions) calls() int {
	return int(f.streamCalls.Load() + f.generateCalls.Load())
}

func returning(q *models.Question, balance *int) func(context.Context, GenerateRequest) (*Generated, error) {
	return func(context.Context, GenerateRequest) (*Generated, error) {
		return &Generated{Question: q, Credits: balance}, nil
	}
}

// ===== SUBMISSION SERVICE =====

type mockSubmissions struct {
	mock.Mock
}

func (m *mockSubmissions) Submit(ctx context.Context, req SubmitRequest) (*models.AnswerResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.AnswerResult)
	return res, args.Error(1)
}

func (m *mockSubmissions) UploadImage(ctx context.Context, userID string, img Image) (string, error) {
	args := m.Called(ctx, userID, img)
	return args.String(0), args.Error(1)
}

// ===== RECOGNITION =====

type fakeExtractor struct {
	text  string
	err   error
	calls []ImageInput
}

func (f *fakeExtractor) Extract(ctx context.Context, images []ImageInput) (string, error) {
	f.calls = append(f.calls, images...)
	return f.text, f.err
}

type fakeTranscriber struct {
	text string
	err  error
	got  []Audio
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	f.got = append(f.got, audio)
	return f.text, f.err
}

// ===== NAVIGATION =====

type fakeNavigator struct {
	mu       sync.Mutex
	handoffs []CreditHandoff
}

func (f *fakeNavigator) RequestCreditPurchase(ctx context.Context, h CreditHandoff) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handoffs = append(f.handoffs, h)
}

func (f *fakeNavigator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handoffs)
}

// ===== DEVICE =====

type fakeTrack struct {
	stopped atomic.Bool
}

func (t *fakeTrack) Stop() { t.stopped.Store(true) }

type fakeStream struct {
	tracks []*fakeTrack
}

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	return out
}

// fakeRecorder emits live chunks on demand and holds a final chunk back until Stop.
type fakeRecorder struct {
	mu      sync.Mutex
	onChunk func([]byte)
	final   []byte
	stops   int
	stopErr error
}

func (r *fakeRecorder) Start(onChunk func([]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChunk = onChunk
	return nil
}

func (r *fakeRecorder) emit(chunk []byte) {
	r.mu.Lock()
	fn := r.onChunk
	r.mu.Unlock()
	fn(chunk)
}

func (r *fakeRecorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stops++
	final := r.final
	r.final = nil
	fn := r.onChunk
	err := r.stopErr
	r.mu.Unlock()

	if final != nil && fn != nil {
		fn(final)
	}
	return err
}

func (r *fakeRecorder) MimeType() string { return "audio/ogg" }

func (r *fakeRecorder) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

type fakeDevice struct {
	acquireErr error
	stream     *fakeStream
	recorder   *fakeRecorder
	acquired   int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		stream:   &fakeStream{tracks: []*fakeTrack{{}}},
		recorder: &fakeRecorder{},
	}
}

func (d *fakeDevice) Acquire(ctx context.Context) (Stream, error) {
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	d.acquired++
	return d.stream, nil
}

func (d *fakeDevice) NewRecorder(stream Stream) (Recorder, error) {
	return d.recorder, nil
}

func (d *fakeDevice) tracksStopped() bool {
	for _, t := range d.stream.tracks {
		if !t.stopped.Load() {
			return false
		}
	}
	return true
}

// ===== FIXTURES =====

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func structuredQuestion() *models.Question {
	return &models.Question{
		ID:      "q-structured",
		Subject: "Mathematics",
		Kind:    models.KindTopical,
		Format:  "structured",
		Parts: []models.QuestionPart{
			{Label: "A", Marks: 2, Prompt: "Solve for x"},
			{Label: "B", Marks: 3, Prompt: "Hence find y"},
		},
		CorrectAnswer: "x=5, y=2",
		Solution:      "Substitute",
		Hint:          "Start with A",
	}
}

func optionQuestion() *models.Question {
	return &models.Question{
		ID:            "q-option",
		Subject:       "Mathematics",
		Kind:          models.KindTopical,
		Prompt:        "2 + 2 = ?",
		Options:       []string{"2", "4", "6"},
		CorrectAnswer: "4",
	}
}

func textQuestion() *models.Question {
	return &models.Question{
		ID:            "q-text",
		Subject:       "Biology",
		Kind:          models.KindTopical,
		Prompt:        "Describe osmosis",
		CorrectAnswer: "Movement of water across a membrane",
	}
}

func intPtr(v int) *int { return &v }

type harness struct {
	session     *Session
	questions   *fakeQuestions
	submissions *mockSubmissions
	extractor   *fakeExtractor
	transcriber *fakeTranscriber
	device      *fakeDevice
	navigator   *fakeNavigator
	credits     *credits.Store
	now         time.Time
}

func newHarness(t *testing.T, params Params) *harness {
	t.Helper()

	h := &harness{
		questions:   &fakeQuestions{},
		submissions: &mockSubmissions{},
		extractor:   &fakeExtractor{},
		transcriber: &fakeTranscriber{},
		device:      newFakeDevice(),
		navigator:   &fakeNavigator{},
		credits:     credits.NewStore(),
		now:         time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	s, err := NewSession("sess-1", "user-1", params, Dependencies{
		Questions:   h.questions,
		Submissions: h.submissions,
		Extractor:   h.extractor,
		Transcriber: h.transcriber,
		Device:      h.device,
		Navigator:   h.navigator,
		Credits:     h.credits,
		Policy:      DefaultPolicy(),
		Logger:      discardLogger(),
		Now:         func() time.Time { return h.now },
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	h.session = s
	return h
}

// withQuestion installs q through the standard acquisition path.
func (h *harness) withQuestion(t *testing.T, q *models.Question) {
	t.Helper()
	h.questions.generate = returning(q, nil)
	_, err := h.session.Next(context.Background())
	require.NoError(t, err)
}
