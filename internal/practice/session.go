package practice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SAP-F-2025/practice-service/internal/credits"
	apperrors "github.com/SAP-F-2025/practice-service/internal/errors"
	"github.com/SAP-F-2025/practice-service/internal/models"
)

// Params selects what kind of questions a session practises.
type Params struct {
	Subject     string                 `json:"subject"`
	Topic       string                 `json:"topic,omitempty"`
	Difficulty  models.DifficultyLevel `json:"difficulty"`
	Kind        models.QuestionKind    `json:"kind"`
	FormLevel   string                 `json:"form_level,omitempty"`
	Format      string                 `json:"format,omitempty"`
	Board       string                 `json:"board,omitempty"`
	AllowImages bool                   `json:"allow_images"`
}

// Dependencies are the collaborators of a session. Extractor, Transcriber,
// Device and Navigator are optional.
type Dependencies struct {
	Questions   QuestionService
	Submissions SubmissionService
	Extractor   TextExtractor
	Transcriber Transcriber
	Device      Device
	Navigator   Navigator
	Credits     *credits.Store
	Estimator   *credits.Estimator
	Policy      Policy
	Logger      *slog.Logger
	Now         func() time.Time
}

// Flags are the in-flight markers of each suspension point.
type Flags struct {
	Acquiring    bool `json:"acquiring"`
	Submitting   bool `json:"submitting"`
	Extracting   bool `json:"extracting"`
	Transcribing bool `json:"transcribing"`
}

// Session is the state hub of one practice session: the current question,
// the draft answer, the in-flight flags and the last result.
type Session struct {
	id     string
	userID string
	params Params
	deps   Dependencies
	logger *slog.Logger

	media        *MediaManager
	releaseMedia Release

	mu        sync.Mutex
	question  *models.Question
	answer    Answer
	result    *models.AnswerResult
	startedAt time.Time
	flags     Flags
	closed    bool

	// acquireSeq keys each acquisition response to its request. Close advances it.
	acquireSeq uint64
}

func NewSession(id, userID string, params Params, deps Dependencies) (*Session, error) {
	if deps.Questions == nil || deps.Submissions == nil || deps.Credits == nil {
		return nil, fmt.Errorf("%w: questions, submissions and credits are required", ErrMissingDependency)
	}
	if deps.Estimator == nil {
		deps.Estimator = credits.NewEstimator(credits.DefaultTable)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if params.Kind == "" {
		params.Kind = models.KindTopical
	}
	if params.Difficulty == "" {
		params.Difficulty = models.DifficultyMedium
	}

	s := &Session{
		id:     id,
		userID: userID,
		params: params,
		deps:   deps,
		logger: deps.Logger.With("session_id", id, "user_id", userID),
	}
	s.media, s.releaseMedia = OpenMedia(deps.Device, s.transcribe, s.logger)
	return s, nil
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }
func (s *Session) Params() Params { return s.params }

// Close tears the session down. Device resources are released before it returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.acquireSeq++
	s.mu.Unlock()

	s.releaseMedia()
	s.logger.Info("Practice session closed")
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Question returns the current question including its answer key.
func (s *Session) Question() *models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.question
}

// Restore installs a previously acquired question without charging for it.
// It only applies to a session that has no question yet.
func (s *Session) Restore(q *models.Question) bool {
	if q == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.question != nil || s.flags.Acquiring {
		return false
	}
	s.install(q)
	return true
}

// install replaces the question and resets everything derived from it. Callers hold s.mu.
func (s *Session) install(q *models.Question) {
	s.question = q
	s.answer = newAnswer(q)
	s.result = nil
	s.startedAt = s.deps.Now()
}

func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked()
}

func (s *Session) canSubmitLocked() bool {
	return s.answer != nil && s.result == nil && !s.flags.Submitting && s.answer.Ready()
}

// editableLocked checks that the draft may change. Callers hold s.mu.
func (s *Session) editableLocked() error {
	switch {
	case s.closed:
		return ErrSessionClosed
	case s.question == nil:
		return ErrNoQuestion
	case s.result != nil:
		return ErrAnswerFrozen
	case s.flags.Submitting:
		return ErrBusy
	}
	return nil
}

func (s *Session) handoff(ctx context.Context, operation string, required int) error {
	balance, _ := s.deps.Credits.Balance()
	if s.deps.Navigator != nil {
		s.deps.Navigator.RequestCreditPurchase(ctx, CreditHandoff{
			UserID:    s.userID,
			SessionID: s.id,
			Operation: operation,
			Required:  required,
			Balance:   balance,
		})
	}
	s.logger.Info("Credit purchase hand-off requested", "operation", operation, "required", required, "balance", balance)
	return apperrors.NewCreditShortfall(required, balance)
}

// ===== MEDIA =====

func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.answer.Shape() == models.ShapeOption {
		s.mu.Unlock()
		return ErrAnswerShape
	}
	s.mu.Unlock()

	return s.media.StartRecording(ctx)
}

func (s *Session) StopRecording(ctx context.Context) error {
	return s.media.StopRecording(ctx)
}

func (s *Session) MediaState() MediaState {
	return s.media.State()
}

// ===== SNAPSHOT =====

type Snapshot struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	Params    Params               `json:"params"`
	Question  *models.Question     `json:"question,omitempty"`
	Draft     *DraftView           `json:"draft,omitempty"`
	Result    *models.AnswerResult `json:"result,omitempty"`
	Flags     Flags                `json:"flags"`
	Media     MediaState           `json:"media"`
	CanSubmit bool                 `json:"can_submit"`
	Credits   *int                 `json:"credits,omitempty"`
	StartedAt *time.Time           `json:"started_at,omitempty"`
	Closed    bool                 `json:"closed"`
}

// Snapshot renders the session for clients. The answer key is only included once a result exists.
func (s *Session) Snapshot() Snapshot {
	media := s.media.State()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		UserID:    s.userID,
		Params:    s.params,
		Draft:     viewOf(s.answer),
		Result:    s.result,
		Flags:     s.flags,
		Media:     media,
		CanSubmit: s.canSubmitLocked(),
		Closed:    s.closed,
	}
	if s.question != nil {
		if s.result != nil {
			snap.Question = s.question
		} else {
			snap.Question = s.question.Public()
		}
		started := s.startedAt
		snap.StartedAt = &started
	}
	if balance, known := s.deps.Credits.Balance(); known {
		snap.Credits = &balance
	}
	return snap
}
