package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/SAP-F-2025/practice-service/internal/cache"
	"github.com/SAP-F-2025/practice-service/internal/credits"
	"github.com/SAP-F-2025/practice-service/internal/events"
	"github.com/SAP-F-2025/practice-service/internal/media/wsdevice"
	"github.com/SAP-F-2025/practice-service/internal/practice"
)

// MicrophoneDevice is a practice.Device that a websocket client attaches to.
type MicrophoneDevice interface {
	practice.Device
	Serve(ctx context.Context, ws *websocket.Conn) error
	Connected() bool
	Close()
}

const (
	closeReasonClosed   = "closed"
	closeReasonIdle     = "idle"
	closeReasonShutdown = "shutdown"
)

type SessionServiceConfig struct {
	IdleTTL            time.Duration
	ReapInterval       time.Duration
	MaxSessionsPerUser int
	MaxImageBytes      int64
	Policy             practice.Policy
}

// SessionDependencies are the collaborators shared by every session.
// Extractor, Transcriber, Questions cache and Publisher are optional.
type SessionDependencies struct {
	Questions   practice.QuestionService
	Submissions practice.SubmissionService
	Extractor   practice.TextExtractor
	Transcriber practice.Transcriber
	Credits     CreditService
	Hub         *credits.Hub
	Estimator   *credits.Estimator
	Cache       *cache.QuestionCache
	Publisher   events.EventPublisher

	// NewDevice builds the microphone of a new session; defaults to a websocket device
	NewDevice func(logger *slog.Logger) MicrophoneDevice
	Now       func() time.Time
}

type sessionEntry struct {
	session  *practice.Session
	device   MicrophoneDevice
	lastSeen time.Time
}

type sessionService struct {
	deps   SessionDependencies
	config SessionServiceConfig
	logger *ServiceLogger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionService(deps SessionDependencies, config SessionServiceConfig, logger *slog.Logger) SessionService {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 30 * time.Minute
	}
	if config.ReapInterval <= 0 {
		config.ReapInterval = time.Minute
	}
	if config.MaxSessionsPerUser <= 0 {
		config.MaxSessionsPerUser = 5
	}
	if config.MaxImageBytes <= 0 {
		config.MaxImageBytes = 8 << 20
	}
	if config.Policy.StreamSubjects == nil && config.Policy.DefaultBoard == "" {
		config.Policy = practice.DefaultPolicy()
	}
	if deps.Hub == nil {
		deps.Hub = credits.NewHub(nil, logger)
	}
	if deps.Estimator == nil {
		deps.Estimator = credits.NewEstimator(credits.DefaultTable)
	}
	if deps.NewDevice == nil {
		deps.NewDevice = func(l *slog.Logger) MicrophoneDevice { return wsdevice.New(l) }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &sessionService{
		deps:     deps,
		config:   config,
		logger:   NewServiceLogger(logger, LogConfig{Service: "practice-service", Component: "sessions"}),
		sessions: make(map[string]*sessionEntry),
	}
}

// ===== LIFECYCLE =====

// Open starts a session. With ResumeSessionID the session keeps that ID and
// restores the last question cached for it, with an empty draft.
func (s *sessionService) Open(ctx context.Context, req *OpenSessionRequest, userID string) (*practice.Snapshot, error) {
	op := s.logger.WithOperation(ctx, "open_session", userID)

	if req.Subject == "" {
		err := ValidationErrors{*NewValidationError("subject", "is required", req.Subject)}
		op.LogResult("", "session", err)
		return nil, err
	}

	id := uuid.NewString()
	if req.ResumeSessionID != "" {
		id = req.ResumeSessionID
		if entry, err := s.lookup(id, userID); err == nil {
			snap := entry.session.Snapshot()
			op.LogResult(id, "session", nil)
			return &snap, nil
		} else if !IsNotFound(err) {
			op.LogResult(id, "session", err)
			return nil, err
		}
	}

	if s.countFor(userID) >= s.config.MaxSessionsPerUser {
		op.LogResult(id, "session", ErrSessionLimitReached)
		return nil, ErrSessionLimitReached
	}

	params := s.paramsFor(req)
	store := s.deps.Hub.Store(ctx, userID)
	s.primeBalance(ctx, userID, store)

	device := s.deps.NewDevice(s.logger.Logger().With("session_id", id))
	session, err := practice.NewSession(id, userID, params, practice.Dependencies{
		Questions:   s.deps.Questions,
		Submissions: s.deps.Submissions,
		Extractor:   s.deps.Extractor,
		Transcriber: s.deps.Transcriber,
		Device:      device,
		Navigator:   s,
		Credits:     store,
		Estimator:   s.deps.Estimator,
		Policy:      s.config.Policy,
		Logger:      s.logger.Logger(),
		Now:         s.deps.Now,
	})
	if err != nil {
		op.LogResult(id, "session", err)
		return nil, err
	}

	if req.ResumeSessionID != "" {
		s.restore(ctx, session)
	}

	s.mu.Lock()
	if _, exists := s.sessions[id]; exists {
		s.mu.Unlock()
		session.Close()
		op.LogResult(id, "session", ErrConflict)
		return nil, ErrConflict
	}
	s.sessions[id] = &sessionEntry{session: session, device: device, lastSeen: s.deps.Now()}
	s.mu.Unlock()

	s.publish(ctx, events.NewSessionStartedEvent(userID, events.SessionStartedEvent{
		SessionID:  id,
		Subject:    params.Subject,
		Topic:      params.Topic,
		Kind:       params.Kind,
		Difficulty: params.Difficulty,
		ResumedID:  req.ResumeSessionID,
	}))

	snap := session.Snapshot()
	op.LogResult(id, "session", nil)
	return &snap, nil
}

func (s *sessionService) paramsFor(req *OpenSessionRequest) practice.Params {
	allowImages := s.config.Policy.AllowImages(req.Subject)
	if req.AllowImages != nil {
		allowImages = *req.AllowImages && allowImages
	}
	return practice.Params{
		Subject:     req.Subject,
		Topic:       req.Topic,
		Difficulty:  req.Difficulty,
		Kind:        req.Kind,
		FormLevel:   req.FormLevel,
		Format:      req.Format,
		Board:       req.Board,
		AllowImages: allowImages,
	}
}

// primeBalance loads the ledger balance when the user's store has none yet.
func (s *sessionService) primeBalance(ctx context.Context, userID string, store *credits.Store) {
	if _, known := store.Balance(); known || s.deps.Credits == nil {
		return
	}
	if _, err := s.deps.Credits.GetBalance(ctx, userID); err != nil {
		s.logger.Logger().Warn("Failed to load credit balance for new session", "user_id", userID, "error", err)
	}
}

func (s *sessionService) restore(ctx context.Context, session *practice.Session) {
	if s.deps.Cache == nil {
		return
	}
	q, err := s.deps.Cache.Get(ctx, session.UserID(), session.ID())
	if err != nil {
		s.logger.Logger().Warn("Failed to read cached question", "session_id", session.ID(), "error", err)
		return
	}
	if q != nil && session.Restore(q) {
		s.logger.Logger().Info("Restored cached question", "session_id", session.ID(), "question_id", q.ID)
	}
}

func (s *sessionService) Close(ctx context.Context, sessionID, userID string) error {
	op := s.logger.WithOperation(ctx, "close_session", userID)

	entry, err := s.lookup(sessionID, userID)
	if err != nil {
		op.LogResult(sessionID, "session", err)
		return err
	}

	s.teardown(ctx, sessionID, entry, closeReasonClosed)
	op.LogResult(sessionID, "session", nil)
	return nil
}

// teardown unregisters the entry and releases its media before detaching the microphone client.
func (s *sessionService) teardown(ctx context.Context, sessionID string, entry *sessionEntry, reason string) {
	s.mu.Lock()
	if current, ok := s.sessions[sessionID]; !ok || current != entry {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	entry.session.Close()
	entry.device.Close()

	s.publish(ctx, events.NewSessionClosedEvent(entry.session.UserID(), sessionID, reason))
}

// ReapIdle closes sessions that have not been used within IdleTTL and are not recording.
func (s *sessionService) ReapIdle(ctx context.Context) int {
	cutoff := s.deps.Now().Add(-s.config.IdleTTL)

	type idle struct {
		id    string
		entry *sessionEntry
	}
	var victims []idle

	s.mu.Lock()
	for id, entry := range s.sessions {
		if entry.lastSeen.Before(cutoff) {
			victims = append(victims, idle{id: id, entry: entry})
		}
	}
	s.mu.Unlock()

	reaped := 0
	for _, v := range victims {
		if v.entry.session.MediaState() != practice.MediaIdle {
			continue
		}
		s.teardown(ctx, v.id, v.entry, closeReasonIdle)
		reaped++
	}

	if reaped > 0 {
		s.logger.Logger().Info("Reaped idle practice sessions", "count", reaped)
	}
	return reaped
}

// Run reaps idle sessions until ctx is done.
func (s *sessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapIdle(ctx)
		}
	}
}

// Shutdown closes every open session.
func (s *sessionService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	entries := make(map[string]*sessionEntry, len(s.sessions))
	for id, entry := range s.sessions {
		entries[id] = entry
	}
	s.mu.Unlock()

	for id, entry := range entries {
		s.teardown(ctx, id, entry, closeReasonShutdown)
	}
	s.logger.Logger().Info("Practice sessions shut down", "count", len(entries))
}

// ===== SESSION OPERATIONS =====

func (s *sessionService) Snapshot(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error) {
	entry, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	snap := entry.session.Snapshot()
	return &snap, nil
}

func (s *sessionService) Next(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error) {
	op := s.logger.WithOperation(ctx, "next_question", userID)

	entry, err := s.lookup(sessionID, userID)
	if err != nil {
		op.LogResult(sessionID, "session", err)
		return nil, err
	}

	session := entry.session
	cost := session.Cost()
	q, err := session.Next(ctx)
	if err != nil {
		op.LogResult(sessionID, "session", err)
		return nil, err
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Put(ctx, userID, sessionID, q); err != nil {
			s.logger.Logger().Warn("Failed to cache session question", "session_id", sessionID, "error", err)
		}
	}
	s.publish(ctx, events.NewQuestionAcquiredEvent(userID, events.QuestionAcquiredEvent{
		SessionID:  sessionID,
		QuestionID: q.ID,
		Subject:    q.Subject,
		Topic:      q.Topic,
		Kind:       q.Kind,
		Difficulty: q.Difficulty,
		Shape:      q.Shape(),
		Cost:       cost,
	}))

	snap := session.Snapshot()
	op.LogResult(q.ID, "question", nil)
	return &snap, nil
}

// SetAnswer applies exactly one of option, text, or label with text.
func (s *sessionService) SetAnswer(ctx context.Context, sessionID, userID string, req *AnswerRequest) (*practice.Snapshot, error) {
	entry, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	session := entry.session

	switch {
	case req.Option != nil && req.Text != nil:
		return nil, ValidationErrors{*NewValidationError("option", "cannot be combined with text", *req.Option)}
	case req.Option != nil:
		err = session.SelectOption(*req.Option)
	case req.Text != nil && req.Label != "":
		err = session.SetPart(req.Label, *req.Text)
	case req.Text != nil:
		err = session.SetText(*req.Text)
	default:
		return nil, ValidationErrors{*NewValidationError("answer", "option or text is required", nil)}
	}
	if err != nil {
		return nil, err
	}

	snap := session.Snapshot()
	return &snap, nil
}

func (s *sessionService) AttachImage(ctx context.Context, sessionID, userID string, img practice.Image) (*practice.Snapshot, error) {
	op := s.logger.WithOperation(ctx, "attach_image", userID)

	entry, err := s.lookup(sessionID, userID)
	if err != nil {
		op.LogResult(sessionID, "session", err)
		return nil, err
	}

	switch {
	case len(img.Data) == 0:
		err = ValidationErrors{*NewValidationError("image", "is empty", nil)}
	case int64(len(img.Data)) > s.config.MaxImageBytes:
		err = ErrImageTooLarge
	default:
		if _, ok := imageExtensions[normalizeMimeType(img.MimeType)]; !ok {
			err = ErrUnsupportedImage
		}
	}
	if err == nil {
		err = entry.session.AttachImage(ctx, img)
	}
	if err != nil {
		op.LogResult(sessionID, "session", err)
		return nil, err
	}

	snap := entry.session.Snapshot()
	op.LogResult(sessionID, "session", nil)
	return &snap, nil
}

func (s *sessionService) StartRecording(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error) {
	entry, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := entry.session.StartRecording(ctx); err != nil {
		return nil, err
	}
	snap := entry.session.Snapshot()
	return &snap, nil
}

// StopRecording returns once the recording has been transcribed into the draft.
func (s *sessionService) StopRecording(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error) {
	entry, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := entry.session.StopRecording(ctx); err != nil {
		return nil, err
	}
	snap := entry.session.Snapshot()
	return &snap, nil
}

func (s *sessionService) Submit(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error) {
	op := s.logger.WithOperation(ctx, "submit_session_answer", userID)

	entry, err := s.lookup(sessionID, userID)
	if err != nil {
		op.LogResult(sessionID, "session", err)
		return nil, err
	}
	if _, err := entry.session.Submit(ctx); err != nil {
		op.LogResult(sessionID, "session", err)
		return nil, err
	}

	snap := entry.session.Snapshot()
	op.LogResult(sessionID, "session", nil)
	return &snap, nil
}

func (s *sessionService) Microphone(ctx context.Context, sessionID, userID string) (MicrophoneDevice, error) {
	entry, err := s.lookup(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if entry.device.Connected() {
		return nil, ErrMicrophoneConnected
	}
	return entry.device, nil
}

// ===== NAVIGATION =====

// RequestCreditPurchase announces that the user has to buy credits to continue.
func (s *sessionService) RequestCreditPurchase(ctx context.Context, handoff practice.CreditHandoff) {
	s.publish(ctx, events.NewCreditPurchaseRequiredEvent(handoff.UserID, events.CreditPurchaseRequiredEvent{
		SessionID: handoff.SessionID,
		Operation: handoff.Operation,
		Required:  handoff.Required,
		Balance:   handoff.Balance,
	}))
}

// ===== HELPERS =====

// lookup finds a session owned by userID and marks it as used.
func (s *sessionService) lookup(sessionID, userID string) (*sessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if entry.session.UserID() != userID {
		return nil, ErrSessionAccessDenied
	}
	entry.lastSeen = s.deps.Now()
	return entry, nil
}

func (s *sessionService) countFor(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, entry := range s.sessions {
		if entry.session.UserID() == userID {
			n++
		}
	}
	return n
}

func (s *sessionService) publish(ctx context.Context, event *events.Event) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.PublishEvent(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Logger().Warn("Failed to publish practice event", "event_type", event.Type, "error", err)
	}
}
