package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"

	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/practice"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
	"github.com/SAP-F-2025/practice-service/internal/services"
	"github.com/SAP-F-2025/practice-service/internal/utils"
	"github.com/SAP-F-2025/practice-service/internal/validator"
)

const (
	testToken     = "good-token"
	testUser      = "user-1"
	testSessionID = "5f1c2b9e-7a43-4d2f-9b1e-0c6f3a8d2e71"
)

type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (string, error) {
	if token != testToken {
		return "", errors.New("bad signature")
	}
	return testUser, nil
}

// MockSessionService is a mock implementation of services.SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) snapshot(args mock.Arguments) (*practice.Snapshot, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*practice.Snapshot), args.Error(1)
}

func (m *MockSessionService) Open(ctx context.Context, req *services.OpenSessionRequest, userID string) (*practice.Snapshot, error) {
	return m.snapshot(m.Called(ctx, req, userID))
}

func (m *MockSessionService) Snapshot(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error) {
	return m.snapshot(m.Called(ctx, sessionID, userID))
}

func (m *MockSessionService) Next(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error) {
	return m.snapshot(m.Called(ctx, sessionID, userID))
}

func (m *MockSessionService) SetAnswer(ctx context.Context, sessionID, userID string, req *services.AnswerRequest) (*practice.Snapshot, error) {
	return m.snapshot(m.Called(ctx, sessionID, userID, req))
}

func (m *MockSessionService) AttachImage(ctx context.Context, sessionID, userID string, img practice.Image) (*practice.Snapshot, error) {
	return m.snapshot(m.Called(ctx, sessionID, userID, img))
}

func (m *MockSessionService) StartRecording(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error) {
	return m.snapshot(m.Called(ctx, sessionID, userID))
}

func (m *MockSessionService) StopRecording(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error) {
	return m.snapshot(m.Called(ctx, sessionID, userID))
}

func (m *MockSessionService) Submit(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error) {
	return m.snapshot(m.Called(ctx, sessionID, userID))
}

func (m *MockSessionService) Close(ctx context.Context, sessionID, userID string) error {
	return m.Called(ctx, sessionID, userID).Error(0)
}

func (m *MockSessionService) Microphone(ctx context.Context, sessionID, userID string) (services.MicrophoneDevice, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(services.MicrophoneDevice), args.Error(1)
}

func (m *MockSessionService) ReapIdle(ctx context.Context) int { return 0 }
func (m *MockSessionService) Run(ctx context.Context)          {}
func (m *MockSessionService) Shutdown(ctx context.Context)     {}

// MockCreditService is a mock implementation of services.CreditService
type MockCreditService struct {
	mock.Mock
}

func (m *MockCreditService) GetBalance(ctx context.Context, userID string) (*services.CreditBalanceResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.CreditBalanceResponse), args.Error(1)
}

func (m *MockCreditService) Charge(ctx context.Context, userID string, cost int, reason models.CreditReason, reference string) (int, error) {
	args := m.Called(ctx, userID, cost, reason, reference)
	return args.Int(0), args.Error(1)
}

func (m *MockCreditService) Refund(ctx context.Context, userID string, amount int, reference string) (int, error) {
	args := m.Called(ctx, userID, amount, reference)
	return args.Int(0), args.Error(1)
}

func (m *MockCreditService) Transactions(ctx context.Context, userID string, filters repositories.TransactionFilters) (*services.TransactionListResponse, error) {
	args := m.Called(ctx, userID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TransactionListResponse), args.Error(1)
}

// MockHistoryService is a mock implementation of services.HistoryService
type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) List(ctx context.Context, userID string, filters repositories.AttemptFilters) (*services.AttemptListResponse, error) {
	args := m.Called(ctx, userID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AttemptListResponse), args.Error(1)
}

func (m *MockHistoryService) Stats(ctx context.Context, userID string, filters repositories.AttemptFilters) (*repositories.PracticeSummary, error) {
	args := m.Called(ctx, userID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.PracticeSummary), args.Error(1)
}

func (m *MockHistoryService) Export(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]byte, error) {
	args := m.Called(ctx, userID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type stubServiceManager struct {
	sessions *MockSessionService
	credits  *MockCreditService
	history  *MockHistoryService
}

func (s *stubServiceManager) Credit() services.CreditService           { return s.credits }
func (s *stubServiceManager) Session() services.SessionService         { return s.sessions }
func (s *stubServiceManager) History() services.HistoryService         { return s.history }
func (s *stubServiceManager) Questions() practice.QuestionService      { return nil }
func (s *stubServiceManager) Submissions() practice.SubmissionService { return nil }

// echoDevice is a microphone that records the attached connection and echoes one message.
type echoDevice struct {
	mu     sync.Mutex
	served int
}

func (d *echoDevice) Acquire(ctx context.Context) (practice.Stream, error) {
	return nil, practice.ErrDeviceUnavailable
}

func (d *echoDevice) NewRecorder(stream practice.Stream) (practice.Recorder, error) {
	return nil, practice.ErrDeviceUnavailable
}

func (d *echoDevice) Serve(ctx context.Context, ws *websocket.Conn) error {
	d.mu.Lock()
	d.served++
	d.mu.Unlock()
	defer ws.Close()

	msgType, data, err := ws.ReadMessage()
	if err != nil {
		return err
	}
	return ws.WriteMessage(msgType, data)
}

func (d *echoDevice) Connected() bool { return false }
func (d *echoDevice) Close()          {}

type testServer struct {
	router   *gin.Engine
	sessions *MockSessionService
	credits  *MockCreditService
	history  *MockHistoryService
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)

	sm := &stubServiceManager{
		sessions: &MockSessionService{},
		credits:  &MockCreditService{},
		history:  &MockHistoryService{},
	}
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hm := NewHandlerManager(sm, validator.New(), fakeVerifier{}, logger, HandlerConfig{
		PurchaseURL:   "/credits/purchase",
		MaxImageBytes: 1 << 10,
		CORSOrigins:   []string{"http://localhost:3000"},
	})

	router := gin.New()
	hm.SetupRoutes(router)

	return &testServer{router: router, sessions: sm.sessions, credits: sm.credits, history: sm.history}
}
