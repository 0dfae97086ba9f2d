package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/practice-service/internal/cache"
	"github.com/SAP-F-2025/practice-service/internal/models"
	"github.com/SAP-F-2025/practice-service/internal/practice"
	"github.com/SAP-F-2025/practice-service/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ===== REPOSITORY MOCKS =====

// MockCreditRepository is a mock implementation of CreditRepository
type MockCreditRepository struct {
	mock.Mock
}

func (m *MockCreditRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, userID string, signupGrant int) (*models.CreditAccount, error) {
	args := m.Called(ctx, tx, userID, signupGrant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreditAccount), args.Error(1)
}

func (m *MockCreditRepository) GetBalance(ctx context.Context, tx *gorm.DB, userID string) (int, error) {
	args := m.Called(ctx, tx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockCreditRepository) Deduct(ctx context.Context, tx *gorm.DB, userID string, cost int, reason models.CreditReason, reference string) (int, error) {
	args := m.Called(ctx, tx, userID, cost, reason, reference)
	return args.Int(0), args.Error(1)
}

func (m *MockCreditRepository) Credit(ctx context.Context, tx *gorm.DB, userID string, amount int, reason models.CreditReason, reference string) (int, error) {
	args := m.Called(ctx, tx, userID, amount, reason, reference)
	return args.Int(0), args.Error(1)
}

func (m *MockCreditRepository) ListTransactions(ctx context.Context, tx *gorm.DB, userID string, filters repositories.TransactionFilters) ([]*models.CreditTransaction, int64, error) {
	args := m.Called(ctx, tx, userID, filters)
	return args.Get(0).([]*models.CreditTransaction), args.Get(1).(int64), args.Error(2)
}

// MockAttemptRepository is a mock implementation of AttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(ctx context.Context, tx *gorm.DB, attempt *models.PracticeAttempt) error {
	args := m.Called(ctx, tx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.PracticeAttempt, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PracticeAttempt), args.Error(1)
}

func (m *MockAttemptRepository) List(ctx context.Context, tx *gorm.DB, userID string, filters repositories.AttemptFilters) ([]*models.PracticeAttempt, int64, error) {
	args := m.Called(ctx, tx, userID, filters)
	return args.Get(0).([]*models.PracticeAttempt), args.Get(1).(int64), args.Error(2)
}

func (m *MockAttemptRepository) GetBySession(ctx context.Context, tx *gorm.DB, sessionID string) ([]*models.PracticeAttempt, error) {
	args := m.Called(ctx, tx, sessionID)
	return args.Get(0).([]*models.PracticeAttempt), args.Error(1)
}

func (m *MockAttemptRepository) StatsBySubject(ctx context.Context, tx *gorm.DB, userID string, filters repositories.AttemptFilters) ([]models.SubjectStats, error) {
	args := m.Called(ctx, tx, userID, filters)
	return args.Get(0).([]models.SubjectStats), args.Error(1)
}

func (m *MockAttemptRepository) Summary(ctx context.Context, tx *gorm.DB, userID string, filters repositories.AttemptFilters) (*repositories.PracticeSummary, error) {
	args := m.Called(ctx, tx, userID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.PracticeSummary), args.Error(1)
}

// mockRepository aggregates the repository mocks
type mockRepository struct {
	credit  *MockCreditRepository
	attempt *MockAttemptRepository
}

func newMockRepository() *mockRepository {
	return &mockRepository{credit: &MockCreditRepository{}, attempt: &MockAttemptRepository{}}
}

func (r *mockRepository) Credit() repositories.CreditRepository   { return r.credit }
func (r *mockRepository) Attempt() repositories.AttemptRepository { return r.attempt }

func (r *mockRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// ===== UPSTREAM MOCKS =====

type MockCreditService struct {
	mock.Mock
}

func (m *MockCreditService) GetBalance(ctx context.Context, userID string) (*CreditBalanceResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CreditBalanceResponse), args.Error(1)
}

func (m *MockCreditService) Charge(ctx context.Context, userID string, cost int, reason models.CreditReason, reference string) (int, error) {
	args := m.Called(ctx, userID, cost, reason, reference)
	return args.Int(0), args.Error(1)
}

func (m *MockCreditService) Refund(ctx context.Context, userID string, amount int, reference string) (int, error) {
	args := m.Called(ctx, userID, amount, reference)
	return args.Int(0), args.Error(1)
}

func (m *MockCreditService) Transactions(ctx context.Context, userID string, filters repositories.TransactionFilters) (*TransactionListResponse, error) {
	args := m.Called(ctx, userID, filters)
	return args.Get(0).(*TransactionListResponse), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) GenerateQuestion(ctx context.Context, req practice.GenerateRequest) (*models.Question, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *MockGenerator) StreamQuestion(ctx context.Context, req practice.StreamRequest) (*models.Question, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

type MockGrader struct {
	mock.Mock
}

func (m *MockGrader) Grade(ctx context.Context, req practice.SubmitRequest) (*models.AnswerResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AnswerResult), args.Error(1)
}

type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	args := m.Called(ctx, key, contentType, body)
	return args.String(0), args.Error(1)
}

// ===== SESSION FAKES =====

// fakeQuestions serves a fixed question and reports a fixed balance.
type fakeQuestions struct {
	mu       sync.Mutex
	question *models.Question
	balance  int
	err      error
	calls    int
}

func (f *fakeQuestions) GenerateStream(ctx context.Context, req practice.StreamRequest) (*practice.Generated, error) {
	return nil, nil
}

func (f *fakeQuestions) Generate(ctx context.Context, req practice.GenerateRequest) (*practice.Generated, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	q := *f.question
	balance := f.balance
	return &practice.Generated{Question: &q, Credits: &balance}, nil
}

type fakeSubmissions struct {
	mu       sync.Mutex
	requests []practice.SubmitRequest
	result   *models.AnswerResult
}

func (f *fakeSubmissions) Submit(ctx context.Context, req practice.SubmitRequest) (*models.AnswerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	res := *f.result
	return &res, nil
}

func (f *fakeSubmissions) UploadImage(ctx context.Context, userID string, img practice.Image) (string, error) {
	return "", nil
}

// fakeDevice is a microphone that never has a client attached.
type fakeDevice struct {
	mu        sync.Mutex
	connected bool
	closed    int
}

func (d *fakeDevice) Acquire(ctx context.Context) (practice.Stream, error) {
	return nil, practice.ErrDeviceUnavailable
}

func (d *fakeDevice) NewRecorder(stream practice.Stream) (practice.Recorder, error) {
	return nil, practice.ErrDeviceUnavailable
}

func (d *fakeDevice) Serve(ctx context.Context, ws *websocket.Conn) error { return nil }

func (d *fakeDevice) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *fakeDevice) Close() {
	d.mu.Lock()
	d.closed++
	d.mu.Unlock()
}

// memoryCache is an in-memory cache.CacheService with the same JSON round trip as redis.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = b
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	b, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) DeletePattern(_ context.Context, pattern string) error {
	return nil
}
