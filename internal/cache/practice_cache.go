package cache

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/practice-service/internal/models"
)

const balanceTTL = 24 * time.Hour

// CacheManager groups the typed caches built on one CacheService
type CacheManager struct {
	Balances  *BalanceCache
	Questions *QuestionCache
}

func NewCacheManager(svc CacheService, questionTTL time.Duration) *CacheManager {
	return &CacheManager{
		Balances:  &BalanceCache{svc: svc},
		Questions: &QuestionCache{svc: svc, ttl: questionTTL},
	}
}

// BalanceCache keeps the last known credit balance per user.
type BalanceCache struct {
	svc CacheService
}

func balanceKey(userID string) string { return "credits:" + userID }

func (c *BalanceCache) GetBalance(ctx context.Context, userID string) (int, bool, error) {
	var balance int
	if err := c.svc.Get(ctx, balanceKey(userID), &balance); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return balance, true, nil
}

func (c *BalanceCache) SetBalance(ctx context.Context, userID string, balance int) error {
	return c.svc.Set(ctx, balanceKey(userID), balance, balanceTTL)
}

// QuestionCache keeps the current question of a session so a reopened session can resume it.
type QuestionCache struct {
	svc CacheService
	ttl time.Duration
}

type cachedQuestion struct {
	UserID   string           `json:"user_id"`
	Question *models.Question `json:"question"`
}

func questionKey(sessionID string) string { return "session:" + sessionID + ":question" }

func (c *QuestionCache) Put(ctx context.Context, userID, sessionID string, q *models.Question) error {
	return c.svc.Set(ctx, questionKey(sessionID), cachedQuestion{UserID: userID, Question: q}, c.ttl)
}

// Get returns nil without error when nothing is cached or the entry belongs to another user.
func (c *QuestionCache) Get(ctx context.Context, userID, sessionID string) (*models.Question, error) {
	var entry cachedQuestion
	if err := c.svc.Get(ctx, questionKey(sessionID), &entry); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	if entry.UserID != userID {
		return nil, nil
	}
	return entry.Question, nil
}

func (c *QuestionCache) Delete(ctx context.Context, sessionID string) error {
	return c.svc.Delete(ctx, questionKey(sessionID))
}

// PurgeSessions drops every cached session question.
func (c *QuestionCache) PurgeSessions(ctx context.Context) error {
	return c.svc.DeletePattern(ctx, "session:*")
}
