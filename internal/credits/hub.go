package credits

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BalanceCache persists the last known balance per user.
type BalanceCache interface {
	GetBalance(ctx context.Context, userID string) (int, bool, error)
	SetBalance(ctx context.Context, userID string, balance int) error
}

// Hub hands out one Store per user so that every session and sibling
// feature of that user shares the same balance.
type Hub struct {
	mu     sync.Mutex
	stores map[string]*Store
	cache  BalanceCache
	logger *slog.Logger
}

func NewHub(cache BalanceCache, logger *slog.Logger) *Hub {
	return &Hub{
		stores: make(map[string]*Store),
		cache:  cache,
		logger: logger,
	}
}

// Store returns the user's store, warming it from the cache on first use.
func (h *Hub) Store(ctx context.Context, userID string) *Store {
	h.mu.Lock()
	store, ok := h.stores[userID]
	if !ok {
		store = NewStore()
		h.stores[userID] = store
	}
	h.mu.Unlock()

	if ok || h.cache == nil {
		return store
	}

	if balance, found, err := h.cache.GetBalance(ctx, userID); err != nil {
		h.logger.Warn("Failed to warm credit balance from cache", "user_id", userID, "error", err)
	} else if found {
		store.Apply(Update{Balance: balance, Source: SourceCache})
	}

	w := &balanceWriter{hub: h, userID: userID, store: store}
	store.Subscribe(func(u Update) {
		if u.Source == SourceCache {
			return
		}
		w.mark()
	})

	return store
}

// balanceWriter persists one user's balance from a single goroutine at a
// time, always writing the store's current value so the cache ends on the
// latest balance.
type balanceWriter struct {
	hub    *Hub
	userID string
	store  *Store

	mu      sync.Mutex
	dirty   bool
	running bool
}

func (w *balanceWriter) mark() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dirty = true
	if !w.running {
		w.running = true
		go w.drain()
	}
}

func (w *balanceWriter) drain() {
	for {
		w.mu.Lock()
		if !w.dirty {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.dirty = false
		w.mu.Unlock()

		balance, _ := w.store.Balance()
		w.hub.persist(w.userID, balance)
	}
}

func (h *Hub) persist(userID string, balance int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.cache.SetBalance(ctx, userID, balance); err != nil {
		h.logger.Warn("Failed to cache credit balance", "user_id", userID, "error", err)
	}
}
