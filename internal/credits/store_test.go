package credits

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ApplyOverwrites(t *testing.T) {
	s := NewStore()

	_, known := s.Balance()
	assert.False(t, known)
	assert.True(t, s.Sufficient(100), "unknown balance must not block")

	s.Apply(Update{Balance: 10, Source: SourceAcquisition})
	s.Apply(Update{Balance: 3, Source: SourceSubmission})

	balance, known := s.Balance()
	assert.True(t, known)
	assert.Equal(t, 3, balance)
	assert.True(t, s.Sufficient(3))
	assert.False(t, s.Sufficient(4))

	last, _ := s.LastUpdate()
	assert.Equal(t, SourceSubmission, last.Source)
	assert.False(t, last.AppliedAt.IsZero())
}

func TestStore_ClampsNegative(t *testing.T) {
	s := NewStore()
	s.Apply(Update{Balance: -4})
	balance, _ := s.Balance()
	assert.Equal(t, 0, balance)
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()

	var got []int
	cancel := s.Subscribe(func(u Update) { got = append(got, u.Balance) })

	s.Apply(Update{Balance: 5})
	s.Apply(Update{Balance: 4})
	cancel()
	cancel()
	s.Apply(Update{Balance: 1})

	assert.Equal(t, []int{5, 4}, got)
}

type fakeBalanceCache struct {
	mu      sync.Mutex
	values  map[string]int
	getErr  error
	setCall chan int
	// gate, when set, holds every write until it is closed
	gate chan struct{}

	active, maxActive int
}

func newFakeBalanceCache() *fakeBalanceCache {
	return &fakeBalanceCache{values: map[string]int{}, setCall: make(chan int, 8)}
}

func (f *fakeBalanceCache) GetBalance(ctx context.Context, userID string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, false, f.getErr
	}
	v, ok := f.values[userID]
	return v, ok, nil
}

func (f *fakeBalanceCache) SetBalance(ctx context.Context, userID string, balance int) error {
	f.mu.Lock()
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.values[userID] = balance
	f.active--
	f.mu.Unlock()

	select {
	case f.setCall <- balance:
	default:
	}
	return nil
}

func (f *fakeBalanceCache) value(userID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[userID]
	return v, ok
}

func TestHub_SharesStorePerUser(t *testing.T) {
	cache := newFakeBalanceCache()
	cache.values["alice"] = 7
	hub := NewHub(cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	a1 := hub.Store(context.Background(), "alice")
	a2 := hub.Store(context.Background(), "alice")
	b := hub.Store(context.Background(), "bob")

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)

	balance, known := a1.Balance()
	assert.True(t, known)
	assert.Equal(t, 7, balance)

	_, known = b.Balance()
	assert.False(t, known)

	a2.Apply(Update{Balance: 2, Source: SourceSubmission})
	select {
	case v := <-cache.setCall:
		assert.Equal(t, 2, v)
	case <-time.After(time.Second):
		t.Fatal("balance was not written through to the cache")
	}
}

func TestHub_CacheEndsOnLatestBalance(t *testing.T) {
	cache := newFakeBalanceCache()
	cache.gate = make(chan struct{})
	hub := NewHub(cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	store := hub.Store(context.Background(), "dave")
	store.Apply(Update{Balance: 9, Source: SourceAcquisition})

	// the first write is held while newer balances arrive
	require.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		return cache.active == 1
	}, time.Second, 5*time.Millisecond)

	for b := 8; b >= 1; b-- {
		store.Apply(Update{Balance: b, Source: SourceSubmission})
	}
	close(cache.gate)

	require.Eventually(t, func() bool {
		v, ok := cache.value("dave")
		return ok && v == 1
	}, time.Second, 5*time.Millisecond)

	cache.mu.Lock()
	assert.Equal(t, 1, cache.maxActive, "writes for one user must not overlap")
	cache.mu.Unlock()
}

func TestHub_CacheFailureLeavesBalanceUnknown(t *testing.T) {
	cache := newFakeBalanceCache()
	cache.getErr = errors.New("redis down")
	hub := NewHub(cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, known := hub.Store(context.Background(), "carol").Balance()
	assert.False(t, known)
}
