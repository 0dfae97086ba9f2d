package credits

import (
	"sync"
	"time"
)

type UpdateSource string

const (
	SourceAcquisition UpdateSource = "acquisition"
	SourceSubmission  UpdateSource = "submission"
	SourceLedger      UpdateSource = "ledger"
	SourceCache       UpdateSource = "cache"
)

// Update is a server-reported balance. It replaces the stored value.
type Update struct {
	Balance   int          `json:"balance"`
	Source    UpdateSource `json:"source"`
	AppliedAt time.Time    `json:"applied_at"`
}

// Store is the shared credit balance cell of one user.
// Writers call Apply with authoritative values; last writer wins.
type Store struct {
	mu      sync.RWMutex
	balance int
	known   bool
	last    Update

	subMu  sync.Mutex
	subs   map[int]func(Update)
	nextID int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(Update))}
}

// Balance returns the cached balance and whether any value has been applied yet.
func (s *Store) Balance() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance, s.known
}

// Sufficient reports whether cost is affordable. An unknown balance is not
// treated as insufficient; the server has the final word.
func (s *Store) Sufficient(cost int) bool {
	balance, known := s.Balance()
	return !known || balance >= cost
}

func (s *Store) Apply(u Update) {
	if u.Balance < 0 {
		u.Balance = 0
	}
	if u.AppliedAt.IsZero() {
		u.AppliedAt = time.Now()
	}

	s.mu.Lock()
	s.balance = u.Balance
	s.known = true
	s.last = u
	s.mu.Unlock()

	s.subMu.Lock()
	subs := make([]func(Update), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(u)
	}
}

func (s *Store) LastUpdate() (Update, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.known
}

// Subscribe registers fn for every applied update and returns its cancel func.
func (s *Store) Subscribe(fn func(Update)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}
