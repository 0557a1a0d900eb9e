package state

import (
	"context"
	"sync"
	"time"
)

// SymbolState is the rolling per-symbol baseline. Entries are created on
// first sighting and evicted after the inactivity horizon.
type SymbolState struct {
	Symbol           string
	RollingAvgVolume float64
	LastVolume       float64
	LastPrice        float64
	LastUpdate       time.Time
	LastFullEval     time.Time
}

// UpdateResult classifies what UpdateOnMessage did with a message.
type UpdateResult int

const (
	Updated UpdateResult = iota
	// Noop: timestamp regressed within tolerance (duplicate across a
	// reconnect boundary); state untouched, message still usable.
	Noop
	// Dropped: timestamp regressed beyond tolerance; message discarded.
	Dropped
)

// Store holds bounded keyed symbol state. Field mutation goes through the
// store so the cooldown stamp stays monotonic even when the manual check
// path runs concurrently with the symbol's pipeline shard.
type Store struct {
	mu        sync.RWMutex
	m         map[string]*SymbolState
	smoothing float64
	horizon   time.Duration
	tolerance time.Duration
}

// NewStore creates a symbol state store. smoothing is the EMA factor in
// (0, 1]; horizon bounds memory by evicting symbols idle longer than it.
func NewStore(smoothing float64, horizon, tolerance time.Duration) *Store {
	if smoothing <= 0 || smoothing > 1 {
		smoothing = 0.1
	}
	return &Store{
		m:         make(map[string]*SymbolState),
		smoothing: smoothing,
		horizon:   horizon,
		tolerance: tolerance,
	}
}

// GetOrCreate returns a copy of the state for symbol, creating it if absent.
func (s *Store) GetOrCreate(symbol string) SymbolState {
	s.mu.Lock()
	st := s.getOrCreateLocked(symbol)
	cp := *st
	s.mu.Unlock()
	return cp
}

func (s *Store) getOrCreateLocked(symbol string) *SymbolState {
	st, ok := s.m[symbol]
	if !ok {
		st = &SymbolState{Symbol: symbol}
		s.m[symbol] = st
	}
	return st
}

// UpdateOnMessage folds an aggregate into the rolling baseline and returns
// the post-update state. Timestamp regressions within the tolerance are
// no-ops; regressions beyond it drop the message entirely.
func (s *Store) UpdateOnMessage(symbol string, volume, price float64, ts time.Time) (SymbolState, UpdateResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(symbol)
	if !st.LastUpdate.IsZero() && ts.Before(st.LastUpdate) {
		if st.LastUpdate.Sub(ts) > s.tolerance {
			return *st, Dropped
		}
		return *st, Noop
	}

	if st.RollingAvgVolume == 0 {
		st.RollingAvgVolume = volume
	} else {
		st.RollingAvgVolume = s.smoothing*volume + (1-s.smoothing)*st.RollingAvgVolume
	}
	st.LastVolume = volume
	st.LastPrice = price
	st.LastUpdate = ts
	return *st, Updated
}

// TryAdmit atomically checks the per-symbol cooldown and, if it has
// elapsed (or bypass is set), stamps LastFullEval with now. The
// check-and-set under one lock is what makes admission single-flight per
// cooldown window. LastFullEval never moves backwards.
func (s *Store) TryAdmit(symbol string, now time.Time, cooldown time.Duration, bypass bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(symbol)
	if !bypass && !st.LastFullEval.IsZero() && now.Sub(st.LastFullEval) < cooldown {
		return false
	}
	if now.After(st.LastFullEval) {
		st.LastFullEval = now
	}
	return true
}

// Len reports the number of tracked symbols.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Sweep evicts symbols idle past the horizon and returns how many went.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for sym, st := range s.m {
		if !st.LastUpdate.IsZero() && now.Sub(st.LastUpdate) > s.horizon {
			delete(s.m, sym)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs a periodic eviction sweep until ctx is cancelled.
// onSweep, if non-nil, receives (evicted, remaining) after each pass.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration, onSweep func(evicted, remaining int)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n := s.Sweep(now)
				if onSweep != nil {
					onSweep(n, s.Len())
				}
			}
		}
	}()
}
