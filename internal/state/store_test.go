package state

import (
	"testing"
	"time"
)

func TestUpdateOnMessageSeedsBaseline(t *testing.T) {
	s := NewStore(0.1, 6*time.Hour, 2*time.Second)

	st, res := s.UpdateOnMessage("AAPL", 1000, 5.0, time.Now())
	if res != Updated {
		t.Fatalf("expected Updated, got %v", res)
	}
	if st.RollingAvgVolume != 1000 {
		t.Fatalf("first volume should seed the baseline, got %v", st.RollingAvgVolume)
	}
}

func TestUpdateOnMessageEMA(t *testing.T) {
	s := NewStore(0.1, 6*time.Hour, 2*time.Second)
	now := time.Now()

	s.UpdateOnMessage("AAPL", 1000, 5.0, now)
	st, _ := s.UpdateOnMessage("AAPL", 2000, 5.1, now.Add(time.Minute))

	want := 0.1*2000 + 0.9*1000
	if st.RollingAvgVolume != want {
		t.Fatalf("ema: want %v, got %v", want, st.RollingAvgVolume)
	}
	if st.LastVolume != 2000 || st.LastPrice != 5.1 {
		t.Fatalf("last volume/price not updated: %+v", st)
	}
}

func TestUpdateOnMessageRegression(t *testing.T) {
	s := NewStore(0.1, 6*time.Hour, 2*time.Second)
	now := time.Now()

	s.UpdateOnMessage("AAPL", 1000, 5.0, now)

	// Within tolerance: state untouched, message coalesced.
	st, res := s.UpdateOnMessage("AAPL", 9999, 9.9, now.Add(-time.Second))
	if res != Noop {
		t.Fatalf("expected Noop within tolerance, got %v", res)
	}
	if st.LastVolume != 1000 {
		t.Fatalf("noop must not mutate state: %+v", st)
	}

	// Beyond tolerance: dropped.
	_, res = s.UpdateOnMessage("AAPL", 9999, 9.9, now.Add(-time.Minute))
	if res != Dropped {
		t.Fatalf("expected Dropped beyond tolerance, got %v", res)
	}
	got := s.GetOrCreate("AAPL")
	if got.LastVolume != 1000 || got.LastPrice != 5.0 {
		t.Fatalf("dropped message mutated state: %+v", got)
	}
}

func TestTryAdmitCooldown(t *testing.T) {
	s := NewStore(0.1, 6*time.Hour, 2*time.Second)
	now := time.Now()
	cooldown := 5 * time.Minute

	if !s.TryAdmit("AAPL", now, cooldown, false) {
		t.Fatalf("first admit should pass")
	}
	if s.TryAdmit("AAPL", now.Add(time.Minute), cooldown, false) {
		t.Fatalf("admit inside cooldown should fail")
	}
	if !s.TryAdmit("AAPL", now.Add(cooldown), cooldown, false) {
		t.Fatalf("admit after cooldown should pass")
	}
}

func TestTryAdmitBypass(t *testing.T) {
	s := NewStore(0.1, 6*time.Hour, 2*time.Second)
	now := time.Now()
	cooldown := 5 * time.Minute

	s.TryAdmit("AAPL", now, cooldown, false)
	if !s.TryAdmit("AAPL", now.Add(time.Second), cooldown, true) {
		t.Fatalf("bypass should ignore cooldown")
	}
	// The bypass still stamps the evaluation.
	if s.TryAdmit("AAPL", now.Add(2*time.Second), cooldown, false) {
		t.Fatalf("bypass must restart the cooldown window")
	}
}

func TestTryAdmitSingleFlight(t *testing.T) {
	s := NewStore(0.1, 6*time.Hour, 2*time.Second)
	now := time.Now()

	admitted := 0
	for i := 0; i < 10; i++ {
		if s.TryAdmit("AAPL", now, 5*time.Minute, false) {
			admitted++
		}
	}
	if admitted != 1 {
		t.Fatalf("exactly one admit expected for the same instant, got %d", admitted)
	}
}

func TestSweepEvictsIdleSymbols(t *testing.T) {
	s := NewStore(0.1, time.Hour, 2*time.Second)
	now := time.Now()

	s.UpdateOnMessage("OLD", 100, 1.0, now.Add(-2*time.Hour))
	s.UpdateOnMessage("HOT", 100, 1.0, now)

	evicted := s.Sweep(now)
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 tracked symbol, got %d", s.Len())
	}

	// Re-appearing symbol starts from a fresh baseline.
	st, _ := s.UpdateOnMessage("OLD", 500, 2.0, now)
	if st.RollingAvgVolume != 500 {
		t.Fatalf("evicted symbol should reseed baseline, got %v", st.RollingAvgVolume)
	}
}
