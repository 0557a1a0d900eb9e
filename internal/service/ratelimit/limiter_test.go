package ratelimit

import (
	"testing"
	"time"
)

func TestAllowBurstThenExhaust(t *testing.T) {
	l := New()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		if !l.AllowAt("NVAX", 3, 3.0/3600, now) {
			t.Fatalf("attempt %d inside burst denied", i)
		}
	}
	if l.AllowAt("NVAX", 3, 3.0/3600, now) {
		t.Fatal("allowed past capacity")
	}
}

func TestRefillGrantsOneMore(t *testing.T) {
	l := New()
	now := time.Unix(1_700_000_000, 0)
	for i := 0; i < 3; i++ {
		l.AllowAt("AAPL", 3, 3.0/3600, now)
	}

	// One token refills after a third of an hour at 3/hour.
	if l.AllowAt("AAPL", 3, 3.0/3600, now.Add(10*time.Minute)) {
		t.Fatal("refilled too early")
	}
	if !l.AllowAt("AAPL", 3, 3.0/3600, now.Add(21*time.Minute)) {
		t.Fatal("expected one token after refill interval")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	now := time.Unix(1_700_000_000, 0)

	if !l.AllowAt("AAPL", 1, 0, now) {
		t.Fatal("first AAPL denied")
	}
	if l.AllowAt("AAPL", 1, 0, now) {
		t.Fatal("second AAPL allowed")
	}
	if !l.AllowAt("TSLA", 1, 0, now) {
		t.Fatal("TSLA should have its own bucket")
	}
}
