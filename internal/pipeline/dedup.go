package pipeline

import (
	"sync"
	"time"
)

// Override modes for repeat alerts inside the deduplication window.
const (
	OverrideNever       = "never"
	OverrideScoreMargin = "score-margin"
)

type lastAlert struct {
	at    time.Time
	score float64
}

// Deduplicator suppresses repeat alerts for the same symbol inside a
// sliding window. In score-margin mode a repeat is let through when its
// total score beats the previous alert's score by more than the margin;
// the window then restarts from the new alert.
type Deduplicator struct {
	mu     sync.Mutex
	last   map[string]lastAlert
	window time.Duration
	mode   string
	margin float64
}

func NewDeduplicator(window time.Duration, mode string, margin float64) *Deduplicator {
	return &Deduplicator{
		last:   make(map[string]lastAlert),
		window: window,
		mode:   mode,
		margin: margin,
	}
}

// Admit reports whether an alert for symbol with the given score may be
// published at now, recording it as the window anchor when admitted.
func (d *Deduplicator) Admit(symbol string, score float64, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.last[symbol]
	if ok && now.Sub(prev.at) < d.window {
		if d.mode != OverrideScoreMargin || score <= prev.score+d.margin {
			return false
		}
	}
	d.last[symbol] = lastAlert{at: now, score: score}
	return true
}

// Prune drops anchors older than the window so the map tracks only
// symbols that can still suppress something.
func (d *Deduplicator) Prune(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for sym, prev := range d.last {
		if now.Sub(prev.at) >= d.window {
			delete(d.last, sym)
			removed++
		}
	}
	return removed
}

func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.last)
}
