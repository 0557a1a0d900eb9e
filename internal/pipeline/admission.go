package pipeline

import (
	"time"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/state"
)

// AdmissionFilter is the load-shedding layer in front of the signal
// aggregator: a cheap O(1) check executed on every inbound message.
type AdmissionFilter struct {
	store     *state.Store
	minVolume float64
	cooldown  time.Duration
}

func NewAdmissionFilter(store *state.Store, minVolume float64, cooldown time.Duration) *AdmissionFilter {
	return &AdmissionFilter{store: store, minVolume: minVolume, cooldown: cooldown}
}

// ShouldEvaluate reports whether msg earns a full evaluation. On admission
// the cooldown stamp is set before scoring starts, so overlapping messages
// for the same symbol cannot both pass within one cooldown window.
func (f *AdmissionFilter) ShouldEvaluate(msg *models.Aggregate, now time.Time) bool {
	if msg.Volume < f.minVolume {
		return false
	}
	return f.store.TryAdmit(msg.Symbol, now, f.cooldown, false)
}

// AdmitBypassingCooldown stamps an evaluation for the operator-triggered
// path, which skips the cooldown check but still records the evaluation.
func (f *AdmissionFilter) AdmitBypassingCooldown(symbol string, now time.Time) {
	f.store.TryAdmit(symbol, now, f.cooldown, true)
}
