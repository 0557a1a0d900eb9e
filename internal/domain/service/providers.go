package service

import (
	"context"

	"SwingScan/internal/domain/models"
)

// SignalSource is the uniform capability behind each of the four score
// components. Implementations normalize their score to [0, 100]; failures
// are reported as errors and never block the other components.
type SignalSource interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (models.Component, error)
}

// SignalContext carries pipeline-side inputs some providers need (current
// volume and the rolling baseline from the symbol state).
type SignalContext struct {
	CurrentVolume  float64
	BaselineVolume float64
	LastPrice      float64
}

// VolumeAwareSource is implemented by sources that use the live volume
// context in addition to the symbol (the volume/technical provider).
type VolumeAwareSource interface {
	SignalSource
	FetchWithContext(ctx context.Context, symbol string, sc SignalContext) (models.Component, error)
}

// RiskChecker evaluates the dilution / reverse-split critical filter.
type RiskChecker interface {
	Check(ctx context.Context, symbol string) (models.RiskAssessment, error)
}
