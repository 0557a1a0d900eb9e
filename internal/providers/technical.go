package providers

import (
	"context"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/domain/service"
	"SwingScan/pkg/config"
)

// HTTPTechnicalSource scores the volume/technical component. The volume
// half is computed locally from the pipeline's state (it changes with
// every message and must never be cached); the technical-signal half comes
// from the signal service and is cached.
type HTTPTechnicalSource struct {
	base            *HTTPServiceBase
	spikeMultiplier float64
}

func NewHTTPTechnicalSource(cfg *config.Config, base *HTTPServiceBase) *HTTPTechnicalSource {
	return &HTTPTechnicalSource{base: base, spikeMultiplier: cfg.Detection.VolumeSpikeMultiplier}
}

func (s *HTTPTechnicalSource) Name() string { return models.ComponentVolumeTechnical }

type technicalReq struct {
	Symbol string `json:"symbol"`
}

type technicalResp struct {
	Signals struct {
		BullishCrossover bool `json:"bullish_crossover"`
		MACDBullish      bool `json:"macd_bullish"`
		PriceAboveSMA    bool `json:"price_above_sma"`
		RSIOversold      bool `json:"rsi_oversold"`
	} `json:"signals"`
	Breakout bool `json:"breakout"`
}

// Fetch scores from technical signals alone, with no volume context.
func (s *HTTPTechnicalSource) Fetch(ctx context.Context, symbol string) (models.Component, error) {
	return s.FetchWithContext(ctx, symbol, service.SignalContext{})
}

func (s *HTTPTechnicalSource) FetchWithContext(ctx context.Context, symbol string, sc service.SignalContext) (models.Component, error) {
	c := models.Component{Name: models.ComponentVolumeTechnical}

	if sc.BaselineVolume > 0 {
		c.VolumeMultiplier = sc.CurrentVolume / sc.BaselineVolume
	}
	if c.VolumeMultiplier >= s.spikeMultiplier {
		c.Score += 40
		c.Factors = append(c.Factors, "volume spike")
		// Extra credit as the spike stretches toward double the threshold.
		extra := (c.VolumeMultiplier - s.spikeMultiplier) / s.spikeMultiplier * 20
		if extra > 20 {
			extra = 20
		}
		c.Score += extra
	}
	if c.VolumeMultiplier > 5 {
		c.ExceptionalVolume = true
	}

	var tr technicalResp
	err := s.base.PostJSONCached(ctx, cacheKey("technical", symbol), "/signals/technical", technicalReq{Symbol: symbol}, &tr)
	if err != nil {
		// The volume half stands on its own when the signal service is down.
		if c.Score > 0 {
			c.Factors = append(c.Factors, "technical signals unavailable")
			return c, nil
		}
		return c, err
	}

	if tr.Signals.BullishCrossover {
		c.Score += 15
		c.Factors = append(c.Factors, "bullish crossover")
	}
	if tr.Signals.MACDBullish {
		c.Score += 10
		c.Factors = append(c.Factors, "macd bullish")
	}
	if tr.Signals.PriceAboveSMA {
		c.Score += 10
		c.Factors = append(c.Factors, "price above sma")
	}
	if tr.Signals.RSIOversold {
		c.Score += 5
		c.Factors = append(c.Factors, "rsi oversold")
	}
	if tr.Breakout {
		c.Score += 15
		c.Factors = append(c.Factors, "breakout")
	}

	if c.Score > 100 {
		c.Score = 100
	}
	return c, nil
}

var _ service.VolumeAwareSource = (*HTTPTechnicalSource)(nil)
