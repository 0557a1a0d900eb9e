package providers

import (
	"context"
	"fmt"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/domain/service"
)

// HTTPShortSqueezeSource scores short-squeeze potential from the signal
// service's short interest data.
type HTTPShortSqueezeSource struct {
	base *HTTPServiceBase
}

func NewHTTPShortSqueezeSource(base *HTTPServiceBase) *HTTPShortSqueezeSource {
	return &HTTPShortSqueezeSource{base: base}
}

func (s *HTTPShortSqueezeSource) Name() string { return models.ComponentShortSqueeze }

type squeezeReq struct {
	Symbol string `json:"symbol"`
}

type squeezeResp struct {
	Score        float64  `json:"score"`
	HasPotential bool     `json:"has_potential"`
	Factors      []string `json:"factors"`
}

func (s *HTTPShortSqueezeSource) Fetch(ctx context.Context, symbol string) (models.Component, error) {
	var sr squeezeResp
	err := s.base.PostJSONCached(ctx, cacheKey("squeeze", symbol), "/short-interest/squeeze", squeezeReq{Symbol: symbol}, &sr)
	if err != nil {
		return models.Component{}, fmt.Errorf("short squeeze fetch: %w", err)
	}

	c := models.Component{
		Name:    models.ComponentShortSqueeze,
		Score:   sr.Score,
		Factors: sr.Factors,
	}
	if sr.HasPotential && len(c.Factors) == 0 {
		c.Factors = append(c.Factors, "squeeze setup")
	}
	return c, nil
}

var _ service.SignalSource = (*HTTPShortSqueezeSource)(nil)
