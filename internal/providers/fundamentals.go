package providers

import (
	"context"
	"fmt"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/domain/service"
)

// HTTPFundamentalSource scores balance-sheet quality and carries the
// financial-stability filter result from the signal service.
type HTTPFundamentalSource struct {
	base *HTTPServiceBase
}

func NewHTTPFundamentalSource(base *HTTPServiceBase) *HTTPFundamentalSource {
	return &HTTPFundamentalSource{base: base}
}

func (s *HTTPFundamentalSource) Name() string { return models.ComponentFundamental }

type fundamentalReq struct {
	Symbol string `json:"symbol"`
}

type fundamentalResp struct {
	Score         float64  `json:"score"`
	PassesFilters bool     `json:"passes_filters"`
	Factors       []string `json:"factors"`
}

func (s *HTTPFundamentalSource) Fetch(ctx context.Context, symbol string) (models.Component, error) {
	var fr fundamentalResp
	err := s.base.PostJSONCached(ctx, cacheKey("fundamental", symbol), "/fundamentals/analyze", fundamentalReq{Symbol: symbol}, &fr)
	if err != nil {
		return models.Component{}, fmt.Errorf("fundamental fetch: %w", err)
	}

	return models.Component{
		Name:          models.ComponentFundamental,
		Score:         fr.Score,
		PassesFilters: fr.PassesFilters,
		Factors:       fr.Factors,
	}, nil
}

var _ service.SignalSource = (*HTTPFundamentalSource)(nil)
