package providers

import (
	"context"
	"fmt"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/domain/service"
)

// HTTPCatalystSource scores news catalysts from the signal service.
// Strongest-catalyst selection and the sentiment flag are derived locally
// from the catalyst list.
type HTTPCatalystSource struct {
	base *HTTPServiceBase
}

func NewHTTPCatalystSource(base *HTTPServiceBase) *HTTPCatalystSource {
	return &HTTPCatalystSource{base: base}
}

func (s *HTTPCatalystSource) Name() string { return models.ComponentCatalyst }

type catalystReq struct {
	Symbol string `json:"symbol"`
	Hours  int    `json:"hours"`
}

type catalystItem struct {
	Type      string  `json:"type"`
	Sentiment float64 `json:"sentiment"`
	Headline  string  `json:"headline"`
}

type catalystResp struct {
	Score     float64        `json:"score"`
	Catalysts []catalystItem `json:"catalysts"`
}

// Ranking used to pick the strongest catalyst out of concurrent ones.
var catalystRank = map[string]int{
	models.CatalystBiotechPhase3: 6,
	models.CatalystBuyoutMerger:  5,
	models.CatalystPartnership:   4,
	models.CatalystContractAward: 3,
	models.CatalystEarnings:      2,
	models.CatalystOther:         1,
}

func (s *HTTPCatalystSource) Fetch(ctx context.Context, symbol string) (models.Component, error) {
	var cr catalystResp
	err := s.base.PostJSONCached(ctx, cacheKey("catalyst", symbol), "/news/catalysts", catalystReq{Symbol: symbol, Hours: 24}, &cr)
	if err != nil {
		return models.Component{}, fmt.Errorf("catalyst fetch: %w", err)
	}

	c := models.Component{
		Name:          models.ComponentCatalyst,
		Score:         cr.Score,
		CatalystCount: len(cr.Catalysts),
	}

	var sentimentSum float64
	best := -1
	for _, item := range cr.Catalysts {
		sentimentSum += item.Sentiment
		if r := catalystRank[item.Type]; r > best {
			best = r
			c.CatalystType = item.Type
		}
		c.Factors = append(c.Factors, item.Type)
	}
	if n := len(cr.Catalysts); n > 0 && sentimentSum/float64(n) > 0.7 {
		c.StrongSentiment = true
	}

	return c, nil
}

var _ service.SignalSource = (*HTTPCatalystSource)(nil)
