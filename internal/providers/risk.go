package providers

import (
	"context"
	"fmt"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/domain/service"
)

// HTTPRiskChecker evaluates dilution and reverse-split risk. The composite
// risk score is folded locally so the veto threshold stays in one place.
type HTTPRiskChecker struct {
	base *HTTPServiceBase
}

func NewHTTPRiskChecker(base *HTTPServiceBase) *HTTPRiskChecker {
	return &HTTPRiskChecker{base: base}
}

type riskReq struct {
	Symbol string `json:"symbol"`
}

type riskResp struct {
	HasRecentDilution bool     `json:"has_recent_dilution"`
	DilutionScore     float64  `json:"dilution_score"`
	HasReverseSplit   bool     `json:"has_reverse_split"`
	Factors           []string `json:"factors"`
}

func (s *HTTPRiskChecker) Check(ctx context.Context, symbol string) (models.RiskAssessment, error) {
	var rr riskResp
	err := s.base.PostJSONCached(ctx, cacheKey("risk", symbol), "/fundamentals/dilution", riskReq{Symbol: symbol}, &rr)
	if err != nil {
		return models.RiskAssessment{}, fmt.Errorf("risk check: %w", err)
	}

	r := models.RiskAssessment{
		Symbol:            symbol,
		HasRecentDilution: rr.HasRecentDilution,
		HasReverseSplit:   rr.HasReverseSplit,
		RiskFactors:       rr.Factors,
	}
	if rr.HasRecentDilution {
		r.RiskScore += 0.5
	}
	if rr.DilutionScore > 0.3 {
		r.RiskScore += 0.3
	}
	if rr.HasReverseSplit {
		r.RiskScore += 0.4
	}
	r.HasDilutionRisk = r.RiskScore > 0.3
	return r, nil
}

var _ service.RiskChecker = (*HTTPRiskChecker)(nil)
