package models

import "time"

// Component names used across providers, scoring, and metrics.
const (
	ComponentVolumeTechnical = "volume_technical"
	ComponentCatalyst        = "catalyst"
	ComponentShortSqueeze    = "short_squeeze"
	ComponentFundamental     = "fundamental"
)

// Catalyst types recognized by the news classifier.
const (
	CatalystBiotechPhase3 = "biotech_phase3"
	CatalystPartnership   = "partnership"
	CatalystBuyoutMerger  = "buyout_merger"
	CatalystEarnings      = "earnings"
	CatalystContractAward = "contract_award"
	CatalystOther         = "other"
)

// Component is one signal source's contribution, pre-normalized to [0, 100].
type Component struct {
	Name    string   `json:"name"`
	Score   float64  `json:"score"`
	Factors []string `json:"factors,omitempty"`

	// Volume/technical extras.
	VolumeMultiplier  float64 `json:"volume_multiplier,omitempty"`
	ExceptionalVolume bool    `json:"exceptional_volume,omitempty"`

	// Catalyst extras.
	CatalystType    string `json:"catalyst_type,omitempty"`
	CatalystCount   int    `json:"catalyst_count,omitempty"`
	StrongSentiment bool   `json:"strong_sentiment,omitempty"`

	// Fundamental extras.
	PassesFilters bool `json:"passes_filters,omitempty"`

	// Failed is set when the provider errored or timed out; the component
	// then contributes zero without blocking the evaluation.
	Failed bool `json:"failed,omitempty"`
}

// RiskAssessment is the output of the dilution / reverse-split checker.
type RiskAssessment struct {
	Symbol           string   `json:"symbol"`
	HasDilutionRisk  bool     `json:"has_dilution_risk"`
	HasRecentDilution bool    `json:"has_recent_dilution"`
	HasReverseSplit  bool     `json:"has_reverse_split"`
	RiskScore        float64  `json:"risk_score"`
	RiskFactors      []string `json:"risk_factors,omitempty"`
	Failed           bool     `json:"failed,omitempty"`
}

// CriticalFilters are boolean gates that veto an alert independent of score.
type CriticalFilters struct {
	FinancialStability bool `json:"financial_stability"`
	NoDilutionRisk     bool `json:"no_dilution_risk"`
}

// Pass reports whether every gate passed.
func (f CriticalFilters) Pass() bool {
	return f.FinancialStability && f.NoDilutionRisk
}

// ScoreBreakdown is the full result of one evaluation. It is ephemeral:
// consumed by the threshold/dedup logic and either discarded or promoted
// into an Alert.
type ScoreBreakdown struct {
	Symbol          string          `json:"symbol"`
	VolumeTechnical Component       `json:"volume_technical"`
	Catalyst        Component       `json:"catalyst"`
	ShortSqueeze    Component       `json:"short_squeeze"`
	Fundamental     Component       `json:"fundamental"`
	Risk            RiskAssessment  `json:"risk"`
	Filters         CriticalFilters `json:"critical_filters"`

	TotalScore float64  `json:"total_score"` // weighted, penalized, clamped [0, 100]
	Penalties  float64  `json:"penalties"`
	Bonuses    float64  `json:"bonuses"`
	Reasons    []string `json:"reasons,omitempty"` // bonus/penalty annotations
	Qualifies  bool     `json:"qualifies"`

	EvaluatedAt time.Time `json:"evaluated_at"`
}
