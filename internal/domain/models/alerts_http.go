package models

// Requests for alert HTTP endpoints. Defined in domain for consistency and reuse.

type ScoreRequest struct {
	Symbol string  `query:"symbol" json:"symbol" validate:"required"`
	Volume float64 `query:"volume" json:"volume" validate:"gte=0"`
}

type CheckRequest struct {
	Symbol string  `query:"symbol" json:"symbol" validate:"required"`
	Volume float64 `query:"volume" json:"volume" validate:"gte=0"`
}

type RecentAlertsRequest struct {
	Limit int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
	Since string `query:"since" json:"since"` // RFC3339 or unix seconds; empty means no lower bound
}
