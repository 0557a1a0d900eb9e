package models

// Aggregate is a per-symbol price/volume summary for one short interval,
// as delivered by the market stream.
type Aggregate struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"t"` // unix seconds
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}
