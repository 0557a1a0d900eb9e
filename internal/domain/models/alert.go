package models

import (
	"fmt"
	"strings"
	"time"
)

// Alert is an admitted, broadcast-worthy evaluation. It lives in the
// deduplication window and the hub's replay buffer until evicted.
type Alert struct {
	ID           string         `json:"id"`
	Symbol       string         `json:"symbol"`
	TotalScore   float64        `json:"total_score"`
	CatalystType string         `json:"catalyst_type"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	Message      string         `json:"message"`
	CreatedAt    time.Time      `json:"created_at"`
}

// FormatAlertMessage renders the human-readable summary attached to an alert.
func FormatAlertMessage(b ScoreBreakdown) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Swing Play Alert: %s\n", b.Symbol)
	fmt.Fprintf(&sb, "Score: %.1f/100\n\n", b.TotalScore)
	fmt.Fprintf(&sb, "Strongest Catalyst: %s (%.1f)\n", catalystLabel(b.Catalyst), b.Catalyst.Score)
	fmt.Fprintf(&sb, "Volume/Technical: %.1f/100\n", b.VolumeTechnical.Score)
	fmt.Fprintf(&sb, "Short Squeeze: %.1f/100\n", b.ShortSqueeze.Score)
	fmt.Fprintf(&sb, "Fundamental: %.1f/100\n", b.Fundamental.Score)
	if len(b.Reasons) > 0 {
		fmt.Fprintf(&sb, "Notes: %s\n", strings.Join(b.Reasons, ", "))
	}
	return strings.TrimSpace(sb.String())
}

func catalystLabel(c Component) string {
	if c.CatalystType == "" {
		return "none"
	}
	return c.CatalystType
}
