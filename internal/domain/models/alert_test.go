package models

import (
	"strings"
	"testing"
)

func TestFormatAlertMessage(t *testing.T) {
	b := ScoreBreakdown{
		Symbol:          "NVAX",
		TotalScore:      86,
		VolumeTechnical: Component{Score: 93.3},
		Catalyst:        Component{Score: 85.7, CatalystType: CatalystBiotechPhase3},
		ShortSqueeze:    Component{Score: 66.7},
		Fundamental:     Component{Score: 90},
		Reasons:         []string{"strong news sentiment"},
	}

	msg := FormatAlertMessage(b)

	for _, want := range []string{
		"NVAX",
		"86.0/100",
		"biotech_phase3",
		"Volume/Technical: 93.3/100",
		"Short Squeeze: 66.7/100",
		"Fundamental: 90.0/100",
		"strong news sentiment",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatAlertMessageNoCatalyst(t *testing.T) {
	msg := FormatAlertMessage(ScoreBreakdown{Symbol: "SAVA", TotalScore: 77})
	if !strings.Contains(msg, "none") {
		t.Fatalf("expected catalyst 'none':\n%s", msg)
	}
}
