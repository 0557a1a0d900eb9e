package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
environment: test
source:
  type: websocket
polygon:
  api_key: key
  symbols: ["NVAX", "SAVA"]
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Detection.PerSymbolCooldown != 5*time.Minute {
		t.Fatalf("cooldown default: %v", cfg.Detection.PerSymbolCooldown)
	}
	if cfg.Detection.EMASmoothing != 0.1 {
		t.Fatalf("smoothing default: %v", cfg.Detection.EMASmoothing)
	}
	if cfg.Scoring.MinTotalScore != 75 {
		t.Fatalf("min total default: %v", cfg.Scoring.MinTotalScore)
	}
	w := cfg.Scoring.Weights
	if w.VolumeTechnical != 0.30 || w.Catalyst != 0.35 || w.ShortSqueeze != 0.15 || w.Fundamental != 0.20 {
		t.Fatalf("weight defaults: %+v", w)
	}
	if cfg.Alerts.OverrideMode != "never" || cfg.Alerts.MaxAlertsPerHour != 10 {
		t.Fatalf("alert defaults: %+v", cfg.Alerts)
	}
	if cfg.Alerts.RingBufferSize != 200 || cfg.Alerts.ViewerQueueSize != 64 {
		t.Fatalf("hub defaults: %+v", cfg.Alerts)
	}
}

func TestLoadRejectsBadWeights(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
scoring:
  weights:
    volume_technical: 0.5
    catalyst: 0.5
    short_squeeze: 0.5
    fundamental: 0.5
`))
	if err == nil {
		t.Fatalf("weights not summing to 1.0 must be fatal")
	}
}

func TestLoadRejectsBadOverrideMode(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
alerts:
  override_mode: sometimes
`))
	if err == nil {
		t.Fatalf("unknown override mode must be rejected")
	}
}

func TestLoadRejectsMarginlessScoreMargin(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
alerts:
  override_mode: score-margin
`))
	if err == nil {
		t.Fatalf("score-margin mode without a margin must be rejected")
	}
}

func TestLoadRequiresSourceCredentials(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
source:
  type: websocket
`))
	if err == nil {
		t.Fatalf("websocket source without api key must be rejected")
	}

	_, err = Load(writeConfig(t, `
environment: test
source:
  type: kafka
`))
	if err == nil {
		t.Fatalf("kafka source without brokers must be rejected")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("POLYGON_API_KEY", "env-key")
	t.Setenv("SYMBOLS", "AAPL,TSLA")
	t.Setenv("PORT", "9090")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if cfg.Polygon.APIKey != "env-key" {
		t.Fatalf("api key override: %v", cfg.Polygon.APIKey)
	}
	if len(cfg.Polygon.Symbols) != 2 || cfg.Polygon.Symbols[0] != "AAPL" {
		t.Fatalf("symbols override: %v", cfg.Polygon.Symbols)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port override: %v", cfg.Server.Port)
	}
}
