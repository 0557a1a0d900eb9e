package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/domain/service"
	"SwingScan/internal/hub"
	"SwingScan/internal/scoring"
	"SwingScan/internal/service/ratelimit"
	"SwingScan/internal/state"
	"SwingScan/pkg/config"
	applogger "SwingScan/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordMessage(string)            {}
func (nopMetrics) RecordAdmission(string)          {}
func (nopMetrics) RecordAlert(string)              {}
func (nopMetrics) RecordSuppression(string)        {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}
func (nopMetrics) SetViewerCount(int)              {}
func (nopMetrics) SetTrackedSymbols(int)           {}

// scriptedSource returns a per-symbol component, zero for unknown symbols.
type scriptedSource struct {
	name   string
	scores map[string]models.Component
}

func (s scriptedSource) Name() string { return s.name }
func (s scriptedSource) Fetch(ctx context.Context, symbol string) (models.Component, error) {
	return s.scores[symbol], nil
}
func (s scriptedSource) FetchWithContext(ctx context.Context, symbol string, sc service.SignalContext) (models.Component, error) {
	return s.scores[symbol], nil
}

type scriptedRisk struct{}

func (scriptedRisk) Check(ctx context.Context, symbol string) (models.RiskAssessment, error) {
	return models.RiskAssessment{Symbol: symbol}, nil
}

func pipelineConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Detection.MinVolumeToConsider = 10000
	cfg.Detection.PerSymbolCooldown = 5 * time.Minute
	cfg.Detection.Shards = 2
	cfg.Scoring.Weights.VolumeTechnical = 0.30
	cfg.Scoring.Weights.Catalyst = 0.35
	cfg.Scoring.Weights.ShortSqueeze = 0.15
	cfg.Scoring.Weights.Fundamental = 0.20
	cfg.Scoring.MinTotalScore = 75
	cfg.Scoring.FetchTimeout = time.Second
	cfg.Alerts.DeduplicationWindow = time.Hour
	cfg.Alerts.OverrideMode = OverrideNever
	cfg.Alerts.MaxAlertsPerHour = 10
	cfg.Alerts.RingBufferSize = 50
	cfg.Alerts.ViewerQueueSize = 16
	return cfg
}

// qualifying builds component scores that fold to roughly 86 total.
func qualifying(symbol string) map[string]map[string]models.Component {
	return map[string]map[string]models.Component{
		models.ComponentVolumeTechnical: {symbol: {Score: 93.33}},
		models.ComponentCatalyst:        {symbol: {Score: 85.71, CatalystType: models.CatalystPartnership, CatalystCount: 1}},
		models.ComponentShortSqueeze:    {symbol: {Score: 66.67}},
		models.ComponentFundamental:     {symbol: {Score: 90, PassesFilters: true}},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, scores map[string]map[string]models.Component) (*Orchestrator, *hub.Hub, *state.Store) {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)

	store := state.NewStore(0.1, 6*time.Hour, 2*time.Second)
	scorer := scoring.NewAggregator(cfg,
		scriptedSource{name: models.ComponentVolumeTechnical, scores: scores[models.ComponentVolumeTechnical]},
		scriptedSource{name: models.ComponentCatalyst, scores: scores[models.ComponentCatalyst]},
		scriptedSource{name: models.ComponentShortSqueeze, scores: scores[models.ComponentShortSqueeze]},
		scriptedSource{name: models.ComponentFundamental, scores: scores[models.ComponentFundamental]},
		scriptedRisk{}, nopMetrics{}, l,
	)
	h := hub.New(cfg.Alerts.RingBufferSize, cfg.Alerts.ViewerQueueSize, nopMetrics{}, l)
	admission := NewAdmissionFilter(store, cfg.Detection.MinVolumeToConsider, cfg.Detection.PerSymbolCooldown)
	dedup := NewDeduplicator(cfg.Alerts.DeduplicationWindow, cfg.Alerts.OverrideMode, cfg.Alerts.OverrideMargin)
	orch := NewOrchestrator(cfg, store, admission, scorer, dedup, ratelimit.New(), h, nil, nil, nopMetrics{}, l)
	return orch, h, store
}

func waitAlerts(t *testing.T, h *hub.Hub, want int) []*models.Alert {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := h.Recent(0, time.Time{})
		if len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	return h.Recent(0, time.Time{})
}

func TestStreamingQualifyingMessageProducesOneAlert(t *testing.T) {
	cfg := pipelineConfig()
	orch, h, _ := newTestOrchestrator(t, cfg, qualifying("NVAX"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)
	defer orch.Stop()

	now := time.Now().Unix()
	require.NoError(t, orch.Process(ctx, &models.Aggregate{Symbol: "NVAX", Timestamp: now, Close: 4.2, Volume: 50000}))
	// Second burst message lands inside the cooldown.
	require.NoError(t, orch.Process(ctx, &models.Aggregate{Symbol: "NVAX", Timestamp: now + 1, Close: 4.3, Volume: 60000}))

	alerts := waitAlerts(t, h, 1)
	require.Len(t, alerts, 1)
	assert.Equal(t, "NVAX", alerts[0].Symbol)
	assert.InDelta(t, 86.0, alerts[0].TotalScore, 0.1)
	assert.Equal(t, models.CatalystPartnership, alerts[0].CatalystType)
	assert.NotEmpty(t, alerts[0].ID)
	assert.Contains(t, alerts[0].Message, "NVAX")
}

func TestStreamingBelowMinVolumeNeverScored(t *testing.T) {
	cfg := pipelineConfig()
	orch, h, store := newTestOrchestrator(t, cfg, qualifying("PENY"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)

	now := time.Now().Unix()
	for i := 0; i < 5; i++ {
		require.NoError(t, orch.Process(ctx, &models.Aggregate{Symbol: "PENY", Timestamp: now + int64(i), Close: 1.0, Volume: 500}))
	}
	orch.Stop()

	assert.Empty(t, h.Recent(0, time.Time{}))
	// State still tracks the symbol's baseline.
	assert.Equal(t, 1, store.Len())
}

func TestDedupWindowSuppressesSecondAlert(t *testing.T) {
	cfg := pipelineConfig()
	orch, h, _ := newTestOrchestrator(t, cfg, qualifying("NVAX"))

	b, alert, suppressed, err := orch.CheckNow(context.Background(), "NVAX", 50000, true)
	require.NoError(t, err)
	require.True(t, b.Qualifies)
	require.NotNil(t, alert)
	assert.Empty(t, suppressed)

	// Ten minutes later a higher score still loses in never mode. CheckNow
	// bypasses the cooldown, so only the dedup window stands in the way.
	b, alert2, suppressed, err := orch.CheckNow(context.Background(), "NVAX", 90000, true)
	require.NoError(t, err)
	require.True(t, b.Qualifies)
	assert.Nil(t, alert2)
	assert.Equal(t, SuppressDedup, suppressed)

	assert.Len(t, h.Recent(0, time.Time{}), 1)
}

func TestScoreMarginOverrideAllowsSecondAlert(t *testing.T) {
	cfg := pipelineConfig()
	cfg.Alerts.OverrideMode = OverrideScoreMargin
	cfg.Alerts.OverrideMargin = 5

	scores := qualifying("NVAX")
	orch, h, _ := newTestOrchestrator(t, cfg, scores)

	_, alert, _, err := orch.CheckNow(context.Background(), "NVAX", 50000, true)
	require.NoError(t, err)
	require.NotNil(t, alert)
	first := alert.TotalScore

	// Raise two components so the new total clears the previous by more
	// than the margin.
	scores[models.ComponentCatalyst]["NVAX"] = models.Component{Score: 100, CatalystType: models.CatalystBuyoutMerger, CatalystCount: 1}
	scores[models.ComponentShortSqueeze]["NVAX"] = models.Component{Score: 90}

	_, alert2, suppressed, err := orch.CheckNow(context.Background(), "NVAX", 90000, true)
	require.NoError(t, err)
	require.NotNil(t, alert2, "margin-beating score should override the window")
	assert.Empty(t, suppressed)
	assert.Greater(t, alert2.TotalScore, first+5)
	assert.Len(t, h.Recent(0, time.Time{}), 2)
}

func TestHourlyRateCap(t *testing.T) {
	cfg := pipelineConfig()
	cfg.Alerts.MaxAlertsPerHour = 2
	// Dedup wide open so only the cap gates.
	cfg.Alerts.DeduplicationWindow = time.Nanosecond

	orch, h, _ := newTestOrchestrator(t, cfg, qualifying("NVAX"))

	var suppressions []string
	for i := 0; i < 4; i++ {
		_, _, suppressed, err := orch.CheckNow(context.Background(), "NVAX", 50000, true)
		require.NoError(t, err)
		if suppressed != "" {
			suppressions = append(suppressions, suppressed)
		}
	}

	assert.Len(t, h.Recent(0, time.Time{}), 2)
	require.Len(t, suppressions, 2)
	assert.Equal(t, SuppressRateCap, suppressions[0])
}

func TestCheckNowScoreOnlyDoesNotPublish(t *testing.T) {
	cfg := pipelineConfig()
	orch, h, _ := newTestOrchestrator(t, cfg, qualifying("NVAX"))

	b, alert, _, err := orch.CheckNow(context.Background(), "nvax ", 50000, false)
	require.NoError(t, err)
	assert.True(t, b.Qualifies)
	assert.Equal(t, "NVAX", b.Symbol, "symbol should be normalized")
	assert.Nil(t, alert)
	assert.Empty(t, h.Recent(0, time.Time{}))
}

func TestStaleMessageDoesNotDisturbState(t *testing.T) {
	cfg := pipelineConfig()
	orch, _, store := newTestOrchestrator(t, cfg, qualifying("NVAX"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)

	now := time.Now().Unix()
	require.NoError(t, orch.Process(ctx, &models.Aggregate{Symbol: "NVAX", Timestamp: now, Close: 4.2, Volume: 50000}))
	// A message a minute in the past is beyond tolerance and dropped.
	require.NoError(t, orch.Process(ctx, &models.Aggregate{Symbol: "NVAX", Timestamp: now - 60, Close: 9.9, Volume: 1}))
	orch.Stop()

	st := store.GetOrCreate("NVAX")
	assert.Equal(t, 50000.0, st.LastVolume)
	assert.Equal(t, 4.2, st.LastPrice)
}
