package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/domain/repository"
	"SwingScan/internal/domain/service"
	"SwingScan/internal/hub"
	"SwingScan/internal/scoring"
	"SwingScan/internal/service/ratelimit"
	"SwingScan/internal/state"
	"SwingScan/pkg/config"
	"SwingScan/pkg/logger"
	"SwingScan/pkg/util"
)

// Suppression reasons reported via metrics and the manual check response.
const (
	SuppressDedup   = "dedup_window"
	SuppressRateCap = "rate_cap"
)

// Orchestrator drives a message through the full pipeline: state update,
// admission, scoring, threshold, deduplication, rate cap, broadcast, and
// persistence. Messages are sharded by symbol so each symbol's updates are
// processed serially while distinct symbols run in parallel.
type Orchestrator struct {
	store     *state.Store
	admission *AdmissionFilter
	scorer    *scoring.Aggregator
	dedup     *Deduplicator
	limiter   *ratelimit.Limiter
	hub       *hub.Hub

	sink    repository.AlertSink    // optional
	archive repository.AlertArchive // optional

	metrics repository.Metrics
	logger  *logger.Logger

	shards     []chan *models.Aggregate
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	maxPerHour float64
}

func NewOrchestrator(
	cfg *config.Config,
	store *state.Store,
	admission *AdmissionFilter,
	scorer *scoring.Aggregator,
	dedup *Deduplicator,
	limiter *ratelimit.Limiter,
	h *hub.Hub,
	sink repository.AlertSink,
	archive repository.AlertArchive,
	metrics repository.Metrics,
	log *logger.Logger,
) *Orchestrator {
	shards := make([]chan *models.Aggregate, cfg.Detection.Shards)
	for i := range shards {
		shards[i] = make(chan *models.Aggregate, 256)
	}
	return &Orchestrator{
		store:      store,
		admission:  admission,
		scorer:     scorer,
		dedup:      dedup,
		limiter:    limiter,
		hub:        h,
		sink:       sink,
		archive:    archive,
		metrics:    metrics,
		logger:     log,
		shards:     shards,
		maxPerHour: cfg.Alerts.MaxAlertsPerHour,
	}
}

// Start launches one worker per shard. Workers drain their shard on
// context cancellation and exit once the shard channel is closed.
func (o *Orchestrator) Start(ctx context.Context) {
	o.startOnce.Do(func() {
		for i, ch := range o.shards {
			o.wg.Add(1)
			go o.shardWorker(ctx, i, ch)
		}
		o.logger.Info("pipeline started", logger.Int("shards", len(o.shards)))
	})
}

// Stop closes the shards and waits for in-flight evaluations to finish.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		for _, ch := range o.shards {
			close(ch)
		}
		o.wg.Wait()
		o.logger.Info("pipeline stopped")
	})
}

// Process routes msg to its symbol's shard. It blocks only on shard
// backpressure and returns the context error on cancellation.
func (o *Orchestrator) Process(ctx context.Context, msg *models.Aggregate) error {
	ch := o.shards[shardFor(msg.Symbol, len(o.shards))]
	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shardFor(symbol string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(n))
}

func (o *Orchestrator) shardWorker(ctx context.Context, id int, ch <-chan *models.Aggregate) {
	defer o.wg.Done()
	for msg := range ch {
		o.handle(ctx, msg)
	}
	o.logger.Debug("shard worker exit", logger.Int("shard", id))
}

func (o *Orchestrator) handle(ctx context.Context, msg *models.Aggregate) {
	o.metrics.RecordMessage(msg.Symbol)
	o.metrics.RecordLastPrice(msg.Symbol, msg.Close)

	st, res := o.store.UpdateOnMessage(msg.Symbol, msg.Volume, msg.Close, time.Unix(msg.Timestamp, 0))
	if res == state.Dropped {
		o.metrics.RecordError("timestamp_regression")
		o.logger.Warn("stale message dropped",
			logger.String("symbol", msg.Symbol),
			logger.Int64("timestamp", msg.Timestamp),
		)
		return
	}
	o.metrics.SetTrackedSymbols(o.store.Len())

	now := time.Now()
	if !o.admission.ShouldEvaluate(msg, now) {
		return
	}
	o.metrics.RecordAdmission(msg.Symbol)

	b := o.scorer.Evaluate(ctx, msg.Symbol, service.SignalContext{
		CurrentVolume:  msg.Volume,
		BaselineVolume: st.RollingAvgVolume,
		LastPrice:      msg.Close,
	})
	if !b.Qualifies {
		return
	}

	o.finalize(ctx, b, now)
}

// CheckNow is the operator-triggered evaluation path. It bypasses the
// admission cooldown but runs the same scoring and, when publish is set,
// the same dedup, rate cap, and broadcast gates as the streaming path.
func (o *Orchestrator) CheckNow(ctx context.Context, symbol string, volume float64, publish bool) (models.ScoreBreakdown, *models.Alert, string, error) {
	symbol = util.NormalizeSymbol(symbol)
	if symbol == "" {
		return models.ScoreBreakdown{}, nil, "", fmt.Errorf("symbol is required")
	}

	now := time.Now()
	st := o.store.GetOrCreate(symbol)
	o.admission.AdmitBypassingCooldown(symbol, now)

	sc := service.SignalContext{
		CurrentVolume:  volume,
		BaselineVolume: st.RollingAvgVolume,
		LastPrice:      st.LastPrice,
	}
	if sc.CurrentVolume == 0 {
		sc.CurrentVolume = st.LastVolume
	}

	b := o.scorer.Evaluate(ctx, symbol, sc)
	if !b.Qualifies || !publish {
		return b, nil, "", nil
	}

	alert, suppressed := o.finalize(ctx, b, now)
	return b, alert, suppressed, nil
}

// finalize runs the post-qualification gates and, on success, builds the
// alert and fans it out. Returns the alert or the suppression reason.
func (o *Orchestrator) finalize(ctx context.Context, b models.ScoreBreakdown, now time.Time) (*models.Alert, string) {
	if !o.dedup.Admit(b.Symbol, b.TotalScore, now) {
		o.metrics.RecordSuppression(SuppressDedup)
		o.logger.Debug("alert suppressed by dedup window",
			logger.String("symbol", b.Symbol),
			logger.Float64("total_score", b.TotalScore),
		)
		return nil, SuppressDedup
	}
	if !o.limiter.Allow(b.Symbol, o.maxPerHour, o.maxPerHour/3600) {
		o.metrics.RecordSuppression(SuppressRateCap)
		o.logger.Warn("alert suppressed by hourly rate cap", logger.String("symbol", b.Symbol))
		return nil, SuppressRateCap
	}

	alert := &models.Alert{
		ID:           uuid.NewString(),
		Symbol:       b.Symbol,
		TotalScore:   b.TotalScore,
		CatalystType: b.Catalyst.CatalystType,
		Breakdown:    b,
		Message:      models.FormatAlertMessage(b),
		CreatedAt:    now,
	}

	o.hub.Publish(alert)
	o.metrics.RecordAlert(alert.Symbol)
	o.logger.Info("alert published",
		logger.String("alert_id", alert.ID),
		logger.String("symbol", alert.Symbol),
		logger.Float64("total_score", alert.TotalScore),
		logger.String("catalyst", alert.CatalystType),
	)

	// Downstream delivery is best-effort: a sink or archive outage never
	// blocks broadcasting.
	if o.sink != nil {
		if err := o.sink.Publish(ctx, alert); err != nil {
			o.metrics.RecordError("alert_sink")
			o.logger.Error("alert sink publish failed", logger.Error(err), logger.String("symbol", alert.Symbol))
		}
	}
	if o.archive != nil {
		if err := o.archive.Insert(ctx, alert); err != nil {
			o.metrics.RecordError("alert_archive")
			o.logger.Error("alert archive insert failed", logger.Error(err), logger.String("symbol", alert.Symbol))
		}
	}
	return alert, ""
}
