package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SwingScan/internal/domain/models"
	"SwingScan/internal/domain/repository"
	"SwingScan/internal/domain/service"
	"SwingScan/pkg/config"
	"SwingScan/pkg/logger"
)

// Aggregator fans an evaluation out to the four signal providers plus the
// risk checker, then folds the results into a single weighted breakdown.
// Provider failures degrade that component to zero instead of failing the
// evaluation.
type Aggregator struct {
	volumeTechnical service.VolumeAwareSource
	catalyst        service.SignalSource
	shortSqueeze    service.SignalSource
	fundamental     service.SignalSource
	risk            service.RiskChecker

	cfg          *config.Config
	fetchTimeout time.Duration
	minTotal     float64

	metrics repository.Metrics
	logger  *logger.Logger
}

func NewAggregator(
	cfg *config.Config,
	volumeTechnical service.VolumeAwareSource,
	catalyst, shortSqueeze, fundamental service.SignalSource,
	risk service.RiskChecker,
	metrics repository.Metrics,
	log *logger.Logger,
) *Aggregator {
	return &Aggregator{
		volumeTechnical: volumeTechnical,
		catalyst:        catalyst,
		shortSqueeze:    shortSqueeze,
		fundamental:     fundamental,
		risk:            risk,
		cfg:             cfg,
		fetchTimeout:    cfg.Scoring.FetchTimeout,
		minTotal:        cfg.Scoring.MinTotalScore,
		metrics:         metrics,
		logger:          log,
	}
}

// Evaluate runs a full scoring pass for symbol. All five fetches run
// concurrently, each under its own timeout, so one slow provider cannot
// hold the evaluation beyond fetchTimeout.
func (a *Aggregator) Evaluate(ctx context.Context, symbol string, sc service.SignalContext) models.ScoreBreakdown {
	start := time.Now()

	b := models.ScoreBreakdown{
		Symbol:      symbol,
		EvaluatedAt: start,
	}

	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		b.VolumeTechnical = a.fetchVolumeTechnical(ctx, symbol, sc)
	}()
	go func() {
		defer wg.Done()
		b.Catalyst = a.fetchComponent(ctx, a.catalyst, symbol)
	}()
	go func() {
		defer wg.Done()
		b.ShortSqueeze = a.fetchComponent(ctx, a.shortSqueeze, symbol)
	}()
	go func() {
		defer wg.Done()
		b.Fundamental = a.fetchComponent(ctx, a.fundamental, symbol)
	}()
	go func() {
		defer wg.Done()
		b.Risk = a.checkRisk(ctx, symbol)
	}()

	wg.Wait()

	a.fold(&b)

	a.metrics.RecordLatency("evaluate", time.Since(start).Seconds())
	a.logger.Debug("evaluation complete",
		logger.String("symbol", symbol),
		logger.Any("total_score", b.TotalScore),
		logger.Bool("qualifies", b.Qualifies),
	)
	return b
}

func (a *Aggregator) fetchComponent(ctx context.Context, src service.SignalSource, symbol string) models.Component {
	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	c, err := src.Fetch(fetchCtx, symbol)
	if err != nil {
		a.metrics.RecordError("provider_" + src.Name())
		a.logger.Warn("signal provider failed",
			logger.String("provider", src.Name()),
			logger.String("symbol", symbol),
			logger.Error(err),
		)
		return models.Component{Name: src.Name(), Failed: true}
	}
	c.Name = src.Name()
	c.Score = clamp(c.Score, 0, 100)
	return c
}

func (a *Aggregator) fetchVolumeTechnical(ctx context.Context, symbol string, sc service.SignalContext) models.Component {
	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	c, err := a.volumeTechnical.FetchWithContext(fetchCtx, symbol, sc)
	if err != nil {
		a.metrics.RecordError("provider_" + a.volumeTechnical.Name())
		a.logger.Warn("signal provider failed",
			logger.String("provider", a.volumeTechnical.Name()),
			logger.String("symbol", symbol),
			logger.Error(err),
		)
		return models.Component{Name: a.volumeTechnical.Name(), Failed: true}
	}
	c.Name = a.volumeTechnical.Name()
	c.Score = clamp(c.Score, 0, 100)
	return c
}

func (a *Aggregator) checkRisk(ctx context.Context, symbol string) models.RiskAssessment {
	checkCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	r, err := a.risk.Check(checkCtx, symbol)
	if err != nil {
		a.metrics.RecordError("provider_risk")
		a.logger.Warn("risk checker failed",
			logger.String("symbol", symbol),
			logger.Error(err),
		)
		// An unreachable checker does not veto: the filter stays open and
		// only a confirmed dilution risk closes it.
		return models.RiskAssessment{Symbol: symbol, Failed: true}
	}
	r.Symbol = symbol
	return r
}

// fold computes the weighted total, applies bonuses and penalties, resolves
// the critical filters, and decides qualification.
func (a *Aggregator) fold(b *models.ScoreBreakdown) {
	s := a.cfg.Scoring
	w := s.Weights

	total := b.VolumeTechnical.Score*w.VolumeTechnical +
		b.Catalyst.Score*w.Catalyst +
		b.ShortSqueeze.Score*w.ShortSqueeze +
		b.Fundamental.Score*w.Fundamental

	if b.VolumeTechnical.ExceptionalVolume {
		b.Bonuses += s.Bonuses.ExceptionalVolume
		b.Reasons = append(b.Reasons, fmt.Sprintf("exceptional volume %.1fx baseline", b.VolumeTechnical.VolumeMultiplier))
	}
	if b.Catalyst.CatalystCount > 1 {
		b.Bonuses += s.Bonuses.MultipleCatalysts
		b.Reasons = append(b.Reasons, fmt.Sprintf("%d concurrent catalysts", b.Catalyst.CatalystCount))
	}
	if b.Catalyst.StrongSentiment {
		b.Bonuses += s.Bonuses.StrongSentiment
		b.Reasons = append(b.Reasons, "strong news sentiment")
	}

	if b.Risk.HasRecentDilution {
		b.Penalties += s.Penalties.RecentDilution
		b.Reasons = append(b.Reasons, "recent dilution")
	}
	if b.Risk.HasReverseSplit {
		b.Penalties += s.Penalties.ReverseSplit
		b.Reasons = append(b.Reasons, "reverse split history")
	}
	if !b.Fundamental.Failed && !b.Fundamental.PassesFilters {
		b.Penalties += s.Penalties.NegativeCashFlow
		b.Reasons = append(b.Reasons, "weak fundamentals")
	}

	b.TotalScore = clamp(total+b.Bonuses-b.Penalties, 0, 100)

	// A provider outage leaves its filter open; only confirmed negative
	// signals veto.
	b.Filters = models.CriticalFilters{
		FinancialStability: b.Fundamental.Failed || b.Fundamental.PassesFilters,
		NoDilutionRisk:     !b.Risk.HasDilutionRisk,
	}

	b.Qualifies = b.TotalScore > a.minTotal &&
		b.Filters.Pass() &&
		a.floorsPass(b)
}

// floorsPass applies per-component minimums. A floor of zero is disabled,
// and a failed (missing) component is never gated by its floor: absence of
// a signal is not evidence against the play.
func (a *Aggregator) floorsPass(b *models.ScoreBreakdown) bool {
	s := a.cfg.Scoring
	if s.MinVolumeTechnicalScore > 0 && !b.VolumeTechnical.Failed &&
		b.VolumeTechnical.Score < s.MinVolumeTechnicalScore {
		return false
	}
	if s.MinCatalystScore > 0 && !b.Catalyst.Failed &&
		b.Catalyst.Score < s.MinCatalystScore {
		return false
	}
	if s.MinFundamentalScore > 0 && !b.Fundamental.Failed &&
		b.Fundamental.Score < s.MinFundamentalScore {
		return false
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
