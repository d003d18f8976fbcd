package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/koopa0/rae/internal/log"
)

// Analyzer interprets a query before retrieval. Implemented by the analyzer
// package; the engine only needs this one method. Analyze never fails: on
// understanding errors it falls back to a balanced analysis.
type Analyzer interface {
	Analyze(ctx context.Context, q SearchQuery) QueryAnalysis
}

// WeightDecision is the controller's choice for one query: the weight vector
// to fuse with, and the bandit arm that produced it (for reward attribution).
type WeightDecision struct {
	Weights WeightVector
	Arm     int
}

// WeightSource owns the fusion weights. Implemented by the controller
// package; a nil source makes the engine fall back to the analyzer's
// recommendation.
type WeightSource interface {
	// Select picks the weight vector for the next query. The analysis is a
	// heuristic hint the source may override entirely.
	Select(analysis QueryAnalysis) WeightDecision

	// Observe records the quality proxy for a previously served query.
	Observe(arm int, reward float64)
}

// RankingRecorder is an optional WeightSource upgrade: sources implementing
// it receive the per-strategy contribution mass of each fused ranking, which
// feeds the controller's structure diagnostics. Modeled after optional
// stdlib interface upgrades like http.Flusher.
type RankingRecorder interface {
	RecordRanking(mass map[StrategyID]float64)
}

// contributionMass sums each strategy's weighted contribution across a fused
// ranking and normalizes to a distribution.
func contributionMass(results []FusedResult) map[StrategyID]float64 {
	mass := make(map[StrategyID]float64, len(Strategies()))
	total := 0.0
	for _, r := range results {
		for _, c := range r.Contributions {
			mass[c.Strategy] += c.Weighted
			total += c.Weighted
		}
	}
	if total > 0 {
		for s := range mass {
			mass[s] /= total
		}
	}
	return mass
}

// CachedSearch is the payload memoized per (query, scope, filters, bucket)
// key.
type CachedSearch struct {
	Results    []FusedResult
	Weights    WeightVector
	Strategies []StrategyID
}

// SearchCache memoizes fused rankings for a bounded, time-bucketed window.
// Implemented by the cache package.
type SearchCache interface {
	Get(q SearchQuery, now time.Time) (CachedSearch, bool)
	Set(q SearchQuery, now time.Time, entry CachedSearch)
}

// Engine orchestrates the retrieval pipeline: validate, analyze, check the
// cache, fan out to strategies, fuse, cache, respond. Observed ranking
// quality is fed back through ObserveReward.
//
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	backends map[StrategyID]Backend
	analyzer Analyzer
	weights  WeightSource
	cache    SearchCache
	logger   log.Logger
	tracer   trace.Tracer
	clock    func() time.Time

	strategyTimeout    time.Duration
	perStrategyTimeout map[StrategyID]time.Duration
	overallDeadline    time.Duration

	pending *pendingRewards
}

// Option configures an Engine.
type Option func(*Engine)

// WithAnalyzer injects the query analyzer. Without one, every query gets the
// balanced default analysis.
func WithAnalyzer(a Analyzer) Option {
	return func(e *Engine) { e.analyzer = a }
}

// WithWeightSource injects the adaptive weight controller.
func WithWeightSource(w WeightSource) Option {
	return func(e *Engine) { e.weights = w }
}

// WithCache injects the search cache. Without one, every query recomputes.
func WithCache(c SearchCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger injects the logger (nil-safe; defaults to slog.Default()).
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStrategyTimeout sets the default per-strategy timeout.
func WithStrategyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.strategyTimeout = d
		}
	}
}

// WithPerStrategyTimeout overrides the timeout for one strategy.
func WithPerStrategyTimeout(s StrategyID, d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.perStrategyTimeout[s] = d
		}
	}
}

// WithOverallDeadline bounds the whole fan-out, across all strategies.
func WithOverallDeadline(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.overallDeadline = d
		}
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// Default pipeline timeouts.
const (
	DefaultStrategyTimeout = 2 * time.Second
	DefaultOverallDeadline = 5 * time.Second

	// pendingRewardCapacity bounds the queryID -> arm correlation table;
	// rewards arriving after eviction are dropped.
	pendingRewardCapacity = 4096
)

// NewEngine creates an Engine over the given strategy backends.
func NewEngine(backends map[StrategyID]Backend, opts ...Option) (*Engine, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}

	e := &Engine{
		backends:           backends,
		logger:             slog.Default(),
		tracer:             otel.Tracer("rae/retrieval"),
		clock:              time.Now,
		strategyTimeout:    DefaultStrategyTimeout,
		overallDeadline:    DefaultOverallDeadline,
		perStrategyTimeout: make(map[StrategyID]time.Duration),
		pending:            newPendingRewards(pendingRewardCapacity),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs the full retrieval pipeline for one query.
//
// Failures local to one strategy or to analysis are absorbed and degrade
// gracefully; only ErrInvalidQuery and ErrSearchUnavailable surface.
func (e *Engine) Search(ctx context.Context, q SearchQuery) (*SearchResponse, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "engine.search",
		trace.WithAttributes(
			attribute.String("tenant", q.Tenant),
			attribute.String("project", q.Project),
			attribute.Int("top_k", q.TopK),
		))
	defer span.End()

	total := e.clock()
	queryID := uuid.New()

	// Analysis runs before the cache check only because the cache key does
	// not depend on it; a hit still skips every strategy and the reward
	// path. Analysis itself is cheap and never blocks search.
	analyzeStart := e.clock()
	analysis := e.analyze(ctx, q)
	analyzeElapsed := e.clock().Sub(analyzeStart)

	now := e.clock()
	if e.cache != nil {
		if hit, ok := e.cache.Get(q, now); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return &SearchResponse{
				QueryID:        queryID,
				Results:        hit.Results,
				AppliedWeights: hit.Weights,
				StrategiesUsed: hit.Strategies,
				CacheHit:       true,
				Timing: Timing{
					Analyze: analyzeElapsed,
					Total:   e.clock().Sub(total),
				},
			}, nil
		}
	}

	decision := e.selectWeights(analysis)

	retrieveStart := e.clock()
	outcomes, err := e.runStrategies(ctx, Request{
		Query:    q,
		Analysis: analysis,
		TopK:     q.TopK * overfetch,
	})
	if err != nil {
		return nil, err
	}
	retrieveElapsed := e.clock().Sub(retrieveStart)

	available := availableStrategies(outcomes)
	if len(available) == 0 {
		e.logger.ErrorContext(ctx, "all strategies failed",
			"tenant", q.Tenant,
			"query_id", queryID,
		)
		return nil, fmt.Errorf("%w: all %d strategies failed", ErrSearchUnavailable, len(outcomes))
	}

	applied := decision.Weights.Renormalized(available)

	fuseStart := e.clock()
	results := truncate(fuse(outcomes, applied), q.TopK)
	fuseElapsed := e.clock().Sub(fuseStart)

	if e.cache != nil {
		e.cache.Set(q, now, CachedSearch{
			Results:    results,
			Weights:    applied,
			Strategies: available,
		})
	}
	e.pending.put(queryID, decision.Arm)

	if recorder, ok := e.weights.(RankingRecorder); ok {
		recorder.RecordRanking(contributionMass(results))
	}

	perStrategy := make(map[StrategyID]time.Duration, len(outcomes))
	for _, out := range outcomes {
		perStrategy[out.Strategy] = out.Elapsed
	}

	e.logger.DebugContext(ctx, "search completed",
		"query_id", queryID,
		"tenant", q.Tenant,
		"intent", analysis.Intent,
		"strategies", len(available),
		"results", len(results),
		"weights", applied.String(),
	)

	return &SearchResponse{
		QueryID:        queryID,
		Results:        results,
		AppliedWeights: applied,
		StrategiesUsed: available,
		Timing: Timing{
			Analyze:     analyzeElapsed,
			Retrieve:    retrieveElapsed,
			Fuse:        fuseElapsed,
			Total:       e.clock().Sub(total),
			PerStrategy: perStrategy,
		},
	}, nil
}

// ObserveReward reports the observed quality of a previously served ranking,
// keyed by the query ID from its SearchResponse. Rewards may arrive any time
// after the response was returned; unknown or already-consumed IDs are
// dropped. Rewards are clamped to [0,1].
func (e *Engine) ObserveReward(queryID uuid.UUID, reward float64) {
	if e.weights == nil {
		return
	}
	arm, ok := e.pending.take(queryID)
	if !ok {
		return
	}
	if reward < 0 {
		reward = 0
	} else if reward > 1 {
		reward = 1
	}
	e.weights.Observe(arm, reward)
}

// analyze delegates to the injected analyzer, falling back to the balanced
// default when absent.
func (e *Engine) analyze(ctx context.Context, q SearchQuery) QueryAnalysis {
	if e.analyzer == nil {
		return BalancedAnalysis()
	}
	return e.analyzer.Analyze(ctx, q)
}

// selectWeights asks the controller for the active vector. A missing or
// panicking controller never blocks search: the analyzer's recommendation
// (or the balanced default) is used instead.
func (e *Engine) selectWeights(analysis QueryAnalysis) (decision WeightDecision) {
	fallback := analysis.Recommended
	if fallback.Validate() != nil {
		fallback = DefaultWeights()
	}
	decision = WeightDecision{Weights: fallback, Arm: -1}

	if e.weights == nil {
		return decision
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("weight controller panicked, using fallback weights", "panic", r)
			decision = WeightDecision{Weights: fallback, Arm: -1}
		}
	}()

	d := e.weights.Select(analysis)
	if d.Weights.Validate() != nil {
		return WeightDecision{Weights: fallback, Arm: -1}
	}
	return d
}
