// Package analyzer interprets a search query before retrieval: it classifies
// intent into six categories, extracts entities and concepts, and recommends
// a starting weight vector for fusion.
//
// Entity extraction and intent classification are delegated to an injected
// Understanding implementation (an LLM adapter in production, a stub in
// tests). When that call fails or times out, a rule-based classifier takes
// over, and failing that, the balanced exploratory analysis is returned —
// analysis never blocks search.
package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/koopa0/rae/internal/log"
	"github.com/koopa0/rae/internal/retrieval"
)

// Result is what an Understanding implementation returns for one query.
type Result struct {
	Intent     retrieval.Intent
	Confidence float64
	Entities   []string
	Concepts   []string
}

// Understanding is the external language-understanding collaborator. It may
// block on network I/O; the analyzer bounds it with its own timeout.
type Understanding interface {
	Analyze(ctx context.Context, text string, conversation []string) (Result, error)
}

// DefaultTimeout bounds the understanding call.
const DefaultTimeout = 1500 * time.Millisecond

// Analyzer produces a QueryAnalysis per query. It implements
// retrieval.Analyzer.
type Analyzer struct {
	understanding Understanding
	timeout       time.Duration
	logger        log.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTimeout bounds the understanding call.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger injects the logger.
func WithLogger(logger log.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Analyzer. A nil understanding is allowed: classification
// then relies entirely on the rule-based heuristics.
func New(understanding Understanding, opts ...Option) *Analyzer {
	a := &Analyzer{
		understanding: understanding,
		timeout:       DefaultTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies the query and recommends fusion weights. It never
// returns an error: failures degrade to the heuristic classifier and then to
// the balanced default.
func (a *Analyzer) Analyze(ctx context.Context, q retrieval.SearchQuery) retrieval.QueryAnalysis {
	if a.understanding != nil {
		uctx, cancel := context.WithTimeout(ctx, a.timeout)
		res, err := a.understanding.Analyze(uctx, q.Text, q.Context)
		cancel()
		if err == nil && res.Intent.Valid() {
			return retrieval.QueryAnalysis{
				Intent:      res.Intent,
				Confidence:  clamp01(res.Confidence),
				Entities:    res.Entities,
				Concepts:    res.Concepts,
				Recommended: RecommendedWeights(res.Intent),
			}
		}
		if err != nil {
			a.logger.WarnContext(ctx, "query understanding failed, using heuristics",
				"error", err,
			)
		}
	}

	return classify(q.Text)
}

// RecommendedWeights maps an intent to its heuristic starting weight vector.
// The adaptive controller may override this entirely.
func RecommendedWeights(intent retrieval.Intent) retrieval.WeightVector {
	switch intent {
	case retrieval.IntentFactual:
		return retrieval.WeightVector{Vector: 0.25, Semantic: 0.15, Graph: 0.1, Fulltext: 0.5}
	case retrieval.IntentConceptual:
		return retrieval.WeightVector{Vector: 0.3, Semantic: 0.45, Graph: 0.1, Fulltext: 0.15}
	case retrieval.IntentTemporal:
		return retrieval.WeightVector{Vector: 0.35, Semantic: 0.15, Graph: 0.15, Fulltext: 0.35}
	case retrieval.IntentRelational:
		return retrieval.WeightVector{Vector: 0.2, Semantic: 0.15, Graph: 0.5, Fulltext: 0.15}
	case retrieval.IntentAggregative:
		return retrieval.WeightVector{Vector: 0.2, Semantic: 0.35, Graph: 0.15, Fulltext: 0.3}
	default:
		return retrieval.DefaultWeights()
	}
}

// IntentOrDefault returns the intent, or exploratory when invalid.
func IntentOrDefault(intent retrieval.Intent) retrieval.Intent {
	if intent.Valid() {
		return intent
	}
	return retrieval.IntentExploratory
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
