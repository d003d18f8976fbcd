// Package retrieval implements the adaptive hybrid retrieval engine: it fans a
// query out to several structurally different retrieval strategies, fuses
// their incommensurable scores into a single ranking, and feeds observed
// ranking quality back into an adaptive weight controller.
//
// The package defines the data model (SearchQuery, StrategyOutcome,
// FusedResult, WeightVector) and the orchestrating Engine. Strategy backends,
// the query analyzer, the weight controller, and the search cache are
// injected through consumer-defined interfaces so the engine never depends on
// concrete implementations.
package retrieval

import (
	"time"

	"github.com/google/uuid"
)

// StrategyID identifies one retrieval strategy.
type StrategyID string

const (
	// StrategyVector is nearest-neighbor similarity over embeddings.
	StrategyVector StrategyID = "vector"

	// StrategySemantic is lookup against derived fact/definition nodes.
	StrategySemantic StrategyID = "semantic"

	// StrategyGraph is bounded traversal over the entity-relationship graph.
	StrategyGraph StrategyID = "graph"

	// StrategyFulltext is lexical/keyword matching.
	StrategyFulltext StrategyID = "fulltext"
)

// Strategies lists all strategy IDs in canonical order.
func Strategies() []StrategyID {
	return []StrategyID{StrategyVector, StrategySemantic, StrategyGraph, StrategyFulltext}
}

// TimeRange restricts results to memories created within [Start, End].
// A zero Start or End leaves that side unbounded.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the range is well-formed.
func (r TimeRange) Valid() bool {
	if r.Start.IsZero() || r.End.IsZero() {
		return true
	}
	return !r.End.Before(r.Start)
}

// Filters narrows the candidate set before scoring.
type Filters struct {
	// TimeRange restricts by creation time. Nil means unrestricted.
	TimeRange *TimeRange

	// Tags requires all listed tags to be present.
	Tags []string

	// MinImportance drops memories below this importance (0 disables).
	MinImportance float64
}

// SearchQuery is a request for relevant memories. It is immutable once
// constructed; the engine never mutates it.
type SearchQuery struct {
	// Text is the raw query text. Required.
	Text string

	// Tenant and Project scope the search. Tenant is required.
	Tenant  string
	Project string

	// Filters narrow the candidate set.
	Filters Filters

	// TopK is the number of results requested. Required, >= 1.
	TopK int

	// Context carries recent conversation turns for the analyzer.
	Context []string
}

// Validate rejects malformed queries before any strategy runs.
func (q SearchQuery) Validate() error {
	if q.Text == "" {
		return errInvalid("empty query text")
	}
	if len(q.Text) > MaxQueryLength {
		return errInvalid("query text too long")
	}
	if q.Tenant == "" {
		return errInvalid("missing tenant")
	}
	if q.TopK < 1 {
		return errInvalid("top-k must be >= 1")
	}
	if q.TopK > MaxTopK {
		return errInvalid("top-k too large")
	}
	if q.Filters.TimeRange != nil && !q.Filters.TimeRange.Valid() {
		return errInvalid("time range end before start")
	}
	if q.Filters.MinImportance < 0 {
		return errInvalid("negative min importance")
	}
	return nil
}

// Intent classifies what kind of answer a query is looking for.
type Intent string

const (
	IntentFactual     Intent = "factual"
	IntentConceptual  Intent = "conceptual"
	IntentExploratory Intent = "exploratory"
	IntentTemporal    Intent = "temporal"
	IntentRelational  Intent = "relational"
	IntentAggregative Intent = "aggregative"
)

// Valid reports whether the intent is one of the six known categories.
func (i Intent) Valid() bool {
	switch i {
	case IntentFactual, IntentConceptual, IntentExploratory,
		IntentTemporal, IntentRelational, IntentAggregative:
		return true
	}
	return false
}

// QueryAnalysis is the interpreted intent of a query. Produced once by the
// analyzer and consumed by fusion and the weight controller. The recommended
// weight vector is advisory; the controller may override it entirely.
type QueryAnalysis struct {
	Intent      Intent
	Confidence  float64
	Entities    []string
	Concepts    []string
	Recommended WeightVector
}

// BalancedAnalysis is the fallback when query understanding is unavailable:
// exploratory intent with equal weights. Analysis failures never block search.
func BalancedAnalysis() QueryAnalysis {
	return QueryAnalysis{
		Intent:      IntentExploratory,
		Confidence:  0,
		Recommended: DefaultWeights(),
	}
}

// Candidate is one (item, raw score) pair returned by a strategy backend.
// Raw scores are only comparable within a single strategy's result set.
type Candidate struct {
	ID        string
	RawScore  float64
	CreatedAt time.Time
}

// OutcomeStatus is the terminal status of one strategy invocation.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeTimeout OutcomeStatus = "timeout"
	OutcomeError   OutcomeStatus = "error"
)

// StrategyOutcome is the result (or typed failure) of one strategy. A timed
// out or failed strategy carries an empty candidate list and is excluded from
// fusion; its weight is redistributed across the survivors.
type StrategyOutcome struct {
	Strategy   StrategyID
	Candidates []Candidate
	Elapsed    time.Duration
	Status     OutcomeStatus
	Err        error
}

// Contribution records how one strategy contributed to a fused result.
type Contribution struct {
	Strategy StrategyID

	// Normalized is the min-max normalized score within the strategy's
	// own result set, in [0,1].
	Normalized float64

	// Weight is the strategy's share of the applied weight vector.
	Weight float64

	// Weighted is Weight * Normalized, the value added to the fused score.
	Weighted float64
}

// FusedResult is one final ranked item. Score lies in [0,1].
type FusedResult struct {
	ID            string
	Score         float64
	CreatedAt     time.Time
	Contributions []Contribution
}

// Corroboration is the number of strategies that returned this item.
func (r FusedResult) Corroboration() int {
	return len(r.Contributions)
}

// Timing is the latency breakdown of one search.
type Timing struct {
	Analyze     time.Duration
	Retrieve    time.Duration
	Fuse        time.Duration
	Total       time.Duration
	PerStrategy map[StrategyID]time.Duration
}

// SearchResponse is the engine's answer to one SearchQuery.
type SearchResponse struct {
	// QueryID correlates asynchronous reward reports with this search.
	QueryID uuid.UUID

	Results []FusedResult

	// AppliedWeights is the weight vector actually used for fusion,
	// renormalized over the strategies that produced results.
	AppliedWeights WeightVector

	// StrategiesUsed lists strategies whose outcome entered fusion.
	StrategiesUsed []StrategyID

	// CacheHit is true when the ranking was served from the search cache.
	// Cache hits generate no bandit reward.
	CacheHit bool

	Timing Timing
}

// Input bounds enforced by Validate.
const (
	MaxQueryLength = 4096
	MaxTopK        = 100
)
