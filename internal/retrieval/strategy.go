package retrieval

import (
	"context"
	"errors"
	"time"
)

// Request is what the engine hands to each strategy backend: the original
// query, the analyzer's interpretation (the graph strategy seeds traversal
// from the extracted entities), and how many candidates to return.
type Request struct {
	Query    SearchQuery
	Analysis QueryAnalysis
	TopK     int
}

// Backend executes one retrieval strategy against its storage engine. The
// executor framework is generic over this interface and never inspects
// concrete types. Implementations must honor ctx cancellation and return
// candidates in descending raw-score order.
//
// Returning an empty list with a nil error means the strategy legitimately
// found nothing: its weight stays in play and no renormalization happens.
// Returning an error means the strategy failed and its weight is
// redistributed.
type Backend interface {
	Search(ctx context.Context, req Request) ([]Candidate, error)
}

// overfetch is how many times TopK each strategy retrieves, so fusion sees
// enough overlap between strategies to corroborate items.
const overfetch = 3

// runStrategies fans the request out to every backend concurrently, each
// bounded by an independent per-strategy timeout, and joins at a fan-in
// barrier. One slow backend cannot stall the others. Cancelling ctx cancels
// all in-flight calls; completed partial results are discarded and ctx.Err()
// is returned.
func (e *Engine) runStrategies(ctx context.Context, req Request) ([]StrategyOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, e.overallDeadline)
	defer cancel()

	results := make(chan StrategyOutcome, len(e.backends))
	for id, backend := range e.backends {
		go e.runOne(ctx, id, backend, req, results)
	}

	outcomes := make([]StrategyOutcome, 0, len(e.backends))
	for range e.backends {
		outcomes = append(outcomes, <-results)
	}

	// The barrier always drains every strategy; afterwards, a cancelled
	// parent discards whatever completed.
	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	return outcomes, nil
}

// runOne executes a single strategy with its own timeout and converts any
// failure into a typed outcome. The buffered channel makes the send
// non-blocking, so no goroutine leaks when the caller gives up.
func (e *Engine) runOne(ctx context.Context, id StrategyID, backend Backend, req Request, results chan<- StrategyOutcome) {
	timeout := e.strategyTimeout
	if t, ok := e.perStrategyTimeout[id]; ok {
		timeout = t
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	candidates, err := backend.Search(sctx, req)
	elapsed := time.Since(start)

	outcome := StrategyOutcome{
		Strategy:   id,
		Candidates: candidates,
		Elapsed:    elapsed,
		Status:     OutcomeSuccess,
	}
	if err != nil {
		outcome.Candidates = nil
		outcome.Err = err
		if errors.Is(err, context.DeadlineExceeded) {
			outcome.Status = OutcomeTimeout
		} else {
			outcome.Status = OutcomeError
		}
		e.logger.WarnContext(ctx, "strategy failed",
			"strategy", id,
			"status", outcome.Status,
			"elapsed", elapsed,
			"error", err,
		)
	}
	results <- outcome
}

// availableStrategies returns the IDs of outcomes that succeeded, in
// canonical order.
func availableStrategies(outcomes []StrategyOutcome) []StrategyID {
	ok := make(map[StrategyID]bool, len(outcomes))
	for _, out := range outcomes {
		if out.Status == OutcomeSuccess {
			ok[out.Strategy] = true
		}
	}
	available := make([]StrategyID, 0, len(ok))
	for _, s := range Strategies() {
		if ok[s] {
			available = append(available, s)
		}
	}
	return available
}
