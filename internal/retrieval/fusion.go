package retrieval

import (
	"math"
	"sort"
)

// normalizeScores min-max scales a strategy's raw scores into [0,1] within
// that strategy's own result set. Raw scores from different strategies are
// incommensurable; normalization is always per-strategy. A single result, or
// a set where every raw score is equal, normalizes to 1.0.
func normalizeScores(candidates []Candidate) []float64 {
	if len(candidates) == 0 {
		return nil
	}

	minScore, maxScore := candidates[0].RawScore, candidates[0].RawScore
	for _, c := range candidates[1:] {
		if c.RawScore < minScore {
			minScore = c.RawScore
		}
		if c.RawScore > maxScore {
			maxScore = c.RawScore
		}
	}

	norms := make([]float64, len(candidates))
	spread := maxScore - minScore
	for i, c := range candidates {
		if spread <= 0 {
			norms[i] = 1.0
			continue
		}
		norms[i] = (c.RawScore - minScore) / spread
	}
	return norms
}

// fuse combines successful strategy outcomes into one ranking using the
// applied weight vector. Items appearing in multiple strategies accumulate
// contributions; items found by only one strategy are scored by that strategy
// alone, scaled by its weight. A strategy that legitimately found nothing
// simply contributes nothing; no per-item renormalization happens.
//
// The ranking sorts by fused score descending, with ties broken by recency,
// then corroboration (more contributing strategies wins), then ID for
// determinism.
func fuse(outcomes []StrategyOutcome, weights WeightVector) []FusedResult {
	merged := make(map[string]*FusedResult)

	for _, out := range outcomes {
		if out.Status != OutcomeSuccess {
			continue
		}
		weight := weights.Get(out.Strategy)
		norms := normalizeScores(out.Candidates)

		seen := make(map[string]bool, len(out.Candidates))
		for i, c := range out.Candidates {
			// A backend may return duplicate IDs; only the best-ranked
			// occurrence counts.
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true

			r, ok := merged[c.ID]
			if !ok {
				r = &FusedResult{ID: c.ID, CreatedAt: c.CreatedAt}
				merged[c.ID] = r
			}
			if c.CreatedAt.After(r.CreatedAt) {
				r.CreatedAt = c.CreatedAt
			}

			weighted := weight * norms[i]
			r.Score += weighted
			r.Contributions = append(r.Contributions, Contribution{
				Strategy:   out.Strategy,
				Normalized: norms[i],
				Weight:     weight,
				Weighted:   weighted,
			})
		}
	}

	results := make([]FusedResult, 0, len(merged))
	for _, r := range merged {
		// Weights sum to <= 1 and normalized scores are <= 1, so the fused
		// score is already in [0,1]; clamp only guards float drift.
		r.Score = math.Min(1.0, math.Max(0.0, r.Score))
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.Corroboration() != b.Corroboration() {
			return a.Corroboration() > b.Corroboration()
		}
		return a.ID < b.ID
	})

	return results
}

// truncate caps a ranking at k results.
func truncate(results []FusedResult, k int) []FusedResult {
	if k <= 0 || len(results) <= k {
		return results
	}
	return results[:k]
}
