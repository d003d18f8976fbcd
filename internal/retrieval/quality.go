package retrieval

// QualityProxy derives a scalar quality estimate in [0,1] from a fused
// ranking, for callers that have no downstream relevance feedback to report.
// It rewards a confident ranking: a strong top score, a clear margin between
// the top two results, and corroboration of the top result by multiple
// strategies.
//
// This is a heuristic proxy, not graded relevance. Callers with a real
// feedback signal (user clicks, downstream agent acceptance) should report
// that instead.
func QualityProxy(results []FusedResult) float64 {
	if len(results) == 0 {
		return 0
	}

	top := results[0].Score

	margin := top
	if len(results) > 1 {
		margin = top - results[1].Score
	}

	corroboration := float64(results[0].Corroboration()) / float64(len(Strategies()))

	proxy := 0.5*top + 0.3*margin + 0.2*corroboration
	if proxy > 1 {
		proxy = 1
	}
	if proxy < 0 {
		proxy = 0
	}
	return proxy
}
