package controller

import (
	"math"

	"github.com/koopa0/rae/internal/retrieval"
)

// Arm is one candidate weight configuration in the bandit's fixed menu.
type Arm struct {
	Name    string
	Weights retrieval.WeightVector
}

// DefaultArms is the standard menu: the balanced vector plus one
// strategy-leaning vector per strategy and two mixed profiles matching the
// most common intent shapes.
func DefaultArms() []Arm {
	return []Arm{
		{Name: "balanced", Weights: retrieval.WeightVector{Vector: 0.25, Semantic: 0.25, Graph: 0.25, Fulltext: 0.25}},
		{Name: "vector-heavy", Weights: retrieval.WeightVector{Vector: 0.55, Semantic: 0.15, Graph: 0.15, Fulltext: 0.15}},
		{Name: "semantic-heavy", Weights: retrieval.WeightVector{Vector: 0.15, Semantic: 0.55, Graph: 0.15, Fulltext: 0.15}},
		{Name: "graph-heavy", Weights: retrieval.WeightVector{Vector: 0.15, Semantic: 0.15, Graph: 0.55, Fulltext: 0.15}},
		{Name: "fulltext-heavy", Weights: retrieval.WeightVector{Vector: 0.15, Semantic: 0.15, Graph: 0.15, Fulltext: 0.55}},
		{Name: "similarity-mix", Weights: retrieval.WeightVector{Vector: 0.4, Semantic: 0.3, Graph: 0.1, Fulltext: 0.2}},
		{Name: "lexical-mix", Weights: retrieval.WeightVector{Vector: 0.2, Semantic: 0.2, Graph: 0.2, Fulltext: 0.4}},
	}
}

// armStats is the bandit state for one arm: the sliding reward window plus a
// lifetime pull counter kept for the audit trail.
type armStats struct {
	window *rewardWindow
	pulls  uint64
}

// selectArm implements the sliding-window UCB rule: each arm's value is its
// mean reward over only the last N observations plus an exploration bonus
// that shrinks with how often the arm appears in the window. exploration is
// the bonus coefficient after any adapting/structure scaling.
//
// An arm with no window observations has an unbounded bonus and is explored
// first. Ties (including between several unexplored arms) break toward the
// arm whose weights are nearest the analyzer's hint, so the heuristic
// recommendation seeds exploration order without ever overriding observed
// rewards. Callers must hold the controller mutex.
func selectArm(arms []Arm, stats []*armStats, exploration float64, hint retrieval.WeightVector) int {
	total := 0
	for _, s := range stats {
		total += s.window.count()
	}

	best := -1
	bestBound := math.Inf(-1)
	bestDist := math.Inf(1)

	for i, s := range stats {
		var bound float64
		if s.window.count() == 0 {
			bound = math.Inf(1)
		} else {
			bonus := exploration * math.Sqrt(math.Log(float64(total)+1)/float64(s.window.count()))
			bound = s.window.mean() + bonus
		}

		dist := arms[i].Weights.Distance(hint)
		if bound > bestBound || (bound == bestBound && dist < bestDist) {
			best = i
			bestBound = bound
			bestDist = dist
		}
	}
	return best
}
