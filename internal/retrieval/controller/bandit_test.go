package controller

import (
	"testing"

	"github.com/koopa0/rae/internal/retrieval"
)

func TestDefaultArmsAreValid(t *testing.T) {
	arms := DefaultArms()
	if len(arms) == 0 {
		t.Fatal("empty default menu")
	}
	names := make(map[string]bool, len(arms))
	for _, arm := range arms {
		if err := arm.Weights.Validate(); err != nil {
			t.Errorf("arm %q weights invalid: %v", arm.Name, err)
		}
		if names[arm.Name] {
			t.Errorf("duplicate arm name %q", arm.Name)
		}
		names[arm.Name] = true
	}
}

func freshStats(n, window int) []*armStats {
	stats := make([]*armStats, n)
	for i := range stats {
		stats[i] = &armStats{window: newRewardWindow(window)}
	}
	return stats
}

func TestSelectArmExploresUnpulledFirst(t *testing.T) {
	arms := DefaultArms()
	stats := freshStats(len(arms), 10)

	// Give every arm but index 3 observations; the unexplored arm has an
	// unbounded bonus and must win regardless of the others' rewards.
	for i := range stats {
		if i == 3 {
			continue
		}
		stats[i].window.push(1.0)
	}

	if got := selectArm(arms, stats, DefaultExploration, retrieval.DefaultWeights()); got != 3 {
		t.Errorf("selectArm = %d, want unexplored arm 3", got)
	}
}

func TestSelectArmHintBreaksTiesAmongUnexplored(t *testing.T) {
	arms := DefaultArms()
	stats := freshStats(len(arms), 10)

	// All arms unexplored: the hint decides. A graph-leaning hint is
	// closest to the graph-heavy arm.
	hint := retrieval.WeightVector{Vector: 0.1, Semantic: 0.1, Graph: 0.6, Fulltext: 0.2}
	got := selectArm(arms, stats, DefaultExploration, hint)
	if arms[got].Name != "graph-heavy" {
		t.Errorf("selectArm chose %q, want graph-heavy (nearest hint)", arms[got].Name)
	}
}

func TestSelectArmPrefersHigherWindowMean(t *testing.T) {
	arms := DefaultArms()
	stats := freshStats(len(arms), 100)

	// Equal observation counts, so the exploration bonus is identical and
	// the window mean decides.
	for i := range stats {
		reward := 0.2
		if i == 5 {
			reward = 0.9
		}
		for j := 0; j < 20; j++ {
			stats[i].window.push(reward)
		}
	}

	if got := selectArm(arms, stats, DefaultExploration, retrieval.DefaultWeights()); got != 5 {
		t.Errorf("selectArm = %d, want best-mean arm 5", got)
	}
}

// Rewards always beat the hint: even with a hint pointing straight at a
// mediocre arm, a clearly better arm with equal support wins.
func TestSelectArmRewardsOverrideHint(t *testing.T) {
	arms := DefaultArms()
	stats := freshStats(len(arms), 100)
	for i := range stats {
		reward := 0.1
		if arms[i].Name == "fulltext-heavy" {
			reward = 0.95
		}
		for j := 0; j < 30; j++ {
			stats[i].window.push(reward)
		}
	}

	hint := arms[0].Weights // balanced
	got := selectArm(arms, stats, DefaultExploration, hint)
	if arms[got].Name != "fulltext-heavy" {
		t.Errorf("selectArm chose %q, want fulltext-heavy despite hint", arms[got].Name)
	}
}

// With a sliding window, old success decays: an arm that was good but turned
// bad loses to a consistently decent arm once the window turns over.
func TestSelectArmForgetsStaleRewards(t *testing.T) {
	arms := DefaultArms()[:2]
	stats := freshStats(2, 10)

	// Arm 0 was excellent long ago, then turned bad for a full window.
	for i := 0; i < 10; i++ {
		stats[0].window.push(1.0)
	}
	for i := 0; i < 10; i++ {
		stats[0].window.push(0.1)
	}
	// Arm 1 is steadily decent.
	for i := 0; i < 10; i++ {
		stats[1].window.push(0.6)
	}

	if got := selectArm(arms, stats, 0.01, retrieval.DefaultWeights()); got != 1 {
		t.Errorf("selectArm = %d, want 1 (stale success forgotten)", got)
	}
}
