package controller

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/koopa0/rae/internal/retrieval"
)

// StructureStats are the structure layer's diagnostic signals over the most
// recent batch of fused rankings: how concentrated the contribution mass is
// across strategies. They are consumed by the policy layer (low entropy
// widens the exploration bonus) and exposed for audit; they are not control
// decisions themselves.
type StructureStats struct {
	// Coherence is the largest single strategy's share of total
	// contribution mass, in [0,1]. High coherence means one strategy
	// dominates the rankings.
	Coherence float64

	// Entropy is the Shannon entropy of the contribution distribution,
	// normalized by log(#strategies) into [0,1]. Low entropy means the
	// mass is concentrated; high entropy means it is diffuse.
	Entropy float64

	// Samples is how many rankings the window currently holds.
	Samples int
}

// structureWindow accumulates per-query contribution-mass distributions in a
// fixed-capacity ring.
type structureWindow struct {
	masses [][]float64
	head   int
	n      int
}

func newStructureWindow(capacity int) *structureWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &structureWindow{masses: make([][]float64, capacity)}
}

// record stores one ranking's contribution mass distribution.
func (w *structureWindow) record(mass map[retrieval.StrategyID]float64) {
	row := make([]float64, len(retrieval.Strategies()))
	for i, s := range retrieval.Strategies() {
		row[i] = mass[s]
	}

	if w.n == len(w.masses) {
		w.masses[w.head] = row
		w.head = (w.head + 1) % len(w.masses)
		return
	}
	w.masses[(w.head+w.n)%len(w.masses)] = row
	w.n++
}

// stats aggregates the window into coherence and entropy. An empty window
// reports maximum entropy and zero coherence, which leaves the policy
// layer's exploration bonus unscaled.
func (w *structureWindow) stats() StructureStats {
	if w.n == 0 {
		return StructureStats{Entropy: 1}
	}

	agg := make([]float64, len(retrieval.Strategies()))
	total := 0.0
	for i := 0; i < w.n; i++ {
		row := w.masses[(w.head+i)%len(w.masses)]
		for j, v := range row {
			agg[j] += v
			total += v
		}
	}
	if total <= 0 {
		return StructureStats{Entropy: 1, Samples: w.n}
	}

	coherence := 0.0
	for j := range agg {
		agg[j] /= total
		if agg[j] > coherence {
			coherence = agg[j]
		}
	}

	entropy := stat.Entropy(agg) / math.Log(float64(len(agg)))
	if math.IsNaN(entropy) || entropy < 0 {
		entropy = 0
	}
	if entropy > 1 {
		entropy = 1
	}

	return StructureStats{Coherence: coherence, Entropy: entropy, Samples: w.n}
}

// reset forgets all recorded rankings.
func (w *structureWindow) reset() {
	w.head = 0
	w.n = 0
}
