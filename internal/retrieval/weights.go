package retrieval

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// weightEpsilon is the tolerance when checking that weights sum to 1.0.
const weightEpsilon = 1e-6

// WeightVector holds one non-negative fusion weight per strategy. A valid
// vector sums to 1.0 across the strategies it covers. It is a small value
// type: copies are cheap and snapshots are consistent by construction, which
// is what lets the controller publish it through an atomic pointer while
// fusion reads it without locks.
type WeightVector struct {
	Vector   float64
	Semantic float64
	Graph    float64
	Fulltext float64
}

// DefaultWeights is the balanced vector used at startup, as the analyzer
// fallback, and as the safe value after controller state corruption.
func DefaultWeights() WeightVector {
	return WeightVector{Vector: 0.25, Semantic: 0.25, Graph: 0.25, Fulltext: 0.25}
}

// Get returns the weight for one strategy.
func (w WeightVector) Get(s StrategyID) float64 {
	switch s {
	case StrategyVector:
		return w.Vector
	case StrategySemantic:
		return w.Semantic
	case StrategyGraph:
		return w.Graph
	case StrategyFulltext:
		return w.Fulltext
	}
	return 0
}

// With returns a copy with the weight for one strategy replaced.
func (w WeightVector) With(s StrategyID, v float64) WeightVector {
	switch s {
	case StrategyVector:
		w.Vector = v
	case StrategySemantic:
		w.Semantic = v
	case StrategyGraph:
		w.Graph = v
	case StrategyFulltext:
		w.Fulltext = v
	}
	return w
}

// Sum returns the total weight mass.
func (w WeightVector) Sum() float64 {
	return w.Vector + w.Semantic + w.Graph + w.Fulltext
}

// Validate checks non-negativity and that the mass sums to 1.0 within
// tolerance.
func (w WeightVector) Validate() error {
	for _, s := range Strategies() {
		v := w.Get(s)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidWeights, s, v)
		}
	}
	if math.Abs(w.Sum()-1.0) > weightEpsilon {
		return fmt.Errorf("%w: sum = %v", ErrInvalidWeights, w.Sum())
	}
	return nil
}

// Normalized scales the vector so it sums to 1.0. A zero vector normalizes
// to the balanced default.
func (w WeightVector) Normalized() WeightVector {
	sum := w.Sum()
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return DefaultWeights()
	}
	return WeightVector{
		Vector:   w.Vector / sum,
		Semantic: w.Semantic / sum,
		Graph:    w.Graph / sum,
		Fulltext: w.Fulltext / sum,
	}
}

// Renormalized redistributes the mass of unavailable strategies
// proportionally across the survivors, so the result sums to 1.0 over
// exactly the available set. With original weights
// {vector:0.4, semantic:0.2, graph:0.3, fulltext:0.1} and graph failed, the
// result is {vector:0.571..., semantic:0.285..., fulltext:0.142...} — each
// survivor divided by the surviving mass 0.7.
//
// Note the divisor is the surviving mass, never a partial redistribution of
// the lost mass: any scheme that hands survivors less than their full
// proportional share (e.g. figures like 0.444/0.222/0.111 for the vector
// above) leaves the vector summing below 1, which breaks the [0,1] bound on
// fused scores and makes rankings incomparable across queries with different
// failure sets.
//
// If no listed strategy carries weight, the mass is split evenly across the
// available set.
func (w WeightVector) Renormalized(available []StrategyID) WeightVector {
	if len(available) == 0 {
		return WeightVector{}
	}

	avail := make(map[StrategyID]bool, len(available))
	sum := 0.0
	for _, s := range available {
		avail[s] = true
		sum += w.Get(s)
	}

	var out WeightVector
	if sum <= 0 {
		share := 1.0 / float64(len(available))
		for _, s := range available {
			out = out.With(s, share)
		}
		return out
	}
	for s := range avail {
		out = out.With(s, w.Get(s)/sum)
	}
	return out
}

// Distance is the L1 distance between two vectors. The controller uses it to
// break ties toward the arm nearest the analyzer's recommendation.
func (w WeightVector) Distance(other WeightVector) float64 {
	d := 0.0
	for _, s := range Strategies() {
		d += math.Abs(w.Get(s) - other.Get(s))
	}
	return d
}

// String renders the vector for logs and audit records.
func (w WeightVector) String() string {
	parts := make([]string, 0, 4)
	for _, s := range Strategies() {
		parts = append(parts, fmt.Sprintf("%s:%.3f", s, w.Get(s)))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, " ") + "}"
}
