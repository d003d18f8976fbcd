package retrieval

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	for _, s := range Strategies() {
		if got := w.Get(s); got != 0.25 {
			t.Errorf("Get(%s) = %v, want 0.25", s, got)
		}
	}
}

func TestWeightVectorValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       WeightVector
		wantErr bool
	}{
		{"balanced", DefaultWeights(), false},
		{"skewed but unit sum", WeightVector{Vector: 0.55, Semantic: 0.15, Graph: 0.15, Fulltext: 0.15}, false},
		{"sum below one", WeightVector{Vector: 0.5}, true},
		{"sum above one", WeightVector{Vector: 0.5, Semantic: 0.5, Graph: 0.5}, true},
		{"negative component", WeightVector{Vector: 1.5, Semantic: -0.5}, true},
		{"nan component", WeightVector{Vector: math.NaN()}, true},
		{"zero vector", WeightVector{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidWeights) {
				t.Errorf("Validate() = %v, want ErrInvalidWeights", err)
			}
		})
	}
}

func TestNormalized(t *testing.T) {
	w := WeightVector{Vector: 2, Semantic: 1, Graph: 1, Fulltext: 0}.Normalized()
	if err := w.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	if w.Vector != 0.5 || w.Semantic != 0.25 || w.Graph != 0.25 || w.Fulltext != 0 {
		t.Errorf("Normalized() = %v", w)
	}
}

func TestNormalizedZeroVector(t *testing.T) {
	if got := (WeightVector{}).Normalized(); got != DefaultWeights() {
		t.Errorf("Normalized() = %v, want balanced default", got)
	}
}

func TestRenormalizedRedistributesProportionally(t *testing.T) {
	w := WeightVector{Vector: 0.4, Semantic: 0.2, Graph: 0.3, Fulltext: 0.1}
	got := w.Renormalized([]StrategyID{StrategyVector, StrategySemantic, StrategyFulltext})

	if math.Abs(got.Sum()-1.0) > 1e-9 {
		t.Fatalf("Sum() = %v, want 1.0", got.Sum())
	}
	if got.Graph != 0 {
		t.Errorf("Graph = %v, want 0 (unavailable)", got.Graph)
	}
	// Survivors keep their relative proportions: 0.4/0.7, 0.2/0.7, 0.1/0.7.
	approx(t, "Vector", got.Vector, 0.4/0.7)
	approx(t, "Semantic", got.Semantic, 0.2/0.7)
	approx(t, "Fulltext", got.Fulltext, 0.1/0.7)
}

func TestRenormalizedSingleSurvivor(t *testing.T) {
	got := DefaultWeights().Renormalized([]StrategyID{StrategyGraph})
	if got.Graph != 1.0 {
		t.Errorf("Graph = %v, want 1.0", got.Graph)
	}
	if got.Vector != 0 || got.Semantic != 0 || got.Fulltext != 0 {
		t.Errorf("unavailable strategies kept weight: %v", got)
	}
}

func TestRenormalizedZeroMassSplitsEvenly(t *testing.T) {
	w := WeightVector{Vector: 1.0}
	got := w.Renormalized([]StrategyID{StrategySemantic, StrategyFulltext})

	if got.Semantic != 0.5 || got.Fulltext != 0.5 {
		t.Errorf("Renormalized() = %v, want even split over survivors", got)
	}
}

func TestRenormalizedEmptyAvailable(t *testing.T) {
	if got := DefaultWeights().Renormalized(nil); got.Sum() != 0 {
		t.Errorf("Renormalized(nil) = %v, want zero vector", got)
	}
}

func TestDistance(t *testing.T) {
	a := DefaultWeights()
	if d := a.Distance(a); d != 0 {
		t.Errorf("Distance to self = %v, want 0", d)
	}

	b := WeightVector{Vector: 0.55, Semantic: 0.15, Graph: 0.15, Fulltext: 0.15}
	approx(t, "Distance", a.Distance(b), 0.6)
	if a.Distance(b) != b.Distance(a) {
		t.Error("Distance is not symmetric")
	}
}

func TestWith(t *testing.T) {
	w := DefaultWeights().With(StrategyGraph, 0.7)
	if w.Graph != 0.7 {
		t.Errorf("Graph = %v, want 0.7", w.Graph)
	}
	// Original is untouched: WeightVector is a value type.
	if DefaultWeights().Graph != 0.25 {
		t.Error("With mutated the receiver")
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}
