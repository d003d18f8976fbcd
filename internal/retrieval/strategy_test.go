package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/koopa0/rae/internal/log"
)

func TestAvailableStrategiesCanonicalOrder(t *testing.T) {
	outcomes := []StrategyOutcome{
		{Strategy: StrategyFulltext, Status: OutcomeSuccess},
		{Strategy: StrategyGraph, Status: OutcomeError},
		{Strategy: StrategyVector, Status: OutcomeSuccess},
		{Strategy: StrategySemantic, Status: OutcomeTimeout},
	}

	got := availableStrategies(outcomes)
	want := []StrategyID{StrategyVector, StrategyFulltext}
	if len(got) != len(want) {
		t.Fatalf("availableStrategies = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("availableStrategies[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRunStrategiesClassifiesOutcomes(t *testing.T) {
	e, err := NewEngine(map[StrategyID]Backend{
		StrategyVector:   staticBackend(Candidate{ID: "a", RawScore: 1}),
		StrategySemantic: failingBackend(errors.New("connection refused")),
		StrategyGraph:    blockingBackend(),
	},
		WithPerStrategyTimeout(StrategyGraph, 20*time.Millisecond),
		WithLogger(log.NewNop()),
	)
	if err != nil {
		t.Fatal(err)
	}

	outcomes, err := e.runStrategies(context.Background(), Request{Query: testQuery(), TopK: 5})
	if err != nil {
		t.Fatal(err)
	}

	byStrategy := make(map[StrategyID]StrategyOutcome, len(outcomes))
	for _, out := range outcomes {
		byStrategy[out.Strategy] = out
	}

	if got := byStrategy[StrategyVector].Status; got != OutcomeSuccess {
		t.Errorf("vector status = %s, want success", got)
	}
	if got := byStrategy[StrategySemantic].Status; got != OutcomeError {
		t.Errorf("semantic status = %s, want error", got)
	}
	if got := byStrategy[StrategyGraph].Status; got != OutcomeTimeout {
		t.Errorf("graph status = %s, want timeout", got)
	}
	if c := byStrategy[StrategySemantic].Candidates; c != nil {
		t.Errorf("failed strategy carries candidates: %v", c)
	}
}

// One slow backend must not delay the others past its own timeout; the
// barrier returns once every strategy resolves.
func TestRunStrategiesIsolatesSlowBackend(t *testing.T) {
	e, err := NewEngine(map[StrategyID]Backend{
		StrategyVector: staticBackend(Candidate{ID: "a", RawScore: 1}),
		StrategyGraph:  blockingBackend(),
	},
		WithPerStrategyTimeout(StrategyGraph, 50*time.Millisecond),
		WithLogger(log.NewNop()),
	)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	outcomes, err := e.runStrategies(context.Background(), Request{Query: testQuery(), TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("fan-out took %v, slow backend stalled the barrier", elapsed)
	}
	if len(outcomes) != 2 {
		t.Errorf("len(outcomes) = %d, want 2", len(outcomes))
	}
}

func TestContributionMass(t *testing.T) {
	results := []FusedResult{
		{ID: "a", Contributions: []Contribution{
			{Strategy: StrategyVector, Weighted: 0.3},
			{Strategy: StrategyFulltext, Weighted: 0.1},
		}},
		{ID: "b", Contributions: []Contribution{
			{Strategy: StrategyVector, Weighted: 0.6},
		}},
	}

	mass := contributionMass(results)
	approx(t, "vector mass", mass[StrategyVector], 0.9)
	approx(t, "fulltext mass", mass[StrategyFulltext], 0.1)

	if got := contributionMass(nil); len(got) != 0 {
		t.Errorf("contributionMass(nil) = %v, want empty", got)
	}
}
