package retrieval

import (
	"testing"

	"github.com/google/uuid"
)

func TestPendingRewardsPutTake(t *testing.T) {
	p := newPendingRewards(8)
	id := uuid.New()

	p.put(id, 3)
	arm, ok := p.take(id)
	if !ok || arm != 3 {
		t.Errorf("take() = (%d, %v), want (3, true)", arm, ok)
	}

	// Consumed: a second take finds nothing.
	if _, ok := p.take(id); ok {
		t.Error("take() succeeded twice for the same query")
	}
}

func TestPendingRewardsUnknownID(t *testing.T) {
	p := newPendingRewards(8)
	if _, ok := p.take(uuid.New()); ok {
		t.Error("take() succeeded for an unknown query ID")
	}
}

func TestPendingRewardsIgnoresNoDecision(t *testing.T) {
	p := newPendingRewards(8)
	id := uuid.New()

	p.put(id, -1)
	if _, ok := p.take(id); ok {
		t.Error("arm -1 was tracked")
	}
}

func TestPendingRewardsEvictsOldest(t *testing.T) {
	p := newPendingRewards(2)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	p.put(a, 0)
	p.put(b, 1)
	p.put(c, 2) // evicts a

	if _, ok := p.take(a); ok {
		t.Error("oldest entry survived past capacity")
	}
	if arm, ok := p.take(b); !ok || arm != 1 {
		t.Errorf("take(b) = (%d, %v), want (1, true)", arm, ok)
	}
	if arm, ok := p.take(c); !ok || arm != 2 {
		t.Errorf("take(c) = (%d, %v), want (2, true)", arm, ok)
	}
}

func TestPendingRewardsWrapsAround(t *testing.T) {
	p := newPendingRewards(3)
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		ids[i] = uuid.New()
		p.put(ids[i], i)
	}

	// Only the newest three remain.
	for i := 0; i < 7; i++ {
		if _, ok := p.take(ids[i]); ok {
			t.Errorf("entry %d survived eviction", i)
		}
	}
	for i := 7; i < 10; i++ {
		if arm, ok := p.take(ids[i]); !ok || arm != i {
			t.Errorf("take(ids[%d]) = (%d, %v), want (%d, true)", i, arm, ok, i)
		}
	}
}
