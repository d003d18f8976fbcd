package retrieval

import (
	"sync"

	"github.com/google/uuid"
)

// pendingRewards correlates query IDs with the bandit arm that served them,
// so asynchronous reward reports reach the right arm. Capacity is fixed: the
// table is a ring over insertion order, and the oldest entry is dropped when
// a new one would exceed capacity. Memory stays bounded regardless of how
// many served queries never receive a reward.
type pendingRewards struct {
	mu    sync.Mutex
	arms  map[uuid.UUID]int
	order []uuid.UUID
	head  int
	n     int
}

func newPendingRewards(capacity int) *pendingRewards {
	if capacity < 1 {
		capacity = 1
	}
	return &pendingRewards{
		arms:  make(map[uuid.UUID]int, capacity),
		order: make([]uuid.UUID, capacity),
	}
}

// put records the arm that served queryID. Arm -1 (no controller decision)
// is not tracked.
func (p *pendingRewards) put(queryID uuid.UUID, arm int) {
	if arm < 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.n == len(p.order) {
		oldest := p.order[p.head]
		delete(p.arms, oldest)
		p.head = (p.head + 1) % len(p.order)
		p.n--
	}
	tail := (p.head + p.n) % len(p.order)
	p.order[tail] = queryID
	p.n++
	p.arms[queryID] = arm
}

// take consumes the arm for queryID. Each query yields at most one reward.
func (p *pendingRewards) take(queryID uuid.UUID) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	arm, ok := p.arms[queryID]
	if !ok {
		return 0, false
	}
	delete(p.arms, queryID)
	return arm, true
}
