// Package controller implements the adaptive weight controller: a
// three-tier control loop that owns the fusion weight vector and re-tunes it
// online.
//
// The three tiers, evaluated per adaptation cycle:
//
//   - structure: coherence/entropy diagnostics over recent fused rankings
//   - dynamics: CUSUM change-point detection over the reward stream
//   - policy: sliding-window UCB selection among a fixed menu of candidate
//     weight vectors ("arms")
//
// A change point resets all arm windows and enters ADAPTING, which widens
// the exploration bonus for a configured number of observations before
// reverting to NORMAL. This is what lets the engine forget stale success
// patterns when the data or query distribution shifts.
//
// One Controller is constructed per tenant scope and passed by handle into
// the query pipeline; there is no process-wide singleton. Writes are
// serialized through a single mutex, while the active weight vector is
// published through an atomic pointer so in-flight fusion calls read a
// consistent snapshot without locks.
package controller

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koopa0/rae/internal/log"
	"github.com/koopa0/rae/internal/retrieval"
)

// State is the controller's adaptation mode.
type State int

const (
	// StateNormal is steady-state sliding-window bandit selection.
	StateNormal State = iota

	// StateAdapting follows a change point: statistics are reset and a
	// wider exploration bonus applies until the phase ends.
	StateAdapting
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateAdapting:
		return "adapting"
	default:
		return "unknown"
	}
}

// Config tunes the controller. Zero values take the defaults below.
type Config struct {
	// WindowSize is the sliding reward window per arm (N).
	WindowSize int

	// Exploration is the UCB exploration coefficient in NORMAL.
	Exploration float64

	// AdaptingBoost multiplies the exploration coefficient in ADAPTING.
	AdaptingBoost float64

	// AdaptingObservations is how many reward observations ADAPTING lasts.
	AdaptingObservations int

	// DriftThreshold is the CUSUM threshold multiplier k (threshold = k·σ).
	DriftThreshold float64

	// DriftWarmup is how many observations estimate the CUSUM reference.
	DriftWarmup int

	// StructureWindow is how many recent rankings feed the structure layer.
	StructureWindow int

	// StructureGain scales how strongly low ranking entropy widens the
	// exploration bonus.
	StructureGain float64
}

// Controller defaults.
const (
	DefaultWindowSize           = 100
	DefaultExploration          = 0.6
	DefaultAdaptingBoost        = 2.0
	DefaultAdaptingObservations = 50
	DefaultDriftThreshold       = 4.0
	DefaultDriftWarmup          = 30
	DefaultStructureWindow      = 32
	DefaultStructureGain        = 0.5
)

func (c Config) withDefaults() Config {
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.Exploration <= 0 {
		c.Exploration = DefaultExploration
	}
	if c.AdaptingBoost <= 1 {
		c.AdaptingBoost = DefaultAdaptingBoost
	}
	if c.AdaptingObservations <= 0 {
		c.AdaptingObservations = DefaultAdaptingObservations
	}
	if c.DriftThreshold <= 0 {
		c.DriftThreshold = DefaultDriftThreshold
	}
	if c.DriftWarmup <= 0 {
		c.DriftWarmup = DefaultDriftWarmup
	}
	if c.StructureWindow <= 0 {
		c.StructureWindow = DefaultStructureWindow
	}
	if c.StructureGain < 0 {
		c.StructureGain = DefaultStructureGain
	}
	return c
}

// Controller owns all bandit and drift state for one tenant scope.
// It implements retrieval.WeightSource and retrieval.RankingRecorder.
//
// Controller is safe for concurrent use by multiple goroutines.
type Controller struct {
	scope  string
	cfg    Config
	logger log.Logger
	audit  AuditSink

	// mu serializes all state writes: selection, reward updates, and
	// change-point resets.
	mu           sync.Mutex
	arms         []Arm
	stats        []*armStats
	drift        *driftDetector
	structure    *structureWindow
	state        State
	adaptingLeft int
	lastArm      int

	// active is the published weight snapshot, readable without the mutex.
	active atomic.Pointer[retrieval.WeightVector]
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg.withDefaults() }
}

// WithLogger injects the logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAuditSink injects the audit trail sink.
func WithAuditSink(sink AuditSink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.audit = sink
		}
	}
}

// New creates a Controller for one tenant scope over the given arm menu.
// Nil or empty arms use DefaultArms; arm weight vectors are normalized so a
// misconfigured menu cannot produce invalid fusion weights.
func New(scope string, arms []Arm, opts ...Option) *Controller {
	c := &Controller{
		scope:   scope,
		cfg:     Config{}.withDefaults(),
		logger:  slog.Default(),
		lastArm: -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.audit == nil {
		c.audit = NewSlogAudit(c.logger)
	}

	if len(arms) == 0 {
		arms = DefaultArms()
	}
	c.arms = make([]Arm, len(arms))
	c.stats = make([]*armStats, len(arms))
	for i, arm := range arms {
		arm.Weights = arm.Weights.Normalized()
		c.arms[i] = arm
		c.stats[i] = &armStats{window: newRewardWindow(c.cfg.WindowSize)}
	}

	c.drift = newDriftDetector(c.cfg.DriftThreshold, c.cfg.DriftWarmup)
	c.structure = newStructureWindow(c.cfg.StructureWindow)

	w := retrieval.DefaultWeights()
	c.active.Store(&w)
	return c
}

// record stamps and emits one audit event. All audit traffic funnels through
// here so every sink sees a populated timestamp and scope.
func (c *Controller) record(event AuditEvent) {
	event.Time = time.Now()
	event.Scope = c.scope
	c.audit.Record(event)
}

// Weights returns the active vector as a consistent snapshot, without taking
// the write lock.
func (c *Controller) Weights() retrieval.WeightVector {
	return *c.active.Load()
}

// Select picks the arm for the next query using the sliding-window UCB rule,
// publishes its weights, and returns the decision. The analyzer's
// recommendation only seeds exploration order; observed rewards always win.
func (c *Controller) Select(analysis retrieval.QueryAnalysis) retrieval.WeightDecision {
	c.mu.Lock()
	defer c.mu.Unlock()

	hint := analysis.Recommended
	if hint.Validate() != nil {
		hint = retrieval.DefaultWeights()
	}

	arm := selectArm(c.arms, c.stats, c.exploration(), hint)
	if arm < 0 || arm >= len(c.arms) {
		c.recoverLocked(fmt.Sprintf("selection returned arm %d of %d", arm, len(c.arms)))
		return retrieval.WeightDecision{Weights: c.Weights(), Arm: -1}
	}

	c.stats[arm].pulls++
	weights := c.arms[arm].Weights
	c.active.Store(&weights)

	if arm != c.lastArm {
		c.record(AuditEvent{
			Type:    EventWeightChange,
			Arm:     arm,
			ArmName: c.arms[arm].Name,
			Weights: weights,
			Detail:  fmt.Sprintf("state=%s", c.state),
		})
		c.lastArm = arm
	}

	return retrieval.WeightDecision{Weights: weights, Arm: arm}
}

// Observe records the reward for a served query. It updates the arm's
// sliding window, feeds the dynamics layer, and handles change points:
// resetting all arm statistics and entering ADAPTING for a configured number
// of observations.
func (c *Controller) Observe(arm int, reward float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if arm < 0 || arm >= len(c.stats) {
		c.recoverLocked(fmt.Sprintf("reward for unknown arm %d", arm))
		return
	}
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		c.recoverLocked(fmt.Sprintf("non-finite reward %v for arm %d", reward, arm))
		return
	}

	c.stats[arm].window.push(reward)

	if c.drift.observe(reward) {
		c.changePointLocked()
		return
	}

	if c.state == StateAdapting {
		c.adaptingLeft--
		if c.adaptingLeft <= 0 {
			c.transitionLocked(StateNormal, "adapting phase complete")
		}
	}
}

// RecordRanking feeds one fused ranking's contribution mass into the
// structure layer.
func (c *Controller) RecordRanking(mass map[retrieval.StrategyID]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.structure.record(mass)
}

// Structure returns the current structure-layer diagnostics.
func (c *Controller) Structure() StructureStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.structure.stats()
}

// State returns the current adaptation mode.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ArmObservations returns each arm's in-window observation count, in menu
// order. Used by diagnostics and tests to verify resets.
func (c *Controller) ArmObservations() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make([]int, len(c.stats))
	for i, s := range c.stats {
		counts[i] = s.window.count()
	}
	return counts
}

// Reset restores the safe default state: balanced weights, empty windows,
// NORMAL mode. Called on detected state corruption; never blocks search.
func (c *Controller) Reset(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recoverLocked(reason)
}

// exploration is the UCB coefficient for the current cycle. ADAPTING widens
// it by the configured boost; outside ADAPTING the structure layer widens it
// in proportion to how concentrated recent rankings are (low entropy means
// one strategy dominates, which is when re-exploration is cheapest to
// justify).
func (c *Controller) exploration() float64 {
	if c.state == StateAdapting {
		return c.cfg.Exploration * c.cfg.AdaptingBoost
	}
	s := c.structure.stats()
	return c.cfg.Exploration * (1 + (1-s.Entropy)*c.cfg.StructureGain)
}

// changePointLocked handles a dynamics-layer detection: audit, reset every
// arm window (forcing fresh exploration), restart the detector, and enter
// ADAPTING.
func (c *Controller) changePointLocked() {
	c.record(AuditEvent{
		Type:    EventChangePoint,
		Arm:     c.lastArm,
		Weights: c.Weights(),
		Detail:  "cusum threshold exceeded",
	})
	c.logger.Info("change point detected, resetting arm statistics",
		"scope", c.scope,
	)

	for _, s := range c.stats {
		s.window.reset()
	}
	c.drift.reset()
	c.adaptingLeft = c.cfg.AdaptingObservations
	c.transitionLocked(StateAdapting, "change point")
}

// transitionLocked flips the state machine and audits the transition.
func (c *Controller) transitionLocked(next State, detail string) {
	if c.state == next {
		return
	}
	c.state = next
	c.record(AuditEvent{
		Type:    EventStateChange,
		Arm:     c.lastArm,
		Weights: c.Weights(),
		Detail:  fmt.Sprintf("%s: now %s", detail, next),
	})
}

// recoverLocked resets to the safe default after inconsistent state. The
// controller must never be a single point of failure for search.
func (c *Controller) recoverLocked(reason string) {
	c.logger.Error("controller state corrupted, resetting to defaults",
		"scope", c.scope,
		"reason", reason,
	)

	for _, s := range c.stats {
		s.window.reset()
		s.pulls = 0
	}
	c.drift.reset()
	c.structure.reset()
	c.state = StateNormal
	c.adaptingLeft = 0
	c.lastArm = -1

	w := retrieval.DefaultWeights()
	c.active.Store(&w)

	c.record(AuditEvent{
		Type:    EventReset,
		Arm:     -1,
		Weights: w,
		Detail:  reason,
	})
}
