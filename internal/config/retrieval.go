package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// RetrievalConfig tunes the hybrid retrieval engine: pipeline deadlines, the
// search cache, and the adaptive weight controller.
type RetrievalConfig struct {
	// StrategyTimeout bounds each strategy independently.
	StrategyTimeout time.Duration `mapstructure:"strategy_timeout"`

	// OverallDeadline bounds the whole fan-out.
	OverallDeadline time.Duration `mapstructure:"overall_deadline"`

	// CacheTTL is how long a fused ranking stays memoized.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// CacheBucket is the time-bucket width in the cache key.
	CacheBucket time.Duration `mapstructure:"cache_bucket"`

	// CacheCapacity is the LRU entry limit.
	CacheCapacity int `mapstructure:"cache_capacity"`

	// BanditWindow is the sliding reward window size N per arm.
	BanditWindow int `mapstructure:"bandit_window"`

	// Exploration is the UCB exploration coefficient.
	Exploration float64 `mapstructure:"exploration"`

	// AdaptingObservations is how many reward observations the widened
	// exploration phase after a change point lasts.
	AdaptingObservations int `mapstructure:"adapting_observations"`

	// DriftThreshold is the CUSUM threshold multiplier k.
	DriftThreshold float64 `mapstructure:"drift_threshold"`

	// GraphMaxDepth bounds the entity-graph traversal.
	GraphMaxDepth int `mapstructure:"graph_max_depth"`

	// UnderstandingModel is the model used for query classification.
	// Empty disables the LLM analyzer (rule-based classification only).
	UnderstandingModel string `mapstructure:"understanding_model"`

	// UnderstandingRPS and UnderstandingBurst rate-limit the LLM
	// understanding calls.
	UnderstandingRPS   float64 `mapstructure:"understanding_rps"`
	UnderstandingBurst int     `mapstructure:"understanding_burst"`
}

func setRetrievalDefaults(v *viper.Viper) {
	v.SetDefault("retrieval.strategy_timeout", "2s")
	v.SetDefault("retrieval.overall_deadline", "5s")
	v.SetDefault("retrieval.cache_ttl", "300s")
	v.SetDefault("retrieval.cache_bucket", "60s")
	v.SetDefault("retrieval.cache_capacity", 1024)
	v.SetDefault("retrieval.bandit_window", 100)
	v.SetDefault("retrieval.exploration", 0.6)
	v.SetDefault("retrieval.adapting_observations", 50)
	v.SetDefault("retrieval.drift_threshold", 4.0)
	v.SetDefault("retrieval.graph_max_depth", 3)
	v.SetDefault("retrieval.understanding_model", "")
	v.SetDefault("retrieval.understanding_rps", 10.0)
	v.SetDefault("retrieval.understanding_burst", 30)
}

// Validate range-checks the section.
func (c RetrievalConfig) Validate() error {
	if c.StrategyTimeout <= 0 {
		return fmt.Errorf("%w: strategy_timeout %v", ErrInvalidTimeout, c.StrategyTimeout)
	}
	if c.OverallDeadline <= 0 {
		return fmt.Errorf("%w: overall_deadline %v", ErrInvalidTimeout, c.OverallDeadline)
	}
	if c.OverallDeadline < c.StrategyTimeout {
		return fmt.Errorf("%w: overall_deadline %v shorter than strategy_timeout %v",
			ErrInvalidTimeout, c.OverallDeadline, c.StrategyTimeout)
	}
	if c.CacheTTL <= 0 || c.CacheBucket <= 0 {
		return fmt.Errorf("%w: ttl %v, bucket %v", ErrInvalidCache, c.CacheTTL, c.CacheBucket)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("%w: capacity %d", ErrInvalidCache, c.CacheCapacity)
	}
	if c.BanditWindow < 2 {
		return fmt.Errorf("%w: bandit_window %d", ErrInvalidController, c.BanditWindow)
	}
	if c.Exploration <= 0 {
		return fmt.Errorf("%w: exploration %v", ErrInvalidController, c.Exploration)
	}
	if c.AdaptingObservations < 1 {
		return fmt.Errorf("%w: adapting_observations %d", ErrInvalidController, c.AdaptingObservations)
	}
	if c.DriftThreshold <= 0 {
		return fmt.Errorf("%w: drift_threshold %v", ErrInvalidController, c.DriftThreshold)
	}
	if c.GraphMaxDepth < 1 || c.GraphMaxDepth > 10 {
		return fmt.Errorf("%w: graph_max_depth %d", ErrInvalidController, c.GraphMaxDepth)
	}
	if c.UnderstandingRPS <= 0 {
		return fmt.Errorf("%w: understanding_rps %v", ErrInvalidController, c.UnderstandingRPS)
	}
	if c.UnderstandingBurst < 1 {
		return fmt.Errorf("%w: understanding_burst %d", ErrInvalidController, c.UnderstandingBurst)
	}
	return nil
}
