// Package app wires configuration, storage, and the retrieval pipeline into
// a running application. Construction is plain sequential code: each provider
// returns its component and registers its cleanup, and cleanups run in
// reverse order on teardown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	blevesearch "github.com/blevesearch/bleve/v2"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/koopa0/rae/db"
	bleveback "github.com/koopa0/rae/internal/backend/bleve"
	"github.com/koopa0/rae/internal/backend/postgres"
	"github.com/koopa0/rae/internal/config"
	"github.com/koopa0/rae/internal/log"
	"github.com/koopa0/rae/internal/observability"
	"github.com/koopa0/rae/internal/retrieval"
	"github.com/koopa0/rae/internal/retrieval/analyzer"
	"github.com/koopa0/rae/internal/retrieval/cache"
	"github.com/koopa0/rae/internal/retrieval/controller"
	"github.com/koopa0/rae/internal/understanding"
)

// App holds the assembled retrieval pipeline and its infrastructure.
type App struct {
	Config     *config.Config
	Logger     log.Logger
	Engine     *retrieval.Engine
	Controller *controller.Controller
	Cache      *cache.Cache
	Index      blevesearch.Index
	Pool       *pgxpool.Pool
}

// Setup assembles the application from configuration. The returned cleanup
// function releases every acquired resource and is safe to call exactly once.
func Setup(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if cfg.Observability.TracingEnabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Observability.OTLPEndpoint,
			ServiceName: cfg.Observability.ServiceName,
		})
		if err != nil {
			return fail(fmt.Errorf("setting up tracing: %w", err))
		}
		cleanups = append(cleanups, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("failed to shut down tracer provider", "error", err)
			}
		})
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, pool.Close)

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return fail(fmt.Errorf("initializing genkit"))
	}
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.Storage.EmbedderModel)

	index, err := bleveback.Open(cfg.Storage.BleveIndexPath)
	if err != nil {
		return fail(fmt.Errorf("opening lexical index: %w", err))
	}
	cleanups = append(cleanups, func() {
		if err := index.Close(); err != nil {
			logger.Warn("failed to close lexical index", "error", err)
		}
	})

	engine, ctrl, searchCache, err := buildPipeline(cfg, logger, pool, embedder, g, index)
	if err != nil {
		return fail(err)
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Engine:     engine,
		Controller: ctrl,
		Cache:      searchCache,
		Index:      index,
		Pool:       pool,
	}, cleanup, nil
}

// buildPipeline assembles the four strategy backends, the analyzer, the
// weight controller, and the cache into an engine.
func buildPipeline(
	cfg *config.Config,
	logger log.Logger,
	pool *pgxpool.Pool,
	embedder ai.Embedder,
	g *genkit.Genkit,
	index blevesearch.Index,
) (*retrieval.Engine, *controller.Controller, *cache.Cache, error) {
	vector, err := postgres.NewVectorBackend(pool, embedder, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating vector backend: %w", err)
	}
	semantic, err := postgres.NewSemanticBackend(pool, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating semantic backend: %w", err)
	}
	graph, err := postgres.NewGraphBackend(pool, cfg.Retrieval.GraphMaxDepth, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating graph backend: %w", err)
	}
	fulltext, err := bleveback.NewBackend(index, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating fulltext backend: %w", err)
	}

	var u analyzer.Understanding
	if model := cfg.Retrieval.UnderstandingModel; model != "" {
		client, err := understanding.New(g, model,
			understanding.WithLogger(logger),
			understanding.WithRateLimit(rate.Limit(cfg.Retrieval.UnderstandingRPS), cfg.Retrieval.UnderstandingBurst),
		)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating understanding client: %w", err)
		}
		u = client
	}

	ctrl := controller.New("default", nil,
		controller.WithConfig(controller.Config{
			WindowSize:           cfg.Retrieval.BanditWindow,
			Exploration:          cfg.Retrieval.Exploration,
			AdaptingObservations: cfg.Retrieval.AdaptingObservations,
			DriftThreshold:       cfg.Retrieval.DriftThreshold,
		}),
		controller.WithLogger(logger),
	)
	searchCache := cache.New(cfg.Retrieval.CacheCapacity, cfg.Retrieval.CacheTTL, cfg.Retrieval.CacheBucket)

	engine, err := retrieval.NewEngine(
		map[retrieval.StrategyID]retrieval.Backend{
			retrieval.StrategyVector:   vector,
			retrieval.StrategySemantic: semantic,
			retrieval.StrategyGraph:    graph,
			retrieval.StrategyFulltext: fulltext,
		},
		retrieval.WithAnalyzer(analyzer.New(u, analyzer.WithLogger(logger))),
		retrieval.WithWeightSource(ctrl),
		retrieval.WithCache(searchCache),
		retrieval.WithLogger(logger),
		retrieval.WithStrategyTimeout(cfg.Retrieval.StrategyTimeout),
		retrieval.WithOverallDeadline(cfg.Retrieval.OverallDeadline),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, ctrl, searchCache, nil
}

func newLogger(cfg *config.Config) log.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Observability.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return log.New(log.Config{Level: level, JSON: cfg.Observability.LogJSON})
}

// newPool runs migrations, then creates the PostgreSQL connection pool and
// verifies connectivity. Migrations need a URL-form DSN; key/value DSNs skip
// them.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := cfg.Storage.PostgresDSN
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if err := db.Migrate(dsn); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	} else {
		slog.Warn("skipping migrations: DSN is not in URL form")
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}
