package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/koopa0/rae/internal/log"
	"github.com/koopa0/rae/internal/retrieval"
)

// DefaultMaxDepth bounds the breadth-first traversal.
const DefaultMaxDepth = 3

// GraphBackend discovers memories connected by relationship rather than
// similarity: a bounded breadth-first traversal over the entity graph,
// seeded from the analyzer's extracted entities, following edges in both
// directions. Raw scores decay with discovery depth, so directly linked
// memories outrank distant ones.
type GraphBackend struct {
	q        Querier
	maxDepth int
	logger   log.Logger
}

// NewGraphBackend creates the graph strategy backend. maxDepth <= 0 takes
// DefaultMaxDepth.
func NewGraphBackend(q Querier, maxDepth int, logger log.Logger) (*GraphBackend, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphBackend{q: q, maxDepth: maxDepth, logger: logger}, nil
}

// Search implements retrieval.Backend. No extracted entities, or entities
// unknown to the graph, is a legitimate zero-match result, not a failure.
func (b *GraphBackend) Search(ctx context.Context, req retrieval.Request) ([]retrieval.Candidate, error) {
	seeds, err := b.resolveSeeds(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	depths, err := b.traverse(ctx, req.Query.Tenant, seeds)
	if err != nil {
		return nil, err
	}

	return b.memoriesFor(ctx, req, depths)
}

// resolveSeeds maps extracted entity names to graph node IDs.
func (b *GraphBackend) resolveSeeds(ctx context.Context, req retrieval.Request) ([]int64, error) {
	if len(req.Analysis.Entities) == 0 {
		return nil, nil
	}

	names := make([]string, len(req.Analysis.Entities))
	for i, e := range req.Analysis.Entities {
		names[i] = strings.ToLower(e)
	}

	rows, err := b.q.Query(ctx, `
		SELECT id FROM entities
		WHERE tenant_id = $1 AND project_id = $2 AND lower(name) = ANY($3)`,
		req.Query.Tenant, req.Query.Project, names)
	if err != nil {
		return nil, fmt.Errorf("resolving entity seeds: %w", err)
	}
	defer rows.Close()

	var seeds []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning entity seed: %w", err)
		}
		seeds = append(seeds, id)
	}
	return seeds, rows.Err()
}

// traverse runs the bounded BFS: one relation query per depth level,
// following edges bidirectionally. Returns each reached entity's minimum
// discovery depth (seeds are depth 0).
func (b *GraphBackend) traverse(ctx context.Context, tenant string, seeds []int64) (map[int64]int, error) {
	depths := make(map[int64]int, len(seeds))
	frontier := seeds
	for _, id := range seeds {
		depths[id] = 0
	}

	for depth := 1; depth <= b.maxDepth && len(frontier) > 0; depth++ {
		rows, err := b.q.Query(ctx, `
			SELECT src_id, dst_id FROM relations
			WHERE tenant_id = $1 AND (src_id = ANY($2) OR dst_id = ANY($2))`,
			tenant, frontier)
		if err != nil {
			return nil, fmt.Errorf("expanding graph frontier at depth %d: %w", depth, err)
		}

		var next []int64
		for rows.Next() {
			var src, dst int64
			if err := rows.Scan(&src, &dst); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning relation: %w", err)
			}
			for _, id := range []int64{src, dst} {
				if _, ok := depths[id]; !ok {
					depths[id] = depth
					next = append(next, id)
				}
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("reading relations: %w", err)
		}
		rows.Close()
		frontier = next
	}
	return depths, nil
}

// memoriesFor fetches the memories attached to reached entities, scoring
// each by 1/(1+depth) of its closest entity.
func (b *GraphBackend) memoriesFor(ctx context.Context, req retrieval.Request, depths map[int64]int) ([]retrieval.Candidate, error) {
	ids := make([]int64, 0, len(depths))
	for id := range depths {
		ids = append(ids, id)
	}

	args := []any{req.Query.Tenant, req.Query.Project, ids}
	where := `m.active AND m.tenant_id = $1 AND m.project_id = $2 AND me.entity_id = ANY($3)`
	where, args = filterClauses(where, args, req.Query.Filters, "m.")

	sql := fmt.Sprintf(`
		SELECT m.id, me.entity_id, m.created_at
		FROM memories m
		JOIN memory_entities me ON me.memory_id = m.id
		WHERE %s`, where)

	rows, err := b.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching linked memories: %w", err)
	}
	defer rows.Close()

	best := make(map[string]retrieval.Candidate)
	for rows.Next() {
		var c retrieval.Candidate
		var entityID int64
		if err := rows.Scan(&c.ID, &entityID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning linked memory: %w", err)
		}
		c.RawScore = 1.0 / float64(1+depths[entityID])
		if prev, ok := best[c.ID]; !ok || c.RawScore > prev.RawScore {
			best[c.ID] = c
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading linked memories: %w", err)
	}

	out := make([]retrieval.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RawScore != out[j].RawScore {
			return out[i].RawScore > out[j].RawScore
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > req.TopK {
		out = out[:req.TopK]
	}
	return out, nil
}
