package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/koopa0/rae/internal/log"
	"github.com/koopa0/rae/internal/retrieval"
)

// SemanticBackend retrieves derived fact/definition nodes distilled from raw
// memories. Best for concept queries: it matches the analyzer's concepts
// (falling back to the raw text) against the facts' indexed content.
type SemanticBackend struct {
	q      Querier
	logger log.Logger
}

// NewSemanticBackend creates the semantic strategy backend.
func NewSemanticBackend(q Querier, logger log.Logger) (*SemanticBackend, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SemanticBackend{q: q, logger: logger}, nil
}

// Search implements retrieval.Backend. Facts are ranked with ts_rank_cd over
// their generated tsvector, then resolved to their source memories: results
// carry memory IDs so fusion can corroborate them against the other
// strategies, and the shared filters apply to the memory columns they name.
// A memory backed by several matching facts keeps its best rank.
func (b *SemanticBackend) Search(ctx context.Context, req retrieval.Request) ([]retrieval.Candidate, error) {
	needle := strings.Join(req.Analysis.Concepts, " ")
	if needle == "" {
		needle = req.Query.Text
	}

	args := []any{needle, req.Query.Tenant, req.Query.Project}
	where := `m.active AND f.tenant_id = $2 AND f.project_id = $3 AND f.search @@ q`
	where, args = filterClauses(where, args, req.Query.Filters, "m.")

	args = append(args, req.TopK)
	sql := fmt.Sprintf(`
		SELECT m.id, max(ts_rank_cd(f.search, q)) AS score, m.created_at
		FROM facts f
		JOIN memories m ON m.id = f.memory_id,
		websearch_to_tsquery('english', $1) q
		WHERE %s
		GROUP BY m.id
		ORDER BY score DESC
		LIMIT $%d`, where, len(args))

	rows, err := b.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return collectCandidates(rows)
}
