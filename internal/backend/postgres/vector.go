package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"

	"github.com/koopa0/rae/internal/log"
	"github.com/koopa0/rae/internal/retrieval"
)

// VectorBackend retrieves memories by nearest-neighbor cosine similarity
// over pgvector embeddings. Best for paraphrase and semantic matches.
type VectorBackend struct {
	q        Querier
	embedder ai.Embedder
	logger   log.Logger
}

// NewVectorBackend creates the vector strategy backend.
func NewVectorBackend(q Querier, embedder ai.Embedder, logger log.Logger) (*VectorBackend, error) {
	if q == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorBackend{q: q, embedder: embedder, logger: logger}, nil
}

// Search implements retrieval.Backend. Raw scores are cosine similarities.
func (b *VectorBackend) Search(ctx context.Context, req retrieval.Request) ([]retrieval.Candidate, error) {
	embedding, err := embedText(ctx, b.embedder, req.Query.Text)
	if err != nil {
		return nil, err
	}

	args := []any{embedding, req.Query.Tenant, req.Query.Project}
	where := `active AND tenant_id = $2 AND project_id = $3`
	where, args = filterClauses(where, args, req.Query.Filters, "")

	args = append(args, req.TopK)
	sql := fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1) AS score, created_at
		FROM memories
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d`, where, len(args))

	rows, err := b.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return collectCandidates(rows)
}
