// Package postgres provides the PostgreSQL-backed strategy backends: vector
// similarity over pgvector embeddings, semantic lookup against derived fact
// nodes, and bounded traversal over the entity-relationship graph.
//
// Each backend depends on a narrow Querier interface rather than a concrete
// pool, so tests run against hand-written fakes. The expected schema lives
// in db/migrations.
package postgres

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"

	"github.com/koopa0/rae/internal/retrieval"
)

// Querier is the subset of pgxpool.Pool the backends need. Interfaces are
// defined by the consumer; *pgxpool.Pool satisfies this directly.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// VectorDimension is the embedding width the schema stores. The embedder is
// asked to truncate to this dimensionality.
const VectorDimension int32 = 768

// embedText generates the query embedding, truncated to VectorDimension.
func embedText(ctx context.Context, embedder ai.Embedder, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// filterClauses appends the shared memory filters (time range, tags,
// importance) to a WHERE clause under construction. The filter columns live
// on memories; queries that reach them through a join pass their table alias
// as qualifier (e.g. "m."). args must already hold the leading placeholders;
// the returned args include any appended values.
func filterClauses(where string, args []any, f retrieval.Filters, qualifier string) (string, []any) {
	if f.TimeRange != nil {
		if !f.TimeRange.Start.IsZero() {
			args = append(args, f.TimeRange.Start)
			where += fmt.Sprintf(" AND %screated_at >= $%d", qualifier, len(args))
		}
		if !f.TimeRange.End.IsZero() {
			args = append(args, f.TimeRange.End)
			where += fmt.Sprintf(" AND %screated_at <= $%d", qualifier, len(args))
		}
	}
	if len(f.Tags) > 0 {
		args = append(args, f.Tags)
		where += fmt.Sprintf(" AND %stags @> $%d", qualifier, len(args))
	}
	if f.MinImportance > 0 {
		args = append(args, f.MinImportance)
		where += fmt.Sprintf(" AND %simportance >= $%d", qualifier, len(args))
	}
	return where, args
}

// collectCandidates drains rows of (id, score, created_at) into candidates.
func collectCandidates(rows pgx.Rows) ([]retrieval.Candidate, error) {
	defer rows.Close()

	var out []retrieval.Candidate
	for rows.Next() {
		var c retrieval.Candidate
		if err := rows.Scan(&c.ID, &c.RawScore, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading candidates: %w", err)
	}
	return out, nil
}
