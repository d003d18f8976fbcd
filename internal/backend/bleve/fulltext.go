// Package bleve provides the lexical full-text strategy backend, built on a
// bleve index of memory content. Best for exact-term queries.
package bleve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/koopa0/rae/internal/log"
	"github.com/koopa0/rae/internal/retrieval"
)

// Document is one memory as indexed for lexical search.
type Document struct {
	Content    string    `json:"content"`
	Tenant     string    `json:"tenant"`
	Project    string    `json:"project"`
	Tags       []string  `json:"tags"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"created_at"`
}

// IndexMapping returns the document mapping the backend expects: standard
// analysis for content, keyword analysis for the scope and tag fields so
// they filter by exact term.
func IndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	doc.AddFieldMappingsAt("content", content)

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("tenant", exact)
	doc.AddFieldMappingsAt("project", exact)
	doc.AddFieldMappingsAt("tags", exact)

	importance := bleve.NewNumericFieldMapping()
	doc.AddFieldMappingsAt("importance", importance)

	created := bleve.NewDateTimeFieldMapping()
	doc.AddFieldMappingsAt("created_at", created)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Open opens (or creates) the index at path. An empty path creates an
// in-memory index, used by tests.
func Open(path string) (bleve.Index, error) {
	if path == "" {
		return bleve.NewMemOnly(IndexMapping())
	}
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return bleve.New(path, IndexMapping())
	}
	return idx, err
}

// Backend implements the full-text strategy over a bleve index.
type Backend struct {
	index  bleve.Index
	logger log.Logger
}

// NewBackend wraps an open index.
func NewBackend(index bleve.Index, logger log.Logger) (*Backend, error) {
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{index: index, logger: logger}, nil
}

// Index adds or replaces one memory document. Memory-write paths call this
// alongside their Postgres writes.
func (b *Backend) Index(id string, doc Document) error {
	return b.index.Index(id, doc)
}

// Delete removes one memory document.
func (b *Backend) Delete(id string) error {
	return b.index.Delete(id)
}

// Search implements retrieval.Backend. Raw scores are bleve's tf-idf style
// relevance scores.
func (b *Backend) Search(ctx context.Context, req retrieval.Request) ([]retrieval.Candidate, error) {
	match := bleve.NewMatchQuery(req.Query.Text)
	match.SetField("content")

	conjuncts := []query.Query{match, termQuery("tenant", req.Query.Tenant)}
	if req.Query.Project != "" {
		conjuncts = append(conjuncts, termQuery("project", req.Query.Project))
	}
	for _, tag := range req.Query.Filters.Tags {
		conjuncts = append(conjuncts, termQuery("tags", tag))
	}
	if req.Query.Filters.MinImportance > 0 {
		minImp := req.Query.Filters.MinImportance
		incl := true
		nr := bleve.NewNumericRangeInclusiveQuery(&minImp, nil, &incl, nil)
		nr.SetField("importance")
		conjuncts = append(conjuncts, nr)
	}
	if tr := req.Query.Filters.TimeRange; tr != nil {
		dr := bleve.NewDateRangeQuery(tr.Start, tr.End)
		dr.SetField("created_at")
		conjuncts = append(conjuncts, dr)
	}

	searchReq := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(conjuncts...), req.TopK, 0, false)
	searchReq.Fields = []string{"created_at"}

	res, err := b.index.SearchInContext(ctx, searchReq)
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}

	out := make([]retrieval.Candidate, 0, len(res.Hits))
	for _, hit := range res.Hits {
		c := retrieval.Candidate{ID: hit.ID, RawScore: hit.Score}
		if raw, ok := hit.Fields["created_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				c.CreatedAt = t
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func termQuery(field, term string) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}
