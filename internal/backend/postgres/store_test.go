package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koopa0/rae/internal/retrieval"
)

func filtersNone() retrieval.Filters { return retrieval.Filters{} }

func filtersAll(start, end time.Time) retrieval.Filters {
	return retrieval.Filters{
		TimeRange:     &retrieval.TimeRange{Start: start, End: end},
		Tags:          []string{"infra"},
		MinImportance: 0.5,
	}
}

// fakeRows is a scripted pgx.Rows over literal row values.
type fakeRows struct {
	rows   [][]any
	idx    int
	rowErr error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan arity %d, row has %d", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *float64:
			*p = row[i].(float64)
		case *int64:
			*p = row[i].(int64)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return fmt.Errorf("unsupported scan destination %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Err() error                                   { return r.rowErr }
func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

type queryCall struct {
	sql  string
	args []any
}

// fakeQuerier records every query and answers from per-fragment queues: the
// first route whose fragment appears in the SQL serves its next response.
type fakeQuerier struct {
	calls  []queryCall
	routes []route
	err    error
}

type route struct {
	fragment  string
	responses []*fakeRows
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.calls = append(q.calls, queryCall{sql: sql, args: args})
	if q.err != nil {
		return nil, q.err
	}
	for i := range q.routes {
		r := &q.routes[i]
		if !strings.Contains(sql, r.fragment) {
			continue
		}
		if len(r.responses) == 0 {
			return &fakeRows{}, nil
		}
		resp := r.responses[0]
		r.responses = r.responses[1:]
		return resp, nil
	}
	return &fakeRows{}, nil
}

// singleRoute answers every query from one response.
func singleRoute(rows *fakeRows) *fakeQuerier {
	return &fakeQuerier{routes: []route{{fragment: "", responses: []*fakeRows{rows}}}}
}

// fakeEmbedder returns a fixed embedding.
type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

func (f *fakeEmbedder) Register(api.Registry) {}

func (f *fakeEmbedder) Embed(_ context.Context, _ *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ai.EmbedResponse{Embeddings: []*ai.Embedding{{Embedding: f.vec}}}, nil
}

func TestFilterClauses(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	where, args := filterClauses("tenant_id = $1", []any{"t1"}, filtersAll(start, end), "")

	want := "tenant_id = $1 AND created_at >= $2 AND created_at <= $3 AND tags @> $4 AND importance >= $5"
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if len(args) != 5 {
		t.Fatalf("args = %d, want 5", len(args))
	}
	if args[1] != start || args[2] != end {
		t.Errorf("time range args = %v, %v", args[1], args[2])
	}
	if args[4] != 0.5 {
		t.Errorf("importance arg = %v, want 0.5", args[4])
	}
}

func TestFilterClausesQualified(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	where, _ := filterClauses("m.active", nil, filtersAll(start, end), "m.")

	want := "m.active AND m.created_at >= $1 AND m.created_at <= $2 AND m.tags @> $3 AND m.importance >= $4"
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
}

func TestFilterClausesEmpty(t *testing.T) {
	where, args := filterClauses("tenant_id = $1", []any{"t1"}, filtersNone(), "")
	if where != "tenant_id = $1" {
		t.Errorf("where = %q, filters added without values", where)
	}
	if len(args) != 1 {
		t.Errorf("args = %d, want unchanged 1", len(args))
	}
}

func TestCollectCandidates(t *testing.T) {
	now := time.Now()
	rows := &fakeRows{rows: [][]any{
		{"m1", 0.9, now},
		{"m2", 0.4, now},
	}}

	got, err := collectCandidates(rows)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d, want 2", len(got))
	}
	if got[0].ID != "m1" || got[0].RawScore != 0.9 {
		t.Errorf("first candidate = %+v", got[0])
	}
	if !rows.closed {
		t.Error("rows left open")
	}
}

func TestCollectCandidatesRowError(t *testing.T) {
	rows := &fakeRows{rowErr: fmt.Errorf("connection reset")}
	if _, err := collectCandidates(rows); err == nil {
		t.Error("row error swallowed")
	}
	if !rows.closed {
		t.Error("rows left open after error")
	}
}
