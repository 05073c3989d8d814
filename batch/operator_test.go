package batch

import (
	"context"
	"testing"

	"github.com/huacc/sf-rdf-acl/config"
	"github.com/huacc/sf-rdf-acl/rdfclient"
	"github.com/huacc/sf-rdf-acl/rdfclienttest"
)

func TestApplyTemplateChunksAndInserts(t *testing.T) {
	store := rdfclienttest.NewStore()
	op := NewOperator(store, 2, config.DefaultRetryPolicy(), nil)
	graph := "http://example.org/g"

	tmpl := Template{
		Pattern: `<http://example.org/{?id}> <http://example.org/p> "{?val}" .`,
		Bindings: []map[string]string{
			{"id": "e1", "val": "a"},
			{"id": "e2", "val": "b"},
			{"id": "e3", "val": "c"},
		},
	}

	res, err := op.ApplyTemplate(context.Background(), tmpl, graph, "trace-1", false)
	if err != nil {
		t.Fatalf("ApplyTemplate: %v", err)
	}
	if res.Total != 3 || res.Success != 3 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if store.GraphSize(graph) != 3 {
		t.Fatalf("expected 3 triples inserted, got %d", store.GraphSize(graph))
	}
}

func TestApplyTemplateDryRunIssuesNoUpdate(t *testing.T) {
	store := rdfclienttest.NewStore()
	op := NewOperator(store, 2, config.DefaultRetryPolicy(), nil)
	graph := "http://example.org/g"

	tmpl := Template{
		Pattern:  `<http://example.org/{?id}> <http://example.org/p> "v" .`,
		Bindings: []map[string]string{{"id": "e1"}, {"id": "e2"}},
	}

	res, err := op.ApplyTemplate(context.Background(), tmpl, graph, "trace-1", true)
	if err != nil {
		t.Fatalf("ApplyTemplate: %v", err)
	}
	if res.Total != 2 || res.Success != 2 {
		t.Fatalf("unexpected dry-run result: %+v", res)
	}
	if store.GraphExists(graph) {
		t.Fatal("dry_run must not issue any UPDATE")
	}
}

// failingOnceClient fails exactly the named chunk-sized Update once,
// simulating a chunk that fails outright so ApplyTemplate falls back to
// per-item submission; the per-item INSERT DATA text differs from the
// chunk's so it is not itself in failChunks and succeeds immediately.
type failingOnceClient struct {
	rdfclient.RDFClient
	failChunks map[string]bool
}

func (f *failingOnceClient) Update(ctx context.Context, update string, opts rdfclient.CallOptions) (*rdfclient.UpdateResult, error) {
	if f.failChunks[update] {
		delete(f.failChunks, update)
		return nil, context.DeadlineExceeded
	}
	return f.RDFClient.Update(ctx, update, opts)
}

func TestApplyTemplateFallsBackToPerItemOnChunkFailure(t *testing.T) {
	store := rdfclienttest.NewStore()
	graph := "http://example.org/g"

	tmpl := Template{
		Pattern: `<http://example.org/{?id}> <http://example.org/p> "v" .`,
		Bindings: []map[string]string{
			{"id": "e1"}, {"id": "e2"},
		},
	}
	chunkQuery := `INSERT DATA { GRAPH <` + graph + `> { <http://example.org/e1> <http://example.org/p> "v" . <http://example.org/e2> <http://example.org/p> "v" . } }`

	client := &failingOnceClient{RDFClient: store, failChunks: map[string]bool{chunkQuery: true}}
	retries := config.RetryPolicy{MaxAttempts: 3, BackoffSeconds: 0.001, BackoffMultiplier: 2.0, JitterSeconds: 0}
	op := NewOperator(client, 10, retries, nil)

	res, err := op.ApplyTemplate(context.Background(), tmpl, graph, "trace-1", false)
	if err != nil {
		t.Fatalf("ApplyTemplate: %v", err)
	}
	if res.Success != 2 || res.Failed != 0 {
		t.Fatalf("expected per-item fallback to recover both items, got %+v", res)
	}
	if store.GraphSize(graph) != 2 {
		t.Fatalf("expected both triples inserted via fallback, got %d", store.GraphSize(graph))
	}
}
