package graphmgr

import (
	"context"
	"testing"

	"github.com/huacc/sf-rdf-acl/rdfclient"
	"github.com/huacc/sf-rdf-acl/rdfclienttest"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
	"github.com/huacc/sf-rdf-acl/sparqldsl"
)

func seedThreeTriples(store *rdfclienttest.Store, graph string) {
	store.Seed(graph, [][3]string{
		{"<http://example.org/e1>", "<http://example.org/p1>", `"keep"`},
		{"<http://example.org/e2>", "<http://example.org/p1>", `"drop1"`},
		{"<http://example.org/e3>", "<http://example.org/p1>", `"drop2"`},
	})
}

func TestConditionalClearDryRunDoesNotMutate(t *testing.T) {
	store := rdfclienttest.NewStore()
	mgr := testManager(store)
	graph := "http://example.org/g1"
	seedThreeTriples(store, graph)

	cond := Condition{
		Patterns: []TriplePattern{{}},
		ObjectType: ObjectLiteral,
	}
	dry, clear, err := mgr.ConditionalClear(context.Background(), graph, cond, true, 100, rdfclient.CallOptions{})
	if err != nil {
		t.Fatalf("ConditionalClear: %v", err)
	}
	if clear != nil {
		t.Fatal("dry_run=true must not return a ClearResult")
	}
	if dry.EstimatedDeletes != 3 {
		t.Fatalf("estimated_deletes = %d, want 3", dry.EstimatedDeletes)
	}
	if store.GraphSize(graph) != 3 {
		t.Fatalf("dry run must not mutate the graph, got %d triples", store.GraphSize(graph))
	}
}

func TestConditionalClearExecutesWithFilter(t *testing.T) {
	store := rdfclienttest.NewStore()
	mgr := testManager(store)
	graph := "http://example.org/g1"
	seedThreeTriples(store, graph)

	subj := sparqldsl.IRI("http://example.org/e2")
	cond := Condition{Patterns: []TriplePattern{{S: &subj}}}
	_, clear, err := mgr.ConditionalClear(context.Background(), graph, cond, false, 10, rdfclient.CallOptions{})
	if err != nil {
		t.Fatalf("ConditionalClear: %v", err)
	}
	if !clear.Executed {
		t.Fatal("expected Executed=true")
	}
	if clear.DeletedCount != 1 {
		t.Fatalf("deleted_count = %d, want 1", clear.DeletedCount)
	}
	if store.GraphSize(graph) != 2 {
		t.Fatalf("expected 2 surviving triples, got %d", store.GraphSize(graph))
	}
}

func TestConditionalClearExecutesWithObjectTypeFilter(t *testing.T) {
	store := rdfclienttest.NewStore()
	mgr := testManager(store)
	graph := "http://example.org/g1"
	store.Seed(graph, [][3]string{
		{"<http://example.org/e1>", "<http://example.org/p1>", `"literal-keep"`},
		{"<http://example.org/e2>", "<http://example.org/p1>", "<http://example.org/iri-drop>"},
		{"<http://example.org/e3>", "<http://example.org/p1>", "<http://example.org/iri-drop2>"},
	})

	cond := Condition{Patterns: []TriplePattern{{}}, ObjectType: ObjectIRI}
	_, clear, err := mgr.ConditionalClear(context.Background(), graph, cond, false, 10, rdfclient.CallOptions{})
	if err != nil {
		t.Fatalf("ConditionalClear: %v", err)
	}
	if !clear.Executed {
		t.Fatal("expected Executed=true")
	}
	if clear.DeletedCount != 2 {
		t.Fatalf("deleted_count = %d, want 2", clear.DeletedCount)
	}
	if store.GraphSize(graph) != 1 {
		t.Fatalf("expected 1 surviving triple (the literal), got %d", store.GraphSize(graph))
	}
}

func TestConditionalClearFailsWhenCeilingExceeded(t *testing.T) {
	store := rdfclienttest.NewStore()
	mgr := testManager(store)
	graph := "http://example.org/g1"
	seedThreeTriples(store, graph)

	cond := Condition{Patterns: []TriplePattern{{}}}
	_, _, err := mgr.ConditionalClear(context.Background(), graph, cond, false, 1, rdfclient.CallOptions{})
	if !sfrdferr.Is(err, sfrdferr.KindDeleteCeilingExceeded) {
		t.Fatalf("expected DeleteCeilingExceeded, got %v", err)
	}
	if store.GraphSize(graph) != 3 {
		t.Fatalf("a ceiling-exceeded call must not delete anything, got %d", store.GraphSize(graph))
	}
}
