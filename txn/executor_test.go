package txn

import (
	"context"
	"testing"
	"time"

	"github.com/huacc/sf-rdf-acl/config"
	"github.com/huacc/sf-rdf-acl/graphmgr"
	"github.com/huacc/sf-rdf-acl/rdfclient"
	"github.com/huacc/sf-rdf-acl/rdfclienttest"
	"github.com/huacc/sf-rdf-acl/sparqldsl"
	"github.com/huacc/sf-rdf-acl/upsert"
)

func testExecutor(store *rdfclienttest.Store, captureSnapshots bool) *Executor {
	planner := upsert.NewPlanner("sf", "urn:{ns}:{model}:{version}:{env}")
	mgr := graphmgr.NewManager(store, config.Config{Graph: config.Graph{Naming: config.DefaultGraphNaming()}}, nil)
	return NewExecutor(store, planner, mgr, captureSnapshots, nil)
}

var fixedNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func TestUpsertReplaceScenarioS3(t *testing.T) {
	store := rdfclienttest.NewStore()
	ex := testExecutor(store, false)
	graph := "http://example.org/g"

	req := upsert.Request{
		Graph: sparqldsl.GraphRef{Name: graph},
		Triples: []sparqldsl.Triple{
			{S: sparqldsl.IRI("http://example.org/e1"), P: sparqldsl.Curie("rdfs", "label", "http://www.w3.org/2000/01/rdf-schema#label"), O: sparqldsl.Literal("A")},
			{S: sparqldsl.IRI("http://example.org/e1"), P: sparqldsl.Curie("rdfs", "label", "http://www.w3.org/2000/01/rdf-schema#label"), O: sparqldsl.Literal("B")},
		},
		UpsertKey:     upsert.KeySubjectPred,
		MergeStrategy: upsert.StrategyReplace,
	}

	res, err := ex.Upsert(context.Background(), req, fixedNow, "trace-1", "")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if res.State != StateSucceeded {
		t.Fatalf("state = %v, want Succeeded", res.State)
	}
	if res.Applied != 1 || res.Statements != 1 {
		t.Fatalf("applied=%d statements=%d, want 1/1", res.Applied, res.Statements)
	}
	if store.GraphSize(graph) != 2 {
		t.Fatalf("expected only A and B to remain under the (s,p) key, got %d triples", store.GraphSize(graph))
	}
}

func TestUpsertIgnoreRecordsConflictButStillExecutes(t *testing.T) {
	store := rdfclienttest.NewStore()
	graph := "http://example.org/g"
	store.Seed(graph, [][3]string{{"<http://example.org/e1>", "<http://example.org/p>", `"existing"`}})
	ex := testExecutor(store, false)

	req := upsert.Request{
		Graph: sparqldsl.GraphRef{Name: graph},
		Triples: []sparqldsl.Triple{
			{S: sparqldsl.IRI("http://example.org/e1"), P: sparqldsl.IRI("http://example.org/p"), O: sparqldsl.Literal("existing")},
			{S: sparqldsl.IRI("http://example.org/e2"), P: sparqldsl.IRI("http://example.org/p"), O: sparqldsl.Literal("new")},
		},
		UpsertKey:     upsert.KeySubject,
		MergeStrategy: upsert.StrategyIgnore,
	}

	res, err := ex.Upsert(context.Background(), req, fixedNow, "trace-2", "")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected exactly one conflict for the pre-existing triple, got %d", len(res.Conflicts))
	}
	if res.Applied != res.Statements {
		t.Fatalf("ignore conflicts must not block execution: applied=%d statements=%d", res.Applied, res.Statements)
	}
	if store.GraphSize(graph) != 2 {
		t.Fatalf("expected both the existing and the new triple present, got %d", store.GraphSize(graph))
	}
}

func TestUpsertRepeatedAppendIsIdempotent(t *testing.T) {
	store := rdfclienttest.NewStore()
	ex := testExecutor(store, false)
	req := upsert.Request{
		Graph:         sparqldsl.GraphRef{Name: "http://example.org/g"},
		Triples:       []sparqldsl.Triple{{S: sparqldsl.IRI("http://example.org/e1"), P: sparqldsl.IRI("http://example.org/p"), O: sparqldsl.Literal("v")}},
		UpsertKey:     upsert.KeySubject,
		MergeStrategy: upsert.StrategyAppend,
	}

	res1, err := ex.Upsert(context.Background(), req, fixedNow, "t1", "")
	if err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	res2, err := ex.Upsert(context.Background(), req, fixedNow, "t2", "")
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if res1.Graph != res2.Graph || res1.Statements != res2.Statements {
		t.Fatalf("identical requests should plan identically: %+v vs %+v", res1, res2)
	}
	if store.GraphSize("http://example.org/g") != 1 {
		t.Fatalf("append is idempotent for the same triple, want 1 triple, got %d", store.GraphSize("http://example.org/g"))
	}
}

func TestUpsertReplaceCapturesSnapshot(t *testing.T) {
	store := rdfclienttest.NewStore()
	graph := "http://example.org/g"
	store.Seed(graph, [][3]string{{"<http://example.org/e1>", "rdfs:label", `"original"`}})
	ex := testExecutor(store, true)

	req := upsert.Request{
		Graph: sparqldsl.GraphRef{Name: graph},
		Triples: []sparqldsl.Triple{
			{S: sparqldsl.IRI("http://example.org/e1"), P: sparqldsl.Curie("rdfs", "label", "http://www.w3.org/2000/01/rdf-schema#label"), O: sparqldsl.Literal("replacement")},
		},
		UpsertKey:     upsert.KeySubjectPred,
		MergeStrategy: upsert.StrategyReplace,
	}

	res, err := ex.Upsert(context.Background(), req, fixedNow, "trace-3", "")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if res.SnapshotIRI == "" {
		t.Fatal("expected a snapshot to be captured for a replace-strategy plan")
	}
	if store.GraphSize(graph) != 1 {
		t.Fatalf("expected the replaced triple to remain, got %d", store.GraphSize(graph))
	}
}

func TestUpsertReportsAuditIDOnlyWithProvenance(t *testing.T) {
	store := rdfclienttest.NewStore()
	ex := testExecutor(store, false)
	req := upsert.Request{
		Graph:         sparqldsl.GraphRef{Name: "http://example.org/g"},
		Triples:       []sparqldsl.Triple{{S: sparqldsl.IRI("http://example.org/e1"), P: sparqldsl.IRI("http://example.org/p"), O: sparqldsl.Literal("v")}},
		UpsertKey:     upsert.KeySubject,
		MergeStrategy: upsert.StrategyAppend,
	}

	res, err := ex.Upsert(context.Background(), req, fixedNow, "t1", "")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if res.AuditID != "" {
		t.Fatal("expected empty audit id without provenance")
	}

	req.Provenance = &upsert.Provenance{ActorIRI: "http://example.org/actor", Timestamp: "2026-08-01T00:00:00Z"}
	res, err = ex.Upsert(context.Background(), req, fixedNow, "t2", "actor")
	if err != nil {
		t.Fatalf("Upsert with provenance: %v", err)
	}
	if res.AuditID == "" {
		t.Fatal("expected a non-empty audit id when provenance is set")
	}
	if res.TxID == "" {
		t.Fatal("expected a non-empty tx id")
	}
}

var _ rdfclient.RDFClient = (*rdfclienttest.Store)(nil)
