package projection

import (
	"context"
	"testing"

	"github.com/huacc/sf-rdf-acl/config"
	"github.com/huacc/sf-rdf-acl/rdfclient"
	"github.com/huacc/sf-rdf-acl/rdfclienttest"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
	"github.com/huacc/sf-rdf-acl/sparqldsl"
)

func testProjector(store *rdfclienttest.Store, profiles map[string]config.ProjectionProfile) *Projector {
	cfg := config.Config{Graph: config.Graph{ProjectionProfiles: profiles}}
	return NewProjector(store, cfg)
}

func seedSample(store *rdfclienttest.Store, graph string) {
	store.Seed(graph, [][3]string{
		{"<http://example.org/e1>", "<http://www.w3.org/1999/02/22-rdf-syntax-ns#type>", "<http://example.org/Person>"},
		{"<http://example.org/e1>", "<http://example.org/name>", `"Ada"`},
		{"<http://example.org/e1>", "<http://example.org/knows>", "<http://example.org/e2>"},
		{"<http://example.org/e2>", "<http://www.w3.org/1999/02/22-rdf-syntax-ns#type>", "<http://example.org/Person>"},
	})
}

func TestProjectBuildsNodesAndEdgesWithinProfileLimit(t *testing.T) {
	store := rdfclienttest.NewStore()
	graph := "http://example.org/g"
	seedSample(store, graph)

	profiles := map[string]config.ProjectionProfile{
		"default": {Limit: 100, IncludeLiterals: false, EdgePredicates: []string{rdfTypeIRI, "http://example.org/knows"}},
	}
	p := testProjector(store, profiles)

	res, err := p.Project(context.Background(), Source{Graph: sparqldsl.GraphRef{Name: graph}}, "default", nil, rdfclient.CallOptions{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if res.Stats.NodeCount != 2 {
		t.Fatalf("expected 2 nodes (e1, e2), got %d: %+v", res.Stats.NodeCount, res.Nodes)
	}
	if res.Stats.EdgeCount != 1 {
		t.Fatalf("expected 1 edge (knows), got %d: %+v", res.Stats.EdgeCount, res.Edges)
	}
	var e1 *Node
	for i := range res.Nodes {
		if res.Nodes[i].ID == "http://example.org/e1" {
			e1 = &res.Nodes[i]
		}
	}
	if e1 == nil {
		t.Fatal("expected a node for e1")
	}
	if e1.Type != "http://example.org/Person" {
		t.Fatalf("expected e1's rdf:type to be captured, got %q", e1.Type)
	}
}

func TestProjectRequestLimitMustBeBelowProfile(t *testing.T) {
	store := rdfclienttest.NewStore()
	graph := "http://example.org/g"
	seedSample(store, graph)

	profiles := map[string]config.ProjectionProfile{"default": {Limit: 10}}
	p := testProjector(store, profiles)

	_, err := p.Project(context.Background(), Source{Graph: sparqldsl.GraphRef{Name: graph}}, "default", &RequestLimit{Limit: 10}, rdfclient.CallOptions{})
	if !sfrdferr.Is(err, sfrdferr.KindLimitExceedsProfile) {
		t.Fatalf("expected KindLimitExceedsProfile, got %v", err)
	}
}

func TestProjectUnknownProfileFails(t *testing.T) {
	store := rdfclienttest.NewStore()
	p := testProjector(store, map[string]config.ProjectionProfile{})

	_, err := p.Project(context.Background(), Source{Graph: sparqldsl.GraphRef{Name: "http://example.org/g"}}, "missing", nil, rdfclient.CallOptions{})
	if !sfrdferr.Is(err, sfrdferr.KindInvalidConfig) {
		t.Fatalf("expected KindInvalidConfig, got %v", err)
	}
}

func TestProjectIncludeLiteralsAddsLiteralEdges(t *testing.T) {
	store := rdfclienttest.NewStore()
	graph := "http://example.org/g"
	seedSample(store, graph)

	profiles := map[string]config.ProjectionProfile{
		"withLiterals": {Limit: 100, IncludeLiterals: true},
	}
	p := testProjector(store, profiles)

	res, err := p.Project(context.Background(), Source{Graph: sparqldsl.GraphRef{Name: graph}}, "withLiterals", nil, rdfclient.CallOptions{})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	var sawNameEdge bool
	for _, e := range res.Edges {
		if e.Target == "Ada" {
			sawNameEdge = true
		}
	}
	if !sawNameEdge {
		t.Fatalf("expected a literal edge for the name triple when IncludeLiterals is set, got %+v", res.Edges)
	}
}
