package mapper

import "testing"

const sampleTurtle = `<http://example.org/e1> rdf:type <http://example.org/Person> .
<http://example.org/e1> rdfs:label "Ada" .
<http://example.org/e1> <http://example.org/knows> <http://example.org/e2> .
`

func TestFormatGraphTurtleIsIdentity(t *testing.T) {
	out, err := FormatGraph(sampleTurtle, FormatTurtle, nil)
	if err != nil {
		t.Fatalf("FormatGraph: %v", err)
	}
	if out.(string) != sampleTurtle {
		t.Fatal("turtle format must return the input unchanged")
	}
}

func TestFormatGraphJSONLDWrapsExpandedForm(t *testing.T) {
	out, err := FormatGraph(sampleTurtle, FormatJSONLD, map[string]any{"@vocab": "http://example.org/"})
	if err != nil {
		t.Fatalf("FormatGraph: %v", err)
	}
	doc, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("expected a map, got %T", out)
	}
	if doc["@context"] == nil {
		t.Fatal("expected @context to be injected when supplied")
	}
	graph, ok := doc["@graph"].([]any)
	if !ok || len(graph) != 1 {
		t.Fatalf("expected one node under @graph, got %+v", doc["@graph"])
	}
	node := graph[0].(map[string]any)
	if node["@id"] != "<http://example.org/e1>" {
		t.Fatalf("unexpected @id: %v", node["@id"])
	}
}

func TestFormatGraphSimplifiedJSONSeparatesTypeLabelPropertiesEdges(t *testing.T) {
	out, err := FormatGraph(sampleTurtle, FormatSimplifiedJSON, nil)
	if err != nil {
		t.Fatalf("FormatGraph: %v", err)
	}
	g, ok := out.(*SimplifiedGraph)
	if !ok {
		t.Fatalf("expected *SimplifiedGraph, got %T", out)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes (e1 and e2), got %d", len(g.Nodes))
	}
	var e1 *SimplifiedNode
	for _, n := range g.Nodes {
		if n.ID == "<http://example.org/e1>" {
			e1 = n
		}
	}
	if e1 == nil {
		t.Fatal("expected a node for e1")
	}
	if e1.Type != "http://example.org/Person" {
		t.Fatalf("rdf:type should set Type, got %q", e1.Type)
	}
	if e1.Label != "Ada" {
		t.Fatalf("rdfs:label should set Label, got %q", e1.Label)
	}
	if len(g.Edges) != 1 || g.Edges[0].Predicate != "<http://example.org/knows>" {
		t.Fatalf("expected exactly one knows edge, got %+v", g.Edges)
	}
	for _, edges := range g.Edges {
		if edges.Predicate == rdfTypeCurie || edges.Predicate == rdfTypeIRI {
			t.Fatal("rdf:type must never produce an edge")
		}
	}
}

func TestFormatGraphUnknownFormatFails(t *testing.T) {
	if _, err := FormatGraph(sampleTurtle, Format("bogus"), nil); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}
