package sparqlbuild

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/huacc/sf-rdf-acl/sparqldsl"
)

// TestBuildSelectScenarioS1 matches spec.md scenario S1.
func TestBuildSelectScenarioS1(t *testing.T) {
	dsl := sparqldsl.QueryDSL{
		Type: sparqldsl.QueryRaw,
		Filters: []sparqldsl.Filter{
			{Field: "rdfs:label", Operator: sparqldsl.OpContains, Value: "demo"},
		},
		Page: &sparqldsl.Page{Size: 5},
	}
	got, err := BuildSelect(dsl, "http://example.org/g")
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}
	if !strings.Contains(got, `GRAPH <http://example.org/g> {`) {
		t.Fatalf("missing GRAPH wrap:\n%s", got)
	}
	if !strings.Contains(got, "?s ?p ?o .") {
		t.Fatalf("missing base triple pattern:\n%s", got)
	}
	if !strings.Contains(got, `FILTER(CONTAINS(STR(?rdfs_label), "demo"))`) {
		t.Fatalf("missing filter clause:\n%s", got)
	}
	if !strings.Contains(got, "LIMIT 5") {
		t.Fatalf("missing LIMIT:\n%s", got)
	}
}

// TestBuildSelectScenarioS2 matches spec.md scenario S2.
func TestBuildSelectScenarioS2(t *testing.T) {
	dsl := sparqldsl.QueryDSL{
		Type: sparqldsl.QueryRaw,
		Aggregations: []sparqldsl.Aggregation{
			{Function: sparqldsl.AggCount, Variable: "s", Alias: "count"},
		},
		GroupBy: []string{"type"},
	}
	got, err := BuildSelect(dsl, "")
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}
	if !strings.Contains(got, "SELECT (COUNT(?s) AS ?count) ?type") {
		t.Fatalf("unexpected head:\n%s", got)
	}
	if !strings.Contains(got, "GROUP BY ?type") {
		t.Fatalf("missing GROUP BY:\n%s", got)
	}
	if strings.Contains(got, "ORDER BY") {
		t.Fatalf("aggregation query must not carry an ORDER BY:\n%s", got)
	}
}

func TestBuildSelectDeterministic(t *testing.T) {
	dsl := sparqldsl.QueryDSL{
		Type:    sparqldsl.QueryEntity,
		Filters: []sparqldsl.Filter{{Field: "name", Operator: sparqldsl.OpEq, Value: "Alice"}},
		Sort:    []sparqldsl.SortKey{{Variable: "s"}},
		Page:    &sparqldsl.Page{Size: 10, Offset: 20},
	}
	a, err := BuildSelect(dsl, "http://example.org/g")
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}
	b, err := BuildSelect(dsl, "http://example.org/g")
	if err != nil {
		t.Fatalf("BuildSelect: %v", err)
	}
	if a != b {
		t.Fatalf("BuildSelect is not deterministic:\n%s\n---\n%s", a, b)
	}
	if !strings.Contains(a, "ORDER BY ?s") {
		t.Fatalf("missing explicit ORDER BY:\n%s", a)
	}
	if !strings.Contains(a, "LIMIT 10") || !strings.Contains(a, "OFFSET 20") {
		t.Fatalf("missing LIMIT/OFFSET:\n%s", a)
	}
}

func TestBuildSelectRejectsDuplicatePrefixConflict(t *testing.T) {
	dsl := sparqldsl.QueryDSL{
		Type:     sparqldsl.QueryRaw,
		Prefixes: map[string]string{"rdf": "http://example.org/not-rdf#"},
	}
	if _, err := BuildSelect(dsl, ""); err == nil {
		t.Fatal("expected InvalidPrefix error for conflicting rdf: prefix")
	}
}

func TestBuildSelectRejectsUngroupedHaving(t *testing.T) {
	dsl := sparqldsl.QueryDSL{
		Type:         sparqldsl.QueryRaw,
		Aggregations: []sparqldsl.Aggregation{{Function: sparqldsl.AggCount, Variable: "s", Alias: "count"}},
		GroupBy:      []string{"type"},
		Having:       []sparqldsl.Filter{{Field: "unrelated", Operator: sparqldsl.OpGt, Value: "5"}},
	}
	if err := dsl.Validate(); err == nil {
		t.Fatal("expected ConstraintViolation for having referencing ungrouped field")
	}
}

func TestBuildConstructWrapsGraph(t *testing.T) {
	dsl := sparqldsl.QueryDSL{Type: sparqldsl.QueryRaw}
	got, err := BuildConstruct(dsl, "http://example.org/g")
	if err != nil {
		t.Fatalf("BuildConstruct: %v", err)
	}
	if !strings.HasPrefix(got, "PREFIX rdf:") {
		t.Fatalf("missing builtin prefixes:\n%s", got)
	}
	if !strings.Contains(got, "CONSTRUCT { ?s ?p ?o }") {
		t.Fatalf("missing CONSTRUCT head:\n%s", got)
	}
	if !strings.Contains(got, "GRAPH <http://example.org/g>") {
		t.Fatalf("missing GRAPH wrap:\n%s", got)
	}
}

func TestBuildSelectWithCursorURI(t *testing.T) {
	want := sparqldsl.Cursor{Value: "http://example.org/e005", Type: "uri"}
	cur, err := sparqldsl.EncodeCursor(want)
	if err != nil {
		t.Fatalf("EncodeCursor: %v", err)
	}
	roundTripped, err := sparqldsl.DecodeCursor(cur)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if diff := cmp.Diff(want, roundTripped); diff != "" {
		t.Fatalf("cursor round-trip mismatch (-want +got):\n%s", diff)
	}
	dsl := sparqldsl.QueryDSL{Type: sparqldsl.QueryRaw}
	got, err := BuildSelectWithCursor(dsl, "http://example.org/g", sparqldsl.CursorRequest{Cursor: cur, Size: 2}, "s")
	if err != nil {
		t.Fatalf("BuildSelectWithCursor: %v", err)
	}
	if !strings.Contains(got, "SELECT DISTINCT ?s") {
		t.Fatalf("missing SELECT DISTINCT head:\n%s", got)
	}
	if !strings.Contains(got, `FILTER(STR(?s) > "http://example.org/e005")`) {
		t.Fatalf("missing cursor filter:\n%s", got)
	}
	if !strings.Contains(got, "ORDER BY ?s") {
		t.Fatalf("missing ORDER BY:\n%s", got)
	}
	if !strings.Contains(got, "LIMIT 3") {
		t.Fatalf("expected size+1 LIMIT:\n%s", got)
	}
}

func TestBuildSelectWithCursorFirstPageHasNoFilter(t *testing.T) {
	dsl := sparqldsl.QueryDSL{Type: sparqldsl.QueryRaw}
	got, err := BuildSelectWithCursor(dsl, "", sparqldsl.CursorRequest{Size: 2}, "")
	if err != nil {
		t.Fatalf("BuildSelectWithCursor: %v", err)
	}
	if strings.Contains(got, "FILTER(STR(?s)") {
		t.Fatalf("first page must not carry a cursor filter:\n%s", got)
	}
}
