/*
Copyright 2025 The sf-rdf-acl Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package sparqlbuild compiles sparqldsl.QueryDSL values into SPARQL 1.1
// query text: SELECT and CONSTRUCT forms, plus the cursor-paginated SELECT
// variant used for stable forward pagination. It is pure - no I/O, no
// mutable state - and every interpolated fragment is routed through
// package sanitize so identical input always produces byte-identical
// output (spec.md section 8, property 2).
package sparqlbuild

import (
	"fmt"
	"strings"

	"github.com/huacc/sf-rdf-acl/sanitize"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
	"github.com/huacc/sf-rdf-acl/sparqldsl"
)

// BuildSelect compiles dsl into a SPARQL SELECT query, scoped to graph
// when non-empty.
func BuildSelect(dsl sparqldsl.QueryDSL, graph string) (string, error) {
	if err := dsl.Validate(); err != nil {
		return "", err
	}
	prefixes, err := mergePrefixes(dsl)
	if err != nil {
		return "", err
	}

	head, err := selectHead(dsl)
	if err != nil {
		return "", err
	}

	body, err := whereBody(dsl, prefixes.Map(), graph)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	writePrefixes(&b, prefixes)
	b.WriteString(head)
	b.WriteString("\nWHERE {\n")
	b.WriteString(body)
	b.WriteString("}\n")
	if err := writeGroupHaving(&b, dsl); err != nil {
		return "", err
	}
	writeOrderBy(&b, dsl)
	writeLimitOffset(&b, dsl.Page)
	return b.String(), nil
}

// BuildConstruct compiles dsl into a SPARQL CONSTRUCT query, scoped to
// graph when non-empty. The constructed template is always the bare
// triple pattern ?s ?p ?o - graph projection happens at a higher layer
// (package projection) by constraining the WHERE body's predicates.
func BuildConstruct(dsl sparqldsl.QueryDSL, graph string) (string, error) {
	if err := dsl.Validate(); err != nil {
		return "", err
	}
	prefixes, err := mergePrefixes(dsl)
	if err != nil {
		return "", err
	}

	body, err := whereBody(dsl, prefixes.Map(), graph)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	writePrefixes(&b, prefixes)
	b.WriteString("CONSTRUCT { ?s ?p ?o }\nWHERE {\n")
	b.WriteString(body)
	b.WriteString("}\n")
	writeOrderBy(&b, dsl)
	writeLimitOffset(&b, dsl.Page)
	return b.String(), nil
}

// BuildSelectWithCursor compiles a stable, forward-only pagination query:
// SELECT DISTINCT over sortKey (defaulting to "s"), filtered to rows
// strictly greater than the decoded cursor's value, ordered by sortKey,
// and limited to page.Size+1 so the caller can detect has_more by
// discarding the extra row.
func BuildSelectWithCursor(dsl sparqldsl.QueryDSL, graph string, page sparqldsl.CursorRequest, sortKey string) (string, error) {
	if err := page.Validate(); err != nil {
		return "", err
	}
	if sortKey == "" {
		sortKey = "s"
	}
	if err := dsl.Validate(); err != nil {
		return "", err
	}
	prefixes, err := mergePrefixes(dsl)
	if err != nil {
		return "", err
	}

	body, err := whereBody(dsl, prefixes.Map(), graph)
	if err != nil {
		return "", err
	}

	var cursorFilter string
	if page.Cursor != "" {
		cur, err := sparqldsl.DecodeCursor(page.Cursor)
		if err != nil {
			return "", err
		}
		cursorFilter, err = renderCursorFilter(sortKey, cur)
		if err != nil {
			return "", err
		}
	}

	var b strings.Builder
	writePrefixes(&b, prefixes)
	fmt.Fprintf(&b, "SELECT DISTINCT ?%s\n", sortKey)
	b.WriteString("WHERE {\n")
	b.WriteString(body)
	if cursorFilter != "" {
		b.WriteString("  " + cursorFilter + "\n")
	}
	b.WriteString("}\n")
	fmt.Fprintf(&b, "ORDER BY ?%s\n", sortKey)
	fmt.Fprintf(&b, "LIMIT %d\n", page.Size+1)
	return b.String(), nil
}

func renderCursorFilter(sortKey string, cur sparqldsl.Cursor) (string, error) {
	switch cur.Type {
	case "uri":
		iri, err := sanitize.EscapeIRI(cur.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("FILTER(STR(?%s) > %s) .", sortKey, sanitize.EscapeLiteral(iri, "")), nil
	case "literal":
		return fmt.Sprintf("FILTER(?%s > %s) .", sortKey, sanitize.EscapeLiteral(cur.Value, "")), nil
	default:
		return "", sfrdferr.Invalid(sfrdferr.KindInvalidCursor, "unknown cursor value type %q", cur.Type)
	}
}

func mergePrefixes(dsl sparqldsl.QueryDSL) (*sparqldsl.PrefixSet, error) {
	ps := sparqldsl.NewPrefixSet()
	if err := ps.MergeAll(dsl.Prefixes); err != nil {
		return nil, err
	}
	return ps, nil
}

func writePrefixes(b *strings.Builder, ps *sparqldsl.PrefixSet) {
	for _, line := range ps.Declarations() {
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func selectHead(dsl sparqldsl.QueryDSL) (string, error) {
	if len(dsl.Aggregations) == 0 {
		return "SELECT *", nil
	}
	var parts []string
	for _, agg := range dsl.Aggregations {
		expr, err := renderAggregation(agg)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr)
	}
	for _, g := range dsl.GroupBy {
		parts = append(parts, "?"+strings.TrimPrefix(g, "?"))
	}
	return "SELECT " + strings.Join(parts, " "), nil
}

func renderAggregation(agg sparqldsl.Aggregation) (string, error) {
	if agg.Separator != "" && agg.Function != sparqldsl.AggGroupConcat {
		return "", sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "separator is only valid for GROUP_CONCAT, got %s", agg.Function)
	}
	inner := "?" + strings.TrimPrefix(agg.Variable, "?")
	if agg.Distinct {
		inner = "DISTINCT " + inner
	}
	if agg.Function == sparqldsl.AggGroupConcat && agg.Separator != "" {
		inner += fmt.Sprintf("; SEPARATOR=%s", sanitize.EscapeLiteral(agg.Separator, ""))
	}
	return fmt.Sprintf("(%s(%s) AS ?%s)", agg.Function, inner, agg.EffectiveAlias()), nil
}

func writeGroupHaving(b *strings.Builder, dsl sparqldsl.QueryDSL) error {
	if len(dsl.GroupBy) == 0 {
		return nil
	}
	vars := make([]string, len(dsl.GroupBy))
	for i, g := range dsl.GroupBy {
		vars[i] = "?" + strings.TrimPrefix(g, "?")
	}
	b.WriteString("GROUP BY " + strings.Join(vars, " ") + "\n")
	if len(dsl.Having) == 0 {
		return nil
	}
	var conds []string
	for _, h := range dsl.Having {
		clause, err := renderFilter(h)
		if err != nil {
			return err
		}
		// Strip the FILTER(...) wrapper: HAVING joins bare conditions
		// with "&&" inside one outer HAVING(...).
		cond := strings.TrimSuffix(strings.TrimPrefix(clause, "FILTER("), ")")
		conds = append(conds, cond)
	}
	b.WriteString("HAVING(" + strings.Join(conds, " && ") + ")\n")
	return nil
}

func writeOrderBy(b *strings.Builder, dsl sparqldsl.QueryDSL) {
	if len(dsl.Sort) == 0 {
		return
	}
	terms := make([]string, len(dsl.Sort))
	for i, s := range dsl.Sort {
		v := "?" + strings.TrimPrefix(s.Variable, "?")
		if s.Direction == sparqldsl.SortDesc {
			terms[i] = "DESC(" + v + ")"
		} else {
			terms[i] = v
		}
	}
	b.WriteString("ORDER BY " + strings.Join(terms, " ") + "\n")
}

func writeLimitOffset(b *strings.Builder, page *sparqldsl.Page) {
	if page == nil {
		return
	}
	if page.Size > 0 {
		fmt.Fprintf(b, "LIMIT %d\n", page.Size)
	}
	if page.Offset > 0 {
		fmt.Fprintf(b, "OFFSET %d\n", page.Offset)
	}
}

// whereBody renders the WHERE-clause body (without the surrounding
// braces) for dsl, optionally wrapped in a GRAPH <graph> block.
func whereBody(dsl sparqldsl.QueryDSL, prefixes map[string]string, graph string) (string, error) {
	var inner strings.Builder

	switch dsl.Type {
	case sparqldsl.QueryRelation:
		inner.WriteString("  ?s ?p ?o .\n  FILTER(isIRI(?o)) .\n")
	case sparqldsl.QueryEvent:
		inner.WriteString("  ?s ?p ?o .\n")
		for i, participant := range dsl.Participants {
			term, err := sanitize.FormatTerm(participant, prefixes)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&inner, "  ?s sf:hasParticipant %s .\n", term)
			_ = i
		}
	case sparqldsl.QueryEntity, sparqldsl.QueryRaw, "":
		inner.WriteString("  ?s ?p ?o .\n")
	default:
		return "", sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "unknown query type %q", dsl.Type)
	}

	for _, exp := range dsl.Expand {
		predTerm, err := sanitize.FormatTerm(exp.Predicate, prefixes)
		if err != nil {
			return "", err
		}
		alias := exp.Alias
		if alias == "" {
			alias = expandAlias(exp.Predicate)
		}
		fmt.Fprintf(&inner, "  OPTIONAL { ?s %s ?%s } .\n", predTerm, alias)
	}

	for _, f := range dsl.Filters {
		clause, err := renderFilter(f)
		if err != nil {
			return "", err
		}
		inner.WriteString("  " + clause + " .\n")
	}

	if dsl.TimeWindow != nil {
		clause, err := renderTimeWindow(*dsl.TimeWindow)
		if err != nil {
			return "", err
		}
		inner.WriteString("  " + clause + " .\n")
	}

	body := inner.String()
	if graph == "" {
		return body, nil
	}
	g, err := sanitize.EscapeIRI(graph)
	if err != nil {
		return "", err
	}
	var wrapped strings.Builder
	fmt.Fprintf(&wrapped, "  GRAPH <%s> {\n", g)
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		wrapped.WriteString("  " + line + "\n")
	}
	wrapped.WriteString("  }\n")
	return wrapped.String(), nil
}

// expandAlias derives a deterministic default alias for an expand
// predicate: a CURIE "rdfs:label" becomes "rdfs_label"; an IRI is aliased
// by its last path/fragment segment.
func expandAlias(t sparqldsl.Term) string {
	switch t.Kind {
	case "curie":
		return fieldVar(t.Prefix + ":" + t.Local)
	case "iri":
		s := t.Value
		if i := strings.LastIndexAny(s, "#/"); i >= 0 && i+1 < len(s) {
			return fieldVar(s[i+1:])
		}
		return fieldVar(s)
	default:
		return fieldVar(t.Value)
	}
}

// fieldVar turns a field name (possibly a CURIE like "rdfs:label") into a
// SPARQL-safe variable name by replacing characters that cannot appear
// in a variable name with "_". This is the convention spec.md's S1
// scenario demonstrates: "rdfs:label" binds as "?rdfs_label".
func fieldVar(field string) string {
	field = strings.TrimPrefix(field, "?")
	var b strings.Builder
	for _, r := range field {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func renderFilter(f sparqldsl.Filter) (string, error) {
	v := "?" + fieldVar(f.Field)
	switch f.Operator {
	case sparqldsl.OpExists:
		return fmt.Sprintf("FILTER(BOUND(%s))", v), nil
	case sparqldsl.OpIsNull:
		return fmt.Sprintf("FILTER(!BOUND(%s))", v), nil
	case sparqldsl.OpIn:
		rendered := make([]string, len(f.InValues))
		for i, val := range f.InValues {
			r, err := renderFilterValue(val)
			if err != nil {
				return "", err
			}
			rendered[i] = r
		}
		return fmt.Sprintf("FILTER(%s IN (%s))", v, strings.Join(rendered, ", ")), nil
	case sparqldsl.OpRange:
		var conds []string
		if f.Range.Gte != nil {
			r, err := renderFilterValue(*f.Range.Gte)
			if err != nil {
				return "", err
			}
			conds = append(conds, fmt.Sprintf("%s >= %s", v, r))
		}
		if f.Range.Lte != nil {
			r, err := renderFilterValue(*f.Range.Lte)
			if err != nil {
				return "", err
			}
			conds = append(conds, fmt.Sprintf("%s <= %s", v, r))
		}
		if len(conds) == 0 {
			return "", sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "range filter on %q has neither gte nor lte", f.Field)
		}
		return fmt.Sprintf("FILTER(%s)", strings.Join(conds, " && ")), nil
	case sparqldsl.OpContains:
		return fmt.Sprintf("FILTER(CONTAINS(STR(%s), %s))", v, sanitize.EscapeLiteral(f.Value, "")), nil
	case sparqldsl.OpRegex:
		return fmt.Sprintf("FILTER(REGEX(STR(%s), %s))", v, sanitize.EscapeLiteral(f.Value, "")), nil
	default:
		rendered, err := renderFilterValue(f.Value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("FILTER(%s %s %s)", v, string(f.Operator), rendered), nil
	}
}

// renderFilterValue renders a filter operand. Per spec.md's open
// question, IRI-shaped values are never auto-wrapped: a value already
// spelled "<iri>" is treated as an IRI reference (validated, not
// re-escaped as a string), everything else is escaped as a string
// literal.
func renderFilterValue(value string) (string, error) {
	if strings.HasPrefix(value, "<") && strings.HasSuffix(value, ">") {
		inner := value[1 : len(value)-1]
		iri, err := sanitize.EscapeIRI(inner)
		if err != nil {
			return "", err
		}
		return "<" + iri + ">", nil
	}
	return sanitize.EscapeLiteral(value, ""), nil
}

func renderTimeWindow(w sparqldsl.TimeWindow) (string, error) {
	v := "?" + w.EffectiveVariable()
	from := sanitize.EscapeLiteral(w.From, "http://www.w3.org/2001/XMLSchema#dateTime")
	to := sanitize.EscapeLiteral(w.To, "http://www.w3.org/2001/XMLSchema#dateTime")
	return fmt.Sprintf("FILTER(%s >= %s && %s <= %s)", v, from, v, to), nil
}
