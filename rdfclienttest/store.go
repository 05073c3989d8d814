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

// Package rdfclienttest provides an in-memory rdfclient.RDFClient
// implementation that understands the specific SPARQL subset this
// repository's own builder, planner, and named-graph manager emit. It
// is not a general SPARQL engine - it exists so the planner, the
// transaction executor, and the conditional-clear engine can be unit
// tested without a real triple store, per the capability-set pattern in
// spec.md section 9.
package rdfclienttest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/huacc/sf-rdf-acl/rdfclient"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
)

// storedTriple is a triple rendered down to its SPARQL text form (s, p,
// o exactly as the planner/builder format them) so equality is trivial
// string comparison. CURIEs are not expanded, so "rdfs:label" and
// "<http://www.w3.org/2000/01/rdf-schema#label>" are different terms here.
type storedTriple struct {
	S, P, O string
}

func (t storedTriple) key() string { return t.S + "\x1f" + t.P + "\x1f" + t.O }

// Store is a graph-scoped in-memory triple store.
type Store struct {
	mu     sync.Mutex
	graphs map[string]map[string]storedTriple
	// Unhealthy, when set, makes Health return this error.
	Unhealthy error
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{graphs: map[string]map[string]storedTriple{}}
}

// Seed inserts triples (already formatted "<s> <p> \"o\"" style terms,
// matching what package sanitize would render) into graph, for test
// setup. It does not go through SPARQL parsing.
func (s *Store) Seed(graph string, triples [][3]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.graphs[graph]
	if g == nil {
		g = map[string]storedTriple{}
		s.graphs[graph] = g
	}
	for _, t := range triples {
		st := storedTriple{S: t[0], P: t[1], O: t[2]}
		g[st.key()] = st
	}
}

// GraphSize returns how many triples graph currently holds, for test
// assertions. A graph that was never created returns 0.
func (s *Store) GraphSize(graph string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.graphs[graph])
}

// GraphExists reports whether graph has been created (even if empty).
func (s *Store) GraphExists(graph string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.graphs[graph]
	return ok
}

func (s *Store) ensureGraph(graph string) map[string]storedTriple {
	g := s.graphs[graph]
	if g == nil {
		g = map[string]storedTriple{}
		s.graphs[graph] = g
	}
	return g
}

// Health reports Unhealthy if set, else nil.
func (s *Store) Health(ctx context.Context) error { return s.Unhealthy }

// Update interprets an UPDATE string against the in-memory graphs.
func (s *Store) Update(ctx context.Context, update string, opts rdfclient.CallOptions) (*rdfclient.UpdateResult, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	body := stripPrefixLines(update)

	switch {
	case strings.HasPrefix(body, "CREATE SILENT GRAPH"):
		iri := extractAngleIRI(body)
		if _, exists := s.graphs[iri]; !exists {
			s.graphs[iri] = map[string]storedTriple{}
		}
	case strings.HasPrefix(body, "CLEAR GRAPH"):
		iri := extractAngleIRI(body)
		s.graphs[iri] = map[string]storedTriple{}
	case strings.HasPrefix(body, "ADD SILENT GRAPH"):
		src, tgt := extractTwoGraphIRIs(body)
		target := s.ensureGraph(tgt)
		for k, v := range s.graphs[src] {
			target[k] = v
		}
	case strings.HasPrefix(body, "COPY SILENT GRAPH"):
		src, tgt := extractTwoGraphIRIs(body)
		fresh := map[string]storedTriple{}
		for k, v := range s.graphs[src] {
			fresh[k] = v
		}
		s.graphs[tgt] = fresh
	case strings.HasPrefix(body, "INSERT DATA"):
		if err := s.applyInsertData(body); err != nil {
			return nil, err
		}
	case strings.HasPrefix(body, "DELETE") && strings.Contains(body, "INSERT") && strings.Contains(body, "WHERE"):
		if err := s.applyDeleteInsertWhere(body); err != nil {
			return nil, err
		}
	case strings.HasPrefix(body, "INSERT") && strings.Contains(body, "FILTER NOT EXISTS"):
		if err := s.applyInsertIfNotExists(body); err != nil {
			return nil, err
		}
	case strings.HasPrefix(body, "DELETE") && strings.Contains(body, "WHERE"):
		if err := s.applyDeleteWhere(body); err != nil {
			return nil, err
		}
	default:
		return nil, sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: unsupported update shape: %s", truncate(body, 120))
	}

	return &rdfclient.UpdateResult{Status: 200, DurationMs: time.Since(start).Milliseconds()}, nil
}

// Select interprets a SELECT query, supporting the shapes emitted by
// sparqlbuild (plain triple-pattern WHERE bodies with FILTERs) and the
// COUNT(*) dry-run estimate shape from package graphmgr.
func (s *Store) Select(ctx context.Context, query string, opts rdfclient.CallOptions) (*rdfclient.SelectResult, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	body := stripPrefixLines(query)
	graph, where, limit := extractSelectShape(body)
	lines := parseWhereLines(where)
	bindings := evaluate(s.graphs[graph], lines)

	if strings.Contains(body, "COUNT(*)") {
		return &rdfclient.SelectResult{
			Vars:     []string{"n"},
			Bindings: []map[string]rdfclient.Binding{{"n": {Value: fmt.Sprintf("%d", len(bindings)), Type: "typed-literal", Datatype: "http://www.w3.org/2001/XMLSchema#integer"}}},
			Stats:    rdfclient.Stats{Status: 200, DurationMs: time.Since(start).Milliseconds()},
		}, nil
	}

	if limit > 0 && len(bindings) > limit {
		bindings = bindings[:limit]
	}

	vars := collectVars(lines)
	out := make([]map[string]rdfclient.Binding, len(bindings))
	for i, b := range bindings {
		row := map[string]rdfclient.Binding{}
		for v, term := range b {
			row[v] = termToBinding(term)
		}
		out[i] = row
	}
	return &rdfclient.SelectResult{Vars: vars, Bindings: out, Stats: rdfclient.Stats{Status: 200, DurationMs: time.Since(start).Milliseconds()}}, nil
}

// Construct interprets a CONSTRUCT { ?s ?p ?o } WHERE { ... } query and
// renders the matched triples as Turtle text.
func (s *Store) Construct(ctx context.Context, query string, opts rdfclient.CallOptions) (*rdfclient.ConstructResult, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	body := stripPrefixLines(query)
	graph, where, limit := extractSelectShape(body)
	lines := parseWhereLines(where)
	bindings := evaluate(s.graphs[graph], lines)
	if limit > 0 && len(bindings) > limit {
		bindings = bindings[:limit]
	}

	var b strings.Builder
	for _, row := range bindings {
		fmt.Fprintf(&b, "%s %s %s .\n", row["s"], row["p"], row["o"])
	}
	return &rdfclient.ConstructResult{Turtle: b.String(), Stats: rdfclient.Stats{Status: 200, DurationMs: time.Since(start).Milliseconds()}}, nil
}

func termToBinding(term string) rdfclient.Binding {
	if strings.HasPrefix(term, "<") && strings.HasSuffix(term, ">") {
		return rdfclient.Binding{Type: "uri", Value: term[1 : len(term)-1]}
	}
	if strings.HasPrefix(term, `"`) {
		idx := strings.LastIndex(term, `"`)
		val := term[1:idx]
		rest := term[idx+1:]
		b := rdfclient.Binding{Type: "literal", Value: val}
		if strings.HasPrefix(rest, "^^<") {
			b.Type = "typed-literal"
			b.Datatype = strings.TrimSuffix(strings.TrimPrefix(rest, "^^<"), ">")
		} else if strings.HasPrefix(rest, "@") {
			b.Lang = strings.TrimPrefix(rest, "@")
		}
		return b
	}
	return rdfclient.Binding{Type: "bnode", Value: term}
}

func collectVars(lines []whereLine) []string {
	seen := map[string]bool{}
	var vars []string
	for _, l := range lines {
		if l.kind != lineTriple {
			continue
		}
		for _, tok := range []string{l.s, l.p, l.o} {
			if strings.HasPrefix(tok, "?") {
				name := strings.TrimPrefix(tok, "?")
				if !seen[name] {
					seen[name] = true
					vars = append(vars, name)
				}
			}
		}
	}
	sort.Strings(vars)
	return vars
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
