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

// Package projection implements spec.md section 4.6: compiling a graph
// reference into a bounded CONSTRUCT query and reducing the
// resulting Turtle into a {nodes, edges, stats} shape a caller can walk
// without speaking RDF.
package projection

import (
	"context"
	"fmt"
	"strings"

	"github.com/huacc/sf-rdf-acl/config"
	"github.com/huacc/sf-rdf-acl/mapper"
	"github.com/huacc/sf-rdf-acl/rdfclient"
	"github.com/huacc/sf-rdf-acl/sanitize"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
	"github.com/huacc/sf-rdf-acl/sparqldsl"
)

const rdfTypeIRI = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// Source names the graph to project. Project builds its CONSTRUCT query
// from Graph alone; Query is carried on the struct but Project does not
// read it, so a query DSL does not narrow the projection.
type Source struct {
	Graph sparqldsl.GraphRef
	Query *sparqldsl.QueryDSL
}

// Node is one projected entity.
type Node struct {
	ID   string
	Type string
}

// Edge is one projected relation.
type Edge struct {
	Source    string
	Target    string
	Predicate string
}

// Stats summarises a projection result.
type Stats struct {
	NodeCount int
	EdgeCount int
}

// Result is Project's output.
type Result struct {
	Nodes []Node
	Edges []Edge
	Stats Stats
}

// RequestLimit optionally overrides the profile's own LIMIT, per spec.md
// section 4.6 step 1's config.limit check.
type RequestLimit struct {
	Limit int
}

// Projector runs Project against an rdfclient.RDFClient.
type Projector struct {
	client   rdfclient.RDFClient
	profiles map[string]config.ProjectionProfile
	ns       string
	template string
}

// NewProjector builds a Projector bound to the projection profiles and
// graph-naming template declared in cfg.
func NewProjector(client rdfclient.RDFClient, cfg config.Config) *Projector {
	return &Projector{
		client:   client,
		profiles: cfg.Graph.ProjectionProfiles,
		ns:       cfg.Graph.Naming.Namespace,
		template: cfg.Graph.Naming.GraphIRITemplate,
	}
}

// Project compiles source against the named profile and executes it.
// reqLimit, if non-nil, must be strictly less than the profile's limit
// (spec.md section 4.6 step 1) or the call fails with
// LimitExceedsProfile.
func (p *Projector) Project(ctx context.Context, source Source, profileName string, reqLimit *RequestLimit, opts rdfclient.CallOptions) (*Result, error) {
	profile, ok := p.profiles[profileName]
	if !ok {
		return nil, sfrdferr.Invalid(sfrdferr.KindInvalidConfig, "unknown projection profile %q", profileName)
	}
	limit := profile.Limit
	if reqLimit != nil {
		if reqLimit.Limit >= profile.Limit {
			return nil, sfrdferr.Invalid(sfrdferr.KindLimitExceedsProfile,
				"requested limit %d must be below profile %q's limit %d", reqLimit.Limit, profileName, profile.Limit)
		}
		limit = reqLimit.Limit
	}

	graphIRI, err := source.Graph.Resolve(p.ns, p.template)
	if err != nil {
		return nil, err
	}
	g, err := sanitize.EscapeIRI(graphIRI)
	if err != nil {
		return nil, err
	}

	query, err := buildConstructQuery(g, profile, limit)
	if err != nil {
		return nil, err
	}

	res, err := p.client.Construct(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	return reduce(res.Turtle, profile), nil
}

// buildConstructQuery emits CONSTRUCT { ?s ?p ?o } WHERE { GRAPH <g> {
// ?s ?p ?o . FILTER(?p IN (predicates)) [FILTER(isIRI(?o))] } } LIMIT N
// per spec.md section 4.6 step 2.
func buildConstructQuery(graphIRI string, profile config.ProjectionProfile, limit int) (string, error) {
	var b strings.Builder
	b.WriteString("CONSTRUCT { ?s ?p ?o }\nWHERE {\n")
	fmt.Fprintf(&b, "  GRAPH <%s> {\n", graphIRI)
	b.WriteString("    ?s ?p ?o .\n")
	if len(profile.EdgePredicates) > 0 {
		terms := make([]string, len(profile.EdgePredicates))
		for i, pred := range profile.EdgePredicates {
			iri, err := sanitize.EscapeIRI(pred)
			if err != nil {
				return "", err
			}
			terms[i] = "<" + iri + ">"
		}
		fmt.Fprintf(&b, "    FILTER(?p IN (%s)) .\n", strings.Join(terms, ", "))
	}
	if !profile.IncludeLiterals {
		b.WriteString("    FILTER(isIRI(?o)) .\n")
	}
	b.WriteString("  }\n}\n")
	if limit > 0 {
		fmt.Fprintf(&b, "LIMIT %d\n", limit)
	}
	return b.String(), nil
}

// reduce walks the CONSTRUCT response's Turtle and folds it into nodes
// and edges, defensively re-applying the includeLiterals filter client
// side (spec.md section 4.6 step 3) since the store may not honour the
// server-side FILTER(isIRI(?o)) for every backend.
func reduce(turtle string, profile config.ProjectionProfile) *Result {
	triples := mapper.ParseFlatTurtle(turtle)

	nodes := map[string]*Node{}
	var order []string
	nodeFor := func(id string) *Node {
		n, ok := nodes[id]
		if !ok {
			n = &Node{ID: id}
			nodes[id] = n
			order = append(order, id)
		}
		return n
	}

	var edges []Edge
	for _, t := range triples {
		subject, ok := mapper.IRITerm(t.S)
		if !ok {
			continue
		}
		n := nodeFor(subject)

		if isPredicate(t.P, rdfTypeIRI) {
			if iri, ok := mapper.IRITerm(t.O); ok {
				n.Type = iri
			}
			continue
		}

		if iri, ok := mapper.IRITerm(t.O); ok {
			nodeFor(iri)
			edges = append(edges, Edge{Source: subject, Target: iri, Predicate: t.P})
			continue
		}

		// Literal object: the store may not have honoured the
		// server-side FILTER(isIRI(?o)), so re-apply includeLiterals
		// here. When true, the literal's lexical value stands in for a
		// target node id, matching spec.md section 4.6's "edge whose
		// object is literal" wording.
		if profile.IncludeLiterals {
			value, _ := mapper.LiteralValue(t.O)
			nodeFor(value)
			edges = append(edges, Edge{Source: subject, Target: value, Predicate: t.P})
		}
	}

	out := make([]Node, 0, len(order))
	for _, id := range order {
		out = append(out, *nodes[id])
	}
	return &Result{
		Nodes: out,
		Edges: edges,
		Stats: Stats{NodeCount: len(out), EdgeCount: len(edges)},
	}
}

func isPredicate(term, iri string) bool {
	expanded, ok := mapper.IRITerm(term)
	return ok && expanded == iri
}
