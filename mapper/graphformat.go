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

package mapper

import (
	"strings"

	"github.com/huacc/sf-rdf-acl/internal/json"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
)

// Format selects GraphFormatter's output shape.
type Format string

const (
	FormatTurtle         Format = "turtle"
	FormatJSONLD         Format = "json-ld"
	FormatSimplifiedJSON Format = "simplified-json"
)

const (
	rdfTypeIRI    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfTypeCurie  = "rdf:type"
	rdfsLabelIRI  = "http://www.w3.org/2000/01/rdf-schema#label"
	rdfsLabelCurie = "rdfs:label"
)

// TurtleTriple is a flat triple parsed out of the store's Turtle
// response, terms kept in their rendered wire form. Exported so package
// projection can reduce a CONSTRUCT response without a second Turtle
// parser.
type TurtleTriple struct {
	S, P, O string
}

// FormatGraph renders turtle per format. context is only used for
// json-ld; a nil context omits "@context" from the result.
func FormatGraph(turtle string, format Format, context map[string]any) (any, error) {
	switch format {
	case FormatTurtle, "":
		return turtle, nil
	case FormatJSONLD:
		return toJSONLD(turtle, context)
	case FormatSimplifiedJSON:
		return toSimplifiedJSON(turtle)
	default:
		return nil, sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "unknown graph format %q", format)
	}
}

// ParseFlatTurtle understands the flat "<s> <p> <o> .\n" per-line shape
// this module's own CONSTRUCT responses take (package rdfclienttest and,
// in production, a triple store configured to avoid grouped/abbreviated
// Turtle for this endpoint). It does not handle PREFIX declarations,
// "a" as a rdf:type shorthand, or ";"/"," predicate-object grouping.
func ParseFlatTurtle(turtle string) []TurtleTriple {
	var out []TurtleTriple
	for _, line := range strings.Split(turtle, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "@prefix") || strings.HasPrefix(line, "PREFIX") {
			continue
		}
		line = strings.TrimSuffix(line, " .")
		line = strings.TrimSuffix(line, ".")
		toks := tokenizeTurtleLine(strings.TrimSpace(line))
		if len(toks) != 3 {
			continue
		}
		out = append(out, TurtleTriple{S: toks[0], P: toks[1], O: toks[2]})
	}
	return out
}

func tokenizeTurtleLine(s string) []string {
	var toks []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ' ' && !inQuote:
			if cur.Len() > 0 {
				toks = append(toks, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		toks = append(toks, cur.String())
	}
	return toks
}

// IRITerm reports whether term is a rendered "<iri>" and, if so, its
// unwrapped form.
func IRITerm(term string) (string, bool) {
	if strings.HasPrefix(term, "<") && strings.HasSuffix(term, ">") {
		return term[1 : len(term)-1], true
	}
	return "", false
}

// LiteralValue returns a rendered literal's lexical value, unescaped. It
// reports ok=false for a term that is not a literal.
func LiteralValue(term string) (value string, ok bool) {
	value, _, _, ok = literalParts(term)
	return value, ok
}

// literalParts splits a rendered literal into its value, datatype IRI,
// and language tag (at most one of the latter two is set).
func literalParts(term string) (value, datatype, lang string, ok bool) {
	if !strings.HasPrefix(term, `"`) {
		return "", "", "", false
	}
	idx := strings.LastIndex(term, `"`)
	if idx <= 0 {
		return "", "", "", false
	}
	raw := term[1:idx]
	raw = strings.ReplaceAll(raw, `\"`, `"`)
	raw = strings.ReplaceAll(raw, `\\`, `\`)
	rest := term[idx+1:]
	switch {
	case strings.HasPrefix(rest, "^^<"):
		datatype = strings.TrimSuffix(strings.TrimPrefix(rest, "^^<"), ">")
	case strings.HasPrefix(rest, "@"):
		lang = strings.TrimPrefix(rest, "@")
	}
	return raw, datatype, lang, true
}

func isPredicate(term, iri, curie string) bool {
	if expanded, ok := IRITerm(term); ok {
		return expanded == iri
	}
	return term == curie
}

// toJSONLD builds a minimal expanded-form JSON-LD document: one node
// object per distinct subject, each predicate mapped to a list of
// {"@id": ...} or {"@value": ...} entries. Expanded form is always a
// list, so per spec.md section 4.9 it is wrapped as {"@graph": [...]}.
func toJSONLD(turtle string, context map[string]any) (map[string]any, error) {
	triples := ParseFlatTurtle(turtle)
	order := []string{}
	nodes := map[string]map[string]any{}
	for _, t := range triples {
		node, ok := nodes[t.S]
		if !ok {
			node = map[string]any{"@id": t.S}
			nodes[t.S] = node
			order = append(order, t.S)
		}
		var entry map[string]any
		if iri, ok := IRITerm(t.O); ok {
			entry = map[string]any{"@id": iri}
		} else if value, datatype, lang, ok := literalParts(t.O); ok {
			entry = map[string]any{"@value": value}
			if datatype != "" {
				entry["@type"] = datatype
			}
			if lang != "" {
				entry["@language"] = lang
			}
		} else {
			entry = map[string]any{"@value": t.O}
		}
		pred := t.P
		if iri, ok := IRITerm(pred); ok {
			pred = iri
		}
		existing, _ := node[pred].([]any)
		node[pred] = append(existing, entry)
	}

	graph := make([]any, 0, len(order))
	for _, s := range order {
		graph = append(graph, nodes[s])
	}
	out := map[string]any{"@graph": graph}
	if context != nil {
		out["@context"] = context
	}
	return out, nil
}

// SimplifiedNode is one entity in the simplified-json projection.
type SimplifiedNode struct {
	ID         string                    `json:"id"`
	Type       string                    `json:"type,omitempty"`
	Label      string                    `json:"label,omitempty"`
	Labels     map[string]string         `json:"labels,omitempty"`
	Properties map[string][]PropertyItem `json:"properties,omitempty"`
}

// PropertyItem is one literal value attached to a simplified node.
type PropertyItem struct {
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Language string `json:"language,omitempty"`
}

// SimplifiedEdge is one non-rdf:type IRI-object triple.
type SimplifiedEdge struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Predicate string `json:"predicate"`
}

// SimplifiedGraph is the simplified-json output shape.
type SimplifiedGraph struct {
	Nodes []*SimplifiedNode `json:"nodes"`
	Edges []SimplifiedEdge  `json:"edges"`
}

func toSimplifiedJSON(turtle string) (*SimplifiedGraph, error) {
	triples := ParseFlatTurtle(turtle)
	order := []string{}
	byID := map[string]*SimplifiedNode{}

	nodeFor := func(id string) *SimplifiedNode {
		n, ok := byID[id]
		if !ok {
			n = &SimplifiedNode{ID: id}
			byID[id] = n
			order = append(order, id)
		}
		return n
	}

	g := &SimplifiedGraph{}
	for _, t := range triples {
		subject := t.S
		n := nodeFor(subject)

		if isPredicate(t.P, rdfTypeIRI, rdfTypeCurie) {
			if iri, ok := IRITerm(t.O); ok {
				n.Type = iri
			} else {
				n.Type = t.O
			}
			continue
		}

		if iri, ok := IRITerm(t.O); ok {
			nodeFor(iri)
			g.Edges = append(g.Edges, SimplifiedEdge{Source: subject, Target: iri, Predicate: t.P})
			continue
		}

		value, datatype, lang, ok := literalParts(t.O)
		if !ok {
			value = t.O
		}

		if isPredicate(t.P, rdfsLabelIRI, rdfsLabelCurie) {
			if n.Labels == nil {
				n.Labels = map[string]string{}
			}
			key := lang
			if key == "" {
				key = "und"
			}
			n.Labels[key] = value
			if n.Label == "" {
				n.Label = value
			}
			continue
		}

		if n.Properties == nil {
			n.Properties = map[string][]PropertyItem{}
		}
		n.Properties[t.P] = append(n.Properties[t.P], PropertyItem{Value: value, Datatype: datatype, Language: lang})
	}

	g.Nodes = make([]*SimplifiedNode, 0, len(order))
	for _, id := range order {
		g.Nodes = append(g.Nodes, byID[id])
	}
	return g, nil
}

// MarshalJSON is a convenience wrapper so callers of FormatGraph's
// simplified-json branch can serialise the result with the same JSON
// codec (package internal/json) the rest of this module uses.
func MarshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
