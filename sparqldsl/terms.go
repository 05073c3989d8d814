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

// Package sparqldsl defines the domain-specific query and upsert data
// model translated into SPARQL by sparqlbuild and upsert: terms, triples,
// filters, the query DSL itself, aggregations, graph references, and
// cursor pages. These types are immutable value types; none of them
// perform I/O.
package sparqldsl

import "github.com/huacc/sf-rdf-acl/sanitize"

// Term is a SPARQL term: a variable, blank node, IRI, CURIE, or literal.
type Term = sanitize.Term

// Var builds a variable term (rendered as "?name").
func Var(name string) Term {
	return Term{Kind: "variable", Value: name}
}

// Blank builds a blank-node term (rendered as "_:label").
func Blank(label string) Term {
	return Term{Kind: "blank", Value: label}
}

// IRI builds an absolute IRI term (rendered as "<iri>").
func IRI(iri string) Term {
	return Term{Kind: "iri", Value: iri}
}

// Curie builds a compact IRI term. resolvedIRI, if non-empty, is used as
// a fallback expansion when prefix is not declared at render time.
func Curie(prefix, local string, resolvedIRI ...string) Term {
	t := Term{Kind: "curie", Prefix: prefix, Local: local}
	if len(resolvedIRI) > 0 {
		t.ResolvedIRI = resolvedIRI[0]
	}
	return t
}

// Literal builds a plain string literal term.
func Literal(value string) Term {
	return Term{Kind: "literal", Value: value}
}

// LiteralLang builds a language-tagged literal term.
func LiteralLang(value, lang string) Term {
	return Term{Kind: "literal", Value: value, Lang: lang}
}

// LiteralTyped builds a datatype-tagged literal term.
func LiteralTyped(value, dtype string) Term {
	return Term{Kind: "literal", Value: value, Dtype: dtype}
}

// IsVariable reports whether t is a SPARQL variable.
func IsVariable(t Term) bool { return t.Kind == "variable" }

// IsLiteral reports whether t is a literal.
func IsLiteral(t Term) bool { return t.Kind == "literal" }

// IsIRILike reports whether t denotes an IRI, whether spelled out or as
// a CURIE.
func IsIRILike(t Term) bool { return t.Kind == "iri" || t.Kind == "curie" }
