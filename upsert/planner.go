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

package upsert

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/huacc/sf-rdf-acl/sanitize"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
	"github.com/huacc/sf-rdf-acl/sparqldsl"
)

// Planner compiles upsert Requests into Plans. It holds only the
// configuration needed to resolve a GraphRef into a canonical IRI - no
// mutable state, safe for concurrent use.
type Planner struct {
	Namespace       string
	GraphIRITemplate string
}

// NewPlanner builds a Planner bound to the graph naming template from
// config.Config.Graph.Naming.GraphIRITemplate.
func NewPlanner(namespace, graphIRITemplate string) *Planner {
	return &Planner{Namespace: namespace, GraphIRITemplate: graphIRITemplate}
}

// Plan compiles req into an ordered, deterministic Plan per spec.md
// section 4.3.
func (p *Planner) Plan(req Request) (*Plan, error) {
	graphIRI, err := req.Graph.Resolve(p.Namespace, p.GraphIRITemplate)
	if err != nil {
		return nil, err
	}
	if _, err := sanitize.EscapeIRI(graphIRI); err != nil {
		return nil, err
	}
	if err := validateStrategy(req.MergeStrategy); err != nil {
		return nil, err
	}
	for _, t := range req.Triples {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}

	groups, order, err := groupByKey(req.UpsertKey, req.CustomKeyFields, req.Triples)
	if err != nil {
		return nil, err
	}

	var statements []Statement
	for _, key := range order {
		group := groups[key]
		stmts, err := buildStatements(graphIRI, key, req.UpsertKey, req.CustomKeyFields, req.MergeStrategy, group)
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmts...)
	}

	hash := requestHash(graphIRI, req.MergeStrategy, req.UpsertKey, req.Triples)

	return &Plan{
		GraphIRI:    graphIRI,
		Statements:  statements,
		RequestHash: hash,
		Provenance:  req.Provenance,
	}, nil
}

func validateStrategy(s MergeStrategy) error {
	switch s {
	case StrategyReplace, StrategyIgnore, StrategyAppend:
		return nil
	default:
		return sfrdferr.Invalid(sfrdferr.KindUnknownStrategy, "unknown merge strategy %q", s)
	}
}

// groupByKey partitions triples by the configured key discipline,
// returning the groups plus a stable iteration order (first-seen key
// order) so Plan.Statements is deterministic regardless of Go's map
// iteration.
func groupByKey(discipline KeyDiscipline, customFields []string, triples []sparqldsl.Triple) (map[string][]sparqldsl.Triple, []string, error) {
	groups := map[string][]sparqldsl.Triple{}
	var order []string
	for _, t := range triples {
		key, err := keyFor(discipline, customFields, t)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], t)
	}
	return groups, order, nil
}

func keyFor(discipline KeyDiscipline, customFields []string, t sparqldsl.Triple) (string, error) {
	switch discipline {
	case KeySubject:
		return canonicalTerm(t.S), nil
	case KeySubjectPred:
		return canonicalTerm(t.S) + "\x1f" + canonicalTerm(t.P), nil
	case KeyCustom:
		if len(customFields) == 0 {
			return "", sfrdferr.Invalid(sfrdferr.KindInvalidKey, "custom key discipline requires custom_key_fields")
		}
		parts := make([]string, len(customFields))
		for i, f := range customFields {
			term, err := componentFor(t, f)
			if err != nil {
				return "", err
			}
			parts[i] = canonicalTerm(term)
		}
		return strings.Join(parts, "\x1f"), nil
	default:
		return "", sfrdferr.Invalid(sfrdferr.KindUnknownAlgorithm, "unknown upsert key discipline %q", discipline)
	}
}

func componentFor(t sparqldsl.Triple, field string) (sparqldsl.Term, error) {
	switch field {
	case "s":
		return t.S, nil
	case "p":
		return t.P, nil
	case "o":
		return t.O, nil
	default:
		return sparqldsl.Term{}, sfrdferr.Invalid(sfrdferr.KindInvalidKey, "custom key field %q is not one of s, p, o", field)
	}
}

// canonicalTerm renders a term into a stable string independent of any
// declared prefix map, used for grouping keys and request hashing. It is
// not SPARQL syntax.
func canonicalTerm(t sparqldsl.Term) string {
	return strings.Join([]string{t.Kind, t.Value, t.Prefix, t.Local, t.Lang, t.Dtype, t.ResolvedIRI}, "\x1e")
}

func canonicalTriple(t sparqldsl.Triple) string {
	return canonicalTerm(t.S) + "\x1f" + canonicalTerm(t.P) + "\x1f" + canonicalTerm(t.O)
}

// requestHash computes the content-addressable digest from spec.md
// section 4.3: graph_iri, strategy, key discipline, and triples sorted
// into a canonical order so byte-for-byte identical inputs - regardless
// of slice order - produce identical hashes.
func requestHash(graphIRI string, strategy MergeStrategy, discipline KeyDiscipline, triples []sparqldsl.Triple) string {
	canon := make([]string, len(triples))
	for i, t := range triples {
		canon[i] = canonicalTriple(t)
	}
	sort.Strings(canon)

	h := sha256.New()
	fmt.Fprintf(h, "graph=%s\x1estrategy=%s\x1ekey=%s\x1e", graphIRI, strategy, discipline)
	for _, c := range canon {
		h.Write([]byte(c))
		h.Write([]byte{0x1d})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func statementPrefixes() map[string]string {
	return sparqldsl.BuiltinPrefixes()
}

func writeStatementPrefixes(b *strings.Builder) {
	for _, name := range []string{"rdf", "rdfs", "xsd", "prov", "sf"} {
		fmt.Fprintf(b, "PREFIX %s: <%s>\n", name, statementPrefixes()[name])
	}
}

func formatTerm(t sparqldsl.Term) (string, error) {
	return sanitize.FormatTerm(t, statementPrefixes())
}

func formatTriple(t sparqldsl.Triple) (string, error) {
	s, err := formatTerm(t.S)
	if err != nil {
		return "", err
	}
	p, err := formatTerm(t.P)
	if err != nil {
		return "", err
	}
	o, err := formatTerm(t.O)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s .", s, p, o), nil
}

// buildStatements emits the statements for one key group per spec.md
// section 4.3 step 3.
func buildStatements(graphIRI, key string, discipline KeyDiscipline, customFields []string, strategy MergeStrategy, group []sparqldsl.Triple) ([]Statement, error) {
	g, err := sanitize.EscapeIRI(graphIRI)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case StrategyReplace:
		sparql, err := replaceStatement(g, discipline, customFields, group)
		if err != nil {
			return nil, err
		}
		return []Statement{{
			SPARQL:           sparql,
			Key:              key,
			Strategy:         strategy,
			Triples:          group,
			RequiresSnapshot: true,
		}}, nil

	case StrategyIgnore:
		var stmts []Statement
		for _, t := range group {
			sparql, err := ignoreStatement(g, t)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, Statement{
				SPARQL:           sparql,
				Key:              key,
				Strategy:         strategy,
				Triples:          []sparqldsl.Triple{t},
				RequiresSnapshot: false,
			})
		}
		return stmts, nil

	case StrategyAppend:
		sparql, err := appendStatement(g, group)
		if err != nil {
			return nil, err
		}
		return []Statement{{
			SPARQL:           sparql,
			Key:              key,
			Strategy:         strategy,
			Triples:          group,
			RequiresSnapshot: false,
		}}, nil

	default:
		return nil, sfrdferr.Invalid(sfrdferr.KindUnknownStrategy, "unknown merge strategy %q", strategy)
	}
}

// keyPattern renders the key-matching triple pattern for a group: key
// positions are bound to the group's shared concrete value, non-key
// positions become fresh variables so DELETE removes all prior values
// regardless of content.
func keyPattern(discipline KeyDiscipline, customFields []string, sample sparqldsl.Triple) (sparqldsl.Triple, error) {
	switch discipline {
	case KeySubject:
		return sparqldsl.Triple{S: sample.S, P: sparqldsl.Var("p"), O: sparqldsl.Var("o")}, nil
	case KeySubjectPred:
		return sparqldsl.Triple{S: sample.S, P: sample.P, O: sparqldsl.Var("o")}, nil
	case KeyCustom:
		pattern := sparqldsl.Triple{S: sparqldsl.Var("s"), P: sparqldsl.Var("p"), O: sparqldsl.Var("o")}
		for _, f := range customFields {
			comp, err := componentFor(sample, f)
			if err != nil {
				return sparqldsl.Triple{}, err
			}
			switch f {
			case "s":
				pattern.S = comp
			case "p":
				pattern.P = comp
			case "o":
				pattern.O = comp
			}
		}
		return pattern, nil
	default:
		return sparqldsl.Triple{}, sfrdferr.Invalid(sfrdferr.KindUnknownAlgorithm, "unknown upsert key discipline %q", discipline)
	}
}

func replaceStatement(graphIRI string, discipline KeyDiscipline, customFields []string, group []sparqldsl.Triple) (string, error) {
	if len(group) == 0 {
		return "", sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "replace statement requires at least one triple")
	}
	pattern, err := keyPattern(discipline, customFields, group[0])
	if err != nil {
		return "", err
	}
	patternLine, err := formatTriple(pattern)
	if err != nil {
		return "", err
	}

	var insertLines []string
	for _, t := range group {
		line, err := formatTriple(t)
		if err != nil {
			return "", err
		}
		insertLines = append(insertLines, line)
	}

	var b strings.Builder
	writeStatementPrefixes(&b)
	fmt.Fprintf(&b, "DELETE { GRAPH <%s> { %s } }\n", graphIRI, patternLine)
	fmt.Fprintf(&b, "INSERT { GRAPH <%s> { %s } }\n", graphIRI, strings.Join(insertLines, " "))
	fmt.Fprintf(&b, "WHERE { GRAPH <%s> { %s } }\n", graphIRI, patternLine)
	return b.String(), nil
}

func ignoreStatement(graphIRI string, t sparqldsl.Triple) (string, error) {
	line, err := formatTriple(t)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	writeStatementPrefixes(&b)
	fmt.Fprintf(&b, "INSERT { GRAPH <%s> { %s } }\n", graphIRI, line)
	fmt.Fprintf(&b, "WHERE { FILTER NOT EXISTS { GRAPH <%s> { %s } } }\n", graphIRI, line)
	return b.String(), nil
}

func appendStatement(graphIRI string, group []sparqldsl.Triple) (string, error) {
	var lines []string
	for _, t := range group {
		line, err := formatTriple(t)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	var b strings.Builder
	writeStatementPrefixes(&b)
	fmt.Fprintf(&b, "INSERT DATA { GRAPH <%s> { %s } }\n", graphIRI, strings.Join(lines, " "))
	return b.String(), nil
}
