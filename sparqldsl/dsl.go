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

package sparqldsl

import (
	"fmt"
	"strings"

	"github.com/huacc/sf-rdf-acl/sanitize"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
)

// Triple is a single RDF statement. S must be an IRI or blank node; P
// must be an IRI; O may be an IRI, blank node, or literal. When O is a
// literal, its Lang and Dtype fields (mutually exclusive) carry the
// language tag / datatype IRI.
type Triple struct {
	S Term
	P Term
	O Term
}

// Validate checks the structural invariants from spec.md section 3: S
// must be IRI-like or blank, P must be IRI-like, and a literal O cannot
// carry both a language tag and a datatype.
func (t Triple) Validate() error {
	if !IsIRILike(t.S) && t.S.Kind != "blank" {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "triple subject must be an IRI or blank node, got kind %q", t.S.Kind)
	}
	if !IsIRILike(t.P) {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "triple predicate must be an IRI, got kind %q", t.P.Kind)
	}
	if t.O.Kind == "literal" && t.O.Lang != "" && t.O.Dtype != "" {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "literal object cannot carry both lang and dtype")
	}
	return nil
}

// FilterOperator enumerates the filter operators from spec.md section 3.
type FilterOperator string

const (
	OpEq       FilterOperator = "="
	OpNeq      FilterOperator = "!="
	OpLt       FilterOperator = "<"
	OpLte      FilterOperator = "<="
	OpGt       FilterOperator = ">"
	OpGte      FilterOperator = ">="
	OpIn       FilterOperator = "in"
	OpRange    FilterOperator = "range"
	OpContains FilterOperator = "contains"
	OpRegex    FilterOperator = "regex"
	OpExists   FilterOperator = "exists"
	OpIsNull   FilterOperator = "isNull"
)

// RangeValue is the value shape for OpRange filters.
type RangeValue struct {
	Gte *string
	Lte *string
}

// Filter narrows a query's WHERE clause. Field names the bound variable
// or predicate CURIE/IRI the filter applies to (callers are expected to
// have already aliased predicates to variables via Expand where needed).
type Filter struct {
	Field    string
	Operator FilterOperator
	// Value holds the operand for simple comparison operators, "contains",
	// and "regex". Unused for "in", "range", "exists", "isNull".
	Value string
	// InValues holds the operand list for OpIn.
	InValues []string
	// Range holds the operand for OpRange.
	Range RangeValue
}

// AggregationFunction enumerates the supported aggregate functions.
type AggregationFunction string

const (
	AggCount       AggregationFunction = "COUNT"
	AggSum         AggregationFunction = "SUM"
	AggAvg         AggregationFunction = "AVG"
	AggMin         AggregationFunction = "MIN"
	AggMax         AggregationFunction = "MAX"
	AggGroupConcat AggregationFunction = "GROUP_CONCAT"
)

// Aggregation describes one SELECT-head aggregate expression.
type Aggregation struct {
	Function  AggregationFunction
	Variable  string
	Alias     string
	Distinct  bool
	Separator string // only meaningful when Function == AggGroupConcat
}

// EffectiveAlias returns Alias, defaulting to "agg_<variable>" when unset.
func (a Aggregation) EffectiveAlias() string {
	if a.Alias != "" {
		return a.Alias
	}
	return "agg_" + a.Variable
}

// QueryType selects the WHERE-body template in the builder.
type QueryType string

const (
	QueryEntity   QueryType = "entity"
	QueryRelation QueryType = "relation"
	QueryEvent    QueryType = "event"
	QueryRaw      QueryType = "raw"
)

// SortDirection is ascending or descending for an ORDER BY term.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortKey is one ORDER BY clause entry.
type SortKey struct {
	Variable  string
	Direction SortDirection
}

// Page carries SPARQL LIMIT/OFFSET pagination.
type Page struct {
	Size   int
	Offset int
}

// TimeWindow bounds a datetime-typed variable (conventionally ?t) by an
// inclusive [From, To] range.
type TimeWindow struct {
	Variable string // defaults to "t" when empty
	From     string // xsd:dateTime lexical form
	To       string // xsd:dateTime lexical form
}

// EffectiveVariable returns Variable, defaulting to "t".
func (w TimeWindow) EffectiveVariable() string {
	if w.Variable != "" {
		return w.Variable
	}
	return "t"
}

// ExpandSpec requests an OPTIONAL { ?s <pred> ?alias } clause.
type ExpandSpec struct {
	Predicate Term
	Alias     string // generated if empty
}

// QueryDSL is the top-level description of a query, independent of
// whether it compiles to SELECT or CONSTRUCT.
type QueryDSL struct {
	Type         QueryType
	Filters      []Filter
	Expand       []ExpandSpec
	TimeWindow   *TimeWindow
	Participants []Term
	Page         *Page
	Sort         []SortKey
	Prefixes     map[string]string
	Aggregations []Aggregation
	GroupBy      []string
	Having       []Filter
}

// Validate checks, when Aggregations is non-empty, that every Having
// clause references an aggregate alias or a group variable. It does not
// inspect selected variables: the aggregate SELECT head the builder
// renders contains only aggregate expressions and GroupBy variables.
func (q QueryDSL) Validate() error {
	if len(q.Aggregations) == 0 {
		return nil
	}
	groupSet := make(map[string]bool, len(q.GroupBy))
	for _, g := range q.GroupBy {
		groupSet[g] = true
	}
	aliasSet := make(map[string]bool, len(q.Aggregations))
	for _, agg := range q.Aggregations {
		aliasSet[agg.EffectiveAlias()] = true
	}
	for _, h := range q.Having {
		if !aliasSet[h.Field] && !groupSet[h.Field] {
			return sfrdferr.Invalid(sfrdferr.KindConstraintViolation,
				"having clause references %q which is neither an aggregate alias nor a group variable", h.Field)
		}
	}
	return nil
}

// GraphRef identifies a named graph, either directly by name or by the
// {model, version, env, scenario_id?} tuple resolved through a naming
// template (see config.Config.Graph.Naming.GraphIRITemplate and Resolve below).
type GraphRef struct {
	Name string

	Model      string
	Version    string
	Env        string
	ScenarioID string
}

// Resolve returns the canonical graph IRI for r. If Name is set it is
// returned verbatim, without validation. Otherwise template is expanded by
// substituting {ns}, {model}, {version}, {env}, and {scenario_id}
// (dropped, along with its preceding ":" or "/" separator character, when
// ScenarioID is empty). ns is the caller-supplied namespace segment.
func (r GraphRef) Resolve(ns, template string) (string, error) {
	if r.Name != "" {
		return r.Name, nil
	}
	if r.Model == "" || r.Version == "" || r.Env == "" {
		return "", sfrdferr.Invalid(sfrdferr.KindInvalidConfig, "GraphRef requires model, version, and env when Name is unset")
	}
	iri := substitutePlaceholder(template, "ns", ns)
	iri = substitutePlaceholder(iri, "model", r.Model)
	iri = substitutePlaceholder(iri, "version", r.Version)
	iri = substitutePlaceholder(iri, "env", r.Env)
	if r.ScenarioID != "" {
		iri = substitutePlaceholder(iri, "scenario_id", r.ScenarioID)
	} else {
		iri = dropOptionalScenarioSegment(iri)
	}
	return iri, nil
}

func substitutePlaceholder(s, name, value string) string {
	placeholder := "{" + name + "}"
	result := ""
	for {
		idx := strings.Index(s, placeholder)
		if idx < 0 {
			return result + s
		}
		result += s[:idx] + value
		s = s[idx+len(placeholder):]
	}
}

func dropOptionalScenarioSegment(s string) string {
	idx := strings.Index(s, "{scenario_id}")
	if idx < 0 {
		return s
	}
	start := idx
	if start > 0 && (s[start-1] == ':' || s[start-1] == '/') {
		start--
	}
	end := idx + len("{scenario_id}")
	return s[:start] + s[end:]
}

// PrefixSet merges built-in and caller-declared prefixes, failing fast on
// conflicting redeclaration of the same prefix name.
type PrefixSet struct {
	byName map[string]string
	order  []string
}

// BuiltinPrefixes returns the prefixes every builder query starts with.
func BuiltinPrefixes() map[string]string {
	return map[string]string{
		"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
		"xsd":  "http://www.w3.org/2001/XMLSchema#",
		"prov": "http://www.w3.org/ns/prov#",
		"sf":   "urn:sf:",
	}
}

// NewPrefixSet builds a PrefixSet seeded with the built-in prefixes.
func NewPrefixSet() *PrefixSet {
	ps := &PrefixSet{byName: map[string]string{}}
	// Deterministic seed order for byte-identical builder output.
	order := []string{"rdf", "rdfs", "xsd", "prov", "sf"}
	builtins := BuiltinPrefixes()
	for _, name := range order {
		ps.byName[name] = builtins[name]
		ps.order = append(ps.order, name)
	}
	return ps
}

// Merge adds name -> iri, failing with KindInvalidPrefix if name is
// already declared with a different IRI, or if name is not a valid
// NCName-lite prefix.
func (ps *PrefixSet) Merge(name, iri string) error {
	if !ValidatePrefixName(name) {
		return sfrdferr.Invalid(sfrdferr.KindInvalidPrefix, "invalid prefix name %q", name)
	}
	if existing, ok := ps.byName[name]; ok {
		if existing != iri {
			return sfrdferr.Invalid(sfrdferr.KindInvalidPrefix, "prefix %q already declared as %q, got %q", name, existing, iri)
		}
		return nil
	}
	ps.byName[name] = iri
	ps.order = append(ps.order, name)
	return nil
}

// MergeAll merges a caller-supplied prefix map in deterministic
// (sorted-by-key) order so PrefixSet.Declarations() is itself
// deterministic regardless of Go's randomized map iteration.
func (ps *PrefixSet) MergeAll(prefixes map[string]string) error {
	for _, name := range sortedKeys(prefixes) {
		if err := ps.Merge(name, prefixes[name]); err != nil {
			return err
		}
	}
	return nil
}

// Map returns the merged prefix -> IRI map.
func (ps *PrefixSet) Map() map[string]string {
	out := make(map[string]string, len(ps.byName))
	for k, v := range ps.byName {
		out[k] = v
	}
	return out
}

// Declarations renders "PREFIX name: <iri>" lines in stable insertion
// order (built-ins first, then caller-declared prefixes in sorted order).
func (ps *PrefixSet) Declarations() []string {
	lines := make([]string, 0, len(ps.order))
	for _, name := range ps.order {
		lines = append(lines, fmt.Sprintf("PREFIX %s: <%s>", name, ps.byName[name]))
	}
	return lines
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Simple insertion sort: prefix maps are small (a handful of
	// entries), so this avoids pulling in "sort" for one call site...
	// kept as-is for clarity since the caller list is short-lived.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// ValidatePrefixName is re-exported for callers that only have
// sparqldsl imported.
func ValidatePrefixName(name string) bool {
	return sanitize.ValidatePrefix(name)
}
