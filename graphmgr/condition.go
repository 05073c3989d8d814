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

package graphmgr

import (
	"fmt"
	"strings"

	"github.com/huacc/sf-rdf-acl/sanitize"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
	"github.com/huacc/sf-rdf-acl/sparqldsl"
)

// varSuffix names the fresh variable for pattern index i: "s"/"p"/"o" for
// the first pattern, "s1"/"p1"/"o1" for the second, and so on, so
// composing multiple patterns in one WHERE body never collides.
func varSuffix(i int) string {
	if i == 0 {
		return ""
	}
	return fmt.Sprintf("%d", i)
}

// toSPARQL renders one TriplePattern as a "s p o ." line, substituting a
// fresh variable for any nil component.
func (pat TriplePattern) toSPARQL(index int, prefixes map[string]string) (string, error) {
	suffix := varSuffix(index)
	s, err := termOrVar(pat.S, "s"+suffix, prefixes)
	if err != nil {
		return "", err
	}
	p, err := termOrVar(pat.P, "p"+suffix, prefixes)
	if err != nil {
		return "", err
	}
	o, err := termOrVar(pat.O, "o"+suffix, prefixes)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", s, p, o), nil
}

func termOrVar(t *sparqldsl.Term, varName string, prefixes map[string]string) (string, error) {
	if t == nil {
		return "?" + varName, nil
	}
	return sanitize.FormatTerm(*t, prefixes)
}

// renderFilters renders the subject_prefix, predicate_whitelist, and
// object_type filters from spec.md section 4.5's conditional_clear.
func (c Condition) renderFilters(prefixes map[string]string) ([]string, error) {
	var lines []string
	if c.SubjectPrefix != "" {
		lines = append(lines, fmt.Sprintf("FILTER(STRSTARTS(STR(?s), %s))", sanitize.EscapeLiteral(c.SubjectPrefix, "")))
	}
	if len(c.PredicateWhitelist) > 0 {
		terms := make([]string, len(c.PredicateWhitelist))
		for i, iri := range c.PredicateWhitelist {
			escaped, err := sanitize.EscapeIRI(iri)
			if err != nil {
				return nil, err
			}
			terms[i] = "<" + escaped + ">"
		}
		lines = append(lines, fmt.Sprintf("FILTER(?p IN (%s))", strings.Join(terms, ", ")))
	}
	switch c.ObjectType {
	case ObjectIRI:
		lines = append(lines, "FILTER(isIRI(?o))")
	case ObjectLiteral:
		lines = append(lines, "FILTER(isLiteral(?o))")
	case ObjectAny:
	default:
		return nil, sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "unknown object_type %q", c.ObjectType)
	}
	return lines, nil
}

// patternLines renders just the triple-pattern lines, with no FILTERs -
// the shape a SPARQL 1.1 Update DELETE quad template requires, since
// FILTER is a GroupGraphPattern element and is not legal inside one.
func (c Condition) patternLines(prefixes map[string]string) ([]string, error) {
	if len(c.Patterns) == 0 {
		return nil, sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "conditional_clear requires at least one triple pattern")
	}
	var lines []string
	for i, pat := range c.Patterns {
		line, err := pat.toSPARQL(i, prefixes)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// whereLines renders the full pattern+filter body, one "lines" entry per
// SPARQL clause, in the order spec.md section 4.5 step 1 specifies:
// patterns first, then filters. This shape is only legal inside a WHERE
// clause - see patternLines for the DELETE quad template.
func (c Condition) whereLines(prefixes map[string]string) ([]string, error) {
	lines, err := c.patternLines(prefixes)
	if err != nil {
		return nil, err
	}
	filters, err := c.renderFilters(prefixes)
	if err != nil {
		return nil, err
	}
	lines = append(lines, filters...)
	return lines, nil
}
