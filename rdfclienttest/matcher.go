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

package rdfclienttest

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/huacc/sf-rdf-acl/sfrdferr"
)

type lineKind int

const (
	lineTriple lineKind = iota
	lineFilter
)

// whereLine is one parsed line of a WHERE-clause body: either a triple
// pattern (s, p, o tokens, each either "?var" or a literal/IRI/CURIE
// rendered exactly as package sanitize would render it) or a FILTER
// condition with its outer "FILTER(" ")" wrapper already stripped.
type whereLine struct {
	kind       lineKind
	s, p, o    string
	filterExpr string
}

var limitRe = regexp.MustCompile(`LIMIT (\d+)`)
var angleIRIRe = regexp.MustCompile(`<([^>]+)>`)

func stripPrefixLines(query string) string {
	var out []string
	for _, l := range strings.Split(query, "\n") {
		if strings.HasPrefix(strings.TrimSpace(l), "PREFIX ") {
			continue
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func extractAngleIRI(body string) string {
	m := angleIRIRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}

func extractTwoGraphIRIs(body string) (string, string) {
	m := angleIRIRe.FindAllStringSubmatch(body, -1)
	if len(m) < 2 {
		return "", ""
	}
	return m[0][1], m[1][1]
}

// tokenize splits s on whitespace, treating a double-quoted span
// (including any "^^<...>" or "@lang" suffix glued directly to its
// closing quote, since sanitize never emits a space there) as one token.
func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case (c == ' ' || c == '\t' || c == '\n') && !inQuote:
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

// braceContent returns the text strictly between the brace-delimited
// block starting at s[openIdx] (which must be '{') and the index just
// past its matching closing brace.
func braceContent(s string, openIdx int) (string, int) {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[openIdx+1 : i], i + 1
			}
		}
	}
	return s[openIdx+1:], len(s)
}

// blockAfterKeyword finds the first brace-delimited block following the
// first occurrence of keyword in body.
func blockAfterKeyword(body, keyword string) (string, bool) {
	idx := strings.Index(body, keyword)
	if idx < 0 {
		return "", false
	}
	rest := body[idx+len(keyword):]
	braceIdx := strings.Index(rest, "{")
	if braceIdx < 0 {
		return "", false
	}
	content, _ := braceContent(rest, braceIdx)
	return content, true
}

// extractGraphAndRemainder finds the first "GRAPH <iri> { ... }" block in
// s and returns its IRI, its inner content, and whatever text in s
// follows the block's closing brace (package sparqlbuild appends a
// cursor FILTER outside the GRAPH block but still inside WHERE{...}).
func extractGraphAndRemainder(s string) (iri, inner, remainder string, ok bool) {
	idx := strings.Index(s, "GRAPH <")
	if idx < 0 {
		return "", "", "", false
	}
	rest := s[idx+len("GRAPH <"):]
	end := strings.Index(rest, ">")
	if end < 0 {
		return "", "", "", false
	}
	iri = rest[:end]
	tail := rest[end:]
	braceIdx := strings.Index(tail, "{")
	if braceIdx < 0 {
		return "", "", "", false
	}
	content, afterIdx := braceContent(tail, braceIdx)
	return iri, content, tail[afterIdx:], true
}

func firstGraphBlock(s string) (iri, inner string, ok bool) {
	iri, inner, _, ok = extractGraphAndRemainder(s)
	return
}

// parseTriples tokenizes text (newlines are insignificant) and groups
// tokens into s/p/o triples, each optionally terminated by a standalone
// "." token - the shape every triple-only block in this package's own
// UPDATE statements takes, whether one triple per line or several joined
// on a single line by spaces.
func parseTriples(text string) []storedTriple {
	tokens := tokenize(strings.ReplaceAll(text, "\n", " "))
	var out []storedTriple
	i := 0
	for i+3 <= len(tokens) {
		t := storedTriple{S: tokens[i], P: tokens[i+1], O: tokens[i+2]}
		i += 3
		if i < len(tokens) && tokens[i] == "." {
			i++
		}
		out = append(out, t)
	}
	return out
}

// parseWhereLines parses a newline-separated WHERE body into triple and
// FILTER lines, skipping OPTIONAL blocks entirely (this store does not
// model optional bindings - a kept limitation, not a defect, since
// nothing in this package's own query surface requires them to narrow
// results).
func parseWhereLines(where string) []whereLine {
	var lines []whereLine
	for _, raw := range strings.Split(where, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "OPTIONAL") {
			continue
		}
		if strings.HasPrefix(line, "FILTER(") {
			expr := strings.TrimSuffix(line, " .")
			expr = strings.TrimSuffix(expr, ".")
			expr = strings.TrimSpace(expr)
			expr = strings.TrimPrefix(expr, "FILTER(")
			expr = strings.TrimSuffix(expr, ")")
			lines = append(lines, whereLine{kind: lineFilter, filterExpr: expr})
			continue
		}
		text := strings.TrimSuffix(line, " .")
		text = strings.TrimSuffix(text, ".")
		toks := tokenize(strings.TrimSpace(text))
		if len(toks) == 3 {
			lines = append(lines, whereLine{kind: lineTriple, s: toks[0], p: toks[1], o: toks[2]})
		}
	}
	return lines
}

// extractSelectShape pulls the GRAPH-scoped WHERE body and LIMIT value
// out of a SELECT or CONSTRUCT query.
func extractSelectShape(body string) (graph, where string, limit int) {
	whereContent, ok := blockAfterKeyword(body, "WHERE")
	if !ok {
		return "", "", 0
	}
	if iri, inner, remainder, ok := extractGraphAndRemainder(whereContent); ok {
		graph = iri
		where = inner + "\n" + remainder
	} else {
		where = whereContent
	}
	if m := limitRe.FindStringSubmatch(body); m != nil {
		limit, _ = strconv.Atoi(m[1])
	}
	return graph, where, limit
}

// joinRow is one conjunctive match: the variable bindings plus the
// underlying stored triples each pattern line matched, in pattern order,
// so DELETE semantics can remove exactly what WHERE matched.
type joinRow struct {
	vars    map[string]string
	triples []storedTriple
}

func runJoin(graph map[string]storedTriple, lines []whereLine) []joinRow {
	triples := make([]storedTriple, 0, len(graph))
	for _, t := range graph {
		triples = append(triples, t)
	}
	sort.Slice(triples, func(i, j int) bool { return triples[i].key() < triples[j].key() })

	var patterns, filters []whereLine
	for _, l := range lines {
		switch l.kind {
		case lineTriple:
			patterns = append(patterns, l)
		case lineFilter:
			filters = append(filters, l)
		}
	}

	var results []joinRow
	var rec func(idx int, cur map[string]string, matched []storedTriple)
	rec = func(idx int, cur map[string]string, matched []storedTriple) {
		if idx == len(patterns) {
			for _, f := range filters {
				if !evalFilter(f.filterExpr, cur) {
					return
				}
			}
			vcopy := make(map[string]string, len(cur))
			for k, v := range cur {
				vcopy[k] = v
			}
			results = append(results, joinRow{vars: vcopy, triples: append([]storedTriple(nil), matched...)})
			return
		}
		pat := patterns[idx]
		for _, t := range triples {
			ext, ok := extend(cur, pat, t)
			if ok {
				rec(idx+1, ext, append(matched, t))
			}
		}
	}
	rec(0, map[string]string{}, nil)
	return results
}

func extend(cur map[string]string, pat whereLine, t storedTriple) (map[string]string, bool) {
	next := make(map[string]string, len(cur)+3)
	for k, v := range cur {
		next[k] = v
	}
	pairs := [3][2]string{{pat.s, t.S}, {pat.p, t.P}, {pat.o, t.O}}
	for _, pair := range pairs {
		tok, val := pair[0], pair[1]
		if strings.HasPrefix(tok, "?") {
			name := strings.TrimPrefix(tok, "?")
			if existing, ok := next[name]; ok {
				if existing != val {
					return nil, false
				}
			} else {
				next[name] = val
			}
		} else if tok != val {
			return nil, false
		}
	}
	return next, true
}

func evaluate(graph map[string]storedTriple, lines []whereLine) []map[string]string {
	rows := runJoin(graph, lines)
	out := make([]map[string]string, len(rows))
	for i, r := range rows {
		out[i] = r.vars
	}
	return out
}

func matchesPattern(pat, t storedTriple) bool {
	return tokenMatches(pat.S, t.S) && tokenMatches(pat.P, t.P) && tokenMatches(pat.O, t.O)
}

func tokenMatches(tok, val string) bool {
	if strings.HasPrefix(tok, "?") {
		return true
	}
	return tok == val
}

// --- FILTER evaluation -----------------------------------------------

var (
	reBound    = regexp.MustCompile(`^BOUND\(\?(\w+)\)$`)
	reNotBound = regexp.MustCompile(`^!BOUND\(\?(\w+)\)$`)
	reIsIRI    = regexp.MustCompile(`^isIRI\(\?(\w+)\)$`)
	reIsLit    = regexp.MustCompile(`^isLiteral\(\?(\w+)\)$`)
	reContains = regexp.MustCompile(`^CONTAINS\(STR\(\?(\w+)\), (.+)\)$`)
	reRegex    = regexp.MustCompile(`^REGEX\(STR\(\?(\w+)\), (.+)\)$`)
	reIn       = regexp.MustCompile(`^\?(\w+) IN \((.+)\)$`)
	reStrWrap  = regexp.MustCompile(`STR\(\?(\w+)\)`)
	reCmp      = regexp.MustCompile(`^\?(\w+) (=|!=|<=|>=|<|>) (.+)$`)
)

func evalFilter(expr string, b map[string]string) bool {
	for _, cond := range strings.Split(expr, " && ") {
		if !evalCond(strings.TrimSpace(cond), b) {
			return false
		}
	}
	return true
}

func evalCond(cond string, b map[string]string) bool {
	switch {
	case reNotBound.MatchString(cond):
		_, ok := b[reNotBound.FindStringSubmatch(cond)[1]]
		return !ok
	case reBound.MatchString(cond):
		_, ok := b[reBound.FindStringSubmatch(cond)[1]]
		return ok
	case reIsIRI.MatchString(cond):
		v, ok := b[reIsIRI.FindStringSubmatch(cond)[1]]
		return ok && strings.HasPrefix(v, "<")
	case reIsLit.MatchString(cond):
		v, ok := b[reIsLit.FindStringSubmatch(cond)[1]]
		return ok && strings.HasPrefix(v, `"`)
	case reContains.MatchString(cond):
		m := reContains.FindStringSubmatch(cond)
		v, ok := b[m[1]]
		if !ok {
			return false
		}
		_, hay := literalValue(v)
		_, needle := literalValue(strings.TrimSpace(m[2]))
		return strings.Contains(hay, needle)
	case reRegex.MatchString(cond):
		m := reRegex.FindStringSubmatch(cond)
		v, ok := b[m[1]]
		if !ok {
			return false
		}
		_, hay := literalValue(v)
		_, pattern := literalValue(strings.TrimSpace(m[2]))
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(hay)
	case reIn.MatchString(cond):
		m := reIn.FindStringSubmatch(cond)
		v, ok := b[m[1]]
		if !ok {
			return false
		}
		vKind, vVal := literalValue(v)
		for _, tok := range strings.Split(m[2], ", ") {
			tk, tv := literalValue(strings.TrimSpace(tok))
			if tk == vKind && tv == vVal {
				return true
			}
		}
		return false
	default:
		return evalComparison(cond, b)
	}
}

func evalComparison(cond string, b map[string]string) bool {
	normalized := reStrWrap.ReplaceAllString(cond, "?$1")
	m := reCmp.FindStringSubmatch(normalized)
	if m == nil {
		return false
	}
	bound, ok := b[m[1]]
	if !ok {
		return false
	}
	op := m[2]
	bKind, bVal := literalValue(bound)
	rKind, rVal := literalValue(strings.TrimSpace(m[3]))
	if bKind != rKind {
		return op == "!="
	}
	switch op {
	case "=":
		return bVal == rVal
	case "!=":
		return bVal != rVal
	default:
		return compareOrdered(bVal, rVal, op)
	}
}

func literalValue(term string) (kind, val string) {
	if strings.HasPrefix(term, "<") && strings.HasSuffix(term, ">") {
		return "iri", term[1 : len(term)-1]
	}
	if strings.HasPrefix(term, `"`) {
		if idx := strings.LastIndex(term, `"`); idx > 0 {
			raw := term[1:idx]
			raw = strings.ReplaceAll(raw, `\"`, `"`)
			raw = strings.ReplaceAll(raw, `\\`, `\`)
			return "literal", raw
		}
	}
	return "other", term
}

func cmp3(c int, op string) bool {
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	default:
		return false
	}
}

func compareOrdered(a, b, op string) bool {
	if af, aerr := strconv.ParseFloat(a, 64); aerr == nil {
		if bf, berr := strconv.ParseFloat(b, 64); berr == nil {
			switch {
			case af < bf:
				return cmp3(-1, op)
			case af > bf:
				return cmp3(1, op)
			default:
				return cmp3(0, op)
			}
		}
	}
	if at, aerr := time.Parse(time.RFC3339, a); aerr == nil {
		if bt, berr := time.Parse(time.RFC3339, b); berr == nil {
			switch {
			case at.Before(bt):
				return cmp3(-1, op)
			case at.After(bt):
				return cmp3(1, op)
			default:
				return cmp3(0, op)
			}
		}
	}
	return cmp3(strings.Compare(a, b), op)
}

// --- UPDATE statement interpreters -------------------------------------

func (s *Store) applyInsertData(body string) error {
	idx := strings.Index(body, "{")
	if idx < 0 {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: malformed INSERT DATA")
	}
	outer, _ := braceContent(body, idx)
	iri, inner, ok := firstGraphBlock(outer)
	if !ok {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: INSERT DATA missing GRAPH block")
	}
	g := s.ensureGraph(iri)
	for _, t := range parseTriples(inner) {
		g[t.key()] = t
	}
	return nil
}

func (s *Store) applyDeleteInsertWhere(body string) error {
	deleteContent, ok := blockAfterKeyword(body, "DELETE")
	if !ok {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: malformed DELETE/INSERT/WHERE: missing DELETE block")
	}
	_, delInner, ok := firstGraphBlock(deleteContent)
	if !ok {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: malformed DELETE/INSERT/WHERE: missing DELETE GRAPH block")
	}
	insertContent, ok := blockAfterKeyword(body, "INSERT")
	if !ok {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: malformed DELETE/INSERT/WHERE: missing INSERT block")
	}
	iri, insInner, ok := firstGraphBlock(insertContent)
	if !ok {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: malformed DELETE/INSERT/WHERE: missing INSERT GRAPH block")
	}

	patterns := parseTriples(delInner)
	g := s.ensureGraph(iri)
	if len(patterns) == 1 {
		pat := patterns[0]
		for k, t := range g {
			if matchesPattern(pat, t) {
				delete(g, k)
			}
		}
	}
	for _, t := range parseTriples(insInner) {
		g[t.key()] = t
	}
	return nil
}

func (s *Store) applyInsertIfNotExists(body string) error {
	insertContent, ok := blockAfterKeyword(body, "INSERT")
	if !ok {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: malformed conditional INSERT: missing INSERT block")
	}
	iri, inner, ok := firstGraphBlock(insertContent)
	if !ok {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: malformed conditional INSERT: missing GRAPH block")
	}
	triples := parseTriples(inner)
	if len(triples) != 1 {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: conditional INSERT expects exactly one triple, got %d", len(triples))
	}
	g := s.ensureGraph(iri)
	t := triples[0]
	if _, exists := g[t.key()]; !exists {
		g[t.key()] = t
	}
	return nil
}

func (s *Store) applyDeleteWhere(body string) error {
	whereContent, ok := blockAfterKeyword(body, "WHERE")
	if !ok {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: malformed DELETE/WHERE: missing WHERE block")
	}
	iri, inner, ok := firstGraphBlock(whereContent)
	if !ok {
		return sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "rdfclienttest: malformed DELETE/WHERE: missing GRAPH block")
	}
	lines := parseWhereLines(inner)
	g := s.ensureGraph(iri)
	rows := runJoin(g, lines)
	seen := map[string]bool{}
	for _, row := range rows {
		for _, t := range row.triples {
			k := t.key()
			if !seen[k] {
				seen[k] = true
				delete(g, k)
			}
		}
	}
	return nil
}
