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
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/huacc/sf-rdf-acl/rdfclient"
	"github.com/huacc/sf-rdf-acl/sanitize"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
	"github.com/huacc/sf-rdf-acl/sparqldsl"
)

// ConditionalClear implements spec.md section 4.5's conditional_clear:
// dry_run=true returns an estimate and sample without writing; dry_run=
// false runs the estimate as a ceiling check before the destructive
// DELETE.
func (m *Manager) ConditionalClear(ctx context.Context, g string, cond Condition, dryRun bool, maxDeletes int, opts rdfclient.CallOptions) (*DryRunResult, *ClearResult, error) {
	iri, err := sanitize.EscapeIRI(g)
	if err != nil {
		return nil, nil, err
	}
	prefixes := sparqldsl.BuiltinPrefixes()
	lines, err := cond.whereLines(prefixes)
	if err != nil {
		return nil, nil, err
	}

	estimate, sample, err := m.estimate(ctx, iri, lines, opts)
	if err != nil {
		return nil, nil, err
	}
	if dryRun {
		return &DryRunResult{EstimatedDeletes: estimate, Sample: sample}, nil, nil
	}

	if estimate > maxDeletes {
		return nil, nil, sfrdferr.Invalid(sfrdferr.KindDeleteCeilingExceeded,
			"conditional_clear on graph %q would delete an estimated %d triples, exceeding max_deletes %d", iri, estimate, maxDeletes)
	}

	patternLines, err := cond.patternLines(prefixes)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	deleteBody := joinFilterLines(patternLines)
	whereBody := joinFilterLines(lines)
	update := fmt.Sprintf("DELETE { GRAPH <%s> { %s } }\nWHERE { GRAPH <%s> { %s } }\n", iri, deleteBody, iri, whereBody)
	if _, err := m.client.Update(ctx, update, opts); err != nil {
		return nil, nil, err
	}
	elapsed := time.Since(start).Milliseconds()
	m.logger.Info("conditional clear executed", zap.String("graph", iri), zap.Int("deleted", estimate), zap.Int64("duration_ms", elapsed), zap.String("trace_id", opts.TraceID))
	return nil, &ClearResult{DeletedCount: estimate, ExecutionTime: elapsed, Executed: true}, nil
}

// estimate issues the COUNT(*) dry-run query plus a LIMIT 10 sample, per
// spec.md section 4.5 step 2.
func (m *Manager) estimate(ctx context.Context, graphIRI string, lines []string, opts rdfclient.CallOptions) (int, []SamplePattern, error) {
	body := joinFilterLines(lines)
	countQuery := fmt.Sprintf("SELECT (COUNT(*) AS ?n) WHERE { GRAPH <%s> { %s } }", graphIRI, body)
	countRes, err := m.client.Select(ctx, countQuery, opts)
	if err != nil {
		return 0, nil, err
	}
	count, err := extractCount(countRes)
	if err != nil {
		return 0, nil, err
	}

	sampleQuery := fmt.Sprintf("SELECT * WHERE { GRAPH <%s> { %s } } LIMIT 10", graphIRI, body)
	sampleRes, err := m.client.Select(ctx, sampleQuery, opts)
	if err != nil {
		return 0, nil, err
	}
	return count, toSample(sampleRes), nil
}

func extractCount(res *rdfclient.SelectResult) (int, error) {
	if len(res.Bindings) == 0 {
		return 0, nil
	}
	b, ok := res.Bindings[0]["n"]
	if !ok {
		return 0, sfrdferr.Invalid(sfrdferr.KindFusekiQueryError, "COUNT(*) response carries no ?n binding")
	}
	n, err := strconv.Atoi(b.Value)
	if err != nil {
		return 0, sfrdferr.Wrap(sfrdferr.KindFusekiQueryError, err, "parsing COUNT(*) result %q", b.Value)
	}
	return n, nil
}

func toSample(res *rdfclient.SelectResult) []SamplePattern {
	out := make([]SamplePattern, 0, len(res.Bindings))
	for _, row := range res.Bindings {
		out = append(out, SamplePattern{S: row["s"].Value, P: row["p"].Value, O: row["o"].Value})
	}
	return out
}

// joinFilterLines renders the pattern/filter lines one per line, each
// terminated with " .", matching the one-clause-per-line convention
// package sparqlbuild's whereBody uses for WHERE bodies that mix triple
// patterns with FILTERs.
func joinFilterLines(lines []string) string {
	terminated := make([]string, len(lines))
	for i, l := range lines {
		terminated[i] = l + " ."
	}
	return strings.Join(terminated, "\n")
}
