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

package txn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huacc/sf-rdf-acl/graphmgr"
	"github.com/huacc/sf-rdf-acl/internal/obslog"
	"github.com/huacc/sf-rdf-acl/rdfclient"
	"github.com/huacc/sf-rdf-acl/sanitize"
	"github.com/huacc/sf-rdf-acl/sparqldsl"
	"github.com/huacc/sf-rdf-acl/upsert"
)

// Executor runs upsert.Plans against an rdfclient.RDFClient per spec.md
// section 4.4. It holds a reference to its collaborators but owns no
// mutable state of its own, matching the "managers hold a reference to a
// client but own no mutable state beyond it" lifecycle rule.
type Executor struct {
	client           rdfclient.RDFClient
	planner          *upsert.Planner
	graphs           *graphmgr.Manager
	captureSnapshots bool
	logger           *zap.Logger
}

// NewExecutor builds an Executor. captureSnapshots toggles spec.md
// section 4.4 step 3's pre-execution COPY GRAPH snapshot - the spec
// calls this "implementation-configurable" rather than mandatory, since
// a caller content with best-effort rollback skipped entirely may prefer
// to avoid the extra round trip. A nil logger defaults to a no-op.
func NewExecutor(client rdfclient.RDFClient, planner *upsert.Planner, graphs *graphmgr.Manager, captureSnapshots bool, logger *zap.Logger) *Executor {
	return &Executor{
		client:           client,
		planner:          planner,
		graphs:           graphs,
		captureSnapshots: captureSnapshots,
		logger:           obslog.NopIfNil(logger),
	}
}

// Upsert plans req and executes it per spec.md section 4.4. now backs the
// snapshot's timestamp (mirrors graphmgr.Manager.Snapshot's injected-time
// pattern, rather than reaching for time.Now() inside the executor).
func (e *Executor) Upsert(ctx context.Context, req upsert.Request, now time.Time, traceID, actor string) (*Result, error) {
	start := time.Now()
	opts := rdfclient.CallOptions{TraceID: traceID}

	plan, err := e.planner.Plan(req)
	if err != nil {
		return nil, err
	}

	conflicts, err := detectConflicts(ctx, e.client, plan, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Graph:      plan.GraphIRI,
		State:      StatePlanned,
		Statements: len(plan.Statements),
		Conflicts:  conflicts,
		TxID:       uuid.New().String(),
	}
	if req.Provenance != nil {
		result.AuditID = uuid.New().String()
	}

	var snapshotIRI string
	if planNeedsSnapshot(plan) && e.captureSnapshots {
		snap, err := e.graphs.Snapshot(ctx, plan.GraphIRI, now, opts)
		if err != nil {
			return nil, fmt.Errorf("capturing pre-execution snapshot: %w", err)
		}
		snapshotIRI = snap.SnapshotIRI
		result.SnapshotIRI = snapshotIRI
	}

	result.State = StateExecuting
	for _, stmt := range plan.Statements {
		if _, err := e.client.Update(ctx, stmt.SPARQL, opts); err != nil {
			e.logger.Warn("upsert statement failed, attempting rollback",
				zap.String("graph", plan.GraphIRI), zap.String("key", stmt.Key), zap.String("trace_id", traceID), zap.Error(err))
			result.State = e.rollback(ctx, plan.GraphIRI, snapshotIRI, opts, traceID)
			result.DurationMs = time.Since(start).Milliseconds()
			return result, err
		}
		result.Applied++
	}

	result.State = StateSucceeded
	result.DurationMs = time.Since(start).Milliseconds()
	e.logger.Info("upsert succeeded", zap.String("graph", plan.GraphIRI), zap.String("tx_id", result.TxID),
		zap.Int("statements", result.Statements), zap.Int("conflicts", len(conflicts)), zap.String("trace_id", traceID))
	return result, nil
}

// rollback performs spec.md section 4.4 step 4's best-effort rollback:
// restore the pre-execution snapshot if one was captured. It returns the
// terminal state - RolledBack only when a snapshot existed and the
// restore itself succeeded, Failed otherwise.
func (e *Executor) rollback(ctx context.Context, graphIRI, snapshotIRI string, opts rdfclient.CallOptions, traceID string) State {
	if snapshotIRI == "" {
		return StateFailed
	}
	if err := e.graphs.Restore(ctx, graphIRI, snapshotIRI, opts); err != nil {
		e.logger.Error("rollback failed", zap.String("graph", graphIRI), zap.String("snapshot", snapshotIRI), zap.String("trace_id", traceID), zap.Error(err))
		return StateFailed
	}
	e.logger.Warn("rolled back to pre-execution snapshot", zap.String("graph", graphIRI), zap.String("snapshot", snapshotIRI), zap.String("trace_id", traceID))
	return StateRolledBack
}

// planNeedsSnapshot reports whether any statement in plan requires a
// pre-execution snapshot (true iff the plan contains a replace-strategy
// group, per upsert.Statement.RequiresSnapshot).
func planNeedsSnapshot(plan *upsert.Plan) bool {
	for _, stmt := range plan.Statements {
		if stmt.RequiresSnapshot {
			return true
		}
	}
	return false
}

// detectConflicts implements spec.md section 4.4 step 2: for every
// ignore-strategy statement, probe whether the target graph already
// carries a matching triple before any statement executes. A match is
// informational - it is recorded as a Conflict and the ignore statement
// still runs (spec.md: "do not fail").
func detectConflicts(ctx context.Context, client rdfclient.RDFClient, plan *upsert.Plan, opts rdfclient.CallOptions) ([]Conflict, error) {
	byKey := map[string]*Conflict{}
	var order []string

	for _, stmt := range plan.Statements {
		if stmt.Strategy != upsert.StrategyIgnore {
			continue
		}
		for _, t := range stmt.Triples {
			exists, err := tripleExists(ctx, client, plan.GraphIRI, t, opts)
			if err != nil {
				return nil, err
			}
			if !exists {
				continue
			}
			c, ok := byKey[stmt.Key]
			if !ok {
				c = &Conflict{Key: stmt.Key}
				byKey[stmt.Key] = c
				order = append(order, stmt.Key)
			}
			c.Triples = append(c.Triples, t)
		}
	}

	conflicts := make([]Conflict, 0, len(order))
	for _, k := range order {
		conflicts = append(conflicts, *byKey[k])
	}
	return conflicts, nil
}

func tripleExists(ctx context.Context, client rdfclient.RDFClient, graphIRI string, t sparqldsl.Triple, opts rdfclient.CallOptions) (bool, error) {
	g, err := sanitize.EscapeIRI(graphIRI)
	if err != nil {
		return false, err
	}
	prefixes := sparqldsl.BuiltinPrefixes()
	s, err := sanitize.FormatTerm(t.S, prefixes)
	if err != nil {
		return false, err
	}
	p, err := sanitize.FormatTerm(t.P, prefixes)
	if err != nil {
		return false, err
	}
	o, err := sanitize.FormatTerm(t.O, prefixes)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("SELECT * WHERE { GRAPH <%s> { %s %s %s } } LIMIT 1", g, s, p, o)
	res, err := client.Select(ctx, query, opts)
	if err != nil {
		return false, err
	}
	return len(res.Bindings) > 0, nil
}
