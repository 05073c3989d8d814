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

// Package txn implements spec.md section 4.4's transaction executor: it
// runs an upsert.Plan against an rdfclient.RDFClient, detects idempotency
// conflicts for ignore-strategy statements, and performs best-effort
// rollback via pre-execution snapshots taken through package graphmgr.
package txn

import (
	"github.com/huacc/sf-rdf-acl/sparqldsl"
	"github.com/huacc/sf-rdf-acl/upsert"
)

// State is the executor's state machine from spec.md section 4.4:
// Planned -> Executing -> (Succeeded | RolledBack | Failed). RolledBack
// is only reachable when a snapshot was captured before execution began.
type State string

const (
	StatePlanned    State = "Planned"
	StateExecuting  State = "Executing"
	StateSucceeded  State = "Succeeded"
	StateRolledBack State = "RolledBack"
	StateFailed     State = "Failed"
)

// Conflict is an informational record of an ignore-strategy key whose
// target already carried a matching triple before execution. Conflicts
// never fail the call (spec.md section 4.4 step 2) - they are reported
// alongside a successful result.
type Conflict struct {
	Key     string
	Triples []sparqldsl.Triple
}

// Result is upsert's return value per spec.md section 4.4 step 5.
type Result struct {
	Graph      string
	State      State
	Applied    int // statements successfully executed
	Statements int // total statements in the plan
	Conflicts  []Conflict
	TxID       string
	AuditID    string
	DurationMs int64
	// SnapshotIRI is set when a pre-execution snapshot was captured,
	// regardless of whether rollback was ultimately needed.
	SnapshotIRI string
}

// Plan re-exports upsert.Plan's shape for callers that only import txn.
type Plan = upsert.Plan

// Statement re-exports upsert.Statement for the same reason.
type Statement = upsert.Statement
