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

// Package graphmgr implements spec.md section 4.5: named-graph lifecycle
// operations (create, clear, merge, snapshot) and the conditional-clear
// engine, layered over an rdfclient.RDFClient. Like package upsert, the
// SPARQL text each operation emits is built by string formatting through
// package sanitize; graphmgr itself performs the I/O round trips each
// operation needs.
package graphmgr

import (
	"github.com/huacc/sf-rdf-acl/sparqldsl"
)

// ObjectType constrains conditional_clear's object_type filter.
type ObjectType string

const (
	ObjectAny     ObjectType = ""
	ObjectIRI     ObjectType = "iri"
	ObjectLiteral ObjectType = "literal"
)

// TriplePattern is one WHERE-clause triple for conditional_clear: any
// component left nil becomes a fresh SPARQL variable, matching spec.md
// section 4.5's "null components become fresh variables" rule. Unlike
// sparqldsl.Triple, components here are optional, which is why this type
// lives in graphmgr rather than sparqldsl - it exists only to describe a
// match pattern, never a triple to write.
type TriplePattern struct {
	S *sparqldsl.Term
	P *sparqldsl.Term
	O *sparqldsl.Term
}

// Condition is the full match expression for conditional_clear: a
// conjunction of triple patterns plus the filters spec.md section 4.5
// names explicitly.
type Condition struct {
	Patterns          []TriplePattern
	SubjectPrefix     string
	PredicateWhitelist []string
	ObjectType        ObjectType
}

// CreateResult reports the outcome of Create.
type CreateResult struct {
	Status string // "created" or "exists"
}

// SnapshotResult reports the outcome of Snapshot.
type SnapshotResult struct {
	SnapshotIRI string
}

// DryRunResult is conditional_clear's dry_run=true response.
type DryRunResult struct {
	EstimatedDeletes int
	Sample           []SamplePattern
}

// SamplePattern is one row of conditional_clear's dry-run LIMIT 10 sample.
type SamplePattern struct {
	S, P, O string
}

// ClearResult is conditional_clear's dry_run=false response.
type ClearResult struct {
	DeletedCount  int
	ExecutionTime int64 // milliseconds
	Executed      bool
}
