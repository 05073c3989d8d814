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

// Package upsert translates a batch of triples plus a merge strategy and
// key discipline into an ordered, deterministic sequence of SPARQL
// DELETE/INSERT/INSERT-WHERE statements (spec.md section 4.3). Planning
// is pure: no I/O, no mutable state, safe to call concurrently.
package upsert

import "github.com/huacc/sf-rdf-acl/sparqldsl"

// KeyDiscipline selects how triples are grouped before planning.
type KeyDiscipline string

const (
	KeySubject     KeyDiscipline = "s"
	KeySubjectPred KeyDiscipline = "s+p"
	KeyCustom      KeyDiscipline = "custom"
)

// MergeStrategy selects how each key group's prior state is reconciled
// with the incoming triples.
type MergeStrategy string

const (
	StrategyReplace MergeStrategy = "replace"
	StrategyIgnore  MergeStrategy = "ignore"
	StrategyAppend  MergeStrategy = "append"
)

// Provenance is attached to a request for audit purposes. It plays no
// part in request hashing - the hash identifies the write's content, not
// who asked for it.
type Provenance struct {
	ActorIRI  string
	Source    string
	Timestamp string // RFC3339, UTC, explicit offset required
}

// Request is the input to Planner.Plan.
type Request struct {
	Graph           sparqldsl.GraphRef
	Triples         []sparqldsl.Triple
	UpsertKey       KeyDiscipline
	CustomKeyFields []string // component names drawn from {"s","p","o"}; required when UpsertKey == KeyCustom
	MergeStrategy   MergeStrategy
	Provenance      *Provenance
}

// Statement is one SPARQL UPDATE operation within a Plan.
type Statement struct {
	SPARQL           string
	Key              string
	Strategy         MergeStrategy
	Triples          []sparqldsl.Triple
	RequiresSnapshot bool
}

// Plan is the ordered, deterministic output of Planner.Plan.
type Plan struct {
	GraphIRI    string
	Statements  []Statement
	RequestHash string
	Provenance  *Provenance
}
