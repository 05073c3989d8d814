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

// Package rdfclient is the resilient HTTP client for the SPARQL 1.1
// Protocol (spec.md section 4.8): timeout, retry-with-backoff, and a
// failure-threshold circuit breaker layered over net/http. RDFClient is
// the capability-set interface every other service in the ACL depends
// on, per the "protocol-style polymorphism" guidance in spec.md section
// 9: one production HTTP implementation here, a second in-memory test
// double in package rdfclienttest.
package rdfclient

import (
	"context"
	"time"
)

// Binding is one variable's value within one SPARQL results row, in the
// raw vocabulary of the W3C SPARQL JSON Results format. Package mapper
// casts these into typed Go values.
type Binding struct {
	Value    string
	Type     string // "uri", "literal", "typed-literal", "bnode"
	Datatype string
	Lang     string
}

// Stats carries per-call observability fields attached to every result.
type Stats struct {
	Status     int
	DurationMs int64
}

// SelectResult is the normalised response to a SPARQL SELECT query.
type SelectResult struct {
	Vars     []string
	Bindings []map[string]Binding
	Stats    Stats
}

// ConstructResult is the normalised response to a SPARQL CONSTRUCT query:
// the raw Turtle response body.
type ConstructResult struct {
	Turtle string
	Stats  Stats
}

// UpdateResult is the normalised response to a SPARQL UPDATE request.
type UpdateResult struct {
	Status     int
	DurationMs int64
}

// CallOptions carries the per-call knobs spec.md section 4.8 exposes on
// every public operation.
type CallOptions struct {
	// Timeout overrides the configured default timeout for this call,
	// still bounded by Config.Timeout.Max. Zero uses the default.
	Timeout time.Duration
	TraceID string
}

// RDFClient is the capability set every ACL service depends on. The
// production implementation is HTTPClient; rdfclienttest.Store backs
// unit tests without a real triple store.
type RDFClient interface {
	Select(ctx context.Context, query string, opts CallOptions) (*SelectResult, error)
	Construct(ctx context.Context, query string, opts CallOptions) (*ConstructResult, error)
	Update(ctx context.Context, update string, opts CallOptions) (*UpdateResult, error)
	Health(ctx context.Context) error
}
