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

// Package config defines the value types that carry sf-rdf-acl's entire
// configuration surface (spec.md section 6). There are no package-level
// globals: every component takes a Config, or a slice of it, at
// construction time (spec.md section 9, "configuration singletons").
// Loading a Config from YAML/env files is an external collaborator, out
// of scope for this module - it only defines and validates the struct.
package config

import (
	"time"

	"github.com/huacc/sf-rdf-acl/sfrdferr"
)

// BasicAuth is HTTP Basic credentials for the SPARQL endpoint.
type BasicAuth struct {
	Username string
	Password string
}

// RDF describes how to reach the SPARQL 1.1 Protocol endpoint.
type RDF struct {
	Endpoint string
	Dataset  string
	Auth     *BasicAuth
}

// QueryURL returns the dataset's query endpoint: {endpoint}/{dataset}/query.
func (r RDF) QueryURL() string {
	return joinURL(r.Endpoint, r.Dataset, "query")
}

// UpdateURL returns the dataset's update endpoint: {endpoint}/{dataset}/update.
func (r RDF) UpdateURL() string {
	return joinURL(r.Endpoint, r.Dataset, "update")
}

func joinURL(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		for len(p) > 0 && p[0] == '/' {
			p = p[1:]
		}
		if out == "" {
			out = p
			continue
		}
		for len(out) > 0 && out[len(out)-1] == '/' {
			out = out[:len(out)-1]
		}
		out = out + "/" + p
	}
	return out
}

// Timeout bounds per-call HTTP timeouts.
type Timeout struct {
	Default time.Duration
	Max     time.Duration
}

// Effective falls back to Default when requested is zero or negative, and
// caps the result at Max when Max is positive. There is no lower bound.
func (t Timeout) Effective(requested time.Duration) time.Duration {
	if requested <= 0 {
		requested = t.Default
	}
	if t.Max > 0 && requested > t.Max {
		return t.Max
	}
	return requested
}

// RetryPolicy configures the resilient HTTP client's retry loop
// (spec.md section 4.8) and is reused by the batch operator's per-item
// retry fallback (spec.md section 4.7 / SPEC_FULL section C) so both
// retry loops in the system are configured and tested the same way.
type RetryPolicy struct {
	MaxAttempts         int
	BackoffSeconds      float64
	BackoffMultiplier   float64
	JitterSeconds       float64
	RetryableStatusCodes []int // optional override of the default retryable set
}

// DefaultRetryPolicy matches spec.md section 4.8's defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		BackoffSeconds:    0.5,
		BackoffMultiplier: 2.0,
		JitterSeconds:     0.1,
	}
}

// IsRetryableStatus reports whether status should trigger a retry under
// this policy.
func (p RetryPolicy) IsRetryableStatus(status int) bool {
	if len(p.RetryableStatusCodes) == 0 {
		return sfrdferr.RetryableStatus(status)
	}
	for _, s := range p.RetryableStatusCodes {
		if s == status {
			return true
		}
	}
	return false
}

// CircuitBreaker configures the HTTP client's failure-threshold breaker
// (spec.md section 4.8).
type CircuitBreaker struct {
	FailureThreshold  uint32
	RecoveryTimeout   time.Duration
	RecordTimeoutOnly bool
}

// DefaultCircuitBreaker is a conservative starting point: five
// consecutive failures trip the breaker, thirty seconds before probing.
func DefaultCircuitBreaker() CircuitBreaker {
	return CircuitBreaker{FailureThreshold: 5, RecoveryTimeout: 30 * time.Second}
}

// Security covers cross-cutting request metadata.
type Security struct {
	TraceHeader string
}

// DefaultSecurity matches spec.md section 6's default trace header.
func DefaultSecurity() Security {
	return Security{TraceHeader: "X-Trace-Id"}
}

// ProjectionProfile bundles the parameters graph projection enforces
// (spec.md section 4.6).
type ProjectionProfile struct {
	Limit           int
	IncludeLiterals bool
	Directed        bool
	EdgePredicates  []string
}

// GraphNaming configures graph IRI resolution and snapshot naming
// (spec.md section 3 GraphRef, section 4.5 snapshot).
type GraphNaming struct {
	Namespace         string
	GraphIRITemplate  string // e.g. "urn:{ns}:{model}:{version}:{env}:{scenario_id}"
	SnapshotFormat    string // UTC timestamp layout, default "20060102T150405Z"
}

// DefaultGraphNaming fixes the snapshot timestamp format per
// SPEC_FULL.md section C: RFC3339 basic, NCName-safe.
func DefaultGraphNaming() GraphNaming {
	return GraphNaming{SnapshotFormat: "20060102T150405Z"}
}

// Graph groups the named-graph and projection configuration surface.
type Graph struct {
	ProjectionProfiles map[string]ProjectionProfile
	Naming             GraphNaming
}

// Config is the full configuration surface enumerated in spec.md
// section 6. A Config is constructed by value and passed into every
// component's constructor; nothing here is read from a package-level
// singleton.
type Config struct {
	RDF            RDF
	Timeout        Timeout
	Retries        RetryPolicy
	CircuitBreaker CircuitBreaker
	Security       Security
	Graph          Graph
}

// Validate checks the surface for the obviously-broken configurations
// that would otherwise surface as confusing errors deep inside the HTTP
// client or planner.
func (c Config) Validate() error {
	if c.RDF.Endpoint == "" {
		return sfrdferr.Invalid(sfrdferr.KindInvalidConfig, "rdf.endpoint is required")
	}
	if c.RDF.Dataset == "" {
		return sfrdferr.Invalid(sfrdferr.KindInvalidConfig, "rdf.dataset is required")
	}
	if c.Retries.MaxAttempts < 1 {
		return sfrdferr.Invalid(sfrdferr.KindInvalidConfig, "rdf.retries.max_attempts must be >= 1")
	}
	if c.CircuitBreaker.FailureThreshold < 1 {
		return sfrdferr.Invalid(sfrdferr.KindInvalidConfig, "rdf.circuit_breaker.failureThreshold must be >= 1")
	}
	for name, placeholder := range unknownPlaceholders(c.Graph.Naming.GraphIRITemplate) {
		return sfrdferr.Invalid(sfrdferr.KindInvalidConfig, "graph.naming.graph_iri_template has unknown placeholder {%s} at position %d", placeholder, name)
	}
	return nil
}

var knownPlaceholders = map[string]bool{
	"ns": true, "model": true, "version": true, "env": true, "scenario_id": true,
}

// unknownPlaceholders scans template for "{name}" placeholders not in
// knownPlaceholders, per SPEC_FULL.md section C's config-load-time
// validation. Returns a map from first-seen index to the bad name so
// Validate can report one deterministically (range over a single-entry
// map is fine; it is never populated with more than the first miss
// found by the scan below).
func unknownPlaceholders(template string) map[int]string {
	out := map[int]string{}
	for i := 0; i < len(template); i++ {
		if template[i] != '{' {
			continue
		}
		end := -1
		for j := i + 1; j < len(template); j++ {
			if template[j] == '}' {
				end = j
				break
			}
		}
		if end < 0 {
			continue
		}
		name := template[i+1 : end]
		if !knownPlaceholders[name] {
			out[i] = name
			return out
		}
		i = end
	}
	return out
}
