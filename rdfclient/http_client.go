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

package rdfclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/huacc/sf-rdf-acl/config"
	stdjson "github.com/huacc/sf-rdf-acl/internal/json"
	"github.com/huacc/sf-rdf-acl/internal/obslog"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
)

const (
	contentTypeSparqlQuery  = "application/sparql-query"
	contentTypeSparqlUpdate = "application/sparql-update"
	acceptSparqlResultsJSON = "application/sparql-results+json"
	acceptTurtle            = "text/turtle"
)

// HTTPClient is the production RDFClient: it owns a connection pool
// (via the embedded *http.Client), the retry policy, and the circuit
// breaker state for its lifetime. Managers hold a reference to it but
// own no mutable state of their own (spec.md section 3 "Lifecycle").
type HTTPClient struct {
	cfg     config.Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[callResult]
	logger  *zap.Logger
}

type callResult struct {
	Body   []byte
	Status int
}

// New builds an HTTPClient. A nil logger defaults to a no-op logger.
func New(cfg config.Config, logger *zap.Logger) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = obslog.NopIfNil(logger)

	c := &HTTPClient{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[callResult](gobreaker.Settings{
		Name:        "sparql-http",
		MaxRequests: 1,
		Timeout:     cfg.CircuitBreaker.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.CircuitBreaker.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Cancellation never counts against the breaker (spec.md
			// section 5): only an explicit context.Canceled reaches
			// here unwrapped from a real caller cancellation, since a
			// per-attempt timeout surfaces as context.DeadlineExceeded
			// instead and is handled by the RecordTimeoutOnly branch.
			if errors.Is(err, context.Canceled) {
				return true
			}
			if cfg.CircuitBreaker.RecordTimeoutOnly {
				return !isTimeoutError(err)
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state change", zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return c, nil
}

// Select submits a SPARQL SELECT query and normalises the W3C SPARQL
// JSON Results response.
func (c *HTTPClient) Select(ctx context.Context, query string, opts CallOptions) (*SelectResult, error) {
	res, dur, err := c.call(ctx, c.cfg.RDF.QueryURL(), contentTypeSparqlQuery, acceptSparqlResultsJSON, []byte(query), opts)
	if err != nil {
		return nil, err
	}
	var parsed sparqlJSONResults
	if err := stdjson.Unmarshal(res.Body, &parsed); err != nil {
		return nil, sfrdferr.Wrap(sfrdferr.KindFusekiQueryError, err, "parsing sparql results json")
	}
	bindings := make([]map[string]Binding, len(parsed.Results.Bindings))
	for i, row := range parsed.Results.Bindings {
		converted := make(map[string]Binding, len(row))
		for k, v := range row {
			converted[k] = Binding{Value: v.Value, Type: v.Type, Datatype: v.Datatype, Lang: v.Lang}
		}
		bindings[i] = converted
	}
	return &SelectResult{
		Vars:     parsed.Head.Vars,
		Bindings: bindings,
		Stats:    Stats{Status: res.Status, DurationMs: dur},
	}, nil
}

// Construct submits a SPARQL CONSTRUCT query and returns the raw Turtle
// response body.
func (c *HTTPClient) Construct(ctx context.Context, query string, opts CallOptions) (*ConstructResult, error) {
	res, dur, err := c.call(ctx, c.cfg.RDF.QueryURL(), contentTypeSparqlQuery, acceptTurtle, []byte(query), opts)
	if err != nil {
		return nil, err
	}
	return &ConstructResult{Turtle: string(res.Body), Stats: Stats{Status: res.Status, DurationMs: dur}}, nil
}

// Update submits a SPARQL 1.1 Update request.
func (c *HTTPClient) Update(ctx context.Context, update string, opts CallOptions) (*UpdateResult, error) {
	res, dur, err := c.call(ctx, c.cfg.RDF.UpdateURL(), contentTypeSparqlUpdate, "", []byte(update), opts)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{Status: res.Status, DurationMs: dur}, nil
}

// Health probes the endpoint with a minimal SELECT. It returns nil when
// the store answers with any non-error HTTP status.
func (c *HTTPClient) Health(ctx context.Context) error {
	_, err := c.Select(ctx, "SELECT * WHERE { ?s ?p ?o } LIMIT 1", CallOptions{})
	return err
}

// call resolves the effective timeout, runs the request through the
// circuit breaker and retry loop, and maps a terminal HTTP error status
// to the taxonomy in spec.md section 4.8.
func (c *HTTPClient) call(ctx context.Context, url, contentType, accept string, body []byte, opts CallOptions) (callResult, int64, error) {
	timeout := c.cfg.Timeout.Effective(opts.Timeout)
	start := time.Now()

	res, err := c.breaker.Execute(func() (callResult, error) {
		body, status, err := c.doWithRetry(ctx, url, contentType, accept, body, timeout, opts.TraceID)
		return callResult{Body: body, Status: status}, err
	})
	dur := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return callResult{}, dur, sfrdferr.Upstream(sfrdferr.KindFusekiCircuit, 0, false, opts.TraceID, "circuit breaker open")
		}
		// A populated status means the store answered but with a
		// terminal or retry-exhausted error status; classify from the
		// status, not from the retry loop's plain sentinel error text.
		if res.Status >= 300 {
			return res, dur, classifyStatus(res.Status, res.Body, opts.TraceID)
		}
		var ae *sfrdferr.ACLError
		if sfrdferr.As(err, &ae) {
			return callResult{}, dur, err
		}
		return callResult{}, dur, sfrdferr.Wrap(sfrdferr.KindFusekiConnect, err, "sparql request failed")
	}
	if res.Status >= 300 {
		return res, dur, classifyStatus(res.Status, res.Body, opts.TraceID)
	}
	return res, dur, nil
}

// doWithRetry runs one logical call, retrying per c.cfg.Retries until a
// non-retryable outcome or max_attempts is reached. It does not touch
// the circuit breaker - that happens once per logical call, not once
// per attempt, so a call's retries count as a single breaker outcome.
func (c *HTTPClient) doWithRetry(ctx context.Context, url, contentType, accept string, body []byte, timeout time.Duration, traceID string) ([]byte, int, error) {
	policy := c.cfg.Retries
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = durationFromSeconds(policy.BackoffSeconds)
	bo.Multiplier = policy.BackoffMultiplier
	bo.RandomizationFactor = jitterFactor(policy)
	bo.MaxElapsedTime = 0
	wrapped := backoff.WithMaxRetries(bo, uint64(maxInt(policy.MaxAttempts-1, 0)))

	var (
		respBody []byte
		status   int
		attempt  int
	)

	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		b, s, err := c.doOnce(attemptCtx, url, contentType, accept, body, traceID)
		respBody, status = b, s
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Warn("sparql transport error, retrying", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		if s >= 300 {
			if !policy.IsRetryableStatus(s) {
				return backoff.Permanent(fmt.Errorf("non-retryable status %d", s))
			}
			c.logger.Warn("sparql retryable status, retrying", zap.Int("attempt", attempt), zap.Int("status", s))
			return fmt.Errorf("retryable status %d", s)
		}
		return nil
	}

	err := backoff.Retry(operation, wrapped)
	return respBody, status, err
}

func (c *HTTPClient) doOnce(ctx context.Context, url, contentType, accept string, body []byte, traceID string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("building sparql request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	header := c.cfg.Security.TraceHeader
	if header == "" {
		header = "X-Trace-Id"
	}
	if traceID != "" {
		req.Header.Set(header, traceID)
	}
	if c.cfg.RDF.Auth != nil {
		req.SetBasicAuth(c.cfg.RDF.Auth.Username, c.cfg.RDF.Auth.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading sparql response body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

func classifyStatus(status int, body []byte, traceID string) error {
	kind := sfrdferr.KindForStatus(status)
	return sfrdferr.Upstream(kind, status, sfrdferr.RetryableStatus(status), traceID, "sparql endpoint returned status %d: %s", status, truncate(body, 256))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func isTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func jitterFactor(p config.RetryPolicy) float64 {
	if p.BackoffSeconds <= 0 {
		return 0
	}
	return p.JitterSeconds / p.BackoffSeconds
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// sparqlJSONResults mirrors the W3C SPARQL 1.1 Query Results JSON Format.
type sparqlJSONResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]rawBinding `json:"bindings"`
	} `json:"results"`
}

type rawBinding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}
