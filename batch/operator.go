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

package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/huacc/sf-rdf-acl/config"
	"github.com/huacc/sf-rdf-acl/internal/obslog"
	"github.com/huacc/sf-rdf-acl/rdfclient"
	"github.com/huacc/sf-rdf-acl/sanitize"
)

// DefaultBatchSize matches spec.md section 4.7's default chunk size.
const DefaultBatchSize = 1000

// Operator is the chunked batch-insert service from spec.md section 4.7.
// Its per-item retry fallback reuses config.RetryPolicy - the same
// policy object the resilient HTTP client is configured with - so both
// retry loops in the system share one shape and one test surface
// (SPEC_FULL.md section C).
type Operator struct {
	client    rdfclient.RDFClient
	batchSize int
	retries   config.RetryPolicy
	logger    *zap.Logger
}

// NewOperator builds an Operator. A zero batchSize falls back to
// DefaultBatchSize.
func NewOperator(client rdfclient.RDFClient, batchSize int, retries config.RetryPolicy, logger *zap.Logger) *Operator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Operator{client: client, batchSize: batchSize, retries: retries, logger: obslog.NopIfNil(logger)}
}

// ApplyTemplate renders tmpl's bindings against its pattern and submits
// them to graphIRI in chunks, per spec.md section 4.7. When dryRun is
// true no request is sent - every binding is reported as it would be
// applied, with no I/O and no chunk or per-item retries exercised.
func (o *Operator) ApplyTemplate(ctx context.Context, tmpl Template, graphIRI, traceID string, dryRun bool) (*Result, error) {
	start := time.Now()
	g, err := sanitize.EscapeIRI(graphIRI)
	if err != nil {
		return nil, err
	}

	total := len(tmpl.Bindings)
	if dryRun {
		return &Result{Total: total, Success: total, DurationMs: time.Since(start).Milliseconds()}, nil
	}

	opts := rdfclient.CallOptions{TraceID: traceID}
	result := &Result{Total: total}

	for _, chunk := range chunkBindings(tmpl.Bindings, o.batchSize) {
		if err := o.submitChunk(ctx, g, tmpl.Pattern, chunk, opts); err != nil {
			o.logger.Warn("batch chunk failed, falling back to per-item submission",
				zap.Int("chunk_size", len(chunk)), zap.String("trace_id", traceID), zap.Error(err))
			succeeded, failedItems := o.submitItemsWithRetry(ctx, g, tmpl.Pattern, chunk, opts)
			result.Success += succeeded
			result.FailedItems = append(result.FailedItems, failedItems...)
			continue
		}
		result.Success += len(chunk)
	}

	result.Failed = len(result.FailedItems)
	result.DurationMs = time.Since(start).Milliseconds()
	o.logger.Info("batch apply_template complete", zap.Int("total", result.Total), zap.Int("success", result.Success),
		zap.Int("failed", result.Failed), zap.String("trace_id", traceID))
	return result, nil
}

// chunkBindings splits bindings into slices of at most size, preserving
// order.
func chunkBindings(bindings []map[string]string, size int) [][]map[string]string {
	if len(bindings) == 0 {
		return nil
	}
	var chunks [][]map[string]string
	for i := 0; i < len(bindings); i += size {
		end := i + size
		if end > len(bindings) {
			end = len(bindings)
		}
		chunks = append(chunks, bindings[i:end])
	}
	return chunks
}

// renderItem substitutes pattern's "{?var}" placeholders with binding's
// values verbatim.
func renderItem(pattern string, binding map[string]string) string {
	rendered := pattern
	for k, v := range binding {
		rendered = strings.ReplaceAll(rendered, "{?"+k+"}", v)
	}
	return rendered
}

func (o *Operator) submitChunk(ctx context.Context, graphIRI, pattern string, chunk []map[string]string, opts rdfclient.CallOptions) error {
	lines := make([]string, len(chunk))
	for i, binding := range chunk {
		lines[i] = renderItem(pattern, binding)
	}
	update := fmt.Sprintf("INSERT DATA { GRAPH <%s> { %s } }", graphIRI, strings.Join(lines, " "))
	_, err := o.client.Update(ctx, update, opts)
	return err
}

// submitItemsWithRetry is spec.md section 4.7's per-item retry fallback:
// exponential backoff (base Retries.BackoffSeconds x Retries.BackoffMultiplier
// ^ attempt) up to Retries.MaxAttempts, mirroring package rdfclient's own
// retry loop shape.
func (o *Operator) submitItemsWithRetry(ctx context.Context, graphIRI, pattern string, chunk []map[string]string, opts rdfclient.CallOptions) (int, []FailedItem) {
	succeeded := 0
	var failed []FailedItem
	for _, binding := range chunk {
		if err := o.submitOneWithRetry(ctx, graphIRI, pattern, binding, opts); err != nil {
			failed = append(failed, FailedItem{Binding: binding, Error: err.Error()})
			continue
		}
		succeeded++
	}
	return succeeded, failed
}

func (o *Operator) submitOneWithRetry(ctx context.Context, graphIRI, pattern string, binding map[string]string, opts rdfclient.CallOptions) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = durationFromSeconds(o.retries.BackoffSeconds)
	bo.Multiplier = maxFloat(o.retries.BackoffMultiplier, 1)
	bo.MaxElapsedTime = 0
	maxRetries := maxInt(o.retries.MaxAttempts-1, 0)
	wrapped := backoff.WithMaxRetries(bo, uint64(maxRetries))

	attempt := 0
	operation := func() error {
		attempt++
		update := fmt.Sprintf("INSERT DATA { GRAPH <%s> { %s } }", graphIRI, renderItem(pattern, binding))
		_, err := o.client.Update(ctx, update, opts)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			o.logger.Warn("batch item retry", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}
	return backoff.Retry(operation, wrapped)
}

func durationFromSeconds(s float64) time.Duration {
	if s <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(s * float64(time.Second))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
