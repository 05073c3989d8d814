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

// Package batch implements spec.md section 4.7's batch operator: chunked
// INSERT DATA submission of a triple template with per-item retry
// fallback when a chunk fails outright.
package batch

// Template is the input to Operator.ApplyTemplate. Pattern contains
// "{?var}" placeholders; each entry in Bindings supplies one set of
// substitutions and therefore one rendered triple block. Bindings must
// already be SPARQL-safe - rendering substitutes values verbatim, the
// same contract spec.md section 4.7 assigns to the caller or a
// higher-level helper (package upsert/sparqlbuild route their own
// interpolation through package sanitize upstream of this point).
type Template struct {
	Pattern  string
	Bindings []map[string]string
}

// FailedItem records one binding that could not be applied even after
// the per-item retry fallback, with the terminal error's message.
type FailedItem struct {
	Binding map[string]string
	Error   string
}

// Result is ApplyTemplate's return value per spec.md section 4.7.
type Result struct {
	Total       int
	Success     int
	Failed      int
	FailedItems []FailedItem
	DurationMs  int64
}
