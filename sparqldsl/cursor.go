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

package sparqldsl

import (
	"encoding/base64"

	stdjson "github.com/huacc/sf-rdf-acl/internal/json"
	"github.com/huacc/sf-rdf-acl/sfrdferr"
)

// Cursor is the decoded form of an opaque pagination token: the sort-key
// value of the last row returned by the previous page. Type is the
// SPARQL binding type of Value ("uri" or "literal"), matching the
// vocabulary used by the SPARQL results JSON format so a cursor
// round-trips the exact comparison semantics that produced it.
type Cursor struct {
	// Fields are declared in key order so the encoded JSON has sorted keys.
	Type  string `json:"type"`
	Value string `json:"value"`
}

// EncodeCursor renders c as the opaque, base64url-encoded token handed
// back to callers, canonical JSON with sorted object keys per spec
// section 6.
func EncodeCursor(c Cursor) (string, error) {
	data, err := stdjson.Marshal(c)
	if err != nil {
		return "", sfrdferr.Wrap(sfrdferr.KindInvalidCursor, err, "encode cursor")
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor parses a token produced by EncodeCursor. Any malformed
// input (bad base64, bad JSON, wrong shape) fails with KindInvalidCursor
// rather than panicking, since tokens round-trip through client code
// that may mangle them.
func DecodeCursor(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, sfrdferr.Invalid(sfrdferr.KindInvalidCursor, "empty cursor")
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, sfrdferr.Wrap(sfrdferr.KindInvalidCursor, err, "decode cursor base64")
	}
	var c Cursor
	if err := stdjson.Unmarshal(data, &c); err != nil {
		return Cursor{}, sfrdferr.Wrap(sfrdferr.KindInvalidCursor, err, "decode cursor json")
	}
	if c.Value == "" {
		return Cursor{}, sfrdferr.Invalid(sfrdferr.KindInvalidCursor, "cursor carries no sort-key value")
	}
	return c, nil
}

// CursorPage is the result of one page fetch: whether a following page
// exists, and the opaque token to request it.
type CursorPage struct {
	HasMore    bool
	NextCursor string
}

// CursorRequest is the caller-supplied pagination request from spec.md
// section 3: an optional opaque cursor (absent on the first page) plus
// the page size.
type CursorRequest struct {
	Cursor string
	Size   int
}

// Validate checks that Size is positive, per spec.md section 3.
func (r CursorRequest) Validate() error {
	if r.Size <= 0 {
		return sfrdferr.Invalid(sfrdferr.KindInvalidConfig, "cursor page size must be positive, got %d", r.Size)
	}
	return nil
}
