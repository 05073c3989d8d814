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

// Package json provides the JSON encoding/decoding layer used throughout
// sf-rdf-acl. It defaults to github.com/bytedance/sonic for speed on the
// hot path (SPARQL JSON results can be large) but keeps the standard
// library's interfaces so call sites never depend on sonic directly.
package json

import (
	"io"

	stdjson "encoding/json"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"
)

// Encoder streams JSON values to a writer.
type Encoder interface {
	Encode(v any) error
}

// Decoder streams JSON values from a reader.
type Decoder interface {
	Decode(v any) error
}

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// Unmarshal parses JSON-encoded data into v.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// UnmarshalString parses a JSON-encoded string into v.
func UnmarshalString(s string, v any) error {
	return sonic.UnmarshalString(s, v)
}

// NewEncoder returns a streaming encoder writing to w.
func NewEncoder(w io.Writer) Encoder {
	return encoder.NewStreamEncoder(w)
}

// NewDecoder returns a streaming decoder reading from r.
func NewDecoder(r io.Reader) Decoder {
	return decoder.NewStreamDecoder(r)
}

// RawMessage delays JSON decoding of a value.
type RawMessage = stdjson.RawMessage
