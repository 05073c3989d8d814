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

// Package mapper implements spec.md section 4.9: casting raw SPARQL
// JSON Results bindings into typed Go values, and reformatting a Turtle
// CONSTRUCT response into JSON-LD or a simplified node/edge shape for
// callers that do not want to speak Turtle.
package mapper

import (
	"strconv"
	"time"

	"github.com/huacc/sf-rdf-acl/rdfclient"
)

const (
	xsdNS       = "http://www.w3.org/2001/XMLSchema#"
	xsdInteger  = xsdNS + "integer"
	xsdInt      = xsdNS + "int"
	xsdLong     = xsdNS + "long"
	xsdDecimal  = xsdNS + "decimal"
	xsdDouble   = xsdNS + "double"
	xsdFloat    = xsdNS + "float"
	xsdBoolean  = xsdNS + "boolean"
	xsdDateTime = xsdNS + "dateTime"
	xsdDate     = xsdNS + "date"
)

// Value is one mapped binding: Value holds the cast Go value (float64,
// bool, time.Time, or the original string when no cast applies), Raw
// always preserves the original lexical form.
type Value struct {
	Value    any
	Raw      string
	Type     string
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

// MapBindings casts every binding in rows for the variables in vars.
// A variable absent from a given row (SPARQL's OPTIONAL unbound case) is
// simply omitted from that row's output map.
func MapBindings(vars []string, rows []map[string]rdfclient.Binding) []map[string]Value {
	out := make([]map[string]Value, len(rows))
	for i, row := range rows {
		mapped := make(map[string]Value, len(vars))
		for _, v := range vars {
			b, ok := row[v]
			if !ok {
				continue
			}
			mapped[v] = mapBinding(b)
		}
		out[i] = mapped
	}
	return out
}

func mapBinding(b rdfclient.Binding) Value {
	v := Value{Value: b.Value, Raw: b.Value, Type: b.Type, Datatype: b.Datatype, Lang: b.Lang}
	switch b.Datatype {
	case xsdInteger, xsdInt, xsdLong, xsdDecimal, xsdDouble, xsdFloat:
		if n, err := strconv.ParseFloat(b.Value, 64); err == nil {
			v.Value = n
		}
	case xsdBoolean:
		if bo, err := strconv.ParseBool(b.Value); err == nil {
			v.Value = bo
		}
	case xsdDateTime, xsdDate:
		if t, err := parseXSDDateTime(b.Value); err == nil {
			v.Value = t
		}
	}
	return v
}

// parseXSDDateTime tries the lexical forms XSD dateTime/date actually
// take on the wire: full RFC3339, and the date-only form.
func parseXSDDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// IsXSDNumericOrTemporal reports whether datatype is one of the XSD
// types MapBindings casts, for callers (e.g. package projection) that
// need the same check without building a full Value.
func IsXSDNumericOrTemporal(datatype string) bool {
	switch datatype {
	case xsdInteger, xsdInt, xsdLong, xsdDecimal, xsdDouble, xsdFloat, xsdBoolean, xsdDateTime, xsdDate:
		return true
	default:
		return false
	}
}
