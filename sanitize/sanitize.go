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

// Package sanitize holds the only functions in sf-rdf-acl that are
// allowed to turn user-controlled text into SPARQL syntax. Every other
// package routes string interpolation through EscapeIRI, EscapeLiteral,
// ValidatePrefix, or FormatTerm.
package sanitize

import (
	"regexp"
	"strings"

	"github.com/huacc/sf-rdf-acl/sfrdferr"
)

// forbiddenIRIChars mirrors spec.md 4.1: an IRI may not contain any of
// these characters once unwrapped from its angle brackets.
const forbiddenIRIChars = "<>\"{}|\\^`"

var prefixNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// EscapeIRI validates and returns an absolute http(s) IRI unchanged. It
// fails with KindInvalidIri if the IRI is empty, not http(s)://..., or
// contains any SPARQL-unsafe character.
func EscapeIRI(s string) (string, error) {
	if s == "" {
		return "", sfrdferr.Invalid(sfrdferr.KindInvalidIri, "empty IRI")
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return "", sfrdferr.Invalid(sfrdferr.KindInvalidIri, "IRI %q is not http(s)://...", s)
	}
	if strings.ContainsAny(s, forbiddenIRIChars) {
		return "", sfrdferr.Invalid(sfrdferr.KindInvalidIri, "IRI %q contains a forbidden character", s)
	}
	return s, nil
}

// EscapeLiteral escapes value for embedding as a SPARQL string literal
// and renders it, optionally typed with dtype. Backslashes are escaped
// before quotes so existing escape sequences are not double-escaped.
func EscapeLiteral(value string, dtype string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	rendered := `"` + escaped + `"`
	if dtype != "" {
		rendered += "^^<" + dtype + ">"
	}
	return rendered
}

// EscapeLiteralLang renders a language-tagged literal. lang and dtype are
// mutually exclusive per spec.md section 3; callers must not set both.
func EscapeLiteralLang(value, lang string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	rendered := `"` + escaped + `"`
	if lang != "" {
		rendered += "@" + lang
	}
	return rendered
}

// ValidatePrefix reports whether name is a valid XML NCName-lite prefix:
// [A-Za-z_][A-Za-z0-9_-]*.
func ValidatePrefix(name string) bool {
	return prefixNamePattern.MatchString(name)
}

// Term is the minimal shape sanitize needs from a query term; sparqldsl.Term
// satisfies it without sanitize importing sparqldsl (which would create a
// cycle, since sparqldsl.Term construction itself calls into sanitize).
type Term struct {
	// Kind is one of "variable", "blank", "iri", "curie", "literal".
	Kind string
	// Value holds the variable name (without '?'), the IRI, the
	// "prefix:local" CURIE, or the literal's string value.
	Value string
	// Prefix is the CURIE prefix for Kind == "curie".
	Prefix string
	// Local is the CURIE local name for Kind == "curie".
	Local string
	// Lang is the literal's language tag, mutually exclusive with Dtype.
	Lang string
	// Dtype is the literal's datatype IRI, mutually exclusive with Lang.
	Dtype string
	// ResolvedIRI is the fully-expanded IRI for Kind == "curie", used as
	// a fallback when Prefix is not found in the declared prefix map.
	ResolvedIRI string
}

// FormatTerm renders t as it should appear in SPARQL text, given a map
// of declared prefix name -> expansion IRI. A CURIE whose prefix is
// declared renders as "prefix:local"; otherwise it is expanded to a full
// <iri> (prefix + local concatenated).
func FormatTerm(t Term, prefixes map[string]string) (string, error) {
	switch t.Kind {
	case "variable":
		return "?" + t.Value, nil
	case "blank":
		return "_:" + t.Value, nil
	case "iri":
		iri, err := EscapeIRI(t.Value)
		if err != nil {
			return "", err
		}
		return "<" + iri + ">", nil
	case "curie":
		if _, ok := prefixes[t.Prefix]; ok {
			return t.Prefix + ":" + t.Local, nil
		}
		if t.ResolvedIRI != "" {
			iri, err := EscapeIRI(t.ResolvedIRI)
			if err != nil {
				return "", err
			}
			return "<" + iri + ">", nil
		}
		return "", sfrdferr.Invalid(sfrdferr.KindInvalidPrefix, "prefix %q is not declared", t.Prefix)
	case "literal":
		if t.Lang != "" {
			return EscapeLiteralLang(t.Value, t.Lang), nil
		}
		return EscapeLiteral(t.Value, t.Dtype), nil
	default:
		return "", sfrdferr.Invalid(sfrdferr.KindConstraintViolation, "unknown term kind %q", t.Kind)
	}
}
