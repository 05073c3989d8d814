package sanitize

import (
	"strings"
	"testing"

	"github.com/huacc/sf-rdf-acl/sfrdferr"
)

func TestEscapeIRI(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "valid http", in: "http://example.org/s", want: "http://example.org/s"},
		{name: "valid https", in: "https://example.org/s", want: "https://example.org/s"},
		{name: "empty", in: "", wantErr: true},
		{name: "not http(s)", in: "urn:example:s", wantErr: true},
		{name: "contains angle bracket", in: "http://example.org/<s>", wantErr: true},
		{name: "contains space-safe backslash", in: `http://example.org/\s`, wantErr: true},
		{name: "contains caret", in: "http://example.org/s^x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EscapeIRI(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("EscapeIRI(%q) = nil error, want error", tt.in)
				}
				if !sfrdferr.Is(err, sfrdferr.KindInvalidIri) {
					t.Fatalf("EscapeIRI(%q) error kind = %v, want InvalidIri", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EscapeIRI(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("EscapeIRI(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// TestEscapeLiteralRoundTrip verifies the escaping invariant from
// spec.md section 8.1: for any string s, EscapeLiteral(s) parses back to
// s once the surrounding quotes and escape sequences are undone.
func TestEscapeLiteralRoundTrip(t *testing.T) {
	samples := []string{
		``,
		`hello`,
		`with "quotes"`,
		`with \backslash`,
		`both \ and "`,
		`trailing backslash\`,
		`unicode: héllo wörld`,
	}
	for _, s := range samples {
		rendered := EscapeLiteral(s, "")
		if !strings.HasPrefix(rendered, `"`) || !strings.HasSuffix(rendered, `"`) {
			t.Fatalf("EscapeLiteral(%q) = %q, not wrapped in quotes", s, rendered)
		}
		inner := rendered[1 : len(rendered)-1]
		got := strings.ReplaceAll(inner, `\"`, `"`)
		got = strings.ReplaceAll(got, `\\`, `\`)
		if got != s {
			t.Fatalf("EscapeLiteral(%q) round-trip = %q, want %q", s, got, s)
		}
	}
}

func TestEscapeLiteralWithDatatype(t *testing.T) {
	got := EscapeLiteral("42", "http://www.w3.org/2001/XMLSchema#integer")
	want := `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`
	if got != want {
		t.Fatalf("EscapeLiteral with dtype = %q, want %q", got, want)
	}
}

func TestValidatePrefix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "simple", in: "rdf", want: true},
		{name: "with underscore prefix", in: "_sf", want: true},
		{name: "with digits and dash", in: "sf-2", want: true},
		{name: "empty", in: "", want: false},
		{name: "starts with digit", in: "2sf", want: false},
		{name: "contains colon", in: "sf:foo", want: false},
		{name: "contains space", in: "sf foo", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidatePrefix(tt.in); got != tt.want {
				t.Fatalf("ValidatePrefix(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatTerm(t *testing.T) {
	prefixes := map[string]string{
		"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	}
	tests := []struct {
		name    string
		term    Term
		want    string
		wantErr bool
	}{
		{
			name: "variable",
			term: Term{Kind: "variable", Value: "s"},
			want: "?s",
		},
		{
			name: "iri",
			term: Term{Kind: "iri", Value: "http://example.org/s"},
			want: "<http://example.org/s>",
		},
		{
			name: "declared curie",
			term: Term{Kind: "curie", Prefix: "rdfs", Local: "label"},
			want: "rdfs:label",
		},
		{
			name: "undeclared curie with fallback IRI",
			term: Term{Kind: "curie", Prefix: "foaf", Local: "name", ResolvedIRI: "http://xmlns.com/foaf/0.1/name"},
			want: "<http://xmlns.com/foaf/0.1/name>",
		},
		{
			name:    "undeclared curie without fallback",
			term:    Term{Kind: "curie", Prefix: "foaf", Local: "name"},
			wantErr: true,
		},
		{
			name: "literal",
			term: Term{Kind: "literal", Value: "demo"},
			want: `"demo"`,
		},
		{
			name: "literal with lang",
			term: Term{Kind: "literal", Value: "demo", Lang: "en"},
			want: `"demo"@en`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatTerm(tt.term, prefixes)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("FormatTerm(%+v) = nil error, want error", tt.term)
				}
				return
			}
			if err != nil {
				t.Fatalf("FormatTerm(%+v) unexpected error: %v", tt.term, err)
			}
			if got != tt.want {
				t.Fatalf("FormatTerm(%+v) = %q, want %q", tt.term, got, tt.want)
			}
		})
	}
}
