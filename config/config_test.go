package config

import (
	"testing"
	"time"

	"github.com/huacc/sf-rdf-acl/sfrdferr"
)

func validConfig() Config {
	return Config{
		RDF:            RDF{Endpoint: "http://localhost:3030", Dataset: "ds"},
		Retries:        DefaultRetryPolicy(),
		CircuitBreaker: DefaultCircuitBreaker(),
		Graph:          Graph{Naming: GraphNaming{GraphIRITemplate: "urn:{ns}:{model}:{version}:{env}[:{scenario_id}]"}},
	}
}

func TestRDFURLs(t *testing.T) {
	r := RDF{Endpoint: "http://localhost:3030/", Dataset: "/ds"}
	if got, want := r.QueryURL(), "http://localhost:3030/ds/query"; got != want {
		t.Errorf("QueryURL = %q, want %q", got, want)
	}
	if got, want := r.UpdateURL(), "http://localhost:3030/ds/update"; got != want {
		t.Errorf("UpdateURL = %q, want %q", got, want)
	}
}

func TestTimeoutEffective(t *testing.T) {
	to := Timeout{Default: 5 * time.Second, Max: 10 * time.Second}
	if got := to.Effective(0); got != 5*time.Second {
		t.Errorf("zero requested should fall back to Default, got %v", got)
	}
	if got := to.Effective(30 * time.Second); got != 10*time.Second {
		t.Errorf("requested above Max should clamp to Max, got %v", got)
	}
	if got := to.Effective(2 * time.Second); got != 2*time.Second {
		t.Errorf("requested within bounds should pass through, got %v", got)
	}
}

func TestRetryPolicyIsRetryableStatus(t *testing.T) {
	p := DefaultRetryPolicy()
	if !p.IsRetryableStatus(503) {
		t.Fatal("default policy should fall back to sfrdferr.RetryableStatus for 503")
	}
	if p.IsRetryableStatus(404) {
		t.Fatal("404 should not be retryable by default")
	}

	overridden := RetryPolicy{RetryableStatusCodes: []int{404}}
	if !overridden.IsRetryableStatus(404) {
		t.Fatal("an explicit override list should take precedence over the default set")
	}
	if overridden.IsRetryableStatus(503) {
		t.Fatal("503 is not in the override list and should not be retryable")
	}
}

func TestValidateRequiresEndpointAndDataset(t *testing.T) {
	cfg := validConfig()
	cfg.RDF.Endpoint = ""
	if err := cfg.Validate(); !sfrdferr.Is(err, sfrdferr.KindInvalidConfig) {
		t.Fatalf("missing endpoint should fail with KindInvalidConfig, got %v", err)
	}

	cfg = validConfig()
	cfg.RDF.Dataset = ""
	if err := cfg.Validate(); !sfrdferr.Is(err, sfrdferr.KindInvalidConfig) {
		t.Fatalf("missing dataset should fail with KindInvalidConfig, got %v", err)
	}
}

func TestValidateRequiresPositiveRetriesAndThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Retries.MaxAttempts = 0
	if err := cfg.Validate(); !sfrdferr.Is(err, sfrdferr.KindInvalidConfig) {
		t.Fatalf("MaxAttempts < 1 should fail validation, got %v", err)
	}

	cfg = validConfig()
	cfg.CircuitBreaker.FailureThreshold = 0
	if err := cfg.Validate(); !sfrdferr.Is(err, sfrdferr.KindInvalidConfig) {
		t.Fatalf("FailureThreshold < 1 should fail validation, got %v", err)
	}
}

func TestValidateRejectsUnknownTemplatePlaceholder(t *testing.T) {
	cfg := validConfig()
	cfg.Graph.Naming.GraphIRITemplate = "urn:{ns}:{bogus}"
	if err := cfg.Validate(); !sfrdferr.Is(err, sfrdferr.KindInvalidConfig) {
		t.Fatalf("unknown placeholder should fail validation, got %v", err)
	}
}

func TestValidateAcceptsAllKnownPlaceholders(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a valid config to pass, got %v", err)
	}
}

func TestDefaultGraphNamingSnapshotFormat(t *testing.T) {
	if got, want := DefaultGraphNaming().SnapshotFormat, "20060102T150405Z"; got != want {
		t.Errorf("SnapshotFormat = %q, want %q", got, want)
	}
}
