package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("NEO4J_URI", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("EXPAND_RATE_PER_SEC", "")
	t.Setenv("SEARCH_DEFAULT_LIMIT", "")

	cfg := Load()
	if cfg.Neo4jURI != "bolt://localhost:7687" {
		t.Fatalf("expected default neo4j uri, got %q", cfg.Neo4jURI)
	}
	if cfg.NATSSubject != "search.progress" {
		t.Fatalf("expected default nats subject, got %q", cfg.NATSSubject)
	}
	if cfg.ExpandRatePerSec != 1 {
		t.Fatalf("expected default expand rate 1, got %v", cfg.ExpandRatePerSec)
	}
	if cfg.SearchDefaultLimit != 50 {
		t.Fatalf("expected default search limit 50, got %d", cfg.SearchDefaultLimit)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "neo4j://db:7687")
	t.Setenv("NATS_ENABLED", "false")
	t.Setenv("EXPAND_RATE_PER_SEC", "0.5")
	t.Setenv("SEARCH_DEFAULT_LIMIT", "200")

	cfg := Load()
	if cfg.Neo4jURI != "neo4j://db:7687" {
		t.Fatalf("expected neo4j uri override, got %q", cfg.Neo4jURI)
	}
	if cfg.NATSEnabled {
		t.Fatalf("expected nats disabled")
	}
	if cfg.ExpandRatePerSec != 0.5 {
		t.Fatalf("expected expand rate 0.5, got %v", cfg.ExpandRatePerSec)
	}
	if cfg.SearchDefaultLimit != 200 {
		t.Fatalf("expected search limit 200, got %d", cfg.SearchDefaultLimit)
	}
}

func TestLoadFallsBackOnUnparsableValues(t *testing.T) {
	t.Setenv("SEARCH_DEFAULT_LIMIT", "lots")
	t.Setenv("EXPAND_RATE_PER_SEC", "fast")
	t.Setenv("NATS_ENABLED", "sometimes")

	cfg := Load()
	if cfg.SearchDefaultLimit != 50 || cfg.ExpandRatePerSec != 1 || !cfg.NATSEnabled {
		t.Fatalf("expected fallbacks for unparsable values, got %+v", cfg)
	}
}
