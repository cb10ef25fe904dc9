package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragforge.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

const validYAML = `
schema_version: "1.0"
server:
  listen_addr: ":9090"
persistence_path: "test.db"
workspace_root: "ws"
embedding_dimension: 1536
vector_index_dsn: "postgres://localhost/ragforge"
graph_store_path: "graph.db"
default_llm_provider: anthropic
llm_providers:
  - name: anthropic
    model: claude-sonnet-4
    api_key_env: ANTHROPIC_API_KEY
forge:
  provider: github
  github_remote_url: "git@github.com:acme/widget.git"
`

func TestLoadAndGetRoundTripsValidConfig(t *testing.T) {
	path := writeTestConfig(t, validYAML)
	if err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg, err := Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" || cfg.DefaultLLMProvider != "anthropic" {
		t.Fatalf("got %+v, want listen_addr=:9090 default_llm_provider=anthropic", cfg)
	}
}

func TestLoadRejectsUnsupportedEmbeddingDimension(t *testing.T) {
	path := writeTestConfig(t, `
schema_version: "1.0"
server:
  listen_addr: ":9090"
persistence_path: "test.db"
workspace_root: "ws"
embedding_dimension: 999
vector_index_dsn: "postgres://localhost/ragforge"
graph_store_path: "graph.db"
default_llm_provider: anthropic
llm_providers:
  - name: anthropic
    model: claude-sonnet-4
forge:
  provider: github
  github_remote_url: "git@github.com:acme/widget.git"
`)
	if err := Load(path); err == nil {
		t.Fatalf("expected an error for an unsupported embedding dimension")
	}
}

func TestLoadRejectsDefaultProviderWithNoMatchingEntry(t *testing.T) {
	path := writeTestConfig(t, `
schema_version: "1.0"
server:
  listen_addr: ":9090"
persistence_path: "test.db"
workspace_root: "ws"
embedding_dimension: 1536
vector_index_dsn: "postgres://localhost/ragforge"
graph_store_path: "graph.db"
default_llm_provider: openai
llm_providers:
  - name: anthropic
    model: claude-sonnet-4
forge:
  provider: github
  github_remote_url: "git@github.com:acme/widget.git"
`)
	if err := Load(path); err == nil {
		t.Fatalf("expected an error when default_llm_provider has no matching entry")
	}
}

func TestEnvOverrideTakesPrecedenceOverFileValue(t *testing.T) {
	path := writeTestConfig(t, validYAML)
	t.Setenv("RAGFORGE_LISTEN_ADDR", ":7070")
	if err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg, err := Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if cfg.Server.ListenAddr != ":7070" {
		t.Errorf("got listen_addr %q, want :7070 from env override", cfg.Server.ListenAddr)
	}
}

func TestProviderConfigLooksUpByName(t *testing.T) {
	path := writeTestConfig(t, validYAML)
	if err := Load(path); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg, err := Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	p, ok := cfg.ProviderConfig("anthropic")
	if !ok || p.Model != "claude-sonnet-4" {
		t.Fatalf("got %+v, ok=%v, want model=claude-sonnet-4", p, ok)
	}
	if _, ok := cfg.ProviderConfig("missing"); ok {
		t.Errorf("expected ok=false for a provider with no matching entry")
	}
}
