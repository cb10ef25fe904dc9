// Package config loads, validates, and serves the ragforge daemon's
// configuration: a single atomic, versioned struct returned by value so
// callers can never mutate the live configuration out from under each
// other, mirroring the teacher's pkg/config singleton discipline.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// CurrentSchemaVersion must be bumped for any breaking change to the
// Config struct's on-disk shape.
const CurrentSchemaVersion = "1.0"

// Supported embedding dimensions, per SPEC_FULL's vector index section.
var supportedEmbeddingDimensions = map[int]bool{768: true, 1024: true, 1536: true}

// LLMProviderConfig configures one chat/embedding backend.
type LLMProviderConfig struct {
	Name      string `yaml:"name"`                 // "anthropic", "openai", "ollama", "gemini"
	Model     string `yaml:"model"`                // model identifier for that provider
	APIKeyEnv string `yaml:"api_key_env,omitempty"` // env var holding the API key; empty for local providers
	BaseURL   string `yaml:"base_url,omitempty"`    // override endpoint, e.g. a local ollama host
}

// ForgeConfig configures the Git forge (GitHub or Gitea) used to publish
// patches as pull requests.
type ForgeConfig struct {
	Provider        string `yaml:"provider"` // "github" or "gitea"
	GitHubRemoteURL string `yaml:"github_remote_url,omitempty"`
	GiteaBaseURL    string `yaml:"gitea_base_url,omitempty"`
	GiteaTokenEnv   string `yaml:"gitea_token_env,omitempty"`
	GiteaOwner      string `yaml:"gitea_owner,omitempty"`
	GiteaRepo       string `yaml:"gitea_repo,omitempty"`
}

// ServerConfig configures the inbound HTTP API.
type ServerConfig struct {
	ListenAddr        string `yaml:"listen_addr"`
	StreamIdleMinutes int    `yaml:"stream_idle_minutes"`
}

// Config is the daemon's full configuration.
type Config struct {
	SchemaVersion      string              `yaml:"schema_version"`
	Server             ServerConfig        `yaml:"server"`
	PersistencePath    string              `yaml:"persistence_path"`
	WorkspaceRoot      string              `yaml:"workspace_root"`
	Forge              ForgeConfig         `yaml:"forge"`
	LLMProviders       []LLMProviderConfig `yaml:"llm_providers"`
	DefaultLLMProvider string              `yaml:"default_llm_provider"`
	EmbeddingDimension int                 `yaml:"embedding_dimension"`

	// VectorIndexDSN is a Postgres connection string for the pgvector-backed Vector Index.
	VectorIndexDSN string `yaml:"vector_index_dsn"`
	// GraphStorePath is the SQLite file backing the Code Graph Store.
	GraphStorePath string `yaml:"graph_store_path"`
}

var (
	mu      sync.RWMutex
	current *Config
)

// Load reads path as YAML, applies environment-variable overrides,
// validates the result, and installs it as the global singleton. Callers
// typically invoke this once at startup.
func Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return fmt.Errorf("validating config %s: %w", path, err)
	}

	mu.Lock()
	defer mu.Unlock()
	current = &cfg
	return nil
}

// Get returns the current global config by value, so the caller's copy
// can never be mutated by a later Load.
func Get() (Config, error) {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		return Config{}, fmt.Errorf("config not loaded: call Load first")
	}
	return *current, nil
}

func defaultConfig() Config {
	return Config{
		SchemaVersion: CurrentSchemaVersion,
		Server: ServerConfig{
			ListenAddr:        ":8080",
			StreamIdleMinutes: 15,
		},
		PersistencePath:    "ragforge.db",
		WorkspaceRoot:      "workspaces",
		EmbeddingDimension: 1536,
		GraphStorePath:     "ragforge-graph.db",
	}
}

// applyEnvOverrides lets RAGFORGE_LISTEN_ADDR override server.listen_addr,
// matching the teacher's env-var-over-file precedence for secrets and
// deployment-specific values that shouldn't live in a committed config
// file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RAGFORGE_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("RAGFORGE_PERSISTENCE_PATH"); v != "" {
		cfg.PersistencePath = v
	}
	if v := os.Getenv("RAGFORGE_WORKSPACE_ROOT"); v != "" {
		cfg.WorkspaceRoot = v
	}
}

func validate(cfg *Config) error {
	if cfg.SchemaVersion != CurrentSchemaVersion {
		return fmt.Errorf("unsupported schema_version %q, expected %q", cfg.SchemaVersion, CurrentSchemaVersion)
	}
	if cfg.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if cfg.PersistencePath == "" {
		return fmt.Errorf("persistence_path is required")
	}
	if cfg.WorkspaceRoot == "" {
		return fmt.Errorf("workspace_root is required")
	}
	if cfg.VectorIndexDSN == "" {
		return fmt.Errorf("vector_index_dsn is required")
	}
	if cfg.GraphStorePath == "" {
		return fmt.Errorf("graph_store_path is required")
	}
	if !supportedEmbeddingDimensions[cfg.EmbeddingDimension] {
		return fmt.Errorf("embedding_dimension %d is not one of 768, 1024, 1536", cfg.EmbeddingDimension)
	}
	if len(cfg.LLMProviders) == 0 {
		return fmt.Errorf("at least one llm_providers entry is required")
	}
	names := make(map[string]bool, len(cfg.LLMProviders))
	for _, p := range cfg.LLMProviders {
		if p.Name == "" || p.Model == "" {
			return fmt.Errorf("llm_providers entries require name and model")
		}
		names[p.Name] = true
	}
	if cfg.DefaultLLMProvider == "" {
		return fmt.Errorf("default_llm_provider is required")
	}
	if !names[cfg.DefaultLLMProvider] {
		return fmt.Errorf("default_llm_provider %q has no matching llm_providers entry", cfg.DefaultLLMProvider)
	}
	switch cfg.Forge.Provider {
	case "github":
		if cfg.Forge.GitHubRemoteURL == "" {
			return fmt.Errorf("forge.github_remote_url is required when forge.provider is github")
		}
	case "gitea":
		if cfg.Forge.GiteaBaseURL == "" || cfg.Forge.GiteaOwner == "" || cfg.Forge.GiteaRepo == "" {
			return fmt.Errorf("forge.gitea_base_url, gitea_owner, and gitea_repo are required when forge.provider is gitea")
		}
	default:
		return fmt.Errorf("forge.provider must be \"github\" or \"gitea\", got %q", cfg.Forge.Provider)
	}
	return nil
}

// ProviderConfig looks up a named provider's configuration.
func (c *Config) ProviderConfig(name string) (LLMProviderConfig, bool) {
	for _, p := range c.LLMProviders {
		if p.Name == name {
			return p, true
		}
	}
	return LLMProviderConfig{}, false
}
