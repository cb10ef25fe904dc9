// Command ragforged is the ragforge daemon: it loads configuration, wires
// every capability adapter (chat/embedding provider, Vector Index, Code
// Graph Store, Working-Copy Manager, Build/Repair Loop, Git forge) into the
// Agent Runtime, starts the Supervisor's worker pool, and serves the
// HTTP API until an interrupt signal requests a graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssharma1011/ragforge/internal/agentrt"
	"github.com/ssharma1011/ragforge/internal/build"
	"github.com/ssharma1011/ragforge/internal/buildrepair"
	"github.com/ssharma1011/ragforge/internal/config"
	"github.com/ssharma1011/ragforge/internal/forge"
	"github.com/ssharma1011/ragforge/internal/graphstore/sqlitegraph"
	"github.com/ssharma1011/ragforge/internal/httpapi"
	"github.com/ssharma1011/ragforge/internal/knowledge"
	"github.com/ssharma1011/ragforge/internal/llm"
	"github.com/ssharma1011/ragforge/internal/llm/anthropic"
	"github.com/ssharma1011/ragforge/internal/llm/circuit"
	"github.com/ssharma1011/ragforge/internal/llm/gemini"
	"github.com/ssharma1011/ragforge/internal/llm/ollama"
	"github.com/ssharma1011/ragforge/internal/llm/openai"
	"github.com/ssharma1011/ragforge/internal/llm/retry"
	"github.com/ssharma1011/ragforge/internal/llm/timeout"
	"github.com/ssharma1011/ragforge/internal/llmerrors"
	"github.com/ssharma1011/ragforge/internal/logx"
	"github.com/ssharma1011/ragforge/internal/metrics"
	"github.com/ssharma1011/ragforge/internal/parser/goast"
	"github.com/ssharma1011/ragforge/internal/persistence"
	"github.com/ssharma1011/ragforge/internal/retrieval"
	"github.com/ssharma1011/ragforge/internal/stream"
	"github.com/ssharma1011/ragforge/internal/supervisor"
	"github.com/ssharma1011/ragforge/internal/vectorindex/pgvector"
	"github.com/ssharma1011/ragforge/internal/workspace"
)

const chatTimeout = 10 * time.Minute

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "ragforge.yaml", "Path to the daemon's YAML configuration file")
	flag.Parse()

	logger := logx.NewLogger("ragforged")

	if err := config.Load(configPath); err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg, err := config.Get()
	if err != nil {
		log.Fatalf("reading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := persistence.NewStore(cfg.PersistencePath)
	if err != nil {
		log.Fatalf("opening persistence store: %v", err)
	}
	defer store.Close()

	graphStore, err := sqlitegraph.Open(cfg.GraphStorePath)
	if err != nil {
		log.Fatalf("opening graph store: %v", err)
	}
	defer graphStore.Close()

	vectorStore, err := pgvector.Open(ctx, cfg.VectorIndexDSN, cfg.EmbeddingDimension)
	if err != nil {
		log.Fatalf("opening vector index: %v", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensuring vector index schema: %v", err)
	}

	providerCfg, ok := cfg.ProviderConfig(cfg.DefaultLLMProvider)
	if !ok {
		log.Fatalf("default_llm_provider %q not found among llm_providers", cfg.DefaultLLMProvider)
	}
	chatClient, err := buildChatClient(providerCfg, logger)
	if err != nil {
		log.Fatalf("building chat client for provider %q: %v", providerCfg.Name, err)
	}

	embedProviderCfg, ok := cfg.ProviderConfig("openai")
	if !ok {
		log.Fatalf("an \"openai\" llm_providers entry is required for embeddings")
	}
	openaiClient := openai.New(os.Getenv(embedProviderCfg.APIKeyEnv), embedProviderCfg.Model)
	embedder := openai.NewEmbedder(openaiClient, embedProviderCfg.Model, cfg.EmbeddingDimension)

	goAdapter := goast.New()
	gitRunner := workspace.NewDefaultGitRunner()
	wsManager := workspace.NewManager(gitRunner, cfg.WorkspaceRoot, goAdapter)

	retrievalEngine := retrieval.New(chatClient, embedder, vectorStore, graphStore)
	indexer := knowledge.New(vectorStore, graphStore, embedder, goAdapter)

	buildRegistry := build.NewRegistry()
	rootResolver := func(conversationID string) string {
		return wsManager.Open(conversationID).Root()
	}
	buildLoop := buildrepair.NewLoop(buildRegistry, rootResolver)

	forgeClient, err := buildForgeClient(cfg.Forge)
	if err != nil {
		log.Fatalf("building forge client: %v", err)
	}
	creds := workspace.Credentials{Username: cfg.Forge.GiteaOwner, Token: forgeToken(cfg.Forge)}
	publisher := forge.NewPublisher(forgeClient, wsManager, "main", creds)

	rec := metrics.New()

	services := &agentrt.Services{
		Chat:      chatClient,
		Retrieval: retrievalEngine,
		Workspace: wsManager,
		Builder:   buildLoop,
		Forge:     publisher,
		Indexer:   indexer,
		Logger:    logger,
	}

	hub := stream.NewHub(time.Duration(cfg.Server.StreamIdleMinutes) * time.Minute)
	sup := supervisor.NewSupervisor(agentrt.Registry(), services, store, hub, rec, supervisor.DefaultWorkerCount)
	sup.Start(ctx, supervisor.DefaultWorkerCount)

	mux := http.NewServeMux()
	httpapi.NewServer(sup, hub).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening on %s", cfg.Server.ListenAddr)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatalf("http server: %v", serveErr)
		}
	}()

	<-ctx.Done()
	logger.Info("received shutdown signal, draining in-flight conversations")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown: %v", err)
	}
	sup.Wait()
	logger.Info("shutdown complete")
}

// buildChatClient wires a provider's base client through the resilience
// middleware chain: a per-call deadline, a circuit breaker that opens after
// repeated failures, then the retry policy for transient errors, innermost
// to outermost.
func buildChatClient(cfg config.LLMProviderConfig, logger *logx.Logger) (llm.Client, error) {
	var base llm.Client
	switch cfg.Name {
	case "anthropic":
		base = anthropic.New(os.Getenv(cfg.APIKeyEnv), cfg.Model)
	case "openai":
		base = openai.New(os.Getenv(cfg.APIKeyEnv), cfg.Model)
	case "gemini":
		base = gemini.New(os.Getenv(cfg.APIKeyEnv), cfg.Model)
	case "ollama":
		base = ollama.New(cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Name)
	}

	breaker := circuit.New(circuit.DefaultConfig)
	client := timeout.Middleware(chatTimeout)(base)
	client = circuit.Middleware(breaker)(client)
	client = retry.Middleware(llmerrors.DefaultRetryPolicies[llmerrors.KindTransient], logger)(client)
	return client, nil
}

func buildForgeClient(cfg config.ForgeConfig) (forge.Client, error) {
	forgeCfg := forge.Config{
		Provider:        forge.Provider(cfg.Provider),
		GitHubRemoteURL: cfg.GitHubRemoteURL,
		GiteaBaseURL:    cfg.GiteaBaseURL,
		GiteaToken:      os.Getenv(cfg.GiteaTokenEnv),
		GiteaOwner:      cfg.GiteaOwner,
		GiteaRepo:       cfg.GiteaRepo,
	}
	return forge.NewClient(forgeCfg)
}

func forgeToken(cfg config.ForgeConfig) string {
	if cfg.Provider == "gitea" {
		return os.Getenv(cfg.GiteaTokenEnv)
	}
	return os.Getenv("GITHUB_TOKEN")
}
