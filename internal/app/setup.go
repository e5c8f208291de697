package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillhq/quill/db"
	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/convo"
	"github.com/quillhq/quill/internal/dispatch"
	"github.com/quillhq/quill/internal/ingest"
	"github.com/quillhq/quill/internal/knowledge"
	"github.com/quillhq/quill/internal/observability"
	"github.com/quillhq/quill/internal/retrieval"
	"github.com/quillhq/quill/internal/session"
)

// ErrConfigNil is returned when Setup is called without a configuration.
var ErrConfigNil = errors.New("config cannot be nil")

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideTracing(ctx, cfg.Tracing, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Knowledge = knowledge.New(knowledge.NewQueries(pool), embedder,
		logger.With("component", "knowledge"))

	a.Ingestor, err = ingest.NewIngestor(a.Knowledge, logger.With("component", "ingest"))
	if err != nil {
		return nil, fmt.Errorf("creating ingestor: %w", err)
	}

	adapter, err := retrieval.NewAdapter(a.Knowledge, cfg.SnippetLength, cfg.TopK,
		logger.With("component", "retrieval"))
	if err != nil {
		return nil, fmt.Errorf("creating retrieval adapter: %w", err)
	}
	tool := retrieval.Register(g, adapter)

	a.Sessions = session.NewRegistry()
	a.History = convo.NewHistory()

	a.Graph, err = convo.New(convo.Config{
		Genkit:    g,
		Adapter:   adapter,
		History:   a.History,
		Logger:    logger.With("component", "convo"),
		Tool:      tool,
		ModelName: cfg.FullModelName(),
		GenConfig: &ai.GenerationCommonConfig{
			Temperature:     float64(cfg.Temperature),
			MaxOutputTokens: cfg.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating conversation graph: %w", err)
	}

	a.Dispatcher, err = dispatch.New(a.Sessions, a.Graph,
		logger.With("component", "dispatch"))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	return a, nil
}

// provideTracing sets up OTLP HTTP trace export when enabled. The
// returned cleanup flushes pending spans with a bounded timeout.
func provideTracing(ctx context.Context, tc config.TracingConfig, logger *slog.Logger) func() {
	if !tc.Enabled {
		return func() {}
	}

	shutdown := observability.Setup(ctx, observability.Config{
		Endpoint:    tc.Endpoint,
		ServiceName: tc.ServiceName,
		Environment: tc.Environment,
		SampleRatio: tc.SampleRatio,
	}, logger)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports ollama (default) and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	case config.ProviderOpenAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)
		return g, nil

	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// provideEmbedder looks up the embedder registered by the AI provider
// plugin. Ollama keys embedders by server address; OpenAI auto-registers
// them in Init and they are looked up by model name.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return nil
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}
