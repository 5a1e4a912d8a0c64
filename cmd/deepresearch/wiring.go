package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deepresearch/internal/config"
	dbRedis "github.com/kailas-cloud/deepresearch/internal/db/redis"
	"github.com/kailas-cloud/deepresearch/internal/domain"
	"github.com/kailas-cloud/deepresearch/internal/metrics"
	"github.com/kailas-cloud/deepresearch/internal/repository/outcomecache"
	"github.com/kailas-cloud/deepresearch/internal/transport/bedrock"
	"github.com/kailas-cloud/deepresearch/internal/transport/firecrawl"
	openaiAgent "github.com/kailas-cloud/deepresearch/internal/transport/openai"
	"github.com/kailas-cloud/deepresearch/internal/transport/sales"
	"github.com/kailas-cloud/deepresearch/internal/transport/sse"
	"github.com/kailas-cloud/deepresearch/internal/transport/tavily"
	agentuc "github.com/kailas-cloud/deepresearch/internal/usecase/agent"
	healthuc "github.com/kailas-cloud/deepresearch/internal/usecase/health"
	researchuc "github.com/kailas-cloud/deepresearch/internal/usecase/research"
	toolsuc "github.com/kailas-cloud/deepresearch/internal/usecase/tools"
)

// app is the composition root shared by every command.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *dbRedis.Store // nil unless the outcome cache is enabled
	research *researchuc.Service
	tools    *toolsuc.Service
	health   *healthuc.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	// Registered explicitly, no init().
	metrics.RegisterAgentMetrics()

	a := &app{cfg: cfg, logger: logger}

	backend, err := buildBackend(ctx, cfg.Agents, logger)
	if err != nil {
		return nil, err
	}

	// Both roles share the instrumented backend; only search answers are cached.
	instrumented := agentuc.NewInstrumentedInvoker(backend, cfg.Agents.Backend, logger)
	var search domain.AgentInvoker = instrumented
	if cfg.Cache.Enabled {
		store, err := openStore(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		a.store = store
		search = outcomecache.New(
			instrumented, store, cfg.Cache.KeyPrefix,
			time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.OutcomeCacheTotal, logger,
		)
		logger.Info("Outcome cache enabled",
			zap.String("driver", cfg.Cache.Driver),
			zap.Strings("addrs", cfg.Cache.Addrs),
		)
	}

	orch := cfg.Orchestration
	a.research = researchuc.New(researchuc.Config{
		ResearchAgent: cfg.Agents.Research.Identity(),
		SearchAgent:   cfg.Agents.Search.Identity(),
		Refine:        orch.Refine,
		DefaultBudget: orch.DefaultMaxIterations,
		RunTimeout:    time.Duration(orch.RunTimeoutSec) * time.Second,
		StreamTimeout: time.Duration(orch.StreamTimeoutSec) * time.Second,
		Concurrency:   orch.FanoutConcurrency,
	}, instrumented, search, logger)

	a.tools = buildTools(cfg.Tools, logger)

	// Pass nil interfaces (not typed nil pointers) for absent components.
	var cache healthuc.CachePinger
	if a.store != nil {
		cache = a.store
	}
	var agents healthuc.AgentChecker
	if hc, ok := backend.(domain.HealthChecker); ok {
		agents = hc
	}
	a.health = healthuc.New(cache, agents)

	return a, nil
}

// Close releases the cache connection.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func buildBackend(ctx context.Context, cfg config.AgentsConfig, logger *zap.Logger) (domain.AgentInvoker, error) {
	switch cfg.Backend {
	case config.BackendBedrock:
		c, err := bedrock.NewClient(ctx, &bedrock.Config{
			Region:      cfg.Region,
			EnableTrace: cfg.EnableTrace,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock backend: %w", err)
		}
		return c, nil
	case config.BackendOpenAI:
		return openaiAgent.NewChatAgent(&openaiAgent.Config{
			APIKey:   cfg.OpenAI.APIKey,
			BaseURL:  cfg.OpenAI.BaseURL,
			Profiles: cfg.OpenAI.Profiles,
			Logger:   logger,
		}), nil
	case config.BackendSSE:
		return sse.NewClient(&sse.Config{
			BaseURL: cfg.SSE.BaseURL,
			APIKey:  cfg.SSE.APIKey,
			Logger:  logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown agent backend %q", cfg.Backend)
	}
}

func openStore(ctx context.Context, cfg config.CacheConfig) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
	}
	return store, nil
}

// buildTools creates a client per configured provider. Unconfigured tools answer
// with domain.ErrToolNotConfigured.
func buildTools(cfg config.ToolsConfig, logger *zap.Logger) *toolsuc.Service {
	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second

	var web toolsuc.WebSearcher
	if cfg.Tavily.APIKey != "" {
		web = tavily.NewClient(tavily.Config{
			APIKey:      cfg.Tavily.APIKey,
			BaseURL:     cfg.Tavily.BaseURL,
			MaxResults:  cfg.Tavily.MaxResults,
			SearchDepth: cfg.Tavily.SearchDepth,
			Timeout:     timeout,
		})
	}

	var pages toolsuc.PageSearcher
	if cfg.Firecrawl.APIKey != "" {
		pages = firecrawl.NewClient(firecrawl.Config{
			APIKey:    cfg.Firecrawl.APIKey,
			BaseURL:   cfg.Firecrawl.BaseURL,
			Limit:     cfg.Firecrawl.Limit,
			TimeoutMS: cfg.Firecrawl.TimeoutMS,
			Timeout:   timeout,
		})
	}

	var shop toolsuc.SalesSource
	if cfg.Sales.Endpoint != "" {
		shop = sales.NewClient(sales.Config{
			Endpoint: cfg.Sales.Endpoint,
			Cookie:   cfg.Sales.Cookie,
			Timeout:  timeout,
		})
	}

	logger.Info("Tool handlers",
		zap.Bool("tavily", web != nil),
		zap.Bool("firecrawl", pages != nil),
		zap.Bool("sales", shop != nil),
	)

	return toolsuc.New(toolsuc.Config{
		SalesRequestPage: cfg.Sales.RequestPage,
		SalesTopN:        cfg.Sales.TopN,
	}, web, pages, shop, logger)
}
