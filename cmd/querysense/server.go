package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/querysense/querysense/agent"
	"github.com/querysense/querysense/api"
	"github.com/querysense/querysense/api/handlers"
	"github.com/querysense/querysense/config"
	"github.com/querysense/querysense/datasource"
	"github.com/querysense/querysense/history"
	"github.com/querysense/querysense/internal/metrics"
	"github.com/querysense/querysense/internal/telemetry"
	"github.com/querysense/querysense/llm"
	"github.com/querysense/querysense/llm/cache"
	"github.com/querysense/querysense/llm/providers/openaicompat"
	"github.com/querysense/querysense/llm/retry"
	"github.com/querysense/querysense/llm/tokenizer"
	"github.com/querysense/querysense/schemaindex"
)

// Server assembles the data sources, the LLM pipeline and the HTTP API.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *datasource.Registry
	provider  llm.Provider
	store     *history.Store
	redis     *redis.Client
	telemetry *telemetry.Providers
	httpSrv   *http.Server
}

// NewServer wires every component from the configuration. It connects to
// all data sources eagerly so misconfigured sources fail at startup.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	tel, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s.telemetry = tel

	collector := metrics.NewCollector("querysense", prometheus.DefaultRegisterer)

	registry, err := datasource.NewRegistry(cfg.Sources, logger)
	if err != nil {
		s.closePartial()
		return nil, fmt.Errorf("open data sources: %w", err)
	}
	s.registry = registry

	s.provider = s.buildProvider(collector)

	agents, err := s.buildAgents(collector)
	if err != nil {
		s.closePartial()
		return nil, err
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History, logger)
		if err != nil {
			s.closePartial()
			return nil, fmt.Errorf("open history store: %w", err)
		}
		s.store = store
	}

	svc := api.NewService(registry, agents, s.store, collector, logger)
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.buildHandler(svc, collector),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

// buildProvider layers retries, rate limiting, the prompt budget and the
// optional Redis cache over the OpenAI-compatible client.
func (s *Server) buildProvider(collector *metrics.Collector) llm.Provider {
	cfg := s.cfg.LLM
	base := openaicompat.New(openaicompat.Config{
		ProviderName: cfg.Provider,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		Timeout:      cfg.Timeout,
	}, s.logger)

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	opts := []llm.ResilientOption{
		llm.WithRetryer(retry.NewBackoffRetryer(policy, s.logger)),
		llm.WithRateLimit(cfg.RequestsPerMinute),
	}
	if cfg.MaxPromptTokens > 0 {
		opts = append(opts, llm.WithPromptBudget(tokenizer.New(cfg.Model), cfg.MaxPromptTokens))
	}
	if s.cfg.Redis.Enabled {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
		})
		opts = append(opts, llm.WithCache(
			metricCache{inner: cache.New(s.redis, s.cfg.Redis.TTL, s.logger), collector: collector}))
	}

	return llm.NewResilientProvider(base, s.logger, opts...)
}

// buildAgents creates one NL->SQL agent per data source, each with its own
// schema retriever.
func (s *Server) buildAgents(collector *metrics.Collector) (map[string]*agent.Agent, error) {
	var embedder schemaindex.Embedder
	idxCfg := s.cfg.Agent.SchemaIndex
	if idxCfg.Enabled {
		client, err := schemaindex.NewEmbeddingsClient(s.cfg.LLM.BaseURL, s.cfg.LLM.APIKey, idxCfg.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("build embeddings client: %w", err)
		}
		embedder = client
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	agents := make(map[string]*agent.Agent, len(s.cfg.Sources))
	for _, src := range s.cfg.Sources {
		conn, err := s.registry.Get(src.Name)
		if err != nil {
			return nil, err
		}
		retriever, err := schemaindex.NewRetriever(ctx, conn, embedder, idxCfg, s.logger)
		if err != nil {
			return nil, fmt.Errorf("introspect source %q: %w", src.Name, err)
		}
		ag, err := agent.New(s.provider, s.cfg.LLM.Model, src.Name, retriever,
			agent.WithTemperature(s.cfg.LLM.Temperature),
			agent.WithMaxRevisions(s.cfg.Agent.MaxRevisions),
			agent.WithLogger(s.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("build agent for %q: %w", src.Name, err)
		}
		s.logger.Info("data source ready",
			zap.String("source", src.Name),
			zap.String("driver", src.Driver),
			zap.Int("tables", retriever.TableCount()),
			zap.Bool("indexed", retriever.Indexed()),
		)
		agents[src.Name] = ag
	}
	return agents, nil
}

func (s *Server) buildHandler(svc *api.Service, collector *metrics.Collector) http.Handler {
	queryH := handlers.NewQueryHandler(svc, s.logger)
	streamH := handlers.NewStreamHandler(svc, s.logger)
	sourcesH := handlers.NewSourcesHandler(svc, s.logger)
	historyH := handlers.NewHistoryHandler(s.store, s.logger)
	healthH := handlers.NewHealthHandler(s.registry, s.provider, s.logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthH.HandleHealth)
	mux.HandleFunc("GET /readyz", healthH.HandleReady)
	mux.HandleFunc("GET /version", healthH.HandleVersion(Version, BuildTime, GitCommit))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/v1/query", queryH.HandleQuery)
	mux.HandleFunc("GET /api/v1/query/stream", streamH.HandleStream)
	mux.HandleFunc("GET /api/v1/sources", sourcesH.HandleList)
	mux.HandleFunc("GET /api/v1/sources/{name}/schema", sourcesH.HandleSchema)
	mux.HandleFunc("GET /api/v1/sources/{name}/tables/{table}", sourcesH.HandleTable)
	mux.HandleFunc("GET /api/v1/history", historyH.HandleList)
	mux.HandleFunc("GET /api/v1/history/{id}", historyH.HandleGet)

	rl := NewRateLimiter(s.cfg.Server.RateLimit, s.cfg.Server.RateBurst, s.logger)

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		Metrics(collector),
		OTelTracing(s.cfg.Telemetry.ServiceName),
		rl.Middleware(),
		JWTAuth(s.cfg.Auth.JWTSecret, s.cfg.Auth.Issuer, s.logger),
	)
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening",
			zap.String("addr", s.httpSrv.Addr),
			zap.Int("sources", len(s.cfg.Sources)),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	err := s.httpSrv.Shutdown(shutdownCtx)
	return errors.Join(err, s.Close())
}

// Close releases every resource the server owns. Safe to call more than once.
func (s *Server) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
		s.store = nil
	}
	if s.registry != nil {
		errs = append(errs, s.registry.Close())
		s.registry = nil
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
		s.redis = nil
	}
	if s.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, s.telemetry.Shutdown(ctx))
		s.telemetry = nil
		cancel()
	}
	return errors.Join(errs...)
}

func (s *Server) closePartial() { _ = s.Close() }

// metricCache forwards cache hits and misses to the metrics collector.
type metricCache struct {
	inner     *cache.CompletionCache
	collector *metrics.Collector
}

func (m metricCache) Get(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := m.inner.Get(ctx, req)
	if err != nil {
		m.collector.RecordCacheMiss()
		return nil, err
	}
	m.collector.RecordCacheHit()
	return resp, nil
}

func (m metricCache) Set(ctx context.Context, req *llm.ChatRequest, resp *llm.ChatResponse) error {
	return m.inner.Set(ctx, req, resp)
}
