package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/ragent/application"
	"github.com/felixgeelhaar/ragent/domain/cache"
	domainconfig "github.com/felixgeelhaar/ragent/domain/config"
	"github.com/felixgeelhaar/ragent/domain/run"
	"github.com/felixgeelhaar/ragent/domain/tool"
	"github.com/felixgeelhaar/ragent/infrastructure/logging"
	"github.com/felixgeelhaar/ragent/infrastructure/mcp"
	"github.com/felixgeelhaar/ragent/infrastructure/observability"
	"github.com/felixgeelhaar/ragent/infrastructure/reasoning"
	"github.com/felixgeelhaar/ragent/infrastructure/resilience"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/memory"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/redis"
	"github.com/felixgeelhaar/ragent/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/ragent/infrastructure/telemetry"
	"github.com/felixgeelhaar/ragent/infrastructure/tools"
)

// Runtime is the assembled agent and everything it owns.
type Runtime struct {
	// Config is the file configuration the runtime was built from.
	Config *domainconfig.Config

	Registry     *memory.ToolRegistry
	Tools        tool.Service
	Cache        cache.Cache
	History      run.Store
	Reasoner     *reasoning.Service
	Orchestrator *application.Orchestrator
	Telemetry    *observability.Provider

	closers []func() error
}

// Close releases tool connections and stores, then flushes telemetry.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if r.Telemetry != nil {
		errs = append(errs, r.Telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// BuildOption adjusts how the runtime is built.
type BuildOption func(*builder)

// WithAgentOptions applies overrides on top of the file's agent settings.
func WithAgentOptions(opts ...domainconfig.AgentOption) BuildOption {
	return func(b *builder) {
		b.agentOpts = append(b.agentOpts, opts...)
	}
}

// WithReasoningProvider replaces the configured language model backend.
func WithReasoningProvider(p reasoning.Provider) BuildOption {
	return func(b *builder) {
		b.provider = p
	}
}

// WithTools registers extra tools next to the configured ones.
func WithTools(ts ...tool.Tool) BuildOption {
	return func(b *builder) {
		b.extraTools = append(b.extraTools, ts...)
	}
}

// WithServiceVersion sets the version reported in telemetry.
func WithServiceVersion(v string) BuildOption {
	return func(b *builder) {
		b.version = v
	}
}

// WithoutHistory disables run recording regardless of the file.
func WithoutHistory() BuildOption {
	return func(b *builder) {
		b.noHistory = true
	}
}

type builder struct {
	cfg        *domainconfig.Config
	agentOpts  []domainconfig.AgentOption
	provider   reasoning.Provider
	extraTools []tool.Tool
	version    string
	noHistory  bool
	rt         *Runtime
}

// Build assembles the runtime described by cfg. On error everything opened
// so far is closed again.
func Build(ctx context.Context, cfg *domainconfig.Config, opts ...BuildOption) (*Runtime, error) {
	b := &builder{cfg: cfg, rt: &Runtime{Config: cfg}}
	for _, opt := range opts {
		opt(b)
	}

	rt, err := b.build(ctx)
	if err != nil {
		_ = b.rt.Close(ctx)
		return nil, fmt.Errorf("%w: %w", domainconfig.ErrBuildFailed, err)
	}
	return rt, nil
}

func (b *builder) build(ctx context.Context) (*Runtime, error) {
	agentCfg, err := b.agentConfig()
	if err != nil {
		return nil, err
	}

	metrics, err := b.buildTelemetry(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	if err := b.buildRegistry(ctx); err != nil {
		return nil, fmt.Errorf("tools: %w", err)
	}
	if err := b.buildCache(ctx); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if err := b.buildHistory(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if err := b.buildReasoner(); err != nil {
		return nil, fmt.Errorf("reasoning: %w", err)
	}

	// Cache hits skip the guard: cache(guard(registry)).
	var svc tool.Service = tools.NewRegistryService(b.rt.Registry)
	if rc := b.cfg.Resilience; rc.Enabled {
		svc = resilience.NewGuardedService(svc, resilience.ConfigFrom(rc))
	}
	if b.rt.Cache != nil {
		svc = tools.NewCachedService(svc, b.rt.Cache, b.cfg.Cache.TTL.Duration())
	}
	b.rt.Tools = svc

	orch, err := application.New(application.Config{
		Reasoner: b.rt.Reasoner,
		Tools:    svc,
		Agent:    agentCfg,
		History:  b.rt.History,
		Metrics:  metrics,
	})
	if err != nil {
		return nil, err
	}
	b.rt.Orchestrator = orch

	logging.Info().
		Add(logging.Provider(b.rt.Reasoner.ProviderName())).
		Add(logging.ToolCount(b.rt.Registry.Count())).
		Add(logging.Str("cache", backendName(b.cfg.Cache.Backend))).
		Add(logging.Str("history", backendName(b.historyBackend()))).
		Msg("agent runtime ready")
	return b.rt, nil
}

func (b *builder) agentConfig() (domainconfig.AgentConfig, error) {
	agentCfg, err := b.cfg.Agent.AgentConfig()
	if err != nil {
		return domainconfig.AgentConfig{}, err
	}
	for _, opt := range b.agentOpts {
		opt(&agentCfg)
	}
	if err := agentCfg.Validate(); err != nil {
		return domainconfig.AgentConfig{}, err
	}
	return agentCfg, nil
}

func (b *builder) buildTelemetry(ctx context.Context) (application.Metrics, error) {
	obsCfg := observability.ConfigFrom(b.cfg.Telemetry)
	if b.version != "" {
		obsCfg.ServiceVersion = b.version
	}
	provider, err := observability.NewFromConfig(ctx, obsCfg)
	if err != nil {
		return nil, err
	}
	b.rt.Telemetry = provider

	if !provider.MetricsEnabled() {
		return application.NoopMetrics{}, nil
	}
	return telemetry.NewMetricsProvider(telemetry.MetricsConfig{
		MeterVersion: obsCfg.ServiceVersion,
		Provider:     provider.MeterProvider(),
	})
}

func (b *builder) buildRegistry(ctx context.Context) error {
	registry := memory.NewToolRegistry()
	b.rt.Registry = registry
	tc := b.cfg.Tools

	if vs := tc.VectorSearch; vs != nil {
		client, err := tools.NewQdrantClient(vs.Host, vs.Port)
		if err != nil {
			return err
		}
		b.rt.closers = append(b.rt.closers, client.Close)

		embedder := tools.NewOllamaEmbedder(vs.EmbeddingURL, vs.EmbeddingModel, 0)
		search := tools.NewVectorSearch(client, embedder, tools.VectorSearchConfig{
			Collection:     vs.Collection,
			TopK:           vs.TopK,
			ScoreThreshold: float32(vs.ScoreThreshold),
		})
		if err := registry.Register(search.Tool()); err != nil {
			return err
		}
	}

	if sq := tc.StructuredQuery; sq != nil {
		query, err := tools.OpenStructuredQuery(sq.DSN, sq.MaxRows)
		if err != nil {
			return err
		}
		b.rt.closers = append(b.rt.closers, query.Close)
		if err := registry.Register(query.Tool()); err != nil {
			return err
		}
	}

	if df := tc.DocumentFetch; df != nil {
		fetch := tools.NewDocumentFetch(df.AllowedPrefixes, df.MaxBytes, df.Timeout.Duration())
		if err := registry.Register(fetch.Tool()); err != nil {
			return err
		}
	}

	for _, t := range b.extraTools {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}

	for _, sc := range tc.MCP {
		client := mcp.NewClient(mcp.ClientConfigFrom(sc))
		if err := client.Connect(ctx); err != nil {
			return fmt.Errorf("mcp server %s: %w", sc.Name, err)
		}
		b.rt.closers = append(b.rt.closers, client.Close)

		added, err := mcp.ImportTools(ctx, client, registry)
		if err != nil {
			return fmt.Errorf("mcp server %s: %w", sc.Name, err)
		}
		logging.Info().
			Add(logging.Str("server", sc.Name)).
			Add(logging.ToolCount(added)).
			Msg("imported mcp tools")
	}
	return nil
}

func (b *builder) buildCache(ctx context.Context) error {
	cc := b.cfg.Cache
	switch cc.Backend {
	case "memory":
		b.rt.Cache = memory.NewCache(memory.WithMaxSize(cc.MaxSize))
	case "redis":
		c, err := redis.NewCache(ctx, redis.ConfigFrom(cc.Redis))
		if err != nil {
			return err
		}
		b.rt.Cache = c
		b.rt.closers = append(b.rt.closers, c.Close)
	case "sqlite":
		c, err := sqlite.NewCache(sqlite.DefaultConfig(), sqlite.WithDSN(cc.DSN))
		if err != nil {
			return err
		}
		b.rt.Cache = c
		b.rt.closers = append(b.rt.closers, c.Close)
	}
	return nil
}

func (b *builder) historyBackend() string {
	if b.noHistory {
		return "none"
	}
	return b.cfg.History.Backend
}

func (b *builder) buildHistory() error {
	switch b.historyBackend() {
	case "memory":
		b.rt.History = memory.NewRunStore()
	case "sqlite":
		store, err := sqlite.NewRunStore(sqlite.DefaultConfig(), sqlite.WithDSN(b.cfg.History.DSN))
		if err != nil {
			return err
		}
		b.rt.History = store
		b.rt.closers = append(b.rt.closers, store.Close)
	}
	return nil
}

func (b *builder) buildReasoner() error {
	rc := b.cfg.Reasoning
	provider := b.provider
	if provider == nil {
		var err error
		provider, err = reasoning.NewProvider(rc.Provider, reasoning.ProviderConfig{
			APIKey:  rc.APIKey,
			BaseURL: rc.BaseURL,
			Model:   rc.Model,
			Timeout: rc.Timeout.Duration(),
		}, rc.Responses)
		if err != nil {
			return err
		}
	}
	b.rt.Reasoner = reasoning.NewService(provider, reasoning.ServiceConfig{
		Model:       rc.Model,
		Temperature: rc.Temperature,
		MaxTokens:   rc.MaxTokens,
	})
	return nil
}

// OpenHistory opens the configured run store on its own, for commands that
// read history without running the agent. It returns nil when history is off.
func OpenHistory(cfg *domainconfig.Config) (run.Store, func() error, error) {
	b := &builder{cfg: cfg, rt: &Runtime{}}
	if err := b.buildHistory(); err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return b.rt.Close(context.Background()) }
	return b.rt.History, closeFn, nil
}

func backendName(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
