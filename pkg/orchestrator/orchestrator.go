// Package orchestrator composes the registry, normalizer, cache, ledger,
// and router into the module's top-level API: synchronous chat, bounded
// batch fan-out, streaming, media operations, and cost/usage management.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/mireles/aibridge/pkg/ledger"
	"github.com/mireles/aibridge/pkg/providers"
	"github.com/mireles/aibridge/pkg/providers/anthropic"
	"github.com/mireles/aibridge/pkg/providers/google"
	"github.com/mireles/aibridge/pkg/providers/openai"
	"github.com/mireles/aibridge/pkg/providers/xai"
	"github.com/mireles/aibridge/pkg/registry"
	"github.com/mireles/aibridge/pkg/request"
	"github.com/mireles/aibridge/pkg/respcache"
	"github.com/mireles/aibridge/pkg/router"
	"github.com/mireles/aibridge/pkg/tools"
)

// Orchestrator is the unified front end over the configured providers. The
// adapter set is built once at construction and stays immutable; budget
// limits and the tool registry may change afterwards.
type Orchestrator struct {
	cfg        Config
	registry   *registry.Registry
	normalizer *request.Normalizer
	router     *router.Router
	cache      *respcache.Cache // nil when caching is disabled.
	ledger     *ledger.Ledger   // nil when no ledger path is configured.
	tools      *tools.Registry
	logger     *slog.Logger

	mu           sync.Mutex
	budget       ledger.Budget
	totalCost    float64
	requestCount int
}

// Option adjusts construction, mainly as a test seam.
type Option func(*options)

type options struct {
	adapters []providers.Adapter
	ledger   *ledger.Ledger
	logger   *slog.Logger
}

// WithAdapters replaces the credential-derived adapter set. Intended for
// tests and custom back ends.
func WithAdapters(adapters ...providers.Adapter) Option {
	return func(o *options) { o.adapters = adapters }
}

// WithLedger supplies an already-open ledger instead of opening one from
// the configured path.
func WithLedger(l *ledger.Ledger) Option {
	return func(o *options) { o.ledger = l }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds an Orchestrator from the configuration. One adapter is created
// per configured API key; at least one is required unless WithAdapters
// supplies the set.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "smart"
	}

	logger := o.logger
	if logger == nil {
		level := slog.LevelInfo
		if cfg.Debug {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	adapters := o.adapters
	var reg *registry.Registry
	if adapters == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		reg = registry.New(registry.WithActiveProviders(cfg.ActiveProviders()...))
		if cfg.OpenAIAPIKey != "" {
			adapters = append(adapters, openai.New(cfg.OpenAIAPIKey, reg))
		}
		if cfg.AnthropicAPIKey != "" {
			adapters = append(adapters, anthropic.New(cfg.AnthropicAPIKey, reg))
		}
		if cfg.GoogleAPIKey != "" {
			adapters = append(adapters, google.New(cfg.GoogleAPIKey, reg))
		}
		if cfg.XAIAPIKey != "" {
			adapters = append(adapters, xai.New(cfg.XAIAPIKey, reg))
		}
	} else {
		active := make([]string, 0, len(adapters))
		for _, a := range adapters {
			active = append(active, a.Provider())
		}
		reg = registry.New(registry.WithActiveProviders(active...))
	}

	orc := &Orchestrator{
		cfg:        cfg,
		registry:   reg,
		normalizer: request.NewNormalizer(reg),
		router:     router.New(adapters...),
		tools:      tools.NewRegistry(),
		logger:     logger,
		budget: ledger.Budget{
			DailyLimit:   cfg.DailyBudgetLimit,
			MonthlyLimit: cfg.MonthlyBudgetLimit,
		},
	}

	if cfg.CacheEnabled() {
		cacheOpts := respcache.Options{TTL: cfg.CacheTTLDuration()}
		if cfg.CacheDir != "" {
			store, err := respcache.NewDirStore(cfg.CacheDir)
			if err != nil {
				return nil, fmt.Errorf("orchestrator: cache dir: %w", err)
			}
			cacheOpts.Store = store
		}
		orc.cache = respcache.New(cacheOpts)
	}

	orc.ledger = o.ledger
	if orc.ledger == nil && cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: open ledger: %w", err)
		}
		orc.ledger = l
	}

	return orc, nil
}

// Close releases the ledger. The orchestrator must not be used afterwards.
func (o *Orchestrator) Close() error {
	if o.ledger == nil {
		return nil
	}
	return o.ledger.Close()
}

// Registry exposes the model registry for alias and pricing queries.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// AddTool registers tools and forwards the updated set to every adapter.
func (o *Orchestrator) AddTool(ts ...tools.Tool) {
	o.tools.Register(ts...)
	o.router.SetTools(o.tools.Tools())
}

// RemoveTool unregisters a tool by name.
func (o *Orchestrator) RemoveTool(name string) {
	o.tools.Remove(name)
	o.router.SetTools(o.tools.Tools())
}

// CallTool executes a tool call produced by a model turn.
func (o *Orchestrator) CallTool(ctx context.Context, call request.ToolCall) tools.Result {
	return o.tools.Call(ctx, call)
}

// Remember stores a long-term memory fact. Facts feed the memory snapshot
// of requests made with UseMemory.
func (o *Orchestrator) Remember(ctx context.Context, key, value, category string) error {
	if o.ledger == nil {
		return fmt.Errorf("orchestrator: memory requires a ledger path")
	}
	return o.ledger.AddFact(ctx, key, value, category)
}

// Recall looks up a stored fact.
func (o *Orchestrator) Recall(ctx context.Context, key string) (string, bool, error) {
	if o.ledger == nil {
		return "", false, nil
	}
	return o.ledger.Fact(ctx, key)
}

// Forget removes a stored fact.
func (o *Orchestrator) Forget(ctx context.Context, key string) error {
	if o.ledger == nil {
		return nil
	}
	return o.ledger.RemoveFact(ctx, key)
}

// memorySnapshot returns all stored facts, or nil without a ledger.
func (o *Orchestrator) memorySnapshot(ctx context.Context) map[string]string {
	if o.ledger == nil {
		return nil
	}
	facts, err := o.ledger.AllFacts(ctx)
	if err != nil {
		o.logger.Warn("memory snapshot failed", "error", err)
		return nil
	}
	if len(facts) == 0 {
		return nil
	}
	return facts
}
