package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/brand-verifier/internal/config"
	"github.com/sells-group/brand-verifier/internal/resilience"
	"github.com/sells-group/brand-verifier/internal/scorer"
	"github.com/sells-group/brand-verifier/internal/store"
	"github.com/sells-group/brand-verifier/internal/verify"
	anthropicpkg "github.com/sells-group/brand-verifier/pkg/anthropic"
	"github.com/sells-group/brand-verifier/pkg/perplexica"
	"github.com/sells-group/brand-verifier/pkg/perplexity"
	"github.com/sells-group/brand-verifier/pkg/registry"
)

// initStore opens and migrates the configured store. It returns nil when
// persistence is disabled.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "none":
		return nil, nil
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "brand_verification.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initAnswerer builds the answerer for the configured search backend.
func initAnswerer(c *config.Config) (verify.Answerer, error) {
	switch c.Search.Backend {
	case "perplexica":
		p := c.Search.Perplexica
		return verify.NewPerplexicaAnswerer(perplexica.NewClient(
			perplexica.WithURL(p.URL),
			perplexica.WithChatModel(p.ChatProvider, p.ChatModel),
			perplexica.WithEmbeddingModel(p.EmbeddingProvider, p.EmbeddingModel),
			perplexica.WithModes(p.OptimizationMode, p.FocusMode),
		)), nil
	case "perplexity":
		p := c.Search.Perplexity
		if p.Key == "" {
			return nil, eris.New("perplexity key is required (BRANDV_SEARCH_PERPLEXITY_KEY)")
		}
		return verify.NewPerplexityAnswerer(perplexity.NewClient(p.Key,
			perplexity.WithBaseURL(p.BaseURL),
			perplexity.WithModel(p.Model),
		)), nil
	default:
		return nil, eris.Errorf("unsupported search backend: %s", c.Search.Backend)
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// searchExecutor is the executor for verification queries.
func searchExecutor(c *config.Config, a verify.Answerer) *verify.Executor {
	return verify.NewExecutor(a, verify.ExecutorConfig{
		Service:   c.Search.Backend,
		Retry:     resilience.FromSeconds(c.Search.MaxAttempts, c.Search.DelaySecs),
		Timeout:   seconds(c.Search.TimeoutSecs),
		RateLimit: c.Search.RateLimit,
	})
}

// discoverExecutor is the executor for holding discovery queries, which
// search much longer than a single verification.
func discoverExecutor(c *config.Config, a verify.Answerer) *verify.Executor {
	return verify.NewExecutor(a, verify.ExecutorConfig{
		Service:   c.Search.Backend,
		Retry:     resilience.FromSeconds(c.Discover.MaxAttempts, c.Discover.DelaySecs),
		Timeout:   seconds(c.Discover.TimeoutSecs),
		RateLimit: c.Search.RateLimit,
	})
}

// scorerConfig resolves the named preset, falling back to the configured
// one, and applies the configured recent years.
func scorerConfig(c *config.Config, preset string) (scorer.Config, error) {
	presets := scorer.Presets()
	if c.Verify.PresetsFile != "" {
		var err error
		if presets, err = scorer.LoadPresets(c.Verify.PresetsFile); err != nil {
			return scorer.Config{}, err
		}
	}
	if preset == "" {
		preset = c.Verify.Preset
	}
	sc, err := scorer.Resolve(presets, preset)
	if err != nil {
		return scorer.Config{}, err
	}
	if len(c.Verify.RecentYears) > 0 {
		sc.RecentYears = c.Verify.RecentYears
	}
	return sc, nil
}

// buildVerifier wires the executor, validator, scoring preset and, when an
// Anthropic key is configured, the JSON repairer.
func buildVerifier(c *config.Config, a verify.Answerer, preset string) (*verify.Verifier, error) {
	sc, err := scorerConfig(c, preset)
	if err != nil {
		return nil, err
	}
	validator, err := verify.NewValidator(c.Verify.RequireConfidence)
	if err != nil {
		return nil, err
	}

	var opts []verify.Option
	if c.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(c.Anthropic.Key)
		opts = append(opts, verify.WithRepairer(verify.NewAnthropicRepairer(client, c.Anthropic.RepairModel)))
		zap.L().Info("answer repair enabled", zap.String("model", c.Anthropic.RepairModel))
	} else {
		zap.L().Debug("BRANDV_ANTHROPIC_KEY not set, answer repair disabled")
	}
	if c.Registry.Enabled {
		client := registry.NewClient(
			registry.WithWIPOURL(c.Registry.WIPOURL),
			registry.WithCountry(c.Registry.Country),
			registry.WithSirene(c.Registry.SireneURL, c.Registry.SireneToken),
		)
		opts = append(opts, verify.WithRegistry(verify.NewRegistryCheck(client)))
		zap.L().Info("trademark registry lookups enabled", zap.Bool("sirene", client.HasSirene()))
	}

	zap.L().Info("verifier ready",
		zap.String("backend", c.Search.Backend),
		zap.String("preset", sc.Name),
		zap.Bool("dual_pass", c.Verify.DualPass),
	)
	return verify.New(searchExecutor(c, a), validator, verify.Config{
		Scorer:            sc,
		DualPass:          c.Verify.DualPass,
		DualPassThreshold: c.Verify.DualPassThreshold,
		System:            c.Search.SystemPrompt,
	}, opts...), nil
}

func cacheTTL(c *config.Config) time.Duration {
	if c.Batch.CacheTTLHours <= 0 {
		return store.DefaultCacheTTL
	}
	return time.Duration(c.Batch.CacheTTLHours) * time.Hour
}
