// Package bootstrap turns a loaded configuration into a ready pipeline. The
// worker manager and the schoolq CLI share it.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ca-schools-query/internal/common/config"
	"ca-schools-query/internal/common/database"
	"ca-schools-query/internal/common/logger"
	"ca-schools-query/internal/common/observability"
	"ca-schools-query/internal/extractor"
	"ca-schools-query/internal/intent"
	"ca-schools-query/internal/pipeline"
	"ca-schools-query/internal/schema"
	"ca-schools-query/internal/storage"
	"ca-schools-query/internal/storage/elastic"
	"ca-schools-query/internal/storage/memory"
	"ca-schools-query/internal/storage/postgres"
)

// Options controls how hard Build tries to reach backing services.
type Options struct {
	ConnectAttempts int
	InitialDelay    time.Duration
}

// Components holds everything Build wired. Close releases it.
type Components struct {
	Registry  *schema.Registry
	Store     storage.Store
	Extractor *extractor.Extractor
	Pipeline  *pipeline.Pipeline

	checks  map[string]func(context.Context) error
	closers []func() error
	log     *zap.Logger
}

func Build(ctx context.Context, cfg *config.Config, zapLog *zap.Logger, obs *observability.Observability, opts Options) (*Components, error) {
	if opts.ConnectAttempts <= 0 {
		opts.ConnectAttempts = 1
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 2 * time.Second
	}

	c := &Components{
		Registry: schema.Default(),
		checks:   map[string]func(context.Context) error{},
		log:      zapLog,
	}
	log := logger.NewZapAdapter(zapLog)

	store, err := c.openStore(ctx, cfg, opts)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Store = store

	ext, err := c.openExtractor(ctx, cfg, opts, log)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Extractor = ext

	policy, err := intent.ParsePolicy(cfg.Pipeline.MergePolicy)
	if err != nil {
		c.Close()
		return nil, err
	}

	// A nil *Extractor must not become a non-nil interface.
	var pext pipeline.Extractor
	if ext != nil {
		pext = ext
	}
	c.Pipeline = pipeline.New(c.Registry, pext, store, pipeline.Config{
		MaxRows:     cfg.Pipeline.MaxRows,
		MergePolicy: policy,
	}, obs, log)

	return c, nil
}

func (c *Components) openStore(ctx context.Context, cfg *config.Config, opts Options) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		var pg *database.PostgresClient
		err := RetryWithBackoff(ctx, func() error {
			var err error
			if pg == nil {
				if pg, err = database.NewPostgres(cfg.Database.Postgres); err != nil {
					return err
				}
			}
			return pg.Ping(ctx)
		}, opts.ConnectAttempts, opts.InitialDelay, c.log, "PostgreSQL connection")
		if pg != nil {
			c.closers = append(c.closers, pg.Close)
		}
		if err != nil {
			return nil, err
		}
		c.checks["postgres"] = pg.Ping
		c.log.Info("PostgreSQL connected", zap.String("table", cfg.Storage.Table))
		return postgres.New(pg.DB, cfg.Storage.Table), nil

	case config.BackendElasticsearch:
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		err = RetryWithBackoff(ctx, func() error { return es.Ping(ctx) },
			opts.ConnectAttempts, opts.InitialDelay, c.log, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		c.checks["elasticsearch"] = es.Ping
		c.log.Info("Elasticsearch connected", zap.String("index", cfg.Storage.Index))
		return elastic.New(es.Client, cfg.Storage.Index), nil

	case config.BackendMemory:
		store, err := memory.LoadFile(cfg.Storage.DataFile)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.Storage.DataFile, err)
		}
		c.log.Info("memory store loaded",
			zap.String("file", cfg.Storage.DataFile),
			zap.Int("records", store.Len()),
		)
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// openExtractor returns nil when no language model is configured; the
// pipeline then answers from the fallback interpreter alone.
func (c *Components) openExtractor(ctx context.Context, cfg *config.Config, opts Options, log logger.Logger) (*extractor.Extractor, error) {
	gcfg := cfg.APIs.GenAI

	var model extractor.LanguageModel
	switch gcfg.Provider {
	case config.ProviderNone:
		c.log.Info("language model disabled, fallback interpreter only")
		return nil, nil
	case config.ProviderGemini:
		if gcfg.APIKey == "" {
			c.log.Warn("no GenAI API key configured, fallback interpreter only")
			return nil, nil
		}
		gm, err := extractor.NewGeminiModel(ctx, gcfg.APIKey, gcfg.Model)
		if err != nil {
			return nil, err
		}
		model = gm
	case config.ProviderGateway:
		model = extractor.NewGatewayModel(gcfg.BaseURL, gcfg.APIKey, gcfg.MaxRetries,
			&http.Client{Timeout: config.GetDuration(gcfg.Timeout)})
	default:
		return nil, fmt.Errorf("unknown GenAI provider %q", gcfg.Provider)
	}

	cache, err := extractor.NewTieredCache(
		cfg.Pipeline.CacheSize,
		c.openRedis(ctx, cfg, opts),
		config.GetDuration(cfg.Pipeline.CacheTTL),
		model.Name(),
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("create extraction cache: %w", err)
	}

	c.log.Info("language model configured", zap.String("model", model.Name()))
	return extractor.New(model, c.Registry, extractor.Config{
		Timeout: config.GetDuration(cfg.Pipeline.ExtractionTimeout),
	}, cache, log), nil
}

// openRedis is best effort. The cache degrades to process-local when Redis
// is absent or unreachable.
func (c *Components) openRedis(ctx context.Context, cfg *config.Config, opts Options) *redis.Client {
	if cfg.Database.Redis.Address == "" {
		return nil
	}
	rc := database.NewRedis(cfg.Database.Redis)
	err := RetryWithBackoff(ctx, func() error { return rc.Ping(ctx) },
		opts.ConnectAttempts, opts.InitialDelay, c.log, "Redis connection")
	if err != nil {
		c.log.Warn("redis unavailable, extraction cache is process-local", zap.Error(err))
		_ = rc.Close()
		return nil
	}
	c.closers = append(c.closers, rc.Close)
	c.checks["redis"] = rc.Ping
	return rc.Client
}

// AddCheck registers an extra readiness probe, e.g. the workflow broker.
func (c *Components) AddCheck(name string, check func(context.Context) error) {
	c.checks[name] = check
}

// Ready runs every readiness probe and reports failures by name.
func (c *Components) Ready(ctx context.Context) map[string]error {
	failed := map[string]error{}
	for name, check := range c.checks {
		if err := check(ctx); err != nil {
			failed[name] = err
		}
	}
	return failed
}

func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.log.Warn("close failed", zap.Error(err))
		}
	}
	c.closers = nil
}

// RetryWithBackoff runs operation until it succeeds, doubling the delay
// between attempts.
func RetryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}

		log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
			zap.Error(err),
			zap.Int("attempt", i+1),
			zap.Int("maxRetries", maxRetries),
			zap.Duration("nextRetryIn", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled: %w", operationName, ctx.Err())
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
