package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/chunker"
	"github.com/kailas-cloud/jobrag/internal/config"
	"github.com/kailas-cloud/jobrag/internal/db"
	"github.com/kailas-cloud/jobrag/internal/db/memory"
	dbRedis "github.com/kailas-cloud/jobrag/internal/db/redis"
	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/metrics"
	budgetrepo "github.com/kailas-cloud/jobrag/internal/repository/budget"
	corpusrepo "github.com/kailas-cloud/jobrag/internal/repository/corpus"
	"github.com/kailas-cloud/jobrag/internal/repository/embcache"
	amqpTransport "github.com/kailas-cloud/jobrag/internal/transport/amqp"
	"github.com/kailas-cloud/jobrag/internal/transport/fetch"
	geminiTransport "github.com/kailas-cloud/jobrag/internal/transport/gemini"
	openaiTransport "github.com/kailas-cloud/jobrag/internal/transport/openai"
	smtpTransport "github.com/kailas-cloud/jobrag/internal/transport/smtp"
	corpusuc "github.com/kailas-cloud/jobrag/internal/usecase/corpus"
	embeddinguc "github.com/kailas-cloud/jobrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/jobrag/internal/usecase/health"
	matchuc "github.com/kailas-cloud/jobrag/internal/usecase/match"
	notifyuc "github.com/kailas-cloud/jobrag/internal/usecase/notify"
	raguc "github.com/kailas-cloud/jobrag/internal/usecase/rag"
	retrievaluc "github.com/kailas-cloud/jobrag/internal/usecase/retrieval"
	usageuc "github.com/kailas-cloud/jobrag/internal/usecase/usage"
	"github.com/kailas-cloud/jobrag/internal/version"
)

// app is the composition root shared by the subcommands.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     db.Store
	corpus    *corpusuc.Service
	retrieval *retrievaluc.Service
	match     *matchuc.Service
	rag       *raguc.Service
	usage     *usageuc.Service
	health    *healthuc.Service
	closers   []func()
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := openStore(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		a.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterCorpusMetrics()

	provName, vecCfg, provCfg := cfg.Vectorizer()

	// Pass nil interfaces (not typed nil pointers) when no budget is configured.
	var (
		budget       embeddinguc.BudgetChecker
		budgetReader usageuc.BudgetReader
	)
	if b := provCfg.Budget; b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if b.Action == "reject" {
			action = embeddinguc.BudgetActionReject
		}
		tracker := embeddinguc.NewBudgetTracker(provName, b.DailyTokenLimit, b.MonthlyTokenLimit, action, logger).
			WithStore(ctx, budgetrepo.New(store, budgetrepo.DefaultDailyTTL, budgetrepo.DefaultMonthlyTTL))
		budget, budgetReader = tracker, tracker
	}

	base, err := newBaseEmbedder(ctx, provName, provCfg, vecCfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	// One instrumented embedder so documents and queries share the pinned dimension.
	shared := a.wrapEmbedder(base, provName, vecCfg, budget)
	docEmbedder := withInstruction(shared, vecCfg.DocumentInstruction)
	queryEmbedder := withInstruction(shared, vecCfg.QueryInstruction)
	logger.Info("Embedders created",
		zap.String("provider", provName),
		zap.String("model", vecCfg.Model),
		zap.Int("dimensions", vecCfg.Dimensions),
	)

	splitter, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.Size),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	fetcher, err := fetch.New(ctx, fetch.Config{
		Timeout:     time.Duration(cfg.Sources.HTTPTimeoutSec) * time.Second,
		MaxBytes:    cfg.Sources.MaxBytes,
		S3Endpoint:  cfg.Sources.S3.Endpoint,
		S3Region:    cfg.Sources.S3.Region,
		S3AccessKey: cfg.Sources.S3.AccessKey,
		S3SecretKey: cfg.Sources.S3.SecretKey,
		S3PathStyle: cfg.Sources.S3.PathStyle,
		UserAgent:   appName + "/" + version.Version,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	generator, err := newGenerator(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.corpus = corpusuc.New(corpusrepo.New(store), docEmbedder, splitter, logger).
		WithLimits(corpusuc.Limits{
			MaxChunks:        cfg.Corpus.MaxChunks,
			MaxRecords:       cfg.Corpus.MaxRecords,
			MaxDocumentBytes: cfg.Corpus.MaxDocumentBytes,
		}).
		WithFetcher(fetcher)
	a.retrieval = retrievaluc.New(a.corpus, queryEmbedder, logger).WithMaxK(cfg.Retrieval.MaxK)
	a.match = matchuc.New(a.corpus, logger).WithWorkers(cfg.Matching.Workers)
	a.rag = raguc.New(a.retrieval, generator, logger).
		WithSystemPrompt(cfg.Generation.SystemPrompt).
		WithK(cfg.Retrieval.DefaultKJobs, cfg.Retrieval.DefaultKResumes).
		WithGenerateTimeout(time.Duration(cfg.Generation.TimeoutSec) * time.Second)
	a.usage = usageuc.New(budgetReader)
	a.health = healthuc.New(store).
		With("embedding", optionalChecker{docEmbedder}).
		With("generation", optionalChecker{generator})

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// notifier builds the configured delivery channel and its notification service.
func (a *app) notifier() (*notifyuc.Service, error) {
	var n notifyuc.Notifier
	switch a.cfg.Notify.Driver {
	case "amqp":
		p, err := amqpTransport.New(amqpTransport.Config{
			URL:      a.cfg.Notify.AMQP.URL,
			Exchange: a.cfg.Notify.AMQP.Exchange,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("create amqp notifier: %w", err)
		}
		a.closers = append(a.closers, func() { _ = p.Close() })
		n = p
	case "smtp":
		m, err := smtpTransport.New(smtpTransport.Config{
			Host:     a.cfg.Notify.SMTP.Host,
			Port:     a.cfg.Notify.SMTP.Port,
			Username: a.cfg.Notify.SMTP.Username,
			Password: a.cfg.Notify.SMTP.Password,
			From:     a.cfg.Notify.SMTP.From,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("create smtp notifier: %w", err)
		}
		n = m
	default:
		n = notifyuc.NewLogNotifier(a.logger)
	}
	return notifyuc.New(a.match, n, a.cfg.Notify.Driver, a.logger), nil
}

func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.NewStore(), nil
	case "redis", "valkey":
		// Valkey speaks the Redis protocol; both go through rueidis.
		store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.Addrs, Password: cfg.Password})
		if err != nil {
			return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func newBaseEmbedder(
	ctx context.Context,
	provName string,
	provCfg config.ProviderConfig,
	vecCfg config.VectorizerConfig,
	logger *zap.Logger,
) (domain.Embedder, error) {
	if provCfg.Kind == "gemini" {
		e, err := geminiTransport.NewEmbedder(ctx, &geminiTransport.Config{
			APIKey:     provCfg.APIKey,
			BaseURL:    provCfg.BaseURL,
			Model:      vecCfg.Model,
			Dimensions: vecCfg.Dimensions,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini embedder: %w", err)
		}
		return e, nil
	}
	return openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   provName,
		Logger:     logger,
	}), nil
}

// wrapEmbedder assembles the decorator chain: provider -> cached -> instrumented.
func (a *app) wrapEmbedder(
	base domain.Embedder,
	provName string,
	vecCfg config.VectorizerConfig,
	budget embeddinguc.BudgetChecker,
) domain.Embedder {
	embedder := base
	if a.cfg.Embedding.Cache {
		embedder = embcache.New(base, a.store, vecCfg.Model, metrics.EmbeddingCacheTotal, a.logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(embedder, provName, vecCfg.Model, budget, embeddinguc.Options{
		BatchSize:    a.cfg.Embedding.BatchSize,
		BatchTimeout: time.Duration(a.cfg.Embedding.TimeoutSec) * time.Second,
		Dimensions:   vecCfg.Dimensions,
	}, a.logger)
}

// withInstruction prefixes texts before the chain, so the cache key includes the instruction.
func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

func newGenerator(ctx context.Context, cfg config.Config, logger *zap.Logger) (raguc.Generator, error) {
	gen := cfg.Generation
	apiKey, baseURL := gen.APIKey, gen.BaseURL
	// Reuse the embedding provider credentials registered under the same name.
	if p, ok := cfg.Embedding.Providers[gen.Provider]; ok {
		if apiKey == "" {
			apiKey = p.APIKey
		}
		if baseURL == "" {
			baseURL = p.BaseURL
		}
	}

	if gen.Provider == "gemini" {
		g, err := geminiTransport.NewGenerator(ctx, &geminiTransport.Config{
			APIKey:  apiKey,
			BaseURL: baseURL,
			Model:   gen.Model,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini generator: %w", err)
		}
		return g, nil
	}
	return openaiTransport.NewGenerator(&openaiTransport.Config{
		APIKey:   apiKey,
		BaseURL:  baseURL,
		Model:    gen.Model,
		Provider: gen.Provider,
		Logger:   logger,
	}), nil
}

// optionalChecker probes a dependency when it can report health and passes otherwise.
type optionalChecker struct {
	target any
}

func (c optionalChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := c.target.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
