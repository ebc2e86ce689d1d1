package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/cache"
	"github.com/kailas-cloud/cinerank/internal/config"
	"github.com/kailas-cloud/cinerank/internal/db"
	dbRedis "github.com/kailas-cloud/cinerank/internal/db/redis"
	"github.com/kailas-cloud/cinerank/internal/domain"
	logpkg "github.com/kailas-cloud/cinerank/internal/logger"
	"github.com/kailas-cloud/cinerank/internal/metrics"
	"github.com/kailas-cloud/cinerank/internal/repository/ann"
	budgetrepo "github.com/kailas-cloud/cinerank/internal/repository/budget"
	"github.com/kailas-cloud/cinerank/internal/repository/catalog"
	"github.com/kailas-cloud/cinerank/internal/repository/embcache"
	"github.com/kailas-cloud/cinerank/internal/repository/l2cache"
	"github.com/kailas-cloud/cinerank/internal/repository/resultcache"
	chiTransport "github.com/kailas-cloud/cinerank/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/cinerank/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/cinerank/internal/usecase/embedding"
	"github.com/kailas-cloud/cinerank/internal/usecase/evaluation"
	"github.com/kailas-cloud/cinerank/internal/usecase/feedback"
	healthuc "github.com/kailas-cloud/cinerank/internal/usecase/health"
	"github.com/kailas-cloud/cinerank/internal/usecase/ranking"
	"github.com/kailas-cloud/cinerank/internal/usecase/retrieval"
	"github.com/kailas-cloud/cinerank/internal/usecase/rewrite"
	"github.com/kailas-cloud/cinerank/internal/usecase/scoring"
	searchuc "github.com/kailas-cloud/cinerank/internal/usecase/search"
	"github.com/kailas-cloud/cinerank/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting cinerank API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Background workers stop when ctx is cancelled on shutdown.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Cache tier: in-process L1, Redis L2 when enabled.
	var l2 cache.Remote
	if cfg.Cache.L2Enabled {
		l2 = l2cache.New(store)
	}
	tier := cache.NewTier(
		cache.NewLRU(cfg.Cache.L1MaxEntries, cfg.Cache.L1MaxBytes, cfg.Cache.L1TTL, nil),
		l2,
		cache.Options{
			L1TTL:         cfg.Cache.L1TTL,
			L2TTL:         cfg.Cache.L2TTL,
			L2Timeout:     cfg.Cache.L2Timeout,
			SweepInterval: cfg.Cache.SweepInterval,
		},
		metrics.CacheRequestsTotal,
		logger.Named("cache"),
	)
	go tier.RunSweeper(ctx)

	metrics.Register(prometheus.DefaultRegisterer, metrics.CacheGauges{
		Entries:   func() float64 { return float64(tier.Stats().Count) },
		SizeBytes: func() float64 { return float64(tier.Stats().Size) },
		Evictions: func() float64 { return float64(tier.Stats().Evictions) },
	})

	budget := buildBudget(ctx, cfg.Embedding, store, logger)

	// Pass a nil interface, not a typed nil pointer, when no budget is configured.
	var budgetChecker embeddinguc.BudgetChecker
	var budgetReporter searchuc.BudgetReporter
	if budget != nil {
		budgetChecker = budget
		budgetReporter = budget
	}

	provider := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	embedder := buildEmbedder(cfg.Embedding, provider, tier, budgetChecker, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Storage.VectorDim),
	)

	algorithm, err := db.ParseVectorAlgorithm(cfg.Storage.Algorithm)
	if err != nil {
		logger.Fatal("Invalid vector algorithm", zap.Error(err))
	}
	index := ann.New(store, ann.IndexConfig{
		Dim:            cfg.Storage.VectorDim,
		Algorithm:      algorithm,
		M:              cfg.Storage.HNSWM,
		EFConstruction: cfg.Storage.HNSWEFConstruct,
	})
	if err := index.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure movie index", zap.Error(err))
	}
	movies := catalog.New(store, tier, cfg.Cache.MovieTTL, logger.Named("catalog"))

	if cfg.Storage.SeedFile != "" {
		// Catalog vectors are embedded without the query instruction.
		docEmbedder := buildEmbedder(
			config.EmbeddingConfig{Model: cfg.Embedding.Model, CacheTTL: cfg.Embedding.CacheTTL, Provider: cfg.Embedding.Provider},
			provider, tier, budgetChecker, logger,
		)
		n, err := seedCatalog(ctx, cfg.Storage.SeedFile, movies, docEmbedder, logger)
		if err != nil {
			logger.Fatal("Failed to seed catalog", zap.String("file", cfg.Storage.SeedFile), zap.Error(err))
		}
		logger.Info("Catalog seeded", zap.String("file", cfg.Storage.SeedFile), zap.Int("movies", n))
	}

	retriever := retrieval.New(embedder, index, movies, retrieval.Config{
		EmbedTimeout:    cfg.Retrieval.EmbedTimeout,
		ANNTimeout:      cfg.Retrieval.ANNTimeout,
		CatalogTimeout:  cfg.Retrieval.CatalogTimeout,
		BreakerFailures: cfg.Retrieval.BreakerFailures,
		BreakerOpenFor:  cfg.Retrieval.BreakerOpenFor,
	}, logger.Named("retrieval"))

	scorer := scoring.New(scoring.Config{
		SemanticWeight: cfg.Scoring.SemanticWeight,
		LexicalWeight:  cfg.Scoring.LexicalWeight,
		MetadataWeight: cfg.Scoring.MetadataWeight,
		MinSemantic:    cfg.Scoring.MinSemantic,
	}, nil)

	rankCfg := ranking.Config{
		Weights:               ranking.Weights(cfg.Ranking.Weights),
		PersonalizationWeight: cfg.Ranking.PersonalizationWeight,
		RelevanceWeight:       cfg.Ranking.RelevanceWeight,
		DiversityWeight:       cfg.Ranking.DiversityWeight,
		GuardWindow:           cfg.Ranking.GuardWindow,
		Strategy:              ranking.Strategy(cfg.Ranking.Strategy),
	}
	ranker := ranking.New(rankCfg, nil)

	rewriter := rewrite.New(rewrite.Weights{
		Expansion:      cfg.Rewrite.Expansion,
		Simplification: cfg.Rewrite.Simplification,
		Intent:         cfg.Rewrite.Intent,
		Profile:        cfg.Rewrite.Profile,
	}, metrics.RewriteTotal)

	learnerCfg := feedback.Config{HistoryLimit: cfg.Feedback.HistoryLimit}
	if cfg.Feedback.DecayHalfLife > 0 {
		learnerCfg.Decay = feedback.ExponentialDecay(cfg.Feedback.DecayHalfLife)
	}
	learner := feedback.New(learnerCfg, nil, metrics.InteractionsTotal, logger.Named("feedback"))
	if learnerCfg.Decay != nil {
		go learner.RunDecay(ctx, cfg.Feedback.DecayInterval)
	}

	evaluator := evaluation.New(evaluation.Config{
		Threshold: cfg.Evaluation.Threshold,
		Ks:        cfg.Evaluation.Ks,
	})

	searchSvc, err := searchuc.New(searchuc.Deps{
		Retriever: retriever,
		Scorer:    scorer,
		Ranker:    ranker,
		Rewriter:  rewriter,
		Learner:   learner,
		Results:   resultcache.New(tier, logger.Named("resultcache")),
		Cache:     tier,
		Budget:    budgetReporter,
		Requests:  metrics.SearchRequestsTotal,
		Duration:  metrics.SearchDuration,
		Logger:    logger.Named("search"),
	}, searchuc.Config{
		CandidatePoolSize: cfg.Search.CandidatePoolSize,
		ResultTTL:         cfg.Cache.ResultTTL,
		RewriteEnabled:    !cfg.Rewrite.Disabled,
		SessionCapacity:   cfg.Search.SessionCapacity,
		WarmConcurrency:   cfg.Search.WarmConcurrency,
		WarmQueries:       cfg.Search.WarmQueries,
	}, nil)
	if err != nil {
		logger.Fatal("Failed to create search service", zap.Error(err))
	}

	if cfg.Search.WarmOnStart {
		go func() {
			res := searchSvc.WarmCache(ctx, nil)
			logger.Info("Cache warmed",
				zap.Int("queries", res.Queries),
				zap.Int("warmed", res.Warmed),
				zap.Int("failed", res.Failed),
				zap.Duration("duration", res.Duration),
			)
		}()
	}

	healthSvc := healthuc.New(store, provider, retriever)

	server := chiTransport.NewServer(searchSvc, evaluator, healthSvc, logger)
	handler := server.Routes(chiTransport.RouterConfig{
		APIKeys:            cfg.Auth.APIKeys,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		MaxBodyBytes:       int64(cfg.HTTP.MaxBodyBytes),
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildBudget returns nil when neither limit is set.
func buildBudget(
	ctx context.Context, cfg config.EmbeddingConfig, store *dbRedis.Store, logger *zap.Logger,
) *embeddinguc.BudgetTracker {
	if cfg.Budget.DailyTokenLimit <= 0 && cfg.Budget.MonthlyTokenLimit <= 0 {
		return nil
	}
	action := embeddinguc.BudgetActionWarn
	if cfg.Budget.Action == string(embeddinguc.BudgetActionReject) {
		action = embeddinguc.BudgetActionReject
	}
	return embeddinguc.NewBudgetTracker(
		cfg.Provider, cfg.Budget.DailyTokenLimit, cfg.Budget.MonthlyTokenLimit, action, nil, logger,
	).WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	cfg config.EmbeddingConfig,
	provider domain.Embedder,
	tier *cache.Tier,
	budget embeddinguc.BudgetChecker,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = embcache.New(
		provider, tier, cfg.Model, cfg.CacheTTL, metrics.EmbeddingCacheTotal, logger.Named("embcache"),
	)

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, budget, metrics.EmbeddingBudgetTokensRemaining, logger,
	)

	// Instruction prefix (outermost, so the cache key includes it)
	if cfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, cfg.QueryInstruction)
	}
	return embedder
}
