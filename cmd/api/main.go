package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"allergen-engine/internal/api"
	"allergen-engine/internal/core/ai/cache"
	"allergen-engine/internal/core/ai/openrouter"
	"allergen-engine/internal/core/ai/provider"
	"allergen-engine/internal/core/ai/queue"
	"allergen-engine/internal/core/ai/service"
	"allergen-engine/internal/core/allergen"
	"allergen-engine/internal/core/mapping"
	"allergen-engine/internal/core/recipe"
	"allergen-engine/internal/infrastructure/config"
	"allergen-engine/internal/infrastructure/store"
	"allergen-engine/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("configuration loaded",
		zap.String("openrouter_api_key", config.MaskAPIKey(cfg.OpenRouter.APIKey)),
		zap.String("openrouter_model", cfg.OpenRouter.Model),
		zap.Bool("ai_enabled", cfg.AIEnabled()),
		zap.String("storage_driver", cfg.Storage.Driver),
	)

	ref, err := allergen.LoadPatternDB(cfg.Reference.AllergenDBPath)
	if err != nil {
		common.LogFatal("failed to load allergen database", zap.Error(err))
	}
	common.LogInfo("allergen database loaded",
		zap.Int("allergens", len(ref.Keys())),
		zap.Int("patterns", ref.PatternCount()),
	)

	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		common.LogFatal("failed to open storage", zap.Error(err))
	}
	defer st.Close()

	if path := cfg.Reference.CatalogSeedPath; path != "" {
		products, err := store.LoadCatalogFile(path)
		if err != nil {
			common.LogFatal("failed to read product catalog", zap.String("path", path), zap.Error(err))
		}
		n, err := st.SeedProducts(context.Background(), products)
		if err != nil {
			common.LogFatal("failed to seed product catalog", zap.Error(err))
		}
		common.LogInfo("product catalog seeded", zap.Int("products", n))
	}

	var cacheStore cache.Store
	if cfg.Cache.Enabled {
		cacheStore, err = cache.New(context.Background(), cache.Options{
			Backend:         cfg.Cache.Backend,
			MaxSize:         cfg.Cache.MaxSize,
			TTL:             cfg.Cache.TTL,
			CleanupInterval: cfg.Cache.CleanupInterval,
			RedisAddr:       cfg.Cache.RedisAddr,
			RedisPassword:   cfg.Cache.RedisPassword,
			RedisDB:         cfg.Cache.RedisDB,
		})
		if err != nil {
			common.LogFatal("failed to initialize cache", zap.String("backend", cfg.Cache.Backend), zap.Error(err))
		}
		defer cacheStore.Close()
	}

	// Without an API key every AI consumer sees a nil completer and degrades.
	var (
		aiQueue           *queue.Manager
		allergenCompleter allergen.Completer
		recipeCompleter   recipe.Completer
	)
	if cfg.AIEnabled() {
		client := openrouter.NewClient(provider.Config{
			APIKey:     cfg.OpenRouter.APIKey,
			Model:      cfg.OpenRouter.Model,
			Timeout:    cfg.OpenRouter.Timeout,
			MaxRetries: cfg.OpenRouter.MaxRetries,
			BaseURL:    cfg.OpenRouter.BaseURL,
			Title:      cfg.App.Name,
		})
		defer client.Close()

		aiQueue = queue.NewManager(client, queue.Options{Workers: cfg.Queue.Workers, MaxSize: cfg.Queue.MaxSize})
		defer aiQueue.Close()

		aiService := service.NewService(client, aiQueue, cacheStore, service.Options{
			RequestsPerSecond: cfg.AI.RequestsPerSecond,
			Burst:             cfg.AI.Burst,
		})

		allergenParams, recipeParams := service.AllergenParams, service.RecipeParams
		if cfg.OpenRouter.MaxTokens > 0 {
			allergenParams.MaxTokens = cfg.OpenRouter.MaxTokens
			recipeParams.MaxTokens = cfg.OpenRouter.MaxTokens
		}
		allergenCompleter = aiService.Completer(allergenParams)
		recipeCompleter = aiService.Completer(recipeParams)
	}

	analyzer := allergen.NewAnalyzer(
		ref,
		allergen.NewAIDetector(allergenCompleter, ref, cfg.OpenRouter.Timeout),
		st,
		cfg.Matching.DBConfidence,
	)

	router := api.SetupRouter(cfg, api.Dependencies{
		Analyzer: analyzer,
		Batch:    allergen.NewBatchAnalyzer(analyzer, cfg.Batch.Concurrency),
		Mapper:   mapping.NewMapper(cfg.Matching.RareWordLimit),
		Catalog:  st,
		Recipes:  recipe.NewService(recipeCompleter, st),
		Library:  st,
		Storage:  st,
		Queue:    aiQueue,
		Cache:    cacheStore,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo(common.MsgStarting,
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("debug", cfg.App.Debug),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo(common.MsgShuttingDown)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("server forced to shutdown", zap.Error(err))
	}

	common.LogInfo(common.MsgServerExited)
}
