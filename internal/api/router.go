package api

import (
	"time"

	allergenHandler "allergen-engine/internal/api/handlers/allergen"
	"allergen-engine/internal/api/handlers/health"
	ingredientHandler "allergen-engine/internal/api/handlers/ingredient"
	recipeHandler "allergen-engine/internal/api/handlers/recipe"
	"allergen-engine/internal/api/middleware"
	"allergen-engine/internal/core/ai/cache"
	"allergen-engine/internal/core/ai/queue"
	allergenService "allergen-engine/internal/core/allergen"
	"allergen-engine/internal/core/mapping"
	recipeService "allergen-engine/internal/core/recipe"
	"allergen-engine/internal/infrastructure/config"
	"allergen-engine/internal/pkg/common"
	"allergen-engine/internal/pkg/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requestTimeout bounds a whole request, AI calls included.
const requestTimeout = 120 * time.Second

// Dependencies are the services the routes serve. Queue and Cache are nil
// when AI or caching is off.
type Dependencies struct {
	Analyzer *allergenService.Analyzer
	Batch    *allergenService.BatchAnalyzer
	Mapper   *mapping.Mapper
	Catalog  ingredientHandler.Catalog
	Recipes  *recipeService.Service
	Library  recipeHandler.Library
	Storage  health.Pinger
	Queue    *queue.Manager
	Cache    cache.Store
}

// SetupRouter builds the gin engine with middleware and all routes.
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	common.LogInfo("starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))
	router.Use(middleware.Timeout(requestTimeout))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	router.Use(middleware.NewDeduplicator(cfg.DedupWindow).Middleware())

	hh := &health.Handler{
		Version: cfg.App.Version,
		Queue:   deps.Queue,
		Cache:   deps.Cache,
		Storage: deps.Storage,
	}
	router.GET("/health", hh.HealthCheck)
	router.GET("/ready", hh.ReadinessCheck)
	router.GET("/live", hh.LivenessCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/api/v1")
	{
		allergenHandler.NewHandler(deps.Analyzer, deps.Batch, cfg.App.Debug).Register(v1.Group("/allergens"))

		ingredients := ingredientHandler.NewHandler(deps.Catalog, deps.Mapper, cfg.Matching.MapThreshold, cfg.App.Debug)
		v1.POST("/ingredients/map", ingredients.HandleMap)

		recipes := recipeHandler.NewHandler(deps.Recipes, deps.Library, cfg.App.Debug)
		v1.POST("/recipes/generate", recipes.HandleGenerate)
		v1.GET("/recipes", recipes.HandleList)
		v1.GET("/recipes/:id", recipes.HandleGet)
	}

	router.NoRoute(func(c *gin.Context) {
		common.WriteError(c, common.ErrNotFound, cfg.App.Debug)
	})

	common.LogInfo("router setup completed",
		zap.Bool("ai_enabled", deps.Queue != nil),
		zap.Bool("cache_enabled", deps.Cache != nil),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("timeout", requestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)
	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
