package main

import (
	"context"
	"log"

	"agewise-backend/cache"
	"agewise-backend/config"
	"agewise-backend/epc"
	"agewise-backend/features"
	"agewise-backend/geo"
	"agewise-backend/handlers"
	"agewise-backend/monitoring"
	"agewise-backend/proximity"
	"agewise-backend/repository"
	"agewise-backend/scraper"
	"agewise-backend/service"
	"agewise-backend/storage"
	"agewise-backend/vision"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	// Load .env file from project root (relative to cmd/server/)
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	rules, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		logger.Fatal("failed to load rules", zap.Error(err))
	}

	metrics := monitoring.NewMetrics()

	db, err := initPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Warn("running without database, reports will not persist", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
	}

	archive, err := storage.NewArchiveFromEnv()
	if err != nil {
		logger.Warn("running without report archive", zap.Error(err))
		archive = nil
	}

	reportCache := cache.New(cfg.RedisAddr, cfg.CacheTTL, logger)
	if reportCache != nil {
		if err := reportCache.Ping(context.Background()); err != nil {
			logger.Warn("redis unreachable, caching disabled", zap.Error(err))
			reportCache = nil
		}
	}

	var judge *vision.Client
	if cfg.GeminiAPIKey != "" {
		judge, err = vision.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, logger,
			vision.WithTimeout(cfg.ExternalTimeout),
			vision.WithLimiter(rate.NewLimiter(rate.Limit(2), 4)),
			vision.WithMetrics(metrics),
		)
		if err != nil {
			logger.Warn("running without vision classifier", zap.Error(err))
			judge = nil
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set, vision strategies disabled")
	}

	placesLimiter := rate.NewLimiter(rate.Limit(5), 10)
	places := geo.NewPlacesClient(cfg.PlacesAPIKey, cfg.PlacesBaseURL, cfg.ExternalTimeout, placesLimiter, logger, metrics)
	routes := geo.NewRoutesClient(cfg.PlacesAPIKey, cfg.RoutesBaseURL, cfg.ExternalTimeout, placesLimiter, logger, metrics)

	listingScraper := scraper.New(cfg.RequiredDomain, cfg.ExternalTimeout, rules, logger, metrics)
	epcResolver := epc.NewResolver(classifierOrNil(judge), rules, logger, metrics)
	featureDetector := features.NewDetector(rules, imageClassifierOrNil(judge), logger)
	proximityScorer := proximity.NewScorer(places, routes, textClassifierOrNil(judge), rules, logger)

	var reportRepo *repository.ReportRepository
	if db != nil {
		reportRepo = repository.NewReportRepository(db)
	}

	analysisService := service.NewAnalysisService(
		service.WithScraper(listingScraper),
		service.WithEPCResolver(epcResolver),
		service.WithFeatureDetector(featureDetector),
		service.WithProximityScorer(proximityScorer),
		service.WithReportRepository(reportRepo),
		service.WithArchive(archive),
		service.WithCache(reportCache),
		service.WithLogger(logger),
		service.WithMetrics(metrics),
		service.WithTimeout(cfg.RequestTimeout),
	)

	analysisHandler := handlers.NewAnalysisHandler(analysisService, logger)

	r := gin.Default()
	r.Use(metrics.GinMiddleware())

	r.GET("/health", analysisHandler.Health)
	r.GET("/metrics", monitoring.Handler())

	api := r.Group("/api")
	api.Use(handlers.APIKeyAuth(cfg.APIKeyHash))
	{
		api.POST("/analyze", analysisHandler.Analyze)
		api.GET("/analyze", analysisHandler.Analyze)
		api.GET("/reports", analysisHandler.ListReports)
		api.GET("/reports/:id", analysisHandler.GetReport)
	}

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func initPostgres(connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// The sub-analysers take narrow classifier interfaces; a typed nil *Client
// would not compare equal to nil behind an interface, so the nil check has
// to happen before the conversion.
func classifierOrNil(c *vision.Client) epc.Classifier {
	if c == nil {
		return nil
	}
	return c
}

func imageClassifierOrNil(c *vision.Client) features.Classifier {
	if c == nil {
		return nil
	}
	return c
}

func textClassifierOrNil(c *vision.Client) proximity.Classifier {
	if c == nil {
		return nil
	}
	return c
}
