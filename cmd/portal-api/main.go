package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/ai"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/auth"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/config"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/events"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/execution"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/negotiation"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/pipeline"
	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/audit"
	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/storage"
)

func main() {
	// Load .env before anything reads the environment
	_ = godotenv.Load()

	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	// PostgreSQL via sqlx (opportunities, execution plans)
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	// Same database through gorm (negotiation sessions, users)
	gormDB, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		logger.Fatal("Failed to open gorm connection", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(&negotiation.Session{}, &auth.User{}); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	// Audit trail sink (MongoDB); fall back to noop when unreachable
	auditSink := newAuditSink(ctx, cfg, logger)

	// Redis-backed AI usage tracker
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	usage := ai.NewUsageTracker(rdb, "ai_usage", cfg.AI.DailyLimit, 24*time.Hour)

	// Text generation client; nil generator degrades to templates
	var textGen negotiation.TextGenerator
	if cfg.AI.APIKey != "" {
		client, err := ai.NewClient(ctx, cfg.AI.APIKey, cfg.AI.Model,
			time.Duration(cfg.AI.TimeoutSec)*time.Second, usage, logger)
		if err != nil {
			logger.Warn("AI client unavailable, using template messages", zap.Error(err))
		} else {
			textGen = client
		}
	}

	// Report storage
	var s3Client storage.S3Client
	if cfg.Storage.UseMock {
		s3Client = storage.NewMockS3Client()
	} else {
		s3Client, err = storage.NewAWSS3Client(ctx)
		if err != nil {
			logger.Fatal("Failed to initialize S3 client", zap.Error(err))
		}
	}

	// Live event hub
	eventManager := events.NewManager(logger)
	defer eventManager.Close()

	// Services
	opportunityService := opportunity.NewService(opportunity.NewPostgresRepository(db), auditSink, logger)
	negotiationService := negotiation.NewService(
		negotiation.NewGormRepository(gormDB),
		negotiation.NewStateMachine(textGen, logger),
		opportunityService, auditSink, logger)
	executionService := execution.NewService(
		execution.NewPostgresRepository(db),
		execution.NewSimulator(nil, logger),
		s3Client, cfg.Storage.Bucket, auditSink, logger)
	authService := auth.NewService(gormDB, cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)

	// Manual pipeline trigger. Sources hand over consumable batches, so
	// every run reloads the catalog.
	assessor := ai.NewAnalyzer(textGen, logger)
	buyers := pipeline.NewBuyerBook()
	buildPipeline := func() (*pipeline.Orchestrator, error) {
		source, err := pipeline.LoadSourceFile(cfg.Pipeline.SourceCatalogPath)
		if err != nil {
			return nil, err
		}
		return pipeline.NewOrchestrator(
			source, assessor, opportunityService, buyers,
			negotiationService, executionService, eventManager,
			auditSink, logger, pipeline.Config{
				Categories:     cfg.Pipeline.Categories,
				MaxConcurrent:  cfg.Pipeline.MaxConcurrent,
				ExecuteOnClose: cfg.Pipeline.ExecuteOnClose,
			}), nil
	}

	// Handlers
	opportunityHandler := opportunity.NewHandler(opportunityService, logger)
	negotiationHandler := negotiation.NewHandler(negotiationService, logger)
	executionHandler := execution.NewHandler(executionService, logger)
	authHandler := auth.NewHandler(authService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	auth.RegisterRoutes(router, authHandler, authService)

	api := router.Group("/api/v1", auth.Middleware(authService))
	{
		opportunityHandler.RegisterRoutes(api.Group("/opportunities"))
		negotiationHandler.RegisterRoutes(api.Group("/negotiations"))
		executionHandler.RegisterRoutes(api.Group("/executions"))
		pipeline.NewHandler(buildPipeline, logger).RegisterRoutes(api.Group("/pipeline"))
	}

	// Live pipeline events
	router.GET("/ws/events", eventManager.HandleConnection)

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger() *zap.Logger {
	if os.Getenv("APP_ENV") == "production" {
		logger, _ := zap.NewProduction()
		return logger
	}
	logger, _ := zap.NewDevelopment()
	return logger
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.json"
}

func newAuditSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) audit.Sink {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Warn("Audit store unreachable, audit logging disabled", zap.Error(err))
		return audit.NoopSink{}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		logger.Warn(fmt.Sprintf("Audit store ping failed (%s), audit logging disabled", cfg.Mongo.URI), zap.Error(err))
		return audit.NoopSink{}
	}

	collection := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
	return audit.NewMongoSink(collection, logger)
}
