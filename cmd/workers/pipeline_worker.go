package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/ai"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/config"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/events"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/execution"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/negotiation"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/opportunity"
	"marketpilot/opportunity-portal/opportunity-portal-backend/internal/pipeline"
	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/audit"
	"marketpilot/opportunity-portal/opportunity-portal-backend/pkg/storage"
)

// The pipeline worker runs the full detect-score-negotiate-execute cycle
// on a cron schedule. Each run reloads the source catalog so batches
// consumed by the previous cycle reappear only if the file changed.
func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	gormDB, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		logger.Fatal("Failed to open gorm connection", zap.Error(err))
	}

	auditSink := newAuditSink(ctx, cfg, logger)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	usage := ai.NewUsageTracker(rdb, "ai_usage", cfg.AI.DailyLimit, 24*time.Hour)

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

	var s3Client storage.S3Client
	if cfg.Storage.UseMock {
		s3Client = storage.NewMockS3Client()
	} else {
		s3Client, err = storage.NewAWSS3Client(ctx)
		if err != nil {
			logger.Fatal("Failed to initialize S3 client", zap.Error(err))
		}
	}

	eventManager := events.NewManager(logger)
	defer eventManager.Close()

	opportunityService := opportunity.NewService(opportunity.NewPostgresRepository(db), auditSink, logger)
	negotiationService := negotiation.NewService(
		negotiation.NewGormRepository(gormDB),
		negotiation.NewStateMachine(textGen, logger),
		opportunityService, auditSink, logger)
	executionService := execution.NewService(
		execution.NewPostgresRepository(db),
		execution.NewSimulator(nil, logger),
		s3Client, cfg.Storage.Bucket, auditSink, logger)

	assessor := ai.NewAnalyzer(textGen, logger)
	buyers := loadBuyerBook(logger)

	pipelineConfig := pipeline.Config{
		Categories:     cfg.Pipeline.Categories,
		MaxConcurrent:  cfg.Pipeline.MaxConcurrent,
		ExecuteOnClose: cfg.Pipeline.ExecuteOnClose,
	}

	runCycle := func() {
		source, err := pipeline.LoadSourceFile(cfg.Pipeline.SourceCatalogPath)
		if err != nil {
			logger.Error("Failed to load source catalog, skipping cycle", zap.Error(err))
			return
		}

		orchestrator := pipeline.NewOrchestrator(
			source, assessor, opportunityService, buyers,
			negotiationService, executionService, eventManager,
			auditSink, logger, pipelineConfig)

		cycleCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()

		report, err := orchestrator.RunCycle(cycleCtx)
		if err != nil {
			logger.Error("Pipeline cycle failed", zap.Error(err))
			return
		}
		logger.Info("Pipeline cycle complete",
			zap.Int("detected", report.Detected),
			zap.Int("rejected", report.Rejected),
			zap.Int("approved", report.Approved),
			zap.Int("negotiated", report.Negotiated),
			zap.Int("executed", report.Executed),
			zap.Int("failures", report.Failures))
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Pipeline.CronSchedule, runCycle); err != nil {
		logger.Fatal("Invalid cron schedule", zap.String("schedule", cfg.Pipeline.CronSchedule), zap.Error(err))
	}
	scheduler.Start()
	logger.Info("Pipeline worker started", zap.String("schedule", cfg.Pipeline.CronSchedule))

	// Run one cycle immediately instead of waiting for the first tick
	runCycle()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down pipeline worker...")
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("Timed out waiting for running cycle")
	}
	logger.Info("Pipeline worker exiting")
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config.json"
}

// loadBuyerBook reads the buyer directory from PIPELINE_BUYERS, a JSON
// file mapping target market to buyer profiles. Missing file means an
// empty book; approved opportunities then stop before negotiation.
func loadBuyerBook(logger *zap.Logger) *pipeline.BuyerBook {
	book := pipeline.NewBuyerBook()

	path := os.Getenv("PIPELINE_BUYERS")
	if path == "" {
		return book
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read buyer directory", zap.String("path", path), zap.Error(err))
		return book
	}

	var byMarket map[string][]negotiation.BuyerProfile
	if err := json.Unmarshal(data, &byMarket); err != nil {
		logger.Warn("Failed to parse buyer directory", zap.String("path", path), zap.Error(err))
		return book
	}

	for market, profiles := range byMarket {
		for _, profile := range profiles {
			book.Add(market, profile)
		}
	}
	return book
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
		logger.Warn("Audit store ping failed, audit logging disabled", zap.Error(err))
		return audit.NoopSink{}
	}

	collection := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
	return audit.NewMongoSink(collection, logger)
}
