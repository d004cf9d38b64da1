package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-gateway/cache"
	"storefront-gateway/common/logger"
	"storefront-gateway/common/middleware"
	"storefront-gateway/controllers"
	"storefront-gateway/database"
	"storefront-gateway/events"
	awspkg "storefront-gateway/pkg/aws"
	"storefront-gateway/repository"
	"storefront-gateway/routes"
	"storefront-gateway/services"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "storefront-gateway"

func main() {
	logger.Initialize(getEnv("APP_ENV", "development"))
	log := logger.Log
	defer log.Sync() //nolint:errcheck

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// AWS clients are only built when a feature needs them
	var awsCfg sdkaws.Config
	awsReady := false
	if cfg.CloudWatchEnabled || cfg.EventsSink == events.SinkSNS || cfg.IngestQueueURL != "" {
		if awsCfg, err = awspkg.LoadAWSConfig(context.Background()); err != nil {
			log.Warn("AWS config unavailable, AWS features disabled", zap.Error(err))
		} else {
			awsReady = true
		}
	}

	var metricsClient *awspkg.MetricsClient
	if awsReady && cfg.CloudWatchEnabled {
		cwLogs, err := awspkg.NewCloudWatchLogsClient(context.Background(), awsCfg, true, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			log.Warn("CloudWatch logs client init failed (non-fatal)", zap.Error(err))
		} else {
			logger.InitializeWithWriter(cfg.Env, cwLogs)
			log = logger.Log
		}
		metricsClient = awspkg.NewMetricsClient(awsCfg, true, cfg.CloudWatchNamespace)
	}

	// A failed ping is not fatal; requests fail individually until the
	// server is reachable.
	mongoClient, db, err := database.ConnectMongo(context.Background(), cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Error("MongoDB unavailable at startup", zap.Error(err))
	}

	var productCache services.ListingCache
	redisClient, err := database.NewRedisClient(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Warn("Redis unavailable, product cache disabled", zap.Error(err))
	} else if redisClient != nil {
		productCache = cache.NewProductCache(redisClient, cfg.ProductCacheTTL)
	}

	publisher := buildPublisher(cfg, awsCfg, awsReady, log)

	repo := repository.NewMongoDocumentRepository(db)
	documentService := services.NewDocumentService(repo, productCache, publisher, metricsClient, cfg.UpsertMode)
	documentController := controllers.NewDocumentController(documentService, func(ctx context.Context) error {
		return database.Ping(ctx, mongoClient)
	})

	r := routes.NewRouter(documentController, routes.Options{
		ServiceName:    serviceName,
		AllowedOrigins: middleware.ParseOrigins(cfg.AllowedOrigins),
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        metricsClient,
		Logger:         log,
	})

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if cfg.IngestQueueURL != "" && awsReady {
		consumer := services.NewIngestConsumer(awspkg.NewSQSConsumer(awsCfg, cfg.IngestQueueURL, log), documentService, log)
		go func() {
			defer close(workerDone)
			if err := consumer.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Ingest worker stopped", zap.Error(err))
			}
		}()
	} else {
		close(workerDone)
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		log.Fatal("Failed to load TLS key pair",
			zap.Error(err),
			zap.String("cert", cfg.TLSCertFile),
			zap.String("key", cfg.TLSKeyFile),
		)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		TLSConfig:         &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if err := srv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Gateway started",
		zap.String("addr", cfg.Addr()),
		zap.String("upsert_mode", cfg.UpsertMode),
		zap.String("events_sink", cfg.EventsSink),
	)
	<-quit
	log.Info("Shutting down gateway...")

	stopWorker()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	<-workerDone

	if err := publisher.Close(); err != nil {
		log.Warn("Failed to close event publisher", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := database.Close(mongoClient); err != nil {
		log.Warn("MongoDB disconnect failed", zap.Error(err))
	}
	log.Info("Server exited cleanly")
}

func buildPublisher(cfg *Config, awsCfg sdkaws.Config, awsReady bool, log *zap.Logger) events.Publisher {
	var sink events.Publisher
	switch cfg.EventsSink {
	case events.SinkSNS:
		if !awsReady {
			log.Warn("SNS event sink requested without AWS config, events disabled")
			return events.NoopPublisher{}
		}
		sink = events.NewSNSPublisher(awspkg.NewSNSClient(awsCfg), cfg.EventsSNSTopicARN)
	case events.SinkKafka:
		sink = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return events.NoopPublisher{}
	}
	return events.NewAsyncPublisher(sink, 5*time.Second, log)
}
