package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shopline-platform/reconciliation-service/pkg/kafka"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
	"github.com/shopline-platform/reconciliation-service/pkg/metrics"
	"github.com/shopline-platform/reconciliation-service/pkg/middleware"
	"github.com/shopline-platform/reconciliation-service/pkg/mongodb"
	"github.com/shopline-platform/reconciliation-service/pkg/outbox"

	"github.com/shopline-platform/reconciliation-service/internal/api/handlers"
	"github.com/shopline-platform/reconciliation-service/internal/application"
	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/internal/infrastructure/adapters"
	mongoRepo "github.com/shopline-platform/reconciliation-service/internal/infrastructure/mongodb"
	"github.com/shopline-platform/reconciliation-service/internal/resolver"
)

const serviceName = "reconciliation-service"

type mongoClient interface {
	Database() *mongo.Database
	Close(context.Context) error
	HealthCheck(context.Context) error
}

type outboxPublisher interface {
	Start(context.Context) error
	Stop() error
}

type server interface {
	ListenAndServe() error
	Shutdown(context.Context) error
}

var (
	newMongoClient func(context.Context, *mongodb.Config) (mongoClient, error) = func(ctx context.Context, config *mongodb.Config) (mongoClient, error) {
		return mongodb.NewClient(ctx, config)
	}
	newKafkaProducer   func(*kafka.Config) *kafka.Producer = kafka.NewProducer
	newOutboxPublisher func(outbox.Repository, *kafka.Producer, *logging.Logger, *metrics.Metrics, *outbox.PublisherConfig) outboxPublisher = func(repo outbox.Repository, producer *kafka.Producer, logger *logging.Logger, m *metrics.Metrics, config *outbox.PublisherConfig) outboxPublisher {
		return outbox.NewPublisher(repo, producer, logger, m, config)
	}
	newItemRepository func(*mongo.Database) domain.ItemRepository = func(db *mongo.Database) domain.ItemRepository {
		return mongoRepo.NewItemRepository(db)
	}
	newSaleRecordRepository func(*mongo.Database) domain.SaleRecordRepository = func(db *mongo.Database) domain.SaleRecordRepository {
		return mongoRepo.NewSaleRecordRepository(db)
	}
	newOutboxRepository func(*mongo.Database) outbox.Repository = func(db *mongo.Database) outbox.Repository {
		return mongoRepo.NewOutboxRepository(db)
	}
	newRouter func() *gin.Engine = func() *gin.Engine {
		return gin.New()
	}
	setupMiddleware func(*gin.Engine, *middleware.Config) = middleware.Setup
	newServer       func(addr string, handler http.Handler) server = func(addr string, handler http.Handler) server {
		return &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
	}
)

func main() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	if err := run(context.Background(), quit); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, quit <-chan os.Signal) error {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting reconciliation-service API")

	config := loadConfig()

	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)

	client, err := newMongoClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		return err
	}
	defer client.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	itemRepo := newItemRepository(client.Database())
	saleRepo := newSaleRecordRepository(client.Database())
	outboxRepo := newOutboxRepository(client.Database())

	kafkaProducer := newKafkaProducer(config.Kafka)
	defer kafkaProducer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	publisher := newOutboxPublisher(outboxRepo, kafkaProducer, logger, m, outbox.DefaultPublisherConfig())
	if err := publisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
	} else {
		defer publisher.Stop()
		logger.Info("Outbox publisher started")
	}

	adapterFactory := domain.NewAdapterFactory()
	adapterFactory.Register(adapters.NewPOSAdapter(config.POS, m))
	adapterFactory.Register(adapters.NewMarketplaceAdapter(config.Marketplace, m))
	logger.Info("Channel adapters registered", "adapters", adapterFactory.RegisteredChannels())

	itemResolver := resolver.New(itemRepo, config.SellerScopes, logger)

	ledgerService := application.NewLedgerService(itemRepo, logger, m)
	orchestrator := application.NewRemovalOrchestrator(itemRepo, adapterFactory, logger, m)
	pipeline := application.NewSalePipeline(itemResolver, ledgerService, orchestrator, logger, m)
	inventoryService := application.NewInventoryService(itemRepo, saleRepo, adapterFactory, logger)
	reconcileService := application.NewReconcileService(adapterFactory, pipeline, logger, m)

	itemHandler := handlers.NewItemHandler(inventoryService, ledgerService, orchestrator, logger)
	webhookHandler := handlers.NewWebhookHandler(pipeline, config.POSWebhookSignatureKey, logger, m)
	reconciliationHandler := handlers.NewReconciliationHandler(reconcileService, inventoryService, logger)

	router := newRouter()

	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	setupMiddleware(router, middlewareConfig)
	router.Use(middleware.MetricsMiddleware(m))
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return client.HealthCheck(ctx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	api := router.Group("/api/v1")
	itemHandler.RegisterRoutes(api)
	webhookHandler.RegisterRoutes(api)
	reconciliationHandler.RegisterRoutes(api)

	srv := newServer(config.ServerAddr, router)

	go func() {
		logger.Info("Server started", "addr", config.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()

	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
	return nil
}

// Config holds application configuration
type Config struct {
	ServerAddr             string
	MongoDB                *mongodb.Config
	Kafka                  *kafka.Config
	POS                    adapters.POSConfig
	Marketplace            adapters.MarketplaceConfig
	POSWebhookSignatureKey string
	SellerScopes           resolver.SellerScopes
}

func loadConfig() *Config {
	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	kafkaConfig.ClientID = serviceName

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8021"),
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "inventory_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Kafka: kafkaConfig,
		POS: adapters.POSConfig{
			BaseURL:     getEnv("POS_BASE_URL", "https://connect.squareup.com"),
			AccessToken: os.Getenv("POS_ACCESS_TOKEN"),
			LocationID:  os.Getenv("POS_LOCATION_ID"),
		},
		Marketplace: adapters.MarketplaceConfig{
			BaseURL:             getEnv("MARKET_BASE_URL", "https://api.ebay.com"),
			AuthURL:             getEnv("MARKET_AUTH_URL", "https://api.ebay.com/identity/v1/oauth2/token"),
			ClientID:            os.Getenv("MARKET_CLIENT_ID"),
			ClientSecret:        os.Getenv("MARKET_CLIENT_SECRET"),
			RefreshToken:        os.Getenv("MARKET_REFRESH_TOKEN"),
			MarketplaceID:       getEnv("MARKET_MARKETPLACE_ID", "EBAY_DE"),
			MerchantLocationKey: getEnv("MARKET_LOCATION_KEY", "shop-main"),
			FulfillmentPolicyID: os.Getenv("MARKET_FULFILLMENT_POLICY_ID"),
			PaymentPolicyID:     os.Getenv("MARKET_PAYMENT_POLICY_ID"),
			ReturnPolicyID:      os.Getenv("MARKET_RETURN_POLICY_ID"),
		},
		POSWebhookSignatureKey: os.Getenv("POS_WEBHOOK_SIGNATURE_KEY"),
		SellerScopes:           loadSellerScopes(os.Getenv("SELLER_SCOPES")),
	}
}

// loadSellerScopes parses the SELLER_SCOPES env var, a JSON object mapping
// seller ids to the categories they may carry. Sellers absent from the map
// are unrestricted.
func loadSellerScopes(raw string) resolver.SellerScopes {
	scopes := resolver.SellerScopes{}
	if raw == "" {
		return scopes
	}
	if err := json.Unmarshal([]byte(raw), &scopes); err != nil {
		return resolver.SellerScopes{}
	}
	return scopes
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
