package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopline-platform/reconciliation-service/internal/application"
	"github.com/shopline-platform/reconciliation-service/internal/domain"
	"github.com/shopline-platform/reconciliation-service/internal/infrastructure/adapters"
	mongoRepo "github.com/shopline-platform/reconciliation-service/internal/infrastructure/mongodb"
	"github.com/shopline-platform/reconciliation-service/internal/resolver"
	"github.com/shopline-platform/reconciliation-service/pkg/logging"
	"github.com/shopline-platform/reconciliation-service/pkg/metrics"
	"github.com/shopline-platform/reconciliation-service/pkg/mongodb"
)

const serviceName = "reconciliation-job"

type options struct {
	channel     domain.ChannelName
	windowStart time.Time
	windowEnd   time.Time
}

// parseOptions reads the run window from flags. Either an explicit start
// and end or a lookback duration ending now.
func parseOptions(args []string, now time.Time) (*options, error) {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	channel := fs.String("channel", "", "channel to reconcile (pos or marketplace)")
	start := fs.String("window-start", "", "window start, RFC 3339")
	end := fs.String("window-end", "", "window end, RFC 3339")
	lookback := fs.Duration("lookback", 0, "reconcile the trailing window ending now, e.g. 24h")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &options{channel: domain.ChannelName(*channel)}
	if !opts.channel.IsValid() {
		return nil, fmt.Errorf("unknown channel %q", *channel)
	}

	switch {
	case *lookback > 0:
		if *start != "" || *end != "" {
			return nil, errors.New("lookback and an explicit window are mutually exclusive")
		}
		opts.windowEnd = now
		opts.windowStart = now.Add(-*lookback)
	case *start != "" && *end != "":
		var err error
		if opts.windowStart, err = time.Parse(time.RFC3339, *start); err != nil {
			return nil, fmt.Errorf("invalid window-start: %w", err)
		}
		if opts.windowEnd, err = time.Parse(time.RFC3339, *end); err != nil {
			return nil, fmt.Errorf("invalid window-end: %w", err)
		}
	default:
		return nil, errors.New("either lookback or both window-start and window-end are required")
	}

	if !opts.windowEnd.After(opts.windowStart) {
		return nil, errors.New("window end must be after window start")
	}
	return opts, nil
}

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	opts, err := parseOptions(args, time.Now().UTC())
	if err != nil {
		return err
	}

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	m := metrics.New(metrics.DefaultConfig(serviceName))

	client, err := mongodb.NewClient(ctx, &mongodb.Config{
		URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Database:       getEnv("MONGODB_DATABASE", "inventory_db"),
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    10,
		MinPoolSize:    1,
	})
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}
	defer client.Close(ctx)

	itemRepo := mongoRepo.NewItemRepository(client.Database())
	_ = mongoRepo.NewSaleRecordRepository(client.Database())

	adapterFactory := domain.NewAdapterFactory()
	adapterFactory.Register(adapters.NewPOSAdapter(adapters.POSConfig{
		BaseURL:     getEnv("POS_BASE_URL", "https://connect.squareup.com"),
		AccessToken: os.Getenv("POS_ACCESS_TOKEN"),
		LocationID:  os.Getenv("POS_LOCATION_ID"),
	}, m))
	adapterFactory.Register(adapters.NewMarketplaceAdapter(adapters.MarketplaceConfig{
		BaseURL:      getEnv("MARKET_BASE_URL", "https://api.ebay.com"),
		AuthURL:      getEnv("MARKET_AUTH_URL", "https://api.ebay.com/identity/v1/oauth2/token"),
		ClientID:     os.Getenv("MARKET_CLIENT_ID"),
		ClientSecret: os.Getenv("MARKET_CLIENT_SECRET"),
		RefreshToken: os.Getenv("MARKET_REFRESH_TOKEN"),
	}, m))

	itemResolver := resolver.New(itemRepo, loadSellerScopes(os.Getenv("SELLER_SCOPES")), logger)
	ledger := application.NewLedgerService(itemRepo, logger, m)
	orchestrator := application.NewRemovalOrchestrator(itemRepo, adapterFactory, logger, m)
	pipeline := application.NewSalePipeline(itemResolver, ledger, orchestrator, logger, m)
	reconcileService := application.NewReconcileService(adapterFactory, pipeline, logger, m)

	result, runErr := reconcileService.Reconcile(ctx, opts.channel, opts.windowStart, opts.windowEnd)
	if result != nil {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err == nil {
			fmt.Println(string(encoded))
		}
	}
	return runErr
}

func loadSellerScopes(raw string) resolver.SellerScopes {
	scopes := resolver.SellerScopes{}
	if raw == "" || json.Unmarshal([]byte(raw), &scopes) != nil {
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
