package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aniladanir/webhook-inbox/internal/cache"
	redisCache "github.com/aniladanir/webhook-inbox/internal/cache/redis"
	"github.com/aniladanir/webhook-inbox/internal/domain"
	httpHandler "github.com/aniladanir/webhook-inbox/internal/handler/http"
	"github.com/aniladanir/webhook-inbox/internal/metrics"
	"github.com/aniladanir/webhook-inbox/internal/persistant/postgresql"
	"github.com/aniladanir/webhook-inbox/internal/persistant/sqlite"
	messageRepo "github.com/aniladanir/webhook-inbox/internal/repository/message"
	"github.com/aniladanir/webhook-inbox/internal/service"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var (
	configFile = flag.String("config", "config.json", "config file path")
)

func main() {
	// create root context
	appCtx, appCtxCancel := context.WithCancel(context.Background())
	defer appCtxCancel()

	// listen for terminate signal
	notifyCtx, stop := signal.NotifyContext(appCtx, syscall.SIGTERM)
	defer stop()

	// parse flags
	flag.Parse()

	// load optional .env before reading config
	_ = godotenv.Load()

	// parse config
	config, err := ReadConfigJson(*configFile)
	if err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	// initialize external dependencies
	db, closeDb, statsCache, err := initExternalDependencies(notifyCtx, config)
	if err != nil {
		log.Fatalf("failed to initialize external dependencies: %v", err)
	}

	// setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// init metrics collector
	collector := metrics.NewCollector()

	// init message repository
	msgRepo := messageRepo.NewMessageRepository(db)

	// init inbox service
	inbox, err := service.NewInboxService(
		msgRepo,
		statsCache,
		logger.With(slog.String("component", "inbox")),
		config.WebhookSecret,
		config.StatsCacheTTL,
	)
	if err != nil {
		log.Fatalf("failed to initiate inbox service: %v", err)
	}

	// init http handler
	httpHandler := httpHandler.NewHttpHandler(
		fmt.Sprintf(":%d", config.HttpPort),
		inbox,
		collector,
		logger.With(slog.String("component", "http")),
	)

	wg := sync.WaitGroup{}
	// run http handler
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpHandler.Run(); err != nil {
			logger.Error("http server encountered with an error and closed", "error", err.Error())
		}
		// cancel app context if http handler fails
		appCtxCancel()
	}()

	// graceful shutdown
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-notifyCtx.Done()
		logger.Info("application shutting down...")

		shutDownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		httpHandler.Shutdown(shutDownCtx)
		closeDb()
	}()

	wg.Wait()
	os.Exit(0)
}

func initExternalDependencies(ctx context.Context, config *Config) (db *gorm.DB, closeDb func() error, statsCache cache.Cache, err error) {
	models := []any{&domain.Message{}}

	// initialize database
	if strings.HasPrefix(config.DatabaseURL, "postgres://") || strings.HasPrefix(config.DatabaseURL, "postgresql://") {
		db, err = postgresql.Initialize(config.DatabaseURL, models)
		closeDb = func() error { return postgresql.Close(db) }
	} else {
		db, err = sqlite.Initialize(config.DatabaseURL, models)
		closeDb = func() error { return sqlite.Close(db) }
	}
	if err != nil {
		return
	}

	// initialize cache when an address is configured; the service runs
	// without one
	if config.RedisAddr != "" {
		statsCache, err = redisCache.NewRedisCache(ctx, config.RedisAddr)
	}

	return
}
