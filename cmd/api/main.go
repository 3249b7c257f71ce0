package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stayflow/internal/api"
	"stayflow/internal/audit"
	"stayflow/internal/auth"
	"stayflow/internal/booking"
	"stayflow/internal/config"
	"stayflow/internal/database"
	"stayflow/internal/domain"
	"stayflow/internal/events"
	"stayflow/internal/export"
	"stayflow/internal/logging"
	"stayflow/internal/metrics"
	"stayflow/internal/models"
	"stayflow/internal/notify"
	"stayflow/internal/payments"
	"stayflow/internal/pricing"
	"stayflow/internal/repository"
	"stayflow/internal/sheets"
	"stayflow/internal/sweeper"
	"stayflow/internal/token"
	"stayflow/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	rates, err := loadRates(&logger)
	if err != nil {
		return err
	}

	store, err := initDatabase(cfg, rates, &logger)
	if err != nil {
		return err
	}
	defer store.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	stateRepo := initStateRepository(redisClient, &logger)

	eventBus := events.NewEventBus()
	feed := events.NewFeed(eventBus)

	recorder := audit.New(store, &logger)
	bookings := booking.NewService(store, recorder, eventBus, &logger)
	tokens := token.New(store, cfg.Booking.TokenHashKey, cfg.Booking.TokenTTLDays, &logger)
	guard := auth.NewGuard(tokens, &logger)
	verifier := pricing.New(store, cfg.Booking.PriceTolerancePercent, &logger)

	provider := payments.NewHTTPProviderClient(cfg.Payments.BaseURL, cfg.Payments.APIKey, &logger)
	checkout := payments.NewAdapter(store, guard, verifier, bookings, provider, stateRepo, recorder, payments.Config{
		ProviderName:  cfg.Payments.Provider,
		Currency:      cfg.Payments.Currency,
		WebhookSecret: cfg.Payments.WebhookSecret,
		CheckoutQuota: cfg.Booking.CheckoutQuota,
		QuotaWindow:   time.Duration(cfg.Booking.CheckoutWindowSeconds) * time.Second,
	}, &logger)

	sweep := sweeper.New(store, bookings, cfg.Booking.ExpiryMinutes, &logger)
	reconciler := worker.NewReconciler(store, provider, checkout,
		cfg.Worker.ReconcileAfterMinutes, cfg.Worker.ReconcileBatchSize, &logger)

	if sheetWriter := initGoogleSheets(cfg, &logger); sheetWriter != nil {
		sheets.NewMirror(store, sheetWriter, &logger).Attach(eventBus)
	}
	initTelegram(cfg, eventBus, &logger)

	exporter := export.New(store, cfg.Exports.Path, &logger)

	httpServer := api.NewHTTPServer(cfg.API, bookings, checkout, sweep, tokens, guard, exporter, feed, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	go sweep.Run(ctx, time.Minute)
	go reconciler.Run(ctx, time.Duration(cfg.Worker.ReconcileIntervalSeconds)*time.Second)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(baseLogger, "api-main")

	return cfg, logger, closer, nil
}

func loadRates(logger *zerolog.Logger) ([]models.RoomRate, error) {
	ratesPath := os.Getenv("RATES_PATH")
	if ratesPath == "" {
		ratesPath = "configs/rates.yaml"
	}
	ratesData, err := os.ReadFile(ratesPath)
	if err != nil {
		logger.Error().Err(err).Str("rates_path", ratesPath).Msg("read rates")
		return nil, err
	}

	var ratesConfig struct {
		Rooms []models.RoomRate `yaml:"rooms"`
	}
	if err := yaml.Unmarshal(ratesData, &ratesConfig); err != nil {
		logger.Error().Err(err).Str("rates_path", ratesPath).Msg("parse rates")
		return nil, err
	}

	if err := config.ValidateRates(ratesConfig.Rooms); err != nil {
		return nil, fmt.Errorf("validate rates: %w", err)
	}

	return ratesConfig.Rooms, nil
}

func initDatabase(cfg *config.Config, rates []models.RoomRate, logger *zerolog.Logger) (*database.Store, error) {
	store, err := database.NewStore(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	store.SetRates(rates)
	return store, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initStateRepository(redisClient *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	memory := repository.NewMemoryStateRepository()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverStateRepository(repository.NewRedisStateRepository(redisClient), memory, logger)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) domain.SheetWriter {
	if !cfg.Sheets.Enabled || cfg.Sheets.CredentialsFile == "" || cfg.Sheets.BookingsSpreadsheetID == "" {
		return nil
	}

	sheetsService, err := sheets.New(cfg.Sheets.CredentialsFile, cfg.Sheets.BookingsSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func initTelegram(cfg *config.Config, eventBus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		return
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}

	notify.New(bot, cfg.Telegram.ManagerChats, logger).Attach(eventBus)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
