package config

import (
	"errors"
	"fmt"
	"os"

	"stayflow/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Sheets     SheetsConfig     `yaml:"sheets"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Exports    ExportConfig     `yaml:"exports"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	HTTP       APIHTTPConfig      `yaml:"http"`
	Auth       APIAuthConfig      `yaml:"auth"`
	RateLimit  APIRateLimitConfig `yaml:"rate_limit"`
	CronSecret string             `yaml:"cron_secret"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	ExpiryMinutes         int     `yaml:"expiry_minutes"`
	TokenTTLDays          int     `yaml:"token_ttl_days"`
	TokenHashKey          string  `yaml:"token_hash_key"`
	PriceTolerancePercent float64 `yaml:"price_tolerance_percent"`
	CheckoutQuota         int     `yaml:"checkout_quota"`
	CheckoutWindowSeconds int     `yaml:"checkout_window_seconds"`
}

type PaymentsConfig struct {
	Provider      string `yaml:"provider"`
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	Currency      string `yaml:"currency"`
}

type SheetsConfig struct {
	Enabled               bool   `yaml:"enabled"`
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
	SheetName             string `yaml:"sheet_name"`
}

type TelegramConfig struct {
	Enabled      bool    `yaml:"enabled"`
	BotToken     string  `yaml:"bot_token"`
	ManagerChats []int64 `yaml:"manager_chats"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type WorkerConfig struct {
	ReconcileIntervalSeconds int `yaml:"reconcile_interval_seconds"`
	ReconcileAfterMinutes    int `yaml:"reconcile_after_minutes"`
	ReconcileBatchSize       int `yaml:"reconcile_batch_size"`
}

func Load(configPath string) (*Config, error) {
	// .env подхватывается, если лежит рядом
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.API.CronSecret == "" {
		return errors.New("api cron_secret is required")
	}
	if c.Booking.TokenHashKey == "" {
		return errors.New("booking token_hash_key is required")
	}
	if c.Payments.WebhookSecret == "" {
		return errors.New("payments webhook_secret is required")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required when telegram is enabled")
	}
	if c.Sheets.Enabled && c.Sheets.BookingsSpreadsheetID == "" {
		return errors.New("sheets bookings_spreadsheet_id is required when sheets is enabled")
	}
	return nil
}

// ValidateRates checks the authoritative rates file for duplicates and zero ids.
func ValidateRates(rates []models.RoomRate) error {
	roomIDs := make(map[int64]bool)
	for _, rate := range rates {
		if rate.RoomID == 0 {
			return fmt.Errorf("room '%s' has invalid ID 0", rate.RoomName)
		}
		if roomIDs[rate.RoomID] {
			return fmt.Errorf("duplicate room ID found: %d", rate.RoomID)
		}
		if rate.NightlyRate < 0 {
			return fmt.Errorf("room %d has negative nightly rate", rate.RoomID)
		}
		roomIDs[rate.RoomID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Booking.ExpiryMinutes == 0 {
		c.Booking.ExpiryMinutes = models.DefaultBookingTTLMinutes
	}
	if c.Booking.TokenTTLDays == 0 {
		c.Booking.TokenTTLDays = models.DefaultTokenTTLDays
	}
	if c.Booking.PriceTolerancePercent == 0 {
		c.Booking.PriceTolerancePercent = models.DefaultPriceTolerancePercent
	}
	if c.Booking.CheckoutQuota == 0 {
		c.Booking.CheckoutQuota = models.DefaultCheckoutQuota
	}
	if c.Booking.CheckoutWindowSeconds == 0 {
		c.Booking.CheckoutWindowSeconds = models.DefaultCheckoutWindow
	}

	if c.Payments.Currency == "" {
		c.Payments.Currency = "USD"
	}
	if c.Sheets.SheetName == "" {
		c.Sheets.SheetName = "Bookings"
	}

	if c.Worker.ReconcileIntervalSeconds == 0 {
		c.Worker.ReconcileIntervalSeconds = 60
	}
	if c.Worker.ReconcileAfterMinutes == 0 {
		c.Worker.ReconcileAfterMinutes = models.DefaultReconcileAfterMinutes
	}
	if c.Worker.ReconcileBatchSize == 0 {
		c.Worker.ReconcileBatchSize = 20
	}
}
