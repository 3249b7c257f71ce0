package config

import (
	"os"
	"path/filepath"
	"testing"

	"stayflow/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
database:
  path: "test.db"
api:
  cron_secret: "cron-secret"
booking:
  token_hash_key: "hash-key"
payments:
  webhook_secret: "whsec"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "test.db" {
		t.Errorf("expected database path test.db, got %s", cfg.Database.Path)
	}
	if cfg.API.CronSecret != "cron-secret" {
		t.Errorf("expected cron secret cron-secret, got %s", cfg.API.CronSecret)
	}
}

func TestLoadConfig_ExpandsEnv(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_WEBHOOK_SECRET", "whsec_from_env")

	yamlContent := `
database:
  path: "test.db"
api:
  cron_secret: "cron-secret"
booking:
  token_hash_key: "hash-key"
payments:
  webhook_secret: "${TEST_WEBHOOK_SECRET}"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Payments.WebhookSecret != "whsec_from_env" {
		t.Errorf("expected webhook secret from env, got %s", cfg.Payments.WebhookSecret)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		return Config{
			Database: DatabaseConfig{Path: "test.db"},
			API:      APIConfig{CronSecret: "secret"},
			Booking:  BookingConfig{TokenHashKey: "key"},
			Payments: PaymentsConfig{WebhookSecret: "whsec"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"missing cron secret", func(c *Config) { c.API.CronSecret = "" }, true},
		{"missing token hash key", func(c *Config) { c.Booking.TokenHashKey = "" }, true},
		{"missing webhook secret", func(c *Config) { c.Payments.WebhookSecret = "" }, true},
		{"telegram enabled without token", func(c *Config) { c.Telegram.Enabled = true }, true},
		{"telegram enabled with token", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.BotToken = "token"
		}, false},
		{"sheets enabled without spreadsheet", func(c *Config) { c.Sheets.Enabled = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header x-api-key, got %s", cfg.API.Auth.HeaderAPIKey)
	}
	if cfg.Booking.ExpiryMinutes != models.DefaultBookingTTLMinutes {
		t.Errorf("expected default expiry %d, got %d", models.DefaultBookingTTLMinutes, cfg.Booking.ExpiryMinutes)
	}
	if cfg.Booking.TokenTTLDays != models.DefaultTokenTTLDays {
		t.Errorf("expected default token ttl %d, got %d", models.DefaultTokenTTLDays, cfg.Booking.TokenTTLDays)
	}
	if cfg.Booking.PriceTolerancePercent != models.DefaultPriceTolerancePercent {
		t.Errorf("expected default tolerance %v, got %v", models.DefaultPriceTolerancePercent, cfg.Booking.PriceTolerancePercent)
	}
	if cfg.Payments.Currency != "USD" {
		t.Errorf("expected default currency USD, got %s", cfg.Payments.Currency)
	}
	if cfg.Worker.ReconcileAfterMinutes != models.DefaultReconcileAfterMinutes {
		t.Errorf("expected default reconcile after %d, got %d", models.DefaultReconcileAfterMinutes, cfg.Worker.ReconcileAfterMinutes)
	}
}

func TestValidateRates(t *testing.T) {
	tests := []struct {
		name    string
		rates   []models.RoomRate
		wantErr bool
	}{
		{
			name: "valid rates",
			rates: []models.RoomRate{
				{RoomID: 1, RoomName: "Standard Double", NightlyRate: 12500},
				{RoomID: 2, RoomName: "Deluxe King", NightlyRate: 18900},
			},
			wantErr: false,
		},
		{
			name: "duplicate room id",
			rates: []models.RoomRate{
				{RoomID: 1, RoomName: "Standard Double", NightlyRate: 12500},
				{RoomID: 1, RoomName: "Deluxe King", NightlyRate: 18900},
			},
			wantErr: true,
		},
		{
			name: "room id 0",
			rates: []models.RoomRate{
				{RoomID: 0, RoomName: "Standard Double", NightlyRate: 12500},
			},
			wantErr: true,
		},
		{
			name: "negative nightly rate",
			rates: []models.RoomRate{
				{RoomID: 1, RoomName: "Standard Double", NightlyRate: -1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRates(tt.rates)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRates() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
