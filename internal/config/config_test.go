package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "dailyplan.db" || cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ProviderTimeout != 10*time.Second || cfg.RateLimit != 20 || cfg.TrialDays != 7 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Location() != time.UTC {
		t.Fatalf("location = %v", cfg.Location())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", " postgres://localhost/plan ")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TIMEZONE", "Europe/Moscow")
	t.Setenv("TRIAL_DAYS", "14")
	t.Setenv("DEBUG", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/plan" {
		t.Fatalf("database url = %q", cfg.DatabaseURL)
	}
	if cfg.ProviderTimeout != 3*time.Second || cfg.TrialDays != 14 || !cfg.Debug {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Fatalf("cors origins = %v, want %v", cfg.CORSOrigins, want)
	}
	if cfg.Location().String() != "Europe/Moscow" {
		t.Fatalf("location = %v", cfg.Location())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "listen_addr: \":9090\"\nreport_time: \"20:30\"\ntelegram_token: abc\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TELEGRAM_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.ReportTime != "20:30" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.TelegramToken != "from-env" {
		t.Fatalf("env should win over file, got %q", cfg.TelegramToken)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"CLEANUP_TIME", "25:99", "CLEANUP_TIME"},
		{"REPORT_TIME", "soon", "REPORT_TIME"},
		{"TIMEZONE", "Mars/Olympus", "TIMEZONE"},
		{"RATE_LIMIT", "0", "RATE_LIMIT"},
		{"TRIAL_DAYS", "-1", "TRIAL_DAYS"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %s error, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRequireServe(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.RequireServe(); err == nil {
		t.Fatal("expected missing auth error")
	}
	cfg.AuthTestSecret = "secret"
	if err := cfg.RequireServe(); err == nil || !strings.Contains(err.Error(), "STRIPE_SECRET_KEY") {
		t.Fatalf("expected stripe key error, got %v", err)
	}
	cfg.StripeSecretKey = "sk_test"
	cfg.StripeWebhookSecret = "whsec"
	if err := cfg.RequireServe(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
