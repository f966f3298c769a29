package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_GRACE", "")
	t.Setenv("MAX_MESSAGE_SIZE", "")
	t.Setenv("DIGEST_CRON", "")
	t.Setenv("DIGEST_TZ", "")
	t.Setenv("INSTANCE_ID", "")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Env != "development" || !cfg.IsDevelopment() {
		t.Errorf("Env = %q", cfg.Env)
	}
	if cfg.AuthGrace != 10*time.Second {
		t.Errorf("AuthGrace = %v", cfg.AuthGrace)
	}
	if cfg.MaxMessageSize != 64*1024 {
		t.Errorf("MaxMessageSize = %d", cfg.MaxMessageSize)
	}
	if cfg.DigestCron != "0 9 * * *" {
		t.Errorf("DigestCron = %q", cfg.DigestCron)
	}
	if cfg.DigestTimezone != "UTC" {
		t.Errorf("DigestTimezone = %q", cfg.DigestTimezone)
	}
	if cfg.InstanceID == "" {
		t.Error("InstanceID should default to a generated id")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "staging")
	t.Setenv("INSTANCE_ID", "instance-7")
	t.Setenv("AUTH_GRACE", "30s")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("DIGEST_CRON", "30 8 * * *")
	t.Setenv("DIGEST_TZ", "Europe/Madrid")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.IsDevelopment() {
		t.Error("staging should not report development")
	}
	if cfg.InstanceID != "instance-7" {
		t.Errorf("InstanceID = %q", cfg.InstanceID)
	}
	if cfg.AuthGrace != 30*time.Second {
		t.Errorf("AuthGrace = %v", cfg.AuthGrace)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("MaxMessageSize = %d", cfg.MaxMessageSize)
	}
	if cfg.DigestCron != "30 8 * * *" {
		t.Errorf("DigestCron = %q", cfg.DigestCron)
	}
	if cfg.DigestTimezone != "Europe/Madrid" {
		t.Errorf("DigestTimezone = %q", cfg.DigestTimezone)
	}
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("AUTH_GRACE", "soon")
	t.Setenv("MAX_MESSAGE_SIZE", "lots")

	cfg := Load()

	if cfg.AuthGrace != 10*time.Second {
		t.Errorf("AuthGrace = %v, want default", cfg.AuthGrace)
	}
	if cfg.MaxMessageSize != 64*1024 {
		t.Errorf("MaxMessageSize = %d, want default", cfg.MaxMessageSize)
	}
}

func TestProductionRequiresSharedInfrastructure(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("REDIS_URL", "")
	t.Setenv("AMQP_URL", "")
	t.Setenv("DATABASE_URL", "")

	defer func() {
		if recover() == nil {
			t.Fatal("production without shared infrastructure should panic")
		}
	}()
	Load()
}
