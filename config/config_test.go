package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
jwtSecret: file-secret
sessionTTL: 24h
storeDriver: mongo
mongoURI: mongodb://localhost:27017
authRateLimitPerMinute: 5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.JWTSecret != "file-secret" || cfg.StoreDriver != "mongo" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("session ttl: got %v want 24h", cfg.SessionTTL)
	}
	if cfg.MongoDatabase != "studynotes" {
		t.Errorf("default mongo database not kept: %q", cfg.MongoDatabase)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "jwtSecret: file-secret\nstoreDriver: memory\n")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PORT", "9000")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "env-secret" || cfg.Port != "9000" || !cfg.CookieSecure {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.SessionTTL != time.Hour || cfg.RedisAddr != "localhost:6379" {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	// the package directory has no config.yaml
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DSN", "user:pass@tcp(localhost:3306)/notes")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreDriver != "mysql" || cfg.Port != "3002" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	// Test case 1: explicit path that does not exist
	t.Run("Missing explicit file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing explicit config file")
		}
	})

	// Test case 2: invalid env value
	t.Run("Bad duration", func(t *testing.T) {
		path := writeConfig(t, "jwtSecret: s\nstoreDriver: memory\n")
		t.Setenv("SESSION_TTL", "soon")
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "SESSION_TTL") {
			t.Errorf("expected SESSION_TTL error, got %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	base := Default()
	base.JWTSecret = "secret"
	base.StoreDriver = "memory"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.JWTSecret = " " }, "JWT_SECRET"},
		{"mysql without dsn", func(c *Config) { c.StoreDriver = "mysql" }, "DSN"},
		{"mongo without uri", func(c *Config) { c.StoreDriver = "mongo" }, "MONGO_URI"},
		{"unknown driver", func(c *Config) { c.StoreDriver = "sqlite" }, "unknown store driver"},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }, "ttl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v want error containing %q", err, tt.wantErr)
			}
		})
	}
}
