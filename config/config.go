package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Port                   string        `yaml:"port"`
	LogLevel               string        `yaml:"logLevel"`
	JWTSecret              string        `yaml:"jwtSecret"`
	SessionTTL             time.Duration `yaml:"sessionTTL"`
	CookieSecure           bool          `yaml:"cookieSecure"`
	StoreDriver            string        `yaml:"storeDriver"`
	DSN                    string        `yaml:"dsn"`
	MongoURI               string        `yaml:"mongoURI"`
	MongoDatabase          string        `yaml:"mongoDatabase"`
	RedisAddr              string        `yaml:"redisAddr"`
	RedisPassword          string        `yaml:"redisPassword"`
	RedisDB                int           `yaml:"redisDB"`
	AuthRateLimitPerMinute int           `yaml:"authRateLimitPerMinute"`
	CORSOrigin             string        `yaml:"corsOrigin"`
}

func Default() Config {
	return Config{
		Port:                   "3002",
		LogLevel:               "info",
		SessionTTL:             7 * 24 * time.Hour,
		StoreDriver:            "mysql",
		MongoDatabase:          "studynotes",
		AuthRateLimitPerMinute: 10,
		CORSOrigin:             "*",
	}
}

// Load reads the optional YAML file at path (CONFIG_FILE or config.yaml when
// empty), then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("PORT", &cfg.Port)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("JWT_SECRET", &cfg.JWTSecret)
	setString("STORE_DRIVER", &cfg.StoreDriver)
	setString("DSN", &cfg.DSN)
	setString("MONGO_URI", &cfg.MongoURI)
	setString("MONGO_DATABASE", &cfg.MongoDatabase)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setString("CORS_ORIGIN", &cfg.CORSOrigin)

	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: COOKIE_SECURE: %w", err)
		}
		cfg.CookieSecure = b
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}
	if v := os.Getenv("AUTH_RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: AUTH_RATE_LIMIT_PER_MINUTE: %w", err)
		}
		cfg.AuthRateLimitPerMinute = n
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port is required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: session ttl must be positive")
	}
	if c.AuthRateLimitPerMinute <= 0 {
		return errors.New("config: auth rate limit must be positive")
	}
	switch c.StoreDriver {
	case "memory":
	case "mysql":
		if c.DSN == "" {
			return errors.New("config: DSN is required for the mysql store")
		}
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("config: MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}
	return nil
}
