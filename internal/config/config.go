package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every runtime setting, sourced from the environment.
type Config struct {
	AppEnv           string
	HTTPListenAddr   string
	PublicBasePath   string
	LogLevel         string
	MetricsNamespace string

	// Storage
	StorageBackend string // "json" or "sqlite"
	DataDir        string
	DatabasePath   string

	// Redis cache (optional)
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	RedisTLS             bool
	RecentAlertsCacheTTL time.Duration

	// Notification sender
	EmailAddress   string
	EmailPassword  string
	CommunityEmail string
	SMTPHost       string
	SMTPPort       int

	// Alerts
	DefaultLocation string

	// Token ledger
	TokenPrice int

	// Classifier
	ModelPath       string
	ONNXRuntimeLib  string
	ModelInputName  string
	ModelOutputName string
}

// Load reads configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:           getenv("APP_ENV", "development"),
		HTTPListenAddr:   getenv("HTTP_LISTEN_ADDR", ":8000"),
		PublicBasePath:   getenv("PUBLIC_BASE_PATH", ""),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		MetricsNamespace: getenv("METRICS_NAMESPACE", "gaunroots"),

		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", "json")),
		DataDir:        getenv("DATA_DIR", "data"),
		DatabasePath:   getenv("DATABASE_PATH", "data/gaunroots.db"),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		EmailAddress:   getenv("EMAIL_ADDRESS", ""),
		EmailPassword:  getenv("EMAIL_PASSWORD", ""),
		CommunityEmail: getenv("COMMUNITY_EMAIL", ""),
		SMTPHost:       getenv("SMTP_HOST", "smtp.gmail.com"),

		DefaultLocation: getenv("DEFAULT_LOCATION", "Kathmandu Valley"),

		ModelPath:       getenv("MODEL_PATH", "plant.onnx"),
		ONNXRuntimeLib:  getenv("ONNX_RUNTIME_LIB", ""),
		ModelInputName:  getenv("MODEL_INPUT_NAME", "input"),
		ModelOutputName: getenv("MODEL_OUTPUT_NAME", "output"),
	}

	var err error
	if cfg.RedisDB, err = getint("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.RedisTLS, err = getbool("REDIS_TLS", false); err != nil {
		return Config{}, err
	}
	if cfg.RecentAlertsCacheTTL, err = getduration("RECENT_ALERTS_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SMTPPort, err = getint("SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	if cfg.TokenPrice, err = getint("TOKEN_PRICE", 10); err != nil {
		return Config{}, err
	}

	switch cfg.StorageBackend {
	case "json", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported STORAGE_BACKEND %q (expected json or sqlite)", cfg.StorageBackend)
	}
	if cfg.TokenPrice < 1 {
		return Config{}, fmt.Errorf("TOKEN_PRICE must be positive, got %d", cfg.TokenPrice)
	}

	return cfg, nil
}

// MailEnabled reports whether the notification sender has credentials.
func (c Config) MailEnabled() bool {
	return c.EmailAddress != "" && c.EmailPassword != ""
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getbool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
