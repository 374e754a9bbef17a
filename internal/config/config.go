package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default third-party endpoints. Overridable via environment so tests and
// mirrors can point elsewhere.
const (
	defaultEmberBaseURL = "https://api.ember-energy.org"
	defaultIMFDataURL   = "https://hub.arcgis.com/api/v3/datasets/0bfab7fb7e0e4050b82bba40cd7a1bd5_0/downloads/data?format=csv&spatialRefId=4326&where=1%3D1"
	defaultNaturalEarth = "https://naciscdn.org/naturalearth/110m/cultural/ne_110m_admin_0_countries.zip"
	defaultISOCodesURL  = "https://www.iban.com/country-codes"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Ember API.
	EmberAPIKey  string
	EmberBaseURL string
	EmberTimeout time.Duration
	CacheTTL     time.Duration

	// File download sources.
	IMFDataURL      string
	NaturalEarthURL string
	ISOCodesURL     string
	DownloadTimeout time.Duration

	// Local layout.
	DataDir string

	// Daemon settings.
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RefreshInterval time.Duration

	// Optional Kafka publishing.
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is merged in first, matching
// how the upstream analysis project configures its API key.
func Load() (*Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	emberTimeout, err := envDuration("EMBER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := envDurationNonNeg("CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	downloadTimeout, err := envDuration("DOWNLOAD_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	refreshInterval, err := envDuration("REFRESH_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	kafkaEnabled, err := envBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		EmberAPIKey:  os.Getenv("EMBER_API_KEY"),
		EmberBaseURL: strings.TrimRight(envOrDefault("EMBER_BASE_URL", defaultEmberBaseURL), "/"),
		EmberTimeout: emberTimeout,
		CacheTTL:     cacheTTL,

		IMFDataURL:      envOrDefault("IMF_DATA_URL", defaultIMFDataURL),
		NaturalEarthURL: envOrDefault("NATURAL_EARTH_URL", defaultNaturalEarth),
		ISOCodesURL:     envOrDefault("ISO_CODES_URL", defaultISOCodesURL),
		DownloadTimeout: downloadTimeout,

		DataDir: envOrDefault("DATA_DIR", "data"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RefreshInterval: refreshInterval,

		KafkaBrokers:   splitBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "energy-records"),
		KafkaEnabled:   kafkaEnabled,
	}

	if cfg.EmberBaseURL == "" {
		return nil, errors.New("EMBER_BASE_URL is required")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_SINK_TOPIC is empty")
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

// envDurationNonNeg accepts zero, for settings where zero means disabled
// (CACHE_TTL=0 keeps cache entries forever).
func envDurationNonNeg(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func envBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func splitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
