package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/wage-level-map/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Static data sources.
	CountiesSource   string
	CountiesTimeout  time.Duration
	WageDataURL      string
	WageDataDir      string
	WageFetchTimeout time.Duration

	// Initial selection and input handling.
	DefaultOccupation string
	DefaultSalary     float64
	SalaryDebounce    time.Duration

	// Mapbox reverse geocoding for coordinate clicks.
	MapboxToken   string
	MapboxEnabled bool
	MapboxTimeout time.Duration

	// Kafka layer publishing.
	KafkaEnabled         bool
	KafkaBrokers         []string
	KafkaLayerTopic      string
	KafkaMaxMessageBytes int64 // must not exceed the topic's max.message.bytes
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	countiesTimeout, err := parsePositiveDuration("COUNTIES_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	wageFetchTimeout, err := parsePositiveDuration("WAGE_FETCH_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	salaryDebounce, err := parseDuration("SALARY_DEBOUNCE", "300ms")
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	kafkaMaxMessageBytes, err := strconv.ParseInt(sharedcfg.EnvOrDefault("KAFKA_MAX_MESSAGE_BYTES", "67108864"), 10, 64)
	if err != nil || kafkaMaxMessageBytes <= 0 {
		return nil, errors.New("invalid KAFKA_MAX_MESSAGE_BYTES")
	}

	defaultSalary, err := domain.ParseSalary(sharedcfg.EnvOrDefault("DEFAULT_SALARY", "150000"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_SALARY: %w", err)
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CountiesSource:   sharedcfg.EnvOrDefault("COUNTIES_SOURCE", "data/counties.geojson"),
		CountiesTimeout:  countiesTimeout,
		WageDataURL:      os.Getenv("WAGE_DATA_URL"),
		WageDataDir:      sharedcfg.EnvOrDefault("WAGE_DATA_DIR", "data/soc"),
		WageFetchTimeout: wageFetchTimeout,

		DefaultOccupation: sharedcfg.EnvOrDefault("DEFAULT_OCCUPATION", "11-1011"),
		DefaultSalary:     defaultSalary,
		SalaryDebounce:    salaryDebounce,

		MapboxToken:   mapboxToken,
		MapboxEnabled: mapboxEnabled,
		MapboxTimeout: mapboxTimeout,

		KafkaEnabled:         os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:         sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaLayerTopic:      sharedcfg.EnvOrDefault("KAFKA_LAYER_TOPIC", "wage-level-layers"),
		KafkaMaxMessageBytes: kafkaMaxMessageBytes,
	}

	if cfg.CountiesSource == "" {
		return nil, errors.New("COUNTIES_SOURCE is required")
	}
	if cfg.WageDataURL == "" && cfg.WageDataDir == "" {
		return nil, errors.New("one of WAGE_DATA_URL or WAGE_DATA_DIR is required")
	}
	if cfg.DefaultOccupation != "" && !domain.ValidOccupationCode(cfg.DefaultOccupation) {
		return nil, fmt.Errorf("invalid DEFAULT_OCCUPATION %q", cfg.DefaultOccupation)
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, &domain.ConfigurationError{Setting: "MAPBOX_TOKEN", Reason: "MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set"}
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaLayerTopic == "" {
			return nil, errors.New("KAFKA_LAYER_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := parseDuration(key, def)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
