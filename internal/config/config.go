package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Shiprocket
	ShiprocketEmail              string        `envconfig:"SHIPROCKET_EMAIL"`
	ShiprocketPassword           string        `envconfig:"SHIPROCKET_PASSWORD"`
	ShiprocketBaseURL            string        `envconfig:"SHIPROCKET_BASE_URL" default:"https://apiv2.shiprocket.in/v1/external"`
	ShiprocketUseMock            bool          `envconfig:"SHIPROCKET_USE_MOCK" default:"false"`
	ShiprocketTimeout            time.Duration `envconfig:"SHIPROCKET_TIMEOUT" default:"30s"`
	ShiprocketTokenTTL           time.Duration `envconfig:"SHIPROCKET_TOKEN_TTL" default:"240h"`
	ShiprocketTokenRefreshMargin time.Duration `envconfig:"SHIPROCKET_TOKEN_REFRESH_MARGIN" default:"10m"`

	// Fulfillment
	PickupPincode     string        `envconfig:"PICKUP_PINCODE"`
	AutoAssignEnabled bool          `envconfig:"AUTO_ASSIGN_ENABLED" default:"true"`
	AutoAssignTimeout time.Duration `envconfig:"AUTO_ASSIGN_TIMEOUT" default:"60s"`

	// Order store
	StoreBackend    string `envconfig:"STORE_BACKEND" default:"memory"`
	PostgresDSN     string `envconfig:"POSTGRES_DSN"`
	PostgresTable   string `envconfig:"POSTGRES_TABLE" default:"orders"`
	MongoURI        string `envconfig:"MONGO_URI"`
	MongoDatabase   string `envconfig:"MONGO_DATABASE" default:"fulfillment"`
	MongoCollection string `envconfig:"MONGO_COLLECTION" default:"orders"`
	RedisAddr       string `envconfig:"REDIS_ADDR"`

	// Events
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"shipment.state"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://jaeger-collector.claude.svc.cluster.local:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"tournevent-fulfillment"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the selected backends are fully configured.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres store"))
		}
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	if !c.ShiprocketUseMock && (c.ShiprocketEmail == "" || c.ShiprocketPassword == "") {
		errs = append(errs, errors.New("SHIPROCKET_EMAIL and SHIPROCKET_PASSWORD are required unless SHIPROCKET_USE_MOCK is set"))
	}

	return errors.Join(errs...)
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("store.backend", c.StoreBackend),
		attribute.Bool("shiprocket.mock", c.ShiprocketUseMock),
		attribute.Bool("auto_assign.enabled", c.AutoAssignEnabled),
		attribute.Bool("events.enabled", len(c.KafkaBrokers) > 0),
	}
}
