package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"sentinel"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"sentinel"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"sentinel"`

	// Database pool
	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"16"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"4"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	DBConnectTimeout  time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`

	// Redis
	RedisURL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaBrokers         string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled         bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaEventTopic      string `env:"KAFKA_EVENT_TOPIC" envDefault:"user-action-events"`
	KafkaAssessmentTopic string `env:"KAFKA_ASSESSMENT_TOPIC" envDefault:"risk-assessments"`
	KafkaConsumerGroup   string `env:"KAFKA_CONSUMER_GROUP" envDefault:"sentinel-scoring"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3200"`

	// Device enrichment
	DeviceRegistryURL   string        `env:"DEVICE_REGISTRY_URL"`
	DeviceLookupTimeout time.Duration `env:"DEVICE_LOOKUP_TIMEOUT" envDefault:"2s"`

	// Blending
	ModelWeight     float64 `env:"BLEND_MODEL_WEIGHT" envDefault:"0.7"`
	HeuristicWeight float64 `env:"BLEND_HEURISTIC_WEIGHT" envDefault:"0.3"`
	Amplification   float64 `env:"BLEND_AMPLIFICATION" envDefault:"1.3"`
	AmplifyCap      float64 `env:"BLEND_AMPLIFY_CAP" envDefault:"0.95"`
	DegeneracyEps   float64 `env:"BLEND_DEGENERACY_EPSILON" envDefault:"0.01"`

	// Model training
	ModelTrees         int     `env:"MODEL_TREES" envDefault:"100"`
	ModelSubsample     int     `env:"MODEL_SUBSAMPLE" envDefault:"256"`
	ModelContamination float64 `env:"MODEL_CONTAMINATION" envDefault:"0.1"`
	ModelSeed          int64   `env:"MODEL_SEED" envDefault:"42"`
	TrainingSetLimit   int     `env:"TRAINING_SET_LIMIT" envDefault:"50000"`

	// Profile store
	BaselineThreshold      int           `env:"BASELINE_THRESHOLD" envDefault:"50"`
	HighFrequencyThreshold int           `env:"HIGH_FREQUENCY_THRESHOLD" envDefault:"100"`
	AnomalyHistoryCap      int           `env:"ANOMALY_HISTORY_CAP" envDefault:"200"`
	AnomalyRetention       time.Duration `env:"ANOMALY_RETENTION" envDefault:"24h"`

	// Heuristic overrides
	HeuristicBase   float64 `env:"HEURISTIC_BASE" envDefault:"0.18"`
	SensitiveOffset float64 `env:"HEURISTIC_SENSITIVE_OFFSET" envDefault:"0.06"`
	FailedOffset    float64 `env:"HEURISTIC_FAILED_OFFSET" envDefault:"0.25"`
	WeekendOffset   float64 `env:"HEURISTIC_WEEKEND_OFFSET" envDefault:"0.12"`
	JitterBound     float64 `env:"HEURISTIC_JITTER_BOUND" envDefault:"0.05"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
