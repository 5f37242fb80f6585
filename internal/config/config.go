package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agilasoft/logistics-sub000/internal/domain"
	"github.com/agilasoft/logistics-sub000/pkg/kafka"
	"github.com/agilasoft/logistics-sub000/pkg/mongodb"
)

// Config is the full service configuration: server, stores, bus and the
// allocation engine knobs. Values come from an optional YAML file overridden
// by environment variables.
type Config struct {
	ServerAddr  string `yaml:"serverAddr"`
	LogLevel    string `yaml:"logLevel"`
	Environment string `yaml:"environment"`

	MongoDB    MongoConfig      `yaml:"mongodb"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Allocation AllocationConfig `yaml:"allocation"`
}

// MongoConfig is the YAML-facing MongoDB section
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	AuthDB   string `yaml:"authDb"`
}

// KafkaConfig is the YAML-facing Kafka section
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	ClientID string   `yaml:"clientId"`
}

// AllocationConfig is the YAML-facing allocation engine section
type AllocationConfig struct {
	LevelLimitDepth          int      `yaml:"levelLimitDepth"`
	EmergencyFallbackAllowed bool     `yaml:"emergencyFallbackAllowed"`
	OverflowCompanies        []string `yaml:"overflowCompanies"`
	SplitPrecision           int32    `yaml:"splitPrecision"`

	DefaultTolerancePct   float64            `yaml:"defaultTolerancePct"`
	TolerancePctByCompany map[string]float64 `yaml:"tolerancePctByCompany"`

	CandidateScanLimit   int `yaml:"candidateScanLimit"`
	CandidateValidTarget int `yaml:"candidateValidTarget"`

	SingleLotPreference   bool `yaml:"singleLotPreference"`
	FullUnitFirst         bool `yaml:"fullUnitFirst"`
	NearestLocationFirst  bool `yaml:"nearestLocationFirst"`
	StorageTypePreference bool `yaml:"storageTypePreference"`
	QualityGradePriority  bool `yaml:"qualityGradePriority"`
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE when set, then environment overrides.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ServerAddr:  ":8080",
		LogLevel:    "info",
		Environment: "development",
		MongoDB: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "wms_allocation",
		},
		Kafka: KafkaConfig{
			Brokers:  []string{"localhost:9092"},
			ClientID: "allocation-engine",
		},
		Allocation: AllocationConfig{
			SplitPrecision:       domain.DefaultSplitPrecision,
			CandidateScanLimit:   domain.DefaultCandidateScanLimit,
			CandidateValidTarget: domain.DefaultCandidateValidTarget,
			NearestLocationFirst: true,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.ServerAddr = getEnv("SERVER_ADDR", cfg.ServerAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	cfg.MongoDB.URI = getEnv("MONGODB_URI", cfg.MongoDB.URI)
	cfg.MongoDB.Database = getEnv("MONGODB_DATABASE", cfg.MongoDB.Database)
	cfg.MongoDB.Username = getEnv("MONGODB_USERNAME", cfg.MongoDB.Username)
	cfg.MongoDB.Password = getEnv("MONGODB_PASSWORD", cfg.MongoDB.Password)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}

	if v := os.Getenv("ALLOCATION_LEVEL_LIMIT_DEPTH"); v != "" {
		if depth, err := strconv.Atoi(v); err == nil {
			cfg.Allocation.LevelLimitDepth = depth
		}
	}
	if v := os.Getenv("ALLOCATION_EMERGENCY_FALLBACK"); v != "" {
		cfg.Allocation.EmergencyFallbackAllowed = v == "true"
	}
	if v := os.Getenv("ALLOCATION_DEFAULT_TOLERANCE_PCT"); v != "" {
		if pct, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Allocation.DefaultTolerancePct = pct
		}
	}
}

// MongoDBConfig converts to the driver wrapper's configuration
func (c *Config) MongoDBConfig() *mongodb.Config {
	mc := mongodb.DefaultConfig()
	mc.URI = c.MongoDB.URI
	mc.Database = c.MongoDB.Database
	mc.Username = c.MongoDB.Username
	mc.Password = c.MongoDB.Password
	mc.AuthDB = c.MongoDB.AuthDB
	mc.ConnectTimeout = 10 * time.Second
	return mc
}

// KafkaConfig converts to the producer wrapper's configuration
func (c *Config) KafkaConfig() *kafka.Config {
	kc := kafka.DefaultConfig()
	kc.Brokers = c.Kafka.Brokers
	if c.Kafka.ClientID != "" {
		kc.ClientID = c.Kafka.ClientID
	}
	return kc
}

// AllocationConfig converts to the explicit value the engine core consumes
func (c *Config) AllocationConfig() domain.AllocationConfig {
	overflow := make(map[string]bool, len(c.Allocation.OverflowCompanies))
	for _, company := range c.Allocation.OverflowCompanies {
		overflow[company] = true
	}

	return domain.AllocationConfig{
		LevelLimitDepth:           c.Allocation.LevelLimitDepth,
		EmergencyFallbackAllowed:  c.Allocation.EmergencyFallbackAllowed,
		LocationOverflowByCompany: overflow,
		SplitPrecision:            c.Allocation.SplitPrecision,
		ToleranceByCompany:        c.Allocation.TolerancePctByCompany,
		DefaultTolerance:          c.Allocation.DefaultTolerancePct,
		CandidateScanLimit:        c.Allocation.CandidateScanLimit,
		CandidateValidTarget:      c.Allocation.CandidateValidTarget,
		SingleLotPreference:       c.Allocation.SingleLotPreference,
		FullUnitFirst:             c.Allocation.FullUnitFirst,
		NearestLocationFirst:      c.Allocation.NearestLocationFirst,
		StorageTypePreference:     c.Allocation.StorageTypePreference,
		QualityGradePriority:      c.Allocation.QualityGradePriority,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
