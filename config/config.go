// Package config provides configuration structures and validation for the
// leave ledger server. Settings come from defaults, an optional env file and
// the process environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/leave-ledger/generic"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	Logging    LoggingConfig
	Server     ServerConfig
	Store      StoreConfig
	Postgres   PostgresConfig
	MongoDB    MongoDBConfig
	Kafka      KafkaConfig
	WorkerPool WorkerPoolConfig
	Policy     PolicyConfig
	Accrual    AccrualConfig
}

type LoggingConfig struct {
	Level string
}

type ServerConfig struct {
	Port               int
	ShutdownTimeout    time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

type StoreConfig struct {
	Driver     string // sqlite, postgres, mongo or memory
	SQLitePath string
}

type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// KafkaConfig enables adjustment events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers         []string
	AdjustmentTopic string
	WriteTimeout    time.Duration
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type WorkerPoolConfig struct {
	Size int // employees processed concurrently by batch runs
}

type PolicyConfig struct {
	File string // empty = built-in default policy
}

type AccrualConfig struct {
	SchedulerEnabled  bool
	SchedulerInterval time.Duration
	DefaultMethod     generic.AccrualMethod
	DefaultRounding   generic.Rounding
}

// validate checks the settings that apply to the selected driver and
// enabled features, collecting every problem into one error.
func (c *Config) validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			validationErrors = append(validationErrors, "SQLITE_PATH is required")
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			validationErrors = append(validationErrors, "POSTGRES_URL is required")
		}
		if c.Postgres.MaxConns <= 0 {
			validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
		}
		if c.Postgres.MinConns < 0 || c.Postgres.MinConns > c.Postgres.MaxConns {
			validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be between 0 and POSTGRES_MAX_CONNS")
		}
	case DriverMongo:
		if c.MongoDB.URI == "" {
			validationErrors = append(validationErrors, "MONGO_URI is required")
		}
		if c.MongoDB.Database == "" {
			validationErrors = append(validationErrors, "MONGO_DATABASE is required")
		}
		if c.MongoDB.Timeout <= 0 {
			validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
		}
	case DriverMemory:
	default:
		validationErrors = append(validationErrors,
			fmt.Sprintf("STORE_DRIVER must be one of sqlite, postgres, mongo, memory (got %q)", c.Store.Driver))
	}

	if c.Kafka.Enabled() && c.Kafka.AdjustmentTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_ADJUSTMENT_TOPIC is required when KAFKA_BROKERS is set")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if !c.Accrual.DefaultMethod.Valid() {
		validationErrors = append(validationErrors, "ACCRUAL_DEFAULT_METHOD must be monthly, yearly or per_term")
	}
	if !c.Accrual.DefaultRounding.Valid() {
		validationErrors = append(validationErrors, "ACCRUAL_DEFAULT_ROUNDING must be none, round, round_up or round_down")
	}
	if c.Accrual.SchedulerEnabled && c.Accrual.SchedulerInterval <= 0 {
		validationErrors = append(validationErrors, "ACCRUAL_SCHEDULER_INTERVAL must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}
	return nil
}
