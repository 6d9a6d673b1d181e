package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-ledger/generic"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	originalWD, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(originalWD) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("missing")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "leave.db", cfg.Store.SQLitePath)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, 8, cfg.WorkerPool.Size)
	assert.Equal(t, generic.AccrualMonthly, cfg.Accrual.DefaultMethod)
	assert.Equal(t, generic.RoundNone, cfg.Accrual.DefaultRounding)
	assert.Equal(t, 24*time.Hour, cfg.Accrual.SchedulerInterval)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "configs"), 0o755))
	content := "SERVER_PORT=9090\nSTORE_DRIVER=memory\nKAFKA_BROKERS=kafka1:9092, kafka2:9092\nLOG_LEVEL=debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "test.env"), []byte(content), 0o644))
	chdir(t, dir)

	// Environment wins over the file.
	t.Setenv("WORKER_POOL_SIZE", "3")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 3, cfg.WorkerPool.Size)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		v := viper.New()
		setDefaults(v)
		cfg, err := build(v)
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "oracle" }, "STORE_DRIVER must be one of"},
		{"postgres without url", func(c *Config) {
			c.Store.Driver = DriverPostgres
			c.Postgres.URL = ""
		}, "POSTGRES_URL is required"},
		{"mongo without database", func(c *Config) {
			c.Store.Driver = DriverMongo
			c.MongoDB.Database = ""
		}, "MONGO_DATABASE is required"},
		{"kafka without topic", func(c *Config) {
			c.Kafka.Brokers = []string{"localhost:9092"}
			c.Kafka.AdjustmentTopic = ""
		}, "KAFKA_ADJUSTMENT_TOPIC is required"},
		{"bad rounding", func(c *Config) { c.Accrual.DefaultRounding = "bankers" }, "ACCRUAL_DEFAULT_ROUNDING"},
		{"bad method", func(c *Config) { c.Accrual.DefaultMethod = "weekly" }, "ACCRUAL_DEFAULT_METHOD"},
		{"zero pool", func(c *Config) { c.WorkerPool.Size = 0 }, "WORKER_POOL_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
