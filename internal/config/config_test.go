package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5*time.Minute, cfg.Auction.DefaultDuration)
	assert.Equal(t, time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, int64(10), cfg.Scheduler.BatchSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(Port, "9090")
	t.Setenv(AuctionDefaultDuration, "90s")
	t.Setenv(AuctionDefaultStartingPrice, "2.5")
	t.Setenv(SchedulerBatchSize, "50")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Auction.DefaultDuration)
	assert.Equal(t, int64(50), cfg.Scheduler.BatchSize)

	price, err := cfg.Auction.StartingPrice()
	require.NoError(t, err)
	assert.Equal(t, "2.5", price.String())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:    ServerConfig{Port: "8080"},
			Database:  DatabaseConfig{URL: "postgres://localhost/db"},
			Redis:     RedisConfig{Addr: "localhost:6379"},
			Auction:   AuctionConfig{DefaultDuration: time.Minute, DefaultStartingPrice: "0"},
			Scheduler: SchedulerConfig{PollInterval: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: true},
		{name: "missing db", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: true},
		{name: "missing redis", mutate: func(c *Config) { c.Redis.Addr = "" }, wantErr: true},
		{name: "negative duration", mutate: func(c *Config) { c.Auction.DefaultDuration = -time.Second }, wantErr: true},
		{name: "bad price", mutate: func(c *Config) { c.Auction.DefaultStartingPrice = "abc" }, wantErr: true},
		{name: "negative price", mutate: func(c *Config) { c.Auction.DefaultStartingPrice = "-1" }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.Scheduler.PollInterval = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
