package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, 30*time.Second, cfg.Monitor.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.Monitor.StartupDelay)
	assert.Equal(t, 3, cfg.Monitor.MaxAttempts)
	assert.InDelta(t, 0.5, cfg.DefaultSlippage, 1e-9)
	assert.Equal(t, "paper", cfg.Swap.Mode)
	assert.False(t, cfg.Postgres.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ORDER_MONITOR_TICK_INTERVAL", "2s")
	t.Setenv("ORDER_MONITOR_MAX_CONCURRENT_SWAPS", "8")
	t.Setenv("ORDER_SWAP_MODE", "gateway")
	t.Setenv("ORDER_SWAP_GATEWAY_URL", "http://gateway:9000")
	t.Setenv("ORDER_REDIS_HOST", "redis")
	t.Setenv("ORDER_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Monitor.TickInterval)
	assert.Equal(t, int64(8), cfg.Monitor.MaxConcurrentSwaps)
	assert.Equal(t, "gateway", cfg.Swap.Mode)
	assert.Equal(t, "redis:6379", cfg.Redis.Address())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ORDER_LOG_LEVEL=debug\nORDER_DEFAULT_SLIPPAGE=1.5\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("ORDER_LOG_LEVEL")
		_ = os.Unsetenv("ORDER_DEFAULT_SLIPPAGE")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 1.5, cfg.DefaultSlippage, 1e-9)
}

func TestLoadMissingDotenvIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "ошибка - нулевой интервал тика",
			env:  map[string]string{"ORDER_MONITOR_TICK_INTERVAL": "0s"},
		},
		{
			name: "ошибка - неизвестный режим свопа",
			env:  map[string]string{"ORDER_SWAP_MODE": "live"},
		},
		{
			name: "ошибка - gateway без адреса",
			env:  map[string]string{"ORDER_SWAP_MODE": "gateway"},
		},
		{
			name: "ошибка - нулевое число попыток",
			env:  map[string]string{"ORDER_MONITOR_MAX_ATTEMPTS": "0"},
		},
		{
			name: "ошибка - нулевой таймаут свопа",
			env:  map[string]string{"ORDER_MONITOR_SWAP_TIMEOUT": "0s"},
		},
		{
			name: "ошибка - отрицательный таймаут свопа",
			env:  map[string]string{"ORDER_MONITOR_SWAP_TIMEOUT": "-1s"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			for key, value := range test.env {
				t.Setenv(key, value)
			}

			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
