package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type OrderConfig struct {
	Address      string        `mapstructure:"address"`
	AdminAddress string        `mapstructure:"admin_address"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFormat    string        `mapstructure:"log_format"`
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`

	DefaultSlippage float64 `mapstructure:"default_slippage"`
	// ObserverBuffer bounds the queue in front of each slow order sink.
	ObserverBuffer  int     `mapstructure:"observer_buffer"`

	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Prices    PricesConfig    `mapstructure:"prices"`
	Swap      SwapConfig      `mapstructure:"swap"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type MonitorConfig struct {
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	StartupDelay       time.Duration `mapstructure:"startup_delay"`
	MaxConcurrentSwaps int64         `mapstructure:"max_concurrent_swaps"`
	SwapTimeout        time.Duration `mapstructure:"swap_timeout"`
	MaxAttempts        int           `mapstructure:"max_attempts"`
	ShutdownGrace      time.Duration `mapstructure:"shutdown_grace"`
}

type PricesConfig struct {
	JupiterURL      string               `mapstructure:"jupiter_url"`
	CoinGeckoURL    string               `mapstructure:"coingecko_url"`
	CoinGeckoAPIKey string               `mapstructure:"coingecko_api_key"`
	Timeout         time.Duration        `mapstructure:"timeout"`
	RatePerSecond   float64              `mapstructure:"rate_per_second"`
	MaxAge          time.Duration        `mapstructure:"max_age"`
	CircuitBreaker  CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type SwapConfig struct {
	Mode           string               `mapstructure:"mode"`
	PaperLatency   time.Duration        `mapstructure:"paper_latency"`
	GatewayURL     string               `mapstructure:"gateway_url"`
	RatePerSecond  float64              `mapstructure:"rate_per_second"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxRequests uint32        `mapstructure:"max_requests"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFailures uint32        `mapstructure:"max_failures"`
}

type PostgresConfig struct {
	URI string `mapstructure:"uri"`
}

func (p PostgresConfig) Enabled() bool {
	return p.URI != ""
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
	CreateLimit       int64         `mapstructure:"create_limit"`
	Window            time.Duration `mapstructure:"window"`
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", ":8080")
	v.SetDefault("admin_address", ":50051")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("check_timeout", 2*time.Second)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("default_slippage", 0.5)
	v.SetDefault("observer_buffer", 1024)

	v.SetDefault("monitor.tick_interval", 30*time.Second)
	v.SetDefault("monitor.startup_delay", 5*time.Second)
	v.SetDefault("monitor.max_concurrent_swaps", 4)
	v.SetDefault("monitor.swap_timeout", 20*time.Second)
	v.SetDefault("monitor.max_attempts", 3)
	v.SetDefault("monitor.shutdown_grace", 15*time.Second)

	v.SetDefault("prices.jupiter_url", "https://price.jup.ag/v4/price")
	v.SetDefault("prices.coingecko_url", "https://api.coingecko.com/api/v3/simple/price")
	v.SetDefault("prices.coingecko_api_key", "")
	v.SetDefault("prices.timeout", 5*time.Second)
	v.SetDefault("prices.rate_per_second", 2.0)
	v.SetDefault("prices.max_age", 2*time.Minute)
	v.SetDefault("prices.circuit_breaker.max_requests", 1)
	v.SetDefault("prices.circuit_breaker.interval", time.Minute)
	v.SetDefault("prices.circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("prices.circuit_breaker.max_failures", 3)

	v.SetDefault("swap.mode", "paper")
	v.SetDefault("swap.paper_latency", 200*time.Millisecond)
	v.SetDefault("swap.gateway_url", "")
	v.SetDefault("swap.rate_per_second", 5.0)
	v.SetDefault("swap.circuit_breaker.max_requests", 1)
	v.SetDefault("swap.circuit_breaker.interval", time.Minute)
	v.SetDefault("swap.circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("swap.circuit_breaker.max_failures", 5)

	v.SetDefault("postgres.uri", "")

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.connection_timeout", 2*time.Second)
	v.SetDefault("redis.create_limit", 20)
	v.SetDefault("redis.window", time.Minute)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "orders.lifecycle")

	v.SetDefault("telemetry.service_name", "order-trigger")
	v.SetDefault("telemetry.otlp_endpoint", "")
}

// Load reads an optional dotenv file and then the process environment.
// Keys map to env vars with the ORDER_ prefix, dots become underscores:
// monitor.tick_interval is ORDER_MONITOR_TICK_INTERVAL.
func Load(envPath string) (OrderConfig, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return OrderConfig{}, fmt.Errorf("godotenv.Load: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ORDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg OrderConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return OrderConfig{}, fmt.Errorf("viper.Unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return OrderConfig{}, err
	}

	return cfg, nil
}

func (c OrderConfig) validate() error {
	switch {
	case c.Monitor.TickInterval <= 0:
		return errors.New("config: monitor.tick_interval must be > 0")
	case c.Monitor.MaxConcurrentSwaps <= 0:
		return errors.New("config: monitor.max_concurrent_swaps must be > 0")
	case c.Monitor.SwapTimeout <= 0:
		return errors.New("config: monitor.swap_timeout must be > 0")
	case c.Monitor.MaxAttempts <= 0:
		return errors.New("config: monitor.max_attempts must be > 0")
	case c.ObserverBuffer <= 0:
		return errors.New("config: observer_buffer must be > 0")
	case c.DefaultSlippage <= 0:
		return errors.New("config: default_slippage must be > 0")
	case c.Swap.Mode != "paper" && c.Swap.Mode != "gateway":
		return fmt.Errorf("config: unknown swap.mode %q", c.Swap.Mode)
	case c.Swap.Mode == "gateway" && c.Swap.GatewayURL == "":
		return errors.New("config: swap.gateway_url is required in gateway mode")
	}

	return nil
}
