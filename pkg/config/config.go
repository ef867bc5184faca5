package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Etcd     EtcdConfig     `mapstructure:"etcd"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// PaymentConfig holds provider credentials. The webhook secret signs
// asynchronous provider callbacks; live/test keys are selected by LiveMode.
type PaymentConfig struct {
	Provider       string        `mapstructure:"provider"`
	LiveMode       bool          `mapstructure:"live_mode"`
	TestSecretKey  string        `mapstructure:"test_secret_key"`
	LiveSecretKey  string        `mapstructure:"live_secret_key"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	Currency       string        `mapstructure:"currency"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MethodCacheTTL time.Duration `mapstructure:"method_cache_ttl"`
}

type CatalogConfig struct {
	// MinPrice is the lowest allowed price in minor units after discount.
	MinPrice int64 `mapstructure:"min_price"`
}

// ThrottleConfig defines the order-creation rate tiers. A limit of zero
// disables the tier.
type ThrottleConfig struct {
	BurstLimit  int           `mapstructure:"burst_limit"`
	BurstWindow time.Duration `mapstructure:"burst_window"`
	RapidLimit  int           `mapstructure:"rapid_limit"`
	RapidWindow time.Duration `mapstructure:"rapid_window"`
	DailyLimit  int           `mapstructure:"daily_limit"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("payment.provider", "stripe")
	v.SetDefault("payment.currency", "usd")
	v.SetDefault("payment.base_url", "https://api.stripe.com")
	v.SetDefault("payment.timeout", 30*time.Second)
	v.SetDefault("payment.method_cache_ttl", time.Hour)
	v.SetDefault("catalog.min_price", 50)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// SecretKey returns the provider API key for the configured mode.
func (c *PaymentConfig) SecretKey() string {
	if c.LiveMode {
		return c.LiveSecretKey
	}
	return c.TestSecretKey
}
