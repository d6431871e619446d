package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Auction  AuctionConfig  `mapstructure:"auction"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Instance InstanceConfig `mapstructure:"instance"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuctionConfig struct {
	// BidTolerance widens the accepted price band to absorb network
	// latency and clock drift between bidder and engine.
	BidTolerance      time.Duration `mapstructure:"bid_tolerance"`
	SnapshotInterval  time.Duration `mapstructure:"snapshot_interval"`
	SchedulerInterval time.Duration `mapstructure:"scheduler_interval"`
	OutboxInterval    time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize   int           `mapstructure:"outbox_batch_size"`
	// SaveRetries bounds the optimistic-concurrency retry loop for a
	// single command before the conflict is surfaced to the caller.
	SaveRetries int `mapstructure:"save_retries"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/dutch_auction_db?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("auction.bid_tolerance", 2*time.Second)
	viper.SetDefault("auction.snapshot_interval", 5*time.Second)
	viper.SetDefault("auction.scheduler_interval", 10*time.Second)
	viper.SetDefault("auction.outbox_interval", time.Second)
	viper.SetDefault("auction.outbox_batch_size", 100)
	viper.SetDefault("auction.save_retries", 3)
	viper.SetDefault("leader.ttl", 30*time.Second)
	viper.SetDefault("instance.id", "auction-service-1")
	viper.SetDefault("log.level", "info")

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/dutch-auction-system/")

	// Environment variable support
	viper.AutomaticEnv()

	// Environment variable mappings
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	viper.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	viper.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	viper.BindEnv("auction.bid_tolerance", "AUCTION_BID_TOLERANCE")
	viper.BindEnv("auction.snapshot_interval", "AUCTION_SNAPSHOT_INTERVAL")
	viper.BindEnv("auction.scheduler_interval", "AUCTION_SCHEDULER_INTERVAL")
	viper.BindEnv("auction.outbox_interval", "AUCTION_OUTBOX_INTERVAL")
	viper.BindEnv("auction.outbox_batch_size", "AUCTION_OUTBOX_BATCH_SIZE")
	viper.BindEnv("auction.save_retries", "AUCTION_SAVE_RETRIES")
	viper.BindEnv("leader.ttl", "LEADER_TTL")
	viper.BindEnv("instance.id", "INSTANCE_ID")
	viper.BindEnv("log.level", "LOG_LEVEL")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, continue with defaults and environment variables
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, MySQL: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.MySQL.DSN,
		c.Instance.ID,
	)
}
