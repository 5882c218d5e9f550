package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app" yaml:"app"`
	NodeID   int64          `mapstructure:"node_id" yaml:"node_id"`
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Poller   PollerConfig   `mapstructure:"poller" yaml:"poller"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	NATS     NATSConfig     `mapstructure:"nats" yaml:"nats"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
}

type AppConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// BackendConfig 聊天后端（换行分隔 JSON over TCP）
type BackendConfig struct {
	Addr          string        `mapstructure:"addr" yaml:"addr"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxFrameBytes int64         `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
}

type SessionConfig struct {
	Identity string `mapstructure:"identity" yaml:"identity"`
	UDPPort  int    `mapstructure:"udp_port" yaml:"udp_port"`
}

type PollerConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr"`
	Mode           string   `mapstructure:"mode" yaml:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	PoolSize int           `mapstructure:"pool_size" yaml:"pool_size"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	URL           string        `mapstructure:"url" yaml:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
	SubjectPrefix string        `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Name            string        `mapstructure:"name" yaml:"name"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size"`
	FlushInterval   time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
}

// Load 从指定路径加载配置
// path 为空时只使用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 从环境变量覆盖配置
	cfg.applyEnv()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "im-client")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("node_id", 1)

	v.SetDefault("backend.addr", "localhost:12345")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.max_frame_bytes", 4<<20)

	v.SetDefault("session.udp_port", 7000)

	// 与后端约定的轮询间隔
	v.SetDefault("poller.interval", 2*time.Second)

	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.mode", "release")
	v.SetDefault("http.allowed_origins", []string{"*"})

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.subject_prefix", "im.client")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "im")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.batch_size", 100)
	v.SetDefault("database.flush_interval", 5*time.Second)
}

// applyEnv 从环境变量覆盖配置
func (c *Config) applyEnv() {
	// App
	c.App.LogLevel = GetEnv("IM_CLIENT_LOG_LEVEL", c.App.LogLevel)
	c.NodeID = int64(GetEnvInt("IM_CLIENT_NODE_ID", int(c.NodeID)))

	// Backend
	c.Backend.Addr = GetEnv("IM_BACKEND_ADDR", c.Backend.Addr)
	c.Backend.Timeout = GetEnvDuration("IM_BACKEND_TIMEOUT", c.Backend.Timeout)

	// Session
	c.Session.Identity = GetEnv("IM_CLIENT_IDENTITY", c.Session.Identity)
	c.Session.UDPPort = GetEnvInt("IM_CLIENT_UDP_PORT", c.Session.UDPPort)

	// Poller
	c.Poller.Interval = GetEnvDuration("IM_POLL_INTERVAL", c.Poller.Interval)

	// HTTP
	c.HTTP.Addr = GetEnv("IM_CLIENT_HTTP_ADDR", c.HTTP.Addr)

	// Redis
	c.Redis.Enabled = GetEnvBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = GetEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = GetEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = GetEnvInt("REDIS_DB", c.Redis.DB)

	// NATS
	c.NATS.Enabled = GetEnvBool("NATS_ENABLED", c.NATS.Enabled)
	c.NATS.URL = GetEnv("NATS_URL", c.NATS.URL)

	// Database
	c.Database.Enabled = GetEnvBool("POSTGRES_ENABLED", c.Database.Enabled)
	c.Database.Host = GetEnv("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = GetEnvInt("POSTGRES_PORT", c.Database.Port)
	c.Database.User = GetEnv("POSTGRES_USER", c.Database.User)
	c.Database.Password = GetEnv("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.Name = GetEnv("POSTGRES_DB", c.Database.Name)
}
