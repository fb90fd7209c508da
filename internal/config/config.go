package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "configs/config.yaml"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port         int      `yaml:"port"`
	Env          string   `yaml:"env"`
	AllowOrigins []string `yaml:"allow_origins"`
}

type DatabaseConfig struct {
	URL                string        `yaml:"url"`
	RejectUnauthorized bool          `yaml:"reject_unauthorized"`
	MinConns           int32         `yaml:"min_conns"`
	MaxConns           int32         `yaml:"max_conns"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	KeepAlive          time.Duration `yaml:"keep_alive"`
	ProbeInterval      time.Duration `yaml:"probe_interval"`
	ProbeTimeout       time.Duration `yaml:"probe_timeout"`
	FailureThreshold   int           `yaml:"failure_threshold"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads configs/config.yaml when present, then applies environment
// overrides and defaults. A missing DATABASE_URL is not an error here.
func Load() (*Config, error) {
	return LoadFile(defaultConfigFile)
}

func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.overrideFromEnv()
	cfg.setDefaults()

	return cfg, nil
}

func (c *Config) overrideFromEnv() {
	// Server
	if val := os.Getenv("PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Server.Port = port
		}
	}
	if val := os.Getenv("APP_ENV"); val != "" {
		c.Server.Env = val
	} else if val := os.Getenv("NODE_ENV"); val != "" {
		c.Server.Env = val
	}
	if val := os.Getenv("CORS_ALLOW_ORIGINS"); val != "" {
		c.Server.AllowOrigins = splitList(val)
	}

	// Database
	if val := os.Getenv("DATABASE_URL"); val != "" {
		c.Database.URL = val
	}
	if val := os.Getenv("DB_SSL_REJECT_UNAUTHORIZED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Database.RejectUnauthorized = b
		}
	}
	envInt32("DB_MIN_CONNS", &c.Database.MinConns)
	envInt32("DB_MAX_CONNS", &c.Database.MaxConns)
	envDuration("DB_IDLE_TIMEOUT", &c.Database.IdleTimeout)
	envDuration("DB_CONNECT_TIMEOUT", &c.Database.ConnectTimeout)
	envDuration("DB_KEEPALIVE", &c.Database.KeepAlive)
	envDuration("DB_PROBE_INTERVAL", &c.Database.ProbeInterval)
	envDuration("DB_PROBE_TIMEOUT", &c.Database.ProbeTimeout)
	envDuration("DB_RETRY_DELAY", &c.Database.RetryDelay)
	if val := os.Getenv("DB_FAILURE_THRESHOLD"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Database.FailureThreshold = n
		}
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FILE"); val != "" {
		c.Log.File = val
	}
	if val := os.Getenv("LOG_MAX_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Log.MaxSize = n
		}
	}
	if val := os.Getenv("LOG_MAX_AGE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Log.MaxAge = n
		}
	}
	if val := os.Getenv("LOG_MAX_BACKUPS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Log.MaxBackups = n
		}
	}
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 5001
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:3001",
		}
	}

	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.IdleTimeout == 0 {
		c.Database.IdleTimeout = 30 * time.Second
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = 10 * time.Second
	}
	if c.Database.KeepAlive == 0 {
		c.Database.KeepAlive = 10 * time.Second
	}
	if c.Database.ProbeInterval == 0 {
		c.Database.ProbeInterval = 30 * time.Second
	}
	if c.Database.ProbeTimeout == 0 {
		c.Database.ProbeTimeout = 5 * time.Second
	}
	if c.Database.FailureThreshold <= 0 {
		c.Database.FailureThreshold = 3
	}
	if c.Database.RetryDelay == 0 {
		c.Database.RetryDelay = 500 * time.Millisecond
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSize == 0 {
		c.Log.MaxSize = 100 // MB
	}
	if c.Log.MaxAge == 0 {
		c.Log.MaxAge = 28 // days
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

func envInt32(key string, dst *int32) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

// envDuration accepts Go duration strings ("500ms") or plain milliseconds.
func envDuration(key string, dst *time.Duration) {
	val := os.Getenv(key)
	if val == "" {
		return
	}
	if d, err := time.ParseDuration(val); err == nil {
		*dst = d
		return
	}
	if ms, err := strconv.Atoi(val); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
