// Package config loads tapestry settings from defaults, an optional YAML
// file and TAPESTRY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. TAPESTRY_HTTP_ADDR.
const EnvPrefix = "TAPESTRY"

// Journal backends.
const (
	JournalMemory = "memory"
	JournalFile   = "file"
	JournalRedis  = "redis"
)

// Config holds application configuration.
type Config struct {
	Log     LogConfig
	HTTP    HTTPConfig
	Journal JournalConfig
	Redis   RedisConfig
	Session SessionConfig
	Engine  EngineConfig
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string
	Format string
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Addr string
}

// JournalConfig selects where committed transactions are recorded.
type JournalConfig struct {
	Backend string
	Dir     string
}

// RedisConfig holds connection settings shared by the redis journal and locker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// SessionConfig tunes the session manager.
type SessionConfig struct {
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
	DistributedLock bool          `mapstructure:"distributed_lock"`
}

// EngineConfig holds engine defaults.
type EngineConfig struct {
	Headless bool
}

// New returns a viper instance with defaults and env bindings set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("log.level", "")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("journal.backend", JournalMemory)
	v.SetDefault("journal.dir", ".tapestry/journal")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "tapestry:")
	v.SetDefault("session.lock_ttl", 30*time.Second)
	v.SetDefault("session.distributed_lock", false)
	v.SetDefault("engine.headless", false)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path when given, or tapestry.yaml in the working directory when
// present, and unmarshals the result.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("tapestry")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings no component can honour.
func (c Config) Validate() error {
	switch c.Journal.Backend {
	case JournalMemory, JournalFile, JournalRedis:
	default:
		return fmt.Errorf("journal.backend: unknown backend %q", c.Journal.Backend)
	}
	if c.Journal.Backend == JournalFile && c.Journal.Dir == "" {
		return errors.New("journal.dir is required for the file backend")
	}
	if c.Session.LockTTL < 0 {
		return fmt.Errorf("session.lock_ttl: must not be negative, got %s", c.Session.LockTTL)
	}
	return nil
}
