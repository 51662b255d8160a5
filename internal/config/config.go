package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/Collab/internal/adapters/rtc"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	LogLevel   string `mapstructure:"log_level"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`

	DatabasePath string        `mapstructure:"database_path"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`

	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	EventRate  float64       `mapstructure:"event_rate"`
	EventBurst int           `mapstructure:"event_burst"`
	// What to do with a connection whose send buffer is full: kick or drop.
	Backpressure string `mapstructure:"backpressure"`

	// Used when a meeting row has no cap of its own; 0 means unlimited.
	MaxParticipants int      `mapstructure:"max_participants"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`

	ICEServers []rtc.ICEServer `mapstructure:"ice_servers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "")
	v.SetDefault("database_path", "collab.db")
	v.SetDefault("token_ttl", "720h")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("event_rate", 20.0)
	v.SetDefault("event_burst", 40)
	v.SetDefault("backpressure", "kick")
	v.SetDefault("max_participants", 0)
	v.SetDefault("allowed_origins", []string{})
}

// Load reads .env (if any), then config/config.<CONFIG_ENV>.yaml, then
// COLLAB_* environment overrides, in increasing priority.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("could not read .env")
	}

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile is Load without the .env step, reading fileName if it exists.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("COLLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// AutomaticEnv does not split lists.
	if raw := os.Getenv("COLLAB_ALLOWED_ORIGINS"); raw != "" {
		cfg.AllowedOrigins = splitList(raw)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("db", cfg.DatabasePath).
		Msg("effective config")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: bad port %d", c.Port)
	}
	if c.ReadLimit <= 0 || c.PingPeriod <= 0 {
		return fmt.Errorf("config: read_limit and ping_period must be positive")
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("config: send_buffer must be positive")
	}
	if c.EventRate <= 0 || c.EventBurst <= 0 {
		return fmt.Errorf("config: event_rate and event_burst must be positive")
	}
	switch c.Backpressure {
	case "", "kick", "drop":
	default:
		return fmt.Errorf("config: unknown backpressure policy %q", c.Backpressure)
	}
	if c.MaxParticipants < 0 {
		return fmt.Errorf("config: max_participants must not be negative")
	}
	if c.Mode == "release" && c.Secret == "" {
		return fmt.Errorf("config: secret is required in release mode")
	}
	return nil
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
