// Package config loads the registrar configuration from defaults, an
// optional TOML file and REGISTRAR_ environment variables, and validates
// it against an embedded CUE schema.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/roach88/registrar/internal/engine"
)

// EnvConfigPath names the variable that points at the config file.
const EnvConfigPath = "REGISTRAR_CONFIG"

// Config holds application configuration.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine" json:"engine"`
	Store   StoreConfig   `mapstructure:"store" json:"store"`
	Account AccountConfig `mapstructure:"account" json:"account"`
}

// EngineConfig holds orchestration tunables.
type EngineConfig struct {
	MaxNetworkRetries  int           `mapstructure:"max_network_retries" json:"max_network_retries"`
	AutoRetryThreshold time.Duration `mapstructure:"auto_retry_threshold" json:"auto_retry_threshold"`
	PushMinWait        time.Duration `mapstructure:"push_min_wait" json:"push_min_wait"`
	PushMaxWait        time.Duration `mapstructure:"push_max_wait" json:"push_max_wait"`
	MaxLocalPinGuesses int           `mapstructure:"max_local_pin_guesses" json:"max_local_pin_guesses"`
	MaxResolutions     int           `mapstructure:"max_resolutions" json:"max_resolutions"`
	RetryBaseDelay     time.Duration `mapstructure:"retry_base_delay" json:"retry_base_delay"`
}

// StoreConfig selects the durable state store.
type StoreConfig struct {
	Backend     string `mapstructure:"backend" json:"backend"`
	Path        string `mapstructure:"path" json:"path"`
	RedisAddr   string `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix" json:"redis_prefix"`
}

// AccountConfig locates the exported account state.
type AccountConfig struct {
	Dir string `mapstructure:"dir" json:"dir"`
}

// Load reads configuration. path, when set, names the config file and
// must exist; otherwise REGISTRAR_CONFIG or
// $HOME/.config/registrar/config.toml is read if present. Env var
// overrides use prefix REGISTRAR_ with "." replaced by "_".
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "registrar"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("REGISTRAR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

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
	if err := Validate(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Default returns the defaults without reading files or the environment.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	// Defaults always decode.
	_ = v.Unmarshal(&c)
	return c
}

func setDefaults(v *viper.Viper) {
	d := engine.DefaultConfig()
	v.SetDefault("engine.max_network_retries", d.MaxNetworkRetries)
	v.SetDefault("engine.auto_retry_threshold", d.AutoRetryThreshold)
	v.SetDefault("engine.push_min_wait", d.PushMinWait)
	v.SetDefault("engine.push_max_wait", d.PushMaxWait)
	v.SetDefault("engine.max_local_pin_guesses", d.MaxLocalPinGuesses)
	v.SetDefault("engine.max_resolutions", d.MaxResolutions)
	v.SetDefault("engine.retry_base_delay", d.RetryBaseDelay)

	data := filepath.Join(os.Getenv("HOME"), ".local", "share", "registrar")
	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.path", filepath.Join(data, "registrar.db"))
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_prefix", "registrar")
	v.SetDefault("account.dir", data)
}

// EngineConfig converts the engine section to engine tunables.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		MaxNetworkRetries:  c.Engine.MaxNetworkRetries,
		AutoRetryThreshold: c.Engine.AutoRetryThreshold,
		PushMinWait:        c.Engine.PushMinWait,
		PushMaxWait:        c.Engine.PushMaxWait,
		MaxLocalPinGuesses: c.Engine.MaxLocalPinGuesses,
		MaxResolutions:     c.Engine.MaxResolutions,
		RetryBaseDelay:     c.Engine.RetryBaseDelay,
	}
}
