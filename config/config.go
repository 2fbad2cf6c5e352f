// Package config resolves nettabled's runtime configuration from
// environment variables and an optional config file, layered through
// viper the way the rest of the example pack configures its services.
// Command-line flags are not read here; nettabled applies its own flag
// overrides to the returned Config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is nettabled's resolved runtime configuration.
type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	PersistPath     string        `mapstructure:"persist_path"`
	PersistInterval time.Duration `mapstructure:"persist_interval"`
	DataLogPath     string        `mapstructure:"data_log_path"`
	DataLogPrefix   string        `mapstructure:"data_log_prefix"`
	Server          bool          `mapstructure:"server"`
	LogLevel        string        `mapstructure:"log_level"`
}

// Defaults holds the fallback values used when no flag, environment
// variable, or config file entry overrides them.
var Defaults = Config{
	ListenAddr:      ":1735",
	PersistPath:     "networktables.ini",
	PersistInterval: time.Second,
	DataLogPrefix:   "",
	Server:          true,
	LogLevel:        "info",
}

// Load resolves a Config from configFile (if non-empty) layered under
// environment variables prefixed NETTABLE_ and finally Defaults.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NETTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", Defaults.ListenAddr)
	v.SetDefault("persist_path", Defaults.PersistPath)
	v.SetDefault("persist_interval", Defaults.PersistInterval)
	v.SetDefault("data_log_prefix", Defaults.DataLogPrefix)
	v.SetDefault("server", Defaults.Server)
	v.SetDefault("log_level", Defaults.LogLevel)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
