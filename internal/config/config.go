package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"openchat/assistant/internal/model"
)

type Config struct {
	DatabasePath     string        `mapstructure:"DATABASE_PATH"`
	PrefsPath        string        `mapstructure:"PREFS_PATH"`
	AccountsFile     string        `mapstructure:"ACCOUNTS_FILE"`
	HistoryLimit     int           `mapstructure:"HISTORY_LIMIT"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	ListenAddr       string        `mapstructure:"LISTEN_ADDR"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ThrottleInterval time.Duration `mapstructure:"THROTTLE_INTERVAL"`
	WatchDebounce    time.Duration `mapstructure:"WATCH_DEBOUNCE"`
}

// LoadConfig reads defaults, an optional .env file and the environment, in
// increasing order of precedence. The returned viper instance reports which
// file, if any, was used.
func LoadConfig() (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetDefault("DATABASE_PATH", "data/assistant.db")
	v.SetDefault("PREFS_PATH", "data/defaults.db")
	v.SetDefault("ACCOUNTS_FILE", "")
	v.SetDefault("HISTORY_LIMIT", 10)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("LISTEN_ADDR", "127.0.0.1:8787")
	v.SetDefault("REQUEST_TIMEOUT", "5m")
	v.SetDefault("THROTTLE_INTERVAL", "100ms")
	v.SetDefault("WATCH_DEBOUNCE", "150ms")

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, err
	}
	return &cfg, v, nil
}

type accountSeed struct {
	Name  string `toml:"name"`
	Host  string `toml:"host"`
	Path  string `toml:"path"`
	Key   string `toml:"key"`
	Model string `toml:"model"`
}

type accountsFile struct {
	Accounts []accountSeed `toml:"accounts"`
}

// LoadAccountsFile reads endpoint accounts from a TOML file of the form
//
//	[[accounts]]
//	name  = "Work"
//	host  = "api.openai.com"
//	path  = "/v1"
//	key   = "sk-..."
//	model = "gpt-4o-mini"
//
// A missing file yields no accounts and no error.
func LoadAccountsFile(path string) ([]model.Account, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var f accountsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %s: %w", path, err)
	}

	accounts := make([]model.Account, 0, len(f.Accounts))
	for _, s := range f.Accounts {
		accounts = append(accounts, model.Account{
			Name:  s.Name,
			Host:  s.Host,
			Path:  s.Path,
			Key:   s.Key,
			Model: s.Model,
		})
	}
	return accounts, nil
}
