// Package config loads didkey settings from the environment and an optional
// YAML file using Viper.
//
// # Environment Variables
//
//   - WALLET_ID: store identifier. Default: test-wallet
//   - WALLET_KEY: store passphrase. Default: test-key
//   - LOG_LEVEL (or CREDO_LOG_LEVEL): logger threshold. Default: info
//   - STORE_BACKEND: registered wallet backend. Default: sqlite
//   - STORE_PATH: directory holding stores. Default: ~/.didkey/wallets
//   - KEY_SCHEME: signature scheme. Default: ed25519
//   - DID_RELATIONSHIPS: comma-separated relationships for new identifiers.
//     Default: authentication
//
// Environment variables take precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"xdao.co/didkey/did"
	"xdao.co/didkey/logger"
	"xdao.co/didkey/wallet"
)

type Config struct {
	WalletID         string   `mapstructure:"WALLET_ID"`
	WalletKey        string   `mapstructure:"WALLET_KEY"`
	LogLevel         string   `mapstructure:"LOG_LEVEL"`
	StoreBackend     string   `mapstructure:"STORE_BACKEND"`
	StorePath        string   `mapstructure:"STORE_PATH"`
	KeyScheme        string   `mapstructure:"KEY_SCHEME"`
	DIDRelationships []string `mapstructure:"DID_RELATIONSHIPS"`

	level  logger.Level
	scheme did.Scheme
	rels   []did.Relationship
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("WALLET_ID", "test-wallet")
	v.SetDefault("WALLET_KEY", "test-key")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", "sqlite")
	v.SetDefault("STORE_PATH", filepath.Join("~", ".didkey", "wallets"))
	v.SetDefault("KEY_SCHEME", "ed25519")
	v.SetDefault("DID_RELATIONSHIPS", []string{string(did.Authentication)})

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("LOG_LEVEL", "LOG_LEVEL", "CREDO_LOG_LEVEL")
	return v
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	return build(newViper())
}

// LoadFile reads configuration from a YAML file, then the environment.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field and caches the parsed values.
func (c *Config) Validate() error {
	if err := wallet.CheckStoreID(c.WalletID); err != nil {
		return fmt.Errorf("config: WALLET_ID: %w", err)
	}
	if c.WalletKey == "" {
		return fmt.Errorf("config: WALLET_KEY is required")
	}
	if c.StoreBackend == "" {
		return fmt.Errorf("config: STORE_BACKEND is required")
	}
	path, err := expandHome(c.StorePath)
	if err != nil {
		return fmt.Errorf("config: STORE_PATH: %w", err)
	}
	c.StorePath = path

	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	scheme, err := did.ParseScheme(c.KeyScheme)
	if err != nil {
		return fmt.Errorf("config: KEY_SCHEME: %w", err)
	}
	rels := make([]did.Relationship, 0, len(c.DIDRelationships))
	for _, name := range c.DIDRelationships {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		r, err := did.ParseRelationship(name)
		if err != nil {
			return fmt.Errorf("config: DID_RELATIONSHIPS: %w", err)
		}
		rels = append(rels, r)
	}

	c.level, c.scheme, c.rels = level, scheme, rels
	return nil
}

func expandHome(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if path != "~" && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (c *Config) Level() logger.Level { return c.level }

func (c *Config) Scheme() did.Scheme { return c.scheme }

// Relationships returns the configured relationships. Empty means the
// engine default.
func (c *Config) Relationships() []did.Relationship {
	return append([]did.Relationship(nil), c.rels...)
}

// Wallet returns the store config for the lifecycle manager.
func (c *Config) Wallet() wallet.Config {
	return wallet.Config{ID: c.WalletID, Key: c.WalletKey, Path: c.StorePath}
}

// DIDOptions returns synthesis options for new identifiers.
func (c *Config) DIDOptions() did.Options {
	return did.Options{Scheme: c.scheme, Relationships: c.Relationships()}
}
