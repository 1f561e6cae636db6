// Package config loads the YAML file backing cmd/sessionclient, assembling
// a single root Config struct from flags and an optional file.
package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/oxen-io/session-network-core/pkg/log"
	"gopkg.in/yaml.v3"
)

// Identity holds the caller's long-term key material: an Ed25519 signing
// key for open-group posts and a Curve25519 key for the open-group
// challenge exchange.
type Identity struct {
	PublicKeyHex        string `yaml:"public_key"`
	SigningPrivateHex   string `yaml:"signing_private_key"`
	ChallengePrivateHex string `yaml:"challenge_private_key"`
}

// Config is the root configuration for cmd/sessionclient.
type Config struct {
	Seeds       []string `yaml:"seeds"`
	DataDir     string   `yaml:"data_dir"`
	MetricsAddr string   `yaml:"metrics_addr"`
	LogLevel    string   `yaml:"log_level"`
	LogJSON     bool     `yaml:"log_json"`
	Identity    Identity `yaml:"identity"`
}

// Default returns a Config with sane defaults applied.
func Default() Config {
	return Config{
		DataDir:     "./sessionclient-data",
		MetricsAddr: "127.0.0.1:9091",
		LogLevel:    "info",
	}
}

// Load reads and parses a YAML config file at path, starting from
// Default() so a partial file only overrides what it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// SigningKey decodes the hex-encoded Ed25519 private key, returning nil
// when none is configured.
func (c Config) SigningKey() (ed25519.PrivateKey, error) {
	if c.Identity.SigningPrivateHex == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(c.Identity.SigningPrivateHex)
	if err != nil {
		return nil, fmt.Errorf("decode signing_private_key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing_private_key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

// ChallengeKey decodes the hex-encoded Curve25519 private key, returning
// nil when none is configured.
func (c Config) ChallengeKey() ([]byte, error) {
	if c.Identity.ChallengePrivateHex == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(c.Identity.ChallengePrivateHex)
	if err != nil {
		return nil, fmt.Errorf("decode challenge_private_key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("challenge_private_key must be 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// LogConfig adapts Config's logging fields to pkg/log.Config.
func (c Config) LogConfig() log.Config {
	return log.Config{Level: log.Level(c.LogLevel), JSONOutput: c.LogJSON}
}
