package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/idlink/internal/flagx"
	"github.com/dmitrijs2005/idlink/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for JSON and YAML decoding. Durations use
// timex.Duration, so both "8760h" and integer nanoseconds are accepted.
type FileConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc" yaml:"endpoint_addr_grpc"`
	DatabaseDSN      string         `json:"database_dsn" yaml:"database_dsn"`
	SecretKey        string         `json:"secret_key" yaml:"secret_key"`
	TokenTTL         timex.Duration `json:"token_ttl" yaml:"token_ttl"`
	TokenMaxTTL      timex.Duration `json:"token_max_ttl" yaml:"token_max_ttl"`
	EmailDomain      string         `json:"email_domain" yaml:"email_domain"`
	EmailProviders   []string       `json:"email_providers" yaml:"email_providers"`
	Storage          string         `json:"storage" yaml:"storage"`
	TokenStore       string         `json:"token_store" yaml:"token_store"`
	RedisAddr        string         `json:"redis_addr" yaml:"redis_addr"`
	LogBackend       string         `json:"log_backend" yaml:"log_backend"`
	Tracing          bool           `json:"tracing" yaml:"tracing"`
	CredentialsKey   string         `json:"credentials_key" yaml:"credentials_key"`
}

func fileConfigFrom(c *Config) *FileConfig {
	return &FileConfig{
		EndpointAddrGRPC: c.EndpointAddrGRPC,
		DatabaseDSN:      c.DatabaseDSN,
		SecretKey:        c.SecretKey,
		TokenTTL:         timex.Duration{Duration: c.TokenTTL},
		TokenMaxTTL:      timex.Duration{Duration: c.TokenMaxTTL},
		EmailDomain:      c.EmailDomain,
		EmailProviders:   c.EmailProviders,
		Storage:          c.Storage,
		TokenStore:       c.TokenStore,
		RedisAddr:        c.RedisAddr,
		LogBackend:       c.LogBackend,
		Tracing:          c.Tracing,
		CredentialsKey:   c.CredentialsKey,
	}
}

func (f *FileConfig) apply(c *Config) {
	c.EndpointAddrGRPC = f.EndpointAddrGRPC
	c.DatabaseDSN = f.DatabaseDSN
	c.SecretKey = f.SecretKey
	c.TokenTTL = f.TokenTTL.Duration
	c.TokenMaxTTL = f.TokenMaxTTL.Duration
	c.EmailDomain = f.EmailDomain
	c.EmailProviders = f.EmailProviders
	c.Storage = f.Storage
	c.TokenStore = f.TokenStore
	c.RedisAddr = f.RedisAddr
	c.LogBackend = f.LogBackend
	c.Tracing = f.Tracing
	c.CredentialsKey = f.CredentialsKey
}

// decodeFile unmarshals data over the current values of config, so keys
// missing from the file keep their previous value. Files ending in .yaml or
// .yml are YAML, everything else is JSON.
func decodeFile(path string, data []byte, config *Config) error {
	c := fileConfigFrom(config)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return err
		}
	default:
		if err := json.Unmarshal(data, c); err != nil {
			return err
		}
	}

	c.apply(config)
	return nil
}

// parseFile loads configuration values from the file named by the -c or
// -config flag. Without the flag nothing is loaded. An unreadable or
// malformed file panics.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlags()

	// nothing to load
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	if err := decodeFile(path, data, config); err != nil {
		panic(err)
	}
}
