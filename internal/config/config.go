// Package config provides configuration loading and structs for the Kensho server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Upload     UploadConfig     `yaml:"upload"`
	Generation GenerationConfig `yaml:"generation"`
	Compliance ComplianceConfig `yaml:"compliance"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and the document blob store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	BlobDir      string `yaml:"blob_dir"`
}

// UploadConfig holds ingestion limits and the media type allow-list.
type UploadConfig struct {
	MaxSizeBytes int64    `yaml:"max_size_bytes"`
	AllowedTypes []string `yaml:"allowed_media_types"`
}

// Allowed reports whether mediaType is on the upload allow-list.
func (u *UploadConfig) Allowed(mediaType string) bool {
	for _, t := range u.AllowedTypes {
		if t == mediaType {
			return true
		}
	}
	return false
}

// GenerationConfig holds AI generation settings: the model, the bounded
// retry policy, and run-slot contention behavior. QueueDepth 0 rejects a
// second run for the same document immediately; >0 queues FIFO up to that
// many waiters.
type GenerationConfig struct {
	Model              string `yaml:"model"`
	APIKeyEnv          string `yaml:"api_key_env"`
	MaxAttempts        int    `yaml:"max_attempts"`
	InitialBackoffMS   int    `yaml:"initial_backoff_ms"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
	QueueDepth         int    `yaml:"queue_depth"`
}

// InitialBackoff returns the first retry interval.
func (g *GenerationConfig) InitialBackoff() time.Duration {
	return time.Duration(g.InitialBackoffMS) * time.Millisecond
}

// RequestTimeout returns the per-call AI request timeout.
func (g *GenerationConfig) RequestTimeout() time.Duration {
	return time.Duration(g.RequestTimeoutSecs) * time.Second
}

// Standard is one compliance standard in the dictionary: a stable id, a
// display name, and the keywords that tag a requirement with it.
type Standard struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// ComplianceConfig holds the read-only compliance dictionary.
type ComplianceConfig struct {
	Standards []Standard `yaml:"standards"`
}

// Names returns the standard names in dictionary order.
func (c *ComplianceConfig) Names() []string {
	names := make([]string, len(c.Standards))
	for i, s := range c.Standards {
		names[i] = s.Name
	}
	return names
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BlobDir = expandPath(cfg.Storage.BlobDir, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
