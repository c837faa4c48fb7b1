package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./data/db/kensho.db"
  blob_dir: "./data/blobs"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "kensho.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantBlob := filepath.Join(dir, "data", "blobs")
	if cfg.Storage.BlobDir != wantBlob {
		t.Errorf("blob_dir = %s, want %s", cfg.Storage.BlobDir, wantBlob)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Upload.MaxSizeBytes != 5<<20 {
		t.Errorf("default max_size_bytes: got %d", cfg.Upload.MaxSizeBytes)
	}
	if len(cfg.Upload.AllowedTypes) != 4 || cfg.Upload.AllowedTypes[0] != "application/pdf" {
		t.Errorf("allowed media types: got %v", cfg.Upload.AllowedTypes)
	}
	if cfg.Generation.MaxAttempts != 3 {
		t.Errorf("default max_attempts: got %d", cfg.Generation.MaxAttempts)
	}
	if cfg.Generation.QueueDepth != 0 {
		t.Errorf("default queue_depth: got %d", cfg.Generation.QueueDepth)
	}
	if got := cfg.Generation.InitialBackoff(); got != 250*time.Millisecond {
		t.Errorf("initial backoff: got %v", got)
	}
	if got := cfg.Generation.RequestTimeout(); got != 30*time.Second {
		t.Errorf("request timeout: got %v", got)
	}
	if len(cfg.Compliance.Standards) == 0 {
		t.Fatal("compliance standards should be seeded by default")
	}
	names := cfg.Compliance.Names()
	if names[0] != "HIPAA" {
		t.Errorf("first standard: got %s", names[0])
	}
}

func TestUploadConfig_Allowed(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if !cfg.Upload.Allowed("application/pdf") {
		t.Error("pdf should be allowed")
	}
	if !cfg.Upload.Allowed(MediaTypeDOCX) {
		t.Error("docx should be allowed")
	}
	if cfg.Upload.Allowed("image/png") {
		t.Error("png should not be allowed")
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
