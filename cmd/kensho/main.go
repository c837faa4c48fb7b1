// Package main is the Kensho CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensho/internal/audit"
	"github.com/hyperjump/kensho/internal/config"
	"github.com/hyperjump/kensho/internal/extract"
	"github.com/hyperjump/kensho/internal/generate"
	"github.com/hyperjump/kensho/internal/pipeline"
	"github.com/hyperjump/kensho/internal/server"
	"github.com/hyperjump/kensho/internal/storage"
	"github.com/hyperjump/kensho/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kensho/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "kensho server" from the project dir uses the project's
// config. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "upload":
		runUpload()
	case "generate":
		runGenerate()
	case "export":
		runExport()
	case "audit":
		runAudit()
	case "version", "--version", "-v":
		fmt.Printf("kensho version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()
	blobs, err := storage.NewDiskStore(cfg.Storage.BlobDir)
	if err != nil {
		logger.Fatal("Failed to open blob store", zap.Error(err))
	}

	apiKey := os.Getenv(cfg.Generation.APIKeyEnv)
	gen, err := generate.NewGeminiGenerator(context.Background(), apiKey, cfg.Generation.Model)
	if err != nil {
		logger.Fatal("Failed to create generator",
			zap.String("api_key_env", cfg.Generation.APIKeyEnv),
			zap.Error(err))
	}

	dict := extract.NewDictionary(cfg.Compliance.Standards)
	orch := generate.NewOrchestrator(gen, cfg.Generation, dict, logger)
	p := pipeline.New(cfg, store, blobs, extract.NewExtractor(dict), orch, audit.NewLogger(store, logger), logger)
	if err := p.Rebuild(context.Background()); err != nil {
		logger.Fatal("Failed to rebuild traceability index", zap.Error(err))
	}

	srv := server.NewServer(p, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// mediaTypeForFile maps a filename extension to the upload media type.
func mediaTypeForFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf", nil
	case ".docx":
		return config.MediaTypeDOCX, nil
	case ".txt":
		return "text/plain", nil
	case ".json":
		return "application/json", nil
	}
	return "", fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	actor := fs.String("actor", "cli", "actor recorded in the audit trail")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensho upload [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	mediaType, err := mediaTypeForFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodPost, *serverURL+"/api/v1/documents", strings.NewReader(string(data)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", mediaType)
	req.Header.Set("X-Kensho-Filename", filepath.Base(path))
	req.Header.Set("X-Kensho-Actor", *actor)
	printResponse(req)
}

func runGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	actor := fs.String("actor", "cli", "actor recorded in the audit trail")
	force := fs.Bool("force", false, "regenerate even when a completed run exists")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensho generate [flags] <document-id>")
		os.Exit(1)
	}
	endpoint := fmt.Sprintf("%s/api/v1/documents/%s/generate?force=%t", *serverURL, fs.Arg(0), *force)
	req, err := http.NewRequest(http.MethodPost, endpoint, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Generate failed: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Kensho-Actor", *actor)
	printResponse(req)
}

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	output := fs.String("output", "", "output file (default kensho-<id>.<format>)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: kensho export [flags] <document-id> <csv|xlsx|pdf>")
		os.Exit(1)
	}
	docID, format := fs.Arg(0), fs.Arg(1)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/documents/%s/export/%s", *serverURL, docID, format))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Export failed: server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}

	out := *output
	if out == "" {
		out = fmt.Sprintf("kensho-%s.%s", docID, format)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(data), out)
}

func runAudit() {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	actor := fs.String("actor", "", "filter by actor")
	action := fs.String("action", "", "filter by action")
	target := fs.String("target", "", "filter by target id")
	limit := fs.Int("limit", 0, "maximum entries (0 = all)")
	_ = fs.Parse(os.Args[2:])

	q := url.Values{}
	if *actor != "" {
		q.Set("actor", *actor)
	}
	if *action != "" {
		q.Set("action", *action)
	}
	if *target != "" {
		q.Set("target", *target)
	}
	if *limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", *limit))
	}
	endpoint := *serverURL + "/api/v1/audit"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Audit query failed: %v\n", err)
		os.Exit(1)
	}
	printResponse(req)
}

// printResponse executes req and streams the JSON response to stdout.
func printResponse(req *http.Request) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}
	fmt.Println(strings.TrimSpace(string(body)))
}

func printUsage() {
	fmt.Println(`Kensho - requirements to test cases for healthcare software

Usage:
  kensho server [-config path] [-debug]         Start the API server
  kensho upload [-server url] <file>            Upload a requirements document
  kensho generate [-server url] [-force] <id>   Generate test cases for a document
  kensho export [-server url] <id> <format>     Export traceability (csv, xlsx, pdf)
  kensho audit [-server url] [filters]          Query the audit trail
  kensho version                                Show version
  kensho help                                   Show this help`)
}
