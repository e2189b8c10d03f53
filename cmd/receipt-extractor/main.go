package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"google.golang.org/api/option"

	"github.com/zombor/receipt-extractor/internal/receipt"
	"github.com/zombor/receipt-extractor/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; the environment and flags still apply
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("receipt-extractor")
	var (
		port             = fs.IntLong("port", 8080, "HTTP server port")
		provider         = fs.StringLong("provider", "groq", "Extraction provider: 'groq', 'gemini' or 'ollama'")
		model            = fs.StringLong("model", "", "Model name (defaults to the provider's recommended vision model)")
		baseURL          = fs.StringLong("base-url", "", "Provider API base URL (defaults to the provider's public endpoint)")
		cacheTTL         = fs.DurationLong("cache-ttl", receipt.DefaultCacheTTL, "How long extraction results are reused")
		cacheDB          = fs.StringLong("cache-db", "", "BoltDB file for a persistent cache (empty keeps the cache in memory)")
		credentialPrefix = fs.StringLong("credential-prefix", "gsk_", "Expected API key prefix; mismatches are logged, not rejected")
		authUser         = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass         = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion      = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_EXTRACTOR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *cacheTTL <= 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: cache-ttl must be positive, got %s\n", *cacheTTL)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize scanner based on provider
	var (
		scanner scanning.Scanner
		err     error
	)
	switch *provider {
	case "groq":
		slog.Info("Initializing Groq scanner...", "url", *baseURL, "model", *model)
		scanner, err = scanning.NewGroq(*baseURL, *model)
	case "gemini":
		var opts []option.ClientOption
		if *baseURL != "" {
			opts = append(opts, option.WithEndpoint(*baseURL))
		}
		slog.Info("Initializing Gemini scanner...", "model", *model)
		scanner, err = scanning.NewGemini(*model, opts...)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *baseURL, "model", *model)
		scanner, err = scanning.NewOllama(*baseURL, *model)
	default:
		slog.Error("Invalid provider", "provider", *provider, "valid", "groq, gemini or ollama")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize scanner", "provider", *provider, "error", err)
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize cache
	var cache receipt.Cache
	if *cacheDB != "" {
		slog.Info("Initializing persistent cache...", "path", *cacheDB, "ttl", *cacheTTL)
		boltCache, err := receipt.NewBoltCache(*cacheDB, *cacheTTL)
		if err != nil {
			slog.Error("Failed to initialize cache", "error", err)
			os.Exit(1)
		}
		defer boltCache.Close()

		if removed, err := boltCache.Prune(); err != nil {
			slog.Warn("Failed to prune cache", "error", err)
		} else if removed > 0 {
			slog.Info("Pruned expired cache entries", "removed", removed)
		}
		go pruneEvery(ctx, boltCache, boltCache.TTL())
		cache = boltCache
	} else {
		slog.Info("Initializing in-memory cache...", "ttl", *cacheTTL)
		cache = receipt.NewMemoryCache(*cacheTTL)
	}

	// Initialize service
	extractionService := receipt.NewServiceWithDeps(scanner, cache, *credentialPrefix)

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(extractionService, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// pruneEvery removes expired cache entries once per interval until ctx is done
func pruneEvery(ctx context.Context, cache *receipt.BoltCache, interval time.Duration) {
	if interval <= 0 {
		interval = receipt.DefaultCacheTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := cache.Prune(); err != nil {
				slog.Warn("Failed to prune cache", "error", err)
			} else if removed > 0 {
				slog.Info("Pruned expired cache entries", "removed", removed)
			}
		}
	}
}
