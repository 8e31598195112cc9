//go:build !js && !wasm

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/TuneTrigger/internal/config"
	"github.com/himanishpuri/TuneTrigger/internal/observe"
	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/detect"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/search"
)

var (
	port           int
	dbPath         string
	tempDir        string
	configPath     string
	searchURL      string
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("TUNETRIGGER_DB_PATH", ""), "Path to SQLite database")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("TUNETRIGGER_TEMP_DIR", ""), "Temporary directory")
	flag.StringVar(&configPath, "config", getEnvOrDefault("TUNETRIGGER_CONFIG", ""), "Optional YAML config file")
	flag.StringVar(&searchURL, "search", getEnvOrDefault("TUNETRIGGER_SEARCH_URL", ""), "Remote search endpoint for live sessions (default: local index)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if lvl, ok := logger.ParseLevel(cfg.LogLevel); ok {
		log.SetLevel(lvl)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if tempDir != "" {
		cfg.TempDir = tempDir
	}
	if searchURL != "" {
		cfg.Search.URL = searchURL
	}

	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "tunetrigger-server"})
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer shutdown(context.Background())

	metrics, err := observe.NewMetrics(nil)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	service, err := tunetrigger.NewService(
		tunetrigger.WithDBPath(cfg.DBPath),
		tunetrigger.WithTempDir(cfg.TempDir),
		tunetrigger.WithDownmix(cfg.DownmixPolicy()),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	var searcher detect.Searcher
	if cfg.Search.URL != "" {
		client, err := search.NewClient(cfg.Search.URL, search.WithTimeout(cfg.Search.Timeout))
		if err != nil {
			log.Fatalf("Failed to create search client: %v", err)
		}
		searcher = client
	}

	server := NewServer(service, searcher, &ServerConfig{
		Port:           port,
		DBPath:         cfg.DBPath,
		TempDir:        cfg.TempDir,
		AllowedOrigins: origins,
		DetectOptions:  cfg.DetectOptions(),
	}, metrics)

	if err := server.Run(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		os.Exit(1)
	}
}
