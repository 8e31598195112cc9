//go:build !js && !wasm

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/TuneTrigger/internal/config"
	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/models"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger"
)

// Global flags
var (
	dbPath     string
	tempDir    string
	configPath string
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&dbPath, "db", getEnvOrDefault("TUNETRIGGER_DB_PATH", ""), "Path to the SQLite database file")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("TUNETRIGGER_TEMP_DIR", ""), "Directory for temporary audio conversion files")
	flag.StringVar(&configPath, "config", getEnvOrDefault("TUNETRIGGER_CONFIG", ""), "Optional YAML config file")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("❌ Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if lvl, ok := logger.ParseLevel(cfg.LogLevel); ok {
		logger.SetLevel(lvl)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if tempDir != "" {
		cfg.TempDir = tempDir
	}
	return cfg
}

// createService opens the local tune index described by cfg.
func createService(cfg *config.Config) tunetrigger.Service {
	svc, err := tunetrigger.NewService(
		tunetrigger.WithDBPath(cfg.DBPath),
		tunetrigger.WithTempDir(cfg.TempDir),
		tunetrigger.WithDownmix(cfg.DownmixPolicy()),
	)
	if err != nil {
		fmt.Printf("❌ Failed to create service: %v\n", err)
		logger.Errorf("Service initialization failed: %v", err)
		os.Exit(1)
	}
	return svc
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command, rest := args[0], args[1:]
	logger.Debugf("Executing command: %s", command)

	switch command {
	case "add":
		handleAdd(rest)
	case "match":
		handleMatch(rest)
	case "list":
		handleList()
	case "delete":
		handleDelete(rest)
	case "history":
		handleHistory(rest)
	case "similarity":
		handleSimilarity(rest)
	case "listen":
		handleListen(rest)
	case "spectrogram":
		handleSpectrogram(rest)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// splitArgs separates leading positional arguments from the flags after them.
func splitArgs(args []string) (positional, flags []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return positional, args[i:]
		}
		positional = append(positional, arg)
	}
	return positional, nil
}

func handleAdd(args []string) {
	positional, flagArgs := splitArgs(args)

	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	name := addCmd.String("name", "", "Display name (required)")
	info := addCmd.String("info", "", "Action target: URL, phone number, coupon code (required)")
	description := addCmd.String("description", "", "Optional description")
	kind := addCmd.String("type", string(models.MatchOpenPage), "Engagement type: open_page, save_page, phone, sms, coupon, poll, api_call")
	addCmd.Parse(flagArgs)

	if len(positional) != 1 {
		fmt.Println("Usage: tunetrigger add <audio_file> --name <name> --info <target> [--type <type>] [--description <text>]")
		os.Exit(1)
	}
	if *name == "" || *info == "" {
		fmt.Println("Error: --name and --info are required")
		os.Exit(1)
	}
	matchType := models.ParseMatchType(*kind)
	if matchType == models.MatchUnknown {
		fmt.Printf("Error: unknown type %q\n", *kind)
		os.Exit(1)
	}

	cfg := loadConfig()
	fmt.Println("\n🔧 Initializing service...")
	svc := createService(cfg)
	defer svc.Close()

	fmt.Println("🎵 Processing audio file...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	id, err := svc.AddTune(ctx, positional[0], models.TuneMeta{
		Name:        *name,
		Description: *description,
		Info:        *info,
		Type:        matchType,
	})
	if err != nil {
		fmt.Printf("\n❌ Failed to add tune: %v\n", err)
		logger.Errorf("AddTune failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Successfully added tune to database!")
	fmt.Printf("   ID:    %s\n", id)
	fmt.Printf("   Name:  %s\n", *name)
	fmt.Printf("   Type:  %s\n", matchType)
	fmt.Printf("   Info:  %s\n", *info)
}

func handleMatch(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tunetrigger match <audio_file>")
		os.Exit(1)
	}

	cfg := loadConfig()
	svc := createService(cfg)
	defer svc.Close()

	fmt.Println("🔍 Analyzing audio file...")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results, err := svc.MatchFile(ctx, args[0])
	if err != nil {
		fmt.Printf("\n❌ Failed to match: %v\n", err)
		logger.Errorf("MatchFile failed: %v", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("\n❌ No matches found in database")
		return
	}

	fmt.Printf("\n✅ Found %d match(es)!\n\n", len(results))
	shown := min(len(results), 10)
	for i, r := range results[:shown] {
		fmt.Printf("%d. %q (%s)\n", i+1, r.Name, r.Type)
		fmt.Printf("   Score: %d | Confidence: %.1f%% | Offset: %dms\n", r.Score, r.Confidence, r.OffsetMs)
		fmt.Printf("   Info: %s\n\n", r.Info)
	}
	if len(results) > shown {
		fmt.Printf("... and %d more matches\n", len(results)-shown)
	}
}

func handleList() {
	cfg := loadConfig()
	svc := createService(cfg)
	defer svc.Close()

	tunes, err := svc.ListTunes()
	if err != nil {
		fmt.Printf("❌ Failed to list tunes: %v\n", err)
		os.Exit(1)
	}
	if len(tunes) == 0 {
		fmt.Println("\n📭 No tunes in database")
		return
	}

	fmt.Printf("\n📚 Found %d tune(s):\n\n", len(tunes))
	for i, t := range tunes {
		fmt.Printf("%d. %q [%s] (ID: %s)\n", i+1, t.Name, t.Type, t.ID)
		fmt.Printf("   Info: %s\n", t.Info)
		if t.DurationMs > 0 {
			secs := t.DurationMs / 1000
			fmt.Printf("   Duration: %d:%02d\n", secs/60, secs%60)
		}
		fmt.Println()
	}
}

func handleDelete(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: tunetrigger delete <tune_id>")
		os.Exit(1)
	}
	id := args[0]

	cfg := loadConfig()
	svc := createService(cfg)
	defer svc.Close()

	tune, err := svc.GetTune(id)
	if err != nil {
		fmt.Printf("❌ Tune not found (ID: %s)\n", id)
		logger.Warnf("Tune %s not found: %v", id, err)
		os.Exit(1)
	}
	if err := svc.DeleteTune(id); err != nil {
		fmt.Printf("❌ Failed to delete tune: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Successfully deleted tune:\n")
	fmt.Printf("   ID:    %s\n", tune.ID)
	fmt.Printf("   Name:  %s\n", tune.Name)
}

func handleHistory(args []string) {
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Printf("❌ Invalid limit: %v\n", err)
			os.Exit(1)
		}
		limit = n
	}

	cfg := loadConfig()
	svc := createService(cfg)
	defer svc.Close()

	entries, err := svc.History(context.Background(), limit)
	if err != nil {
		fmt.Printf("❌ Failed to read history: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("\n📭 No saved matches")
		return
	}

	fmt.Printf("\n🕘 %d saved match(es):\n\n", len(entries))
	for i, e := range entries {
		fmt.Printf("%d. %q [%s] %.1f%% at %s\n", i+1, e.Name, e.Type, e.Confidence, e.HeardAt.Format(time.DateTime))
		fmt.Printf("   Info: %s\n", e.Info)
	}
}

func printUsage() {
	fmt.Println("TuneTrigger - audio trigger detection CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>        Path to SQLite database (env: TUNETRIGGER_DB_PATH)")
	fmt.Println("  --temp <dir>       Temporary directory for audio conversion (env: TUNETRIGGER_TEMP_DIR)")
	fmt.Println("  --config <file>    YAML configuration (env: TUNETRIGGER_CONFIG)")
	fmt.Println("\nUsage:")
	fmt.Println("  tunetrigger [global-options] add <audio_file> --name <name> --info <target> [--type <type>] [--description <text>]")
	fmt.Println("  tunetrigger [global-options] match <audio_file>")
	fmt.Println("  tunetrigger [global-options] list")
	fmt.Println("  tunetrigger [global-options] delete <tune_id>")
	fmt.Println("  tunetrigger [global-options] history [limit]")
	fmt.Println("  tunetrigger [global-options] similarity <file_a> <file_b>")
	fmt.Println("  tunetrigger [global-options] listen [--input <file_or_url>] [--realtime] [--duration <d>]")
	fmt.Println("  tunetrigger [global-options] spectrogram <wav_dir> [--out <dir>]")
	fmt.Println("\nExamples:")
	fmt.Println("  # Register an advert that opens a page")
	fmt.Println("  tunetrigger add advert.mp3 --name \"Spring Sale\" --info https://example.com/sale")
	fmt.Println()
	fmt.Println("  # Listen on the microphone for the configured trigger tone")
	fmt.Println("  tunetrigger --config tunetrigger.yaml listen")
	fmt.Println()
	fmt.Println("  # Watch a radio stream")
	fmt.Println("  tunetrigger listen --input https://radio.example.com/live.mp3")
}
