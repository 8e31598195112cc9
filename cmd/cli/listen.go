//go:build !js && !wasm

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/TuneTrigger/internal/config"
	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/models"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/detect"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/fingerprint"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/search"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/source"
)

// handleSimilarity scores two recordings the way the ambient gate does.
func handleSimilarity(args []string) {
	if len(args) != 2 {
		fmt.Println("Usage: tunetrigger similarity <file_a> <file_b>")
		os.Exit(1)
	}
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var prepared [2][]int16
	for i, path := range args {
		buf, err := audio.DecodeFile(ctx, path, cfg.TempDir)
		if err != nil {
			fmt.Printf("❌ Failed to decode %s: %v\n", path, err)
			os.Exit(1)
		}
		prepared[i] = audio.Prepare(buf, fingerprint.SampleRate, cfg.DownmixPolicy())
	}

	cmp, err := fingerprint.NewComparator(fingerprint.SampleRate)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	score := cmp.Compare(prepared[0], prepared[1])
	landmarks := fingerprint.CompareFingerprints(fingerprint.Extract(prepared[0]), fingerprint.Extract(prepared[1]))

	fmt.Printf("\n📈 Spectral similarity:  %.3f (trigger threshold %.2f)\n", score, cfg.Trigger.Threshold)
	fmt.Printf("   Landmark overlap:     %.3f\n", landmarks)
	if score >= cfg.Trigger.Threshold {
		fmt.Println("✅ Would trigger")
	} else {
		fmt.Println("❌ Would not trigger")
	}
}

// handleListen runs the detector until interrupted. Without --input it
// listens on the default microphone for the configured trigger asset;
// with --input it watches a file or stream decoded by ffmpeg.
func handleListen(args []string) {
	listenCmd := flag.NewFlagSet("listen", flag.ExitOnError)
	input := listenCmd.String("input", "", "File or stream URL to watch instead of the microphone")
	realtime := listenCmd.Bool("realtime", true, "Read --input at playback speed")
	duration := listenCmd.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	listenCmd.Parse(args)

	cfg := loadConfig()
	log := logger.GetLogger().With("[listen]")

	svc := createService(cfg)
	defer svc.Close()

	var searcher detect.Searcher = svc
	if cfg.Search.URL != "" {
		client, err := search.NewClient(cfg.Search.URL, search.WithTimeout(cfg.Search.Timeout), search.WithLogger(log))
		if err != nil {
			fmt.Printf("❌ Failed to create search client: %v\n", err)
			os.Exit(1)
		}
		searcher = client
		log.Infof("Searching %s", cfg.Search.URL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	if err := listen(ctx, cfg, searcher, svc, *input, *realtime, log); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

func listen(ctx context.Context, cfg *config.Config, searcher detect.Searcher, recorder detect.Recorder, input string, realtime bool, log *logger.Logger) error {
	var (
		mic      detect.Source
		template *detect.Template
	)
	if input == "" {
		if cfg.Trigger.Asset == "" {
			return errors.New("trigger.asset must be configured to listen on the microphone")
		}
		t, err := detect.LoadTemplate(ctx, cfg.Trigger.Asset, cfg.TempDir, cfg.DownmixPolicy())
		if err != nil {
			return fmt.Errorf("load trigger asset: %w", err)
		}
		template = t
		mic = source.NewMicrophone(cfg.Microphone.SampleRate, cfg.Microphone.FramesPerBuffer)
	}

	opts := append(cfg.DetectOptions(), detect.WithRecorder(recorder), detect.WithLogger(log))
	mgr, err := detect.NewManager(mic, template, searcher, opts...)
	if err != nil {
		return err
	}
	defer mgr.Close()

	if input != "" {
		src := source.NewFFmpeg(input, source.WithRealtime(realtime), source.WithLogger(log))
		if err := mgr.StartStream(ctx, src); err != nil {
			return err
		}
		fmt.Printf("📻 Watching %s (Ctrl+C to stop)\n", input)
	} else {
		if err := mgr.StartAmbient(ctx); err != nil {
			return err
		}
		fmt.Println("🎤 Listening on the microphone (Ctrl+C to stop)")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for ev := range mgr.Events() {
			printMatch(ev)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return mgr.Close()
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Infof("Stopped after %d skipped ticks", mgr.SkippedTicks())
	return nil
}

func printMatch(m models.MatchResult) {
	fmt.Printf("\n🔔 %s [%s] %.1f%% at %s\n", m.Name, m.Type, m.Confidence, m.DateString())
	if m.Description != "" {
		fmt.Printf("   %s\n", m.Description)
	}
	fmt.Printf("   %s\n", m.Info)
}
