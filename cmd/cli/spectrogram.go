//go:build !js && !wasm

package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/eligwz/spectrogram"

	"github.com/himanishpuri/TuneTrigger/pkg/logger"
	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
)

const (
	spectrogramWidth  = 2048
	spectrogramHeight = 512
)

// handleSpectrogram renders a PNG spectrogram for every WAV file under a
// directory. Useful when tuning the trigger threshold against real captures.
func handleSpectrogram(args []string) {
	positional, flagArgs := splitArgs(args)

	specCmd := flag.NewFlagSet("spectrogram", flag.ExitOnError)
	outDir := specCmd.String("out", "spectrograms", "Output directory for PNG files")
	specCmd.Parse(flagArgs)

	if len(positional) != 1 {
		fmt.Println("Usage: tunetrigger spectrogram <wav_dir> [--out <dir>]")
		os.Exit(1)
	}
	cfg := loadConfig()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	var rendered int
	err := filepath.WalkDir(positional[0], func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}

		out := filepath.Join(*outDir, filepath.Base(path)+".png")
		if err := renderSpectrogram(path, out, cfg.DownmixPolicy()); err != nil {
			logger.Warnf("Skipping %s: %v", path, err)
			return nil
		}
		fmt.Printf("Saved spectrogram to %s\n", out)
		rendered++
		return nil
	})
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Rendered %d spectrogram(s)\n", rendered)
}

func renderSpectrogram(in, out string, policy audio.DownmixPolicy) error {
	buf, err := audio.ReadWAV(in)
	if err != nil {
		return err
	}
	mono := audio.ToMono(buf, policy)
	if mono.Frames() == 0 {
		return fmt.Errorf("no samples")
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, spectrogramWidth, spectrogramHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(spectrogram.ParseColor("000000")), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude.
	spectrogram.Drawfft(
		img,
		audio.Float64(mono.Samples()),
		uint32(mono.SampleRate),
		uint32(spectrogramHeight),
		false,
		false,
		true,
		false,
	)
	return spectrogram.SavePng(img, out)
}
