package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/TuneTrigger/pkg/utils"
)

// DecodeFile reads an audio file into 16-bit PCM at its native rate and
// channel count. WAV files are read directly; anything else is converted by
// ffmpeg through a temporary WAV in tempDir.
func DecodeFile(ctx context.Context, path, tempDir string) (Buffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		buf, err := ReadWAV(path)
		if err == nil {
			return buf, nil
		}
		// fall through to ffmpeg for WAV encodings the reader can't handle
	}

	meta, err := Probe(ctx, path)
	if err != nil {
		return Buffer{}, fmt.Errorf("probe %s: %w", path, err)
	}

	wavPath, err := ConvertToWAV(ctx, path, tempDir, meta.PCMFormat())
	if err != nil {
		return Buffer{}, err
	}
	defer os.Remove(wavPath)

	return ReadWAV(wavPath)
}

// ConvertToWAV transcodes inputPath to a 16-bit PCM WAV with the given
// format and returns the path of the new file inside outputDir.
func ConvertToWAV(ctx context.Context, inputPath, outputDir string, f Format) (string, error) {
	if !f.Valid() {
		return "", fmt.Errorf("convert %s: invalid target format %+v", inputPath, f)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	if outputDir == "" {
		outputDir = os.TempDir()
	}
	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, base+".wav")

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", fmt.Sprintf("%d", f.Channels),
		"-ar", fmt.Sprintf("%d", f.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}
