package fingerprint

import (
	"math"
	"testing"
)

func TestHamming(t *testing.T) {
	sizes := []int{128, 256, 512, 1024}

	for _, size := range sizes {
		window := Hamming(size)

		if len(window) != size {
			t.Errorf("Expected window size %d, got %d", size, len(window))
		}

		for i, val := range window {
			if val < 0 || val > 1 {
				t.Errorf("Window value %d out of range [0,1]: %f", i, val)
			}
		}

		// Hamming window should have lower values at edges
		if window[0] >= window[size/2] {
			t.Error("Hamming window should be lower at edges")
		}
	}
}

func TestMagnitudeSpectrum(t *testing.T) {
	spectrum := []complex128{
		complex(1.0, 0.0),
		complex(3.0, 4.0),
		complex(0.0, 1.0),
		complex(0.0, 0.0),
	}

	mag := MagnitudeSpectrum(spectrum)

	if len(mag) != len(spectrum)/2 {
		t.Fatalf("Expected magnitude length %d, got %d", len(spectrum)/2, len(mag))
	}
	if mag[0] != 1.0 || mag[1] != 5.0 {
		t.Errorf("magnitudes = %v, want [1 5]", mag)
	}
}

func TestSTFT(t *testing.T) {
	windowSize := 128
	hopSize := 64

	samples := make([]float64, SampleRate)
	spec, err := STFT(samples, windowSize, hopSize, Hamming(windowSize))
	if err != nil {
		t.Fatalf("STFT failed: %v", err)
	}

	if want := (len(samples)-windowSize)/hopSize + 1; len(spec) != want {
		t.Errorf("Expected %d frames, got %d", want, len(spec))
	}
	if len(spec[0]) != windowSize/2 {
		t.Errorf("Expected %d frequency bins, got %d", windowSize/2, len(spec[0]))
	}
}

func TestSTFTInvalidInput(t *testing.T) {
	if _, err := STFT(make([]float64, 50), 128, 64, Hamming(128)); err == nil {
		t.Error("Expected error with samples shorter than window")
	}
	if _, err := STFT(make([]float64, 512), 128, 64, Hamming(64)); err == nil {
		t.Error("Expected error with mismatched window")
	}
	if _, err := STFT(make([]float64, 512), 128, 0, Hamming(128)); err == nil {
		t.Error("Expected error with zero hop")
	}
}

func TestSpectrogramTonePeak(t *testing.T) {
	// 1 kHz lands on bin 100 at 10 Hz per bin
	samples := make([]float64, 2*SampleRate)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*1000*float64(i)/SampleRate)
	}

	spec, err := ComputeSpectrogramFromSamples(samples, SampleRate, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	frame := spec[len(spec)/2]
	best := 0
	for i := range frame {
		if frame[i] > frame[best] {
			best = i
		}
	}
	if best != 100 {
		t.Errorf("strongest bin %d, want 100", best)
	}
}

func TestExtractPeaks(t *testing.T) {
	samples := normalize(melody(20, 3, SampleRate))
	spec, err := ComputeSpectrogramFromSamples(samples, SampleRate, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	peaks := ExtractPeaks(spec, SampleRate)
	if len(peaks) == 0 {
		t.Fatal("No peaks extracted")
	}

	for i := 1; i < len(peaks); i++ {
		if peaks[i].TimeIdx < peaks[i-1].TimeIdx {
			t.Fatal("Peaks not sorted by time index")
		}
		if peaks[i].TimeIdx == peaks[i-1].TimeIdx && peaks[i].FreqIdx < peaks[i-1].FreqIdx {
			t.Fatal("Peaks not sorted by frequency within same time")
		}
	}

	for i, p := range peaks {
		if p.TimeIdx < 0 || p.TimeIdx >= len(spec) {
			t.Errorf("Peak %d has invalid time index: %d", i, p.TimeIdx)
		}
		if p.FreqIdx < 0 || p.FreqIdx >= len(spec[0]) {
			t.Errorf("Peak %d has invalid freq index: %d", i, p.FreqIdx)
		}
	}
}

func TestExtractPeaksEmptySpectrogram(t *testing.T) {
	if peaks := ExtractPeaks(nil, SampleRate); len(peaks) > 0 {
		t.Error("Expected no peaks from empty spectrogram")
	}
}
