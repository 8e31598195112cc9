package fingerprint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
)

const (
	compareWindow = 1024
	compareHop    = 512
	compareBands  = 24
	minBandHz     = 50.0

	// frames with RMS below this (on samples scaled to [-1, 1]) count as silent
	silentRMS = 1e-4
	// band power floor, about 60 dB under a loud tone
	bandFloor = 1e-2
	// mean per-band variance of log energy under which a sound counts as steady
	steadyVariance = 1e-3
)

// Uninitialized is what the comparator reports when it has no state.
const Uninitialized = -1.0

// Comparator scores how alike two mono PCM buffers sound from their log
// band-energy profiles.
type Comparator struct {
	sampleRate int
	window     []float64
	edges      []int // compareBands+1 bin boundaries
}

type bandFrame struct {
	bands    []float64 // log energy
	contrast []float64 // each band against its neighbours
	silent   bool
}

type bandProfile struct {
	frames []bandFrame
	steady bool // no band moves over time, e.g. a held tone
}

func NewComparator(sampleRate int) (*Comparator, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid comparator sample rate %d", sampleRate)
	}
	return &Comparator{
		sampleRate: sampleRate,
		window:     Hamming(compareWindow),
		edges:      bandEdges(sampleRate, compareWindow, compareBands),
	}, nil
}

// SampleRate is the rate both inputs of Compare must be at.
func (c *Comparator) SampleRate() int {
	if c == nil {
		return 0
	}
	return c.sampleRate
}

// Compare returns a similarity in [0, 1]. The shorter buffer is slid across
// the longer one frame by frame and the best alignment wins.
//
// Sounds that change over time are scored by how their band envelopes move
// together. Each band is taken against its spectral neighbours and then
// against its own mean over the span, so a shared spectral tilt or a
// broadband click contributes nothing and unrelated content scores near zero. When either
// side is steady there is no movement to follow and the per-frame spectral
// shapes are correlated instead. The score is symmetric in its arguments.
// It returns Uninitialized for a nil or zero-value comparator.
func (c *Comparator) Compare(a, b []int16) float64 {
	if c == nil || c.window == nil {
		return Uninitialized
	}

	pa := c.profile(a)
	pb := c.profile(b)
	if len(pa.frames) == 0 || len(pb.frames) == 0 {
		return 0
	}

	score := envelopeCorrelation
	if pa.steady || pb.steady {
		score = shapeCorrelation
	}

	short, long := pa.frames, pb.frames
	if len(short) > len(long) {
		short, long = long, short
	}

	best := 0.0
	for off := 0; off+len(short) <= len(long); off++ {
		if s := score(short, long[off:off+len(short)]); s > best {
			best = s
		}
	}
	return clamp01(best)
}

// CompareBytes is Compare on little-endian PCM bytes.
func (c *Comparator) CompareBytes(a, b []byte) float64 {
	if c == nil || c.window == nil {
		return Uninitialized
	}
	return c.Compare(audio.BytesToSamples(a), audio.BytesToSamples(b))
}

func (c *Comparator) profile(samples []int16) bandProfile {
	if len(samples) < compareWindow {
		return bandProfile{}
	}

	x := audio.Float64(samples)
	nFrames := (len(x)-compareWindow)/compareHop + 1
	out := make([]bandFrame, 0, nFrames)
	frame := make([]float64, compareWindow)
	floor := math.Log10(bandFloor)

	for start := 0; start+compareWindow <= len(x); start += compareHop {
		raw := x[start : start+compareWindow]
		bands := make([]float64, compareBands)

		rms := math.Sqrt(floats.Dot(raw, raw) / float64(compareWindow))
		if rms < silentRMS {
			for k := range bands {
				bands[k] = floor
			}
			out = append(out, bandFrame{bands: bands, contrast: make([]float64, compareBands), silent: true})
			continue
		}

		floats.MulTo(frame, raw, c.window)
		mag := MagnitudeSpectrum(FFTReal(frame))

		for k := 0; k < compareBands; k++ {
			lo, hi := c.edges[k], c.edges[k+1]
			var e float64
			if hi > lo {
				for i := lo; i < hi; i++ {
					e += mag[i] * mag[i]
				}
				e /= float64(hi - lo)
			}
			bands[k] = math.Log10(e + bandFloor)
		}
		out = append(out, bandFrame{bands: bands, contrast: spectralContrast(bands)})
	}

	return bandProfile{frames: out, steady: meanBandVariance(out) < steadyVariance}
}

func meanBandVariance(frames []bandFrame) float64 {
	if len(frames) < 2 {
		return 0
	}
	track := make([]float64, len(frames))
	var sum float64
	for k := 0; k < compareBands; k++ {
		for i, f := range frames {
			track[i] = f.bands[k]
		}
		sum += stat.Variance(track, nil)
	}
	return sum / compareBands
}

// spectralContrast removes the locally linear part of a log band profile.
func spectralContrast(bands []float64) []float64 {
	n := len(bands)
	out := make([]float64, n)
	for k := 1; k < n-1; k++ {
		out[k] = bands[k] - (bands[k-1]+bands[k+1])/2
	}
	out[0] = bands[0] - bands[1]
	out[n-1] = bands[n-1] - bands[n-2]
	return out
}

// envelopeCorrelation is the Pearson correlation of the two band-by-time
// contrast grids after removing each band's mean over the aligned span.
func envelopeCorrelation(a, b []bandFrame) float64 {
	n := float64(len(a))
	var num, va, vb float64
	for k := 0; k < compareBands; k++ {
		var ma, mb float64
		for i := range a {
			ma += a[i].contrast[k]
			mb += b[i].contrast[k]
		}
		ma /= n
		mb /= n
		for i := range a {
			x := a[i].contrast[k] - ma
			y := b[i].contrast[k] - mb
			num += x * y
			va += x * x
			vb += y * y
		}
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return num / math.Sqrt(va*vb)
}

// shapeCorrelation averages the per-frame correlation of band profiles.
// Frames silent on both sides are skipped; silent on one side count as 0.
func shapeCorrelation(a, b []bandFrame) float64 {
	var sum float64
	var n int
	for i := range a {
		switch {
		case a[i].silent && b[i].silent:
			continue
		case a[i].silent || b[i].silent:
			n++
		default:
			r := stat.Correlation(a[i].bands, b[i].bands, nil)
			if !math.IsNaN(r) {
				sum += r
			}
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// bandEdges splits [minBandHz, Nyquist] into n log-spaced bands and returns
// their FFT bin boundaries, strictly increasing where the bin count allows.
func bandEdges(sampleRate, windowSize, n int) []int {
	nBins := windowSize / 2
	binHz := float64(sampleRate) / float64(windowSize)
	nyquist := float64(sampleRate) / 2

	lo := minBandHz
	if lo >= nyquist {
		lo = binHz
	}
	ratio := math.Pow(nyquist/lo, 1/float64(n))

	edges := make([]int, n+1)
	for k := 0; k <= n; k++ {
		e := int(math.Round(lo * math.Pow(ratio, float64(k)) / binHz))
		if k > 0 && e <= edges[k-1] {
			e = edges[k-1] + 1
		}
		edges[k] = min(e, nBins)
	}
	edges[n] = nBins
	return edges
}

// CompareFingerprints scores two extracted fingerprints by offset voting:
// the number of hashes that agree on the best alignment over the smaller
// landmark count. It returns Uninitialized when either cannot be decoded.
func CompareFingerprints(a, b Fingerprint) float64 {
	la, err := Decode(a)
	if err != nil {
		return Uninitialized
	}
	lb, err := Decode(b)
	if err != nil {
		return Uninitialized
	}
	if len(la) == 0 || len(lb) == 0 {
		return 0
	}

	index := make(map[uint32][]int, len(lb))
	for _, lm := range lb {
		index[lm.Hash] = append(index[lm.Hash], lm.Frame)
	}

	votes := make(map[int]int)
	best := 0
	for _, lm := range la {
		for _, frame := range index[lm.Hash] {
			off := frame - lm.Frame
			votes[off]++
			if votes[off] > best {
				best = votes[off]
			}
		}
	}

	return clamp01(float64(best) / float64(min(len(la), len(lb))))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
