package fingerprint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
)

const (
	// SampleRate is the canonical rate every fingerprint is computed at.
	SampleRate = 10240
	// MinSamples is the shortest input Extract accepts (one second).
	MinSamples = SampleRate

	formatVersion = 0x01
	recordSize    = 6
	maxFrame      = 1<<16 - 1

	// peak amplitude at or below which a buffer is treated as silence
	silenceLevel = 1
)

var ErrBadFormat = errors.New("malformed fingerprint")

// Fingerprint is the serialized landmark set of one audio buffer.
type Fingerprint []byte

// String renders the bytes as unsigned decimals separated by commas, the
// form the search endpoint expects.
func (f Fingerprint) String() string {
	var sb strings.Builder
	sb.Grow(len(f) * 4)
	for i, b := range f {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(b)))
	}
	return sb.String()
}

// ParseFingerprint reads the comma separated form produced by String.
func ParseFingerprint(s string) (Fingerprint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrBadFormat)
	}
	parts := strings.Split(s, ",")
	fp := make(Fingerprint, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: byte %d: %v", ErrBadFormat, i, err)
		}
		fp[i] = byte(v)
	}
	return fp, nil
}

// Extract fingerprints mono 16-bit PCM at SampleRate. It returns nil for
// input shorter than MinSamples, for silence, and for audio with no usable
// landmarks.
func Extract(samples []int16) Fingerprint {
	if len(samples) < MinSamples || silent(samples) {
		return nil
	}
	lms := Landmarks(audio.Float64(samples), SampleRate)
	if len(lms) == 0 {
		return nil
	}
	return Encode(lms)
}

// ExtractBytes is Extract on little-endian PCM bytes.
func ExtractBytes(pcm []byte) Fingerprint {
	return Extract(audio.BytesToSamples(pcm))
}

// Landmarks runs the full peak and pairing pipeline over normalized samples.
func Landmarks(samples []float64, sampleRate int) []Landmark {
	spec, err := ComputeSpectrogramFromSamples(samples, sampleRate, WindowSize, HopSize)
	if err != nil {
		return nil
	}
	peaks := LimitDensity(ExtractPeaks(spec, sampleRate), MaxPeaksPerSecond, sampleRate)
	return GenerateLandmarks(peaks, sampleRate)
}

// Encode serializes landmarks: a version byte, then one record per distinct
// landmark holding the hash and anchor frame (both big endian), ordered by
// frame then hash. Frames past the 16-bit range are dropped.
func Encode(landmarks []Landmark) Fingerprint {
	sorted := make([]Landmark, 0, len(landmarks))
	for _, lm := range landmarks {
		if lm.Frame >= 0 && lm.Frame <= maxFrame {
			sorted = append(sorted, lm)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Frame != sorted[j].Frame {
			return sorted[i].Frame < sorted[j].Frame
		}
		return sorted[i].Hash < sorted[j].Hash
	})

	fp := make(Fingerprint, 1, 1+len(sorted)*recordSize)
	fp[0] = formatVersion
	var rec [recordSize]byte
	for i, lm := range sorted {
		if i > 0 && lm.Frame == sorted[i-1].Frame && lm.Hash == sorted[i-1].Hash {
			continue
		}
		binary.BigEndian.PutUint32(rec[0:4], lm.Hash)
		binary.BigEndian.PutUint16(rec[4:6], uint16(lm.Frame))
		fp = append(fp, rec[:]...)
	}
	return fp
}

// Decode parses a fingerprint produced by Encode.
func Decode(fp Fingerprint) ([]Landmark, error) {
	if len(fp) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadFormat)
	}
	if fp[0] != formatVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrBadFormat, fp[0])
	}
	body := fp[1:]
	if len(body)%recordSize != 0 {
		return nil, fmt.Errorf("%w: truncated record", ErrBadFormat)
	}

	landmarks := make([]Landmark, 0, len(body)/recordSize)
	for off := 0; off < len(body); off += recordSize {
		frame := int(binary.BigEndian.Uint16(body[off+4:]))
		landmarks = append(landmarks, Landmark{
			Hash:     binary.BigEndian.Uint32(body[off:]),
			Frame:    frame,
			AnchorMs: FrameMs(frame, SampleRate),
		})
	}
	return landmarks, nil
}

func silent(samples []int16) bool {
	for _, s := range samples {
		if s > silenceLevel || s < -silenceLevel {
			return false
		}
	}
	return true
}
