package fingerprint

import (
	"math"
	"math/rand"
	"testing"

	"github.com/himanishpuri/TuneTrigger/pkg/tunetrigger/audio"
)

func noise(seed int64, n int, amp float64) []int16 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]int16, n)
	for i := range out {
		v := amp * rng.NormFloat64()
		out[i] = int16(math.Max(-32768, math.Min(32767, v)))
	}
	return out
}

func tone(freq float64, rate, channels, frames int) []int16 {
	out := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		v := int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		for c := 0; c < channels; c++ {
			out[i*channels+c] = v
		}
	}
	return out
}

func newTestComparator(t *testing.T) *Comparator {
	t.Helper()
	c, err := NewComparator(SampleRate)
	if err != nil {
		t.Fatalf("NewComparator: %v", err)
	}
	return c
}

func TestCompareSelfIsOne(t *testing.T) {
	c := newTestComparator(t)
	for _, s := range [][]int16{melody(7, 2, SampleRate), noise(8, 2*SampleRate, 4000), tone(700, SampleRate, 1, SampleRate)} {
		if got := c.Compare(s, s); math.Abs(got-1) > 1e-9 {
			t.Errorf("self similarity = %v, want 1", got)
		}
	}
}

func TestCompareSymmetric(t *testing.T) {
	c := newTestComparator(t)
	pairs := [][2][]int16{
		{melody(9, 2, SampleRate), melody(10, 2, SampleRate)},
		{melody(11, 1.5, SampleRate), melody(11, 3, SampleRate)},
		{noise(12, 3*SampleRate, 3000), tone(440, SampleRate, 1, SampleRate)},
	}
	for i, p := range pairs {
		ab := c.Compare(p[0], p[1])
		ba := c.Compare(p[1], p[0])
		if ab != ba {
			t.Errorf("pair %d: Compare(a,b)=%v Compare(b,a)=%v", i, ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("pair %d: score %v out of range", i, ab)
		}
	}
}

func TestCompareIndependentNoise(t *testing.T) {
	c := newTestComparator(t)
	a := noise(13, 5*SampleRate, 5000)
	b := noise(14, 5*SampleRate, 5000)

	if got := c.Compare(a, b); got >= 0.2 {
		t.Errorf("independent noise scored %v, want < 0.2", got)
	}
}

// lowpass runs a one-pole filter over x, tilting its spectrum downward.
func lowpass(x []int16) []int16 {
	out := make([]int16, len(x))
	var y float64
	for i, v := range x {
		y = 0.95*y + 0.05*float64(v)
		out[i] = int16(y)
	}
	return out
}

func TestCompareSharedTiltIsNotContent(t *testing.T) {
	c := newTestComparator(t)
	// same spectral slope, unrelated signals
	a := lowpass(noise(21, 5*SampleRate, 8000))
	b := lowpass(noise(22, 5*SampleRate, 8000))

	if got := c.Compare(a, b); got >= 0.15 {
		t.Errorf("independent tilted noise scored %v, want < 0.15", got)
	}
	if got := c.Compare(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("tilted noise self = %v, want 1", got)
	}
}

func TestCompareDifferentMelodies(t *testing.T) {
	c := newTestComparator(t)
	a := melody(3, 5, SampleRate)
	b := melody(4, 5, SampleRate)

	if got := c.Compare(a, b); got >= 0.2 {
		t.Errorf("different melodies scored %v, want < 0.2", got)
	}
	// a shorter excerpt of a different melody gets every alignment to try
	if got := c.Compare(a, b[:2*SampleRate]); got >= 0.25 {
		t.Errorf("excerpt of a different melody scored %v, want < 0.25", got)
	}
}

func TestCompareFindsExcerpt(t *testing.T) {
	c := newTestComparator(t)
	long := melody(15, 5, SampleRate)
	// excerpt starts on a hop boundary
	excerpt := long[10*compareHop : 10*compareHop+2*SampleRate]

	if got := c.Compare(excerpt, long); got < 0.99 {
		t.Errorf("excerpt scored %v against its source", got)
	}
}

func TestCompareShortOrSilent(t *testing.T) {
	c := newTestComparator(t)
	if got := c.Compare(make([]int16, compareWindow-1), melody(16, 1, SampleRate)); got != 0 {
		t.Errorf("short buffer scored %v", got)
	}
	silence := make([]int16, SampleRate)
	if got := c.Compare(silence, silence); got != 0 {
		t.Errorf("silence scored %v", got)
	}
	if got := c.Compare(silence, melody(17, 1, SampleRate)); got != 0 {
		t.Errorf("silence against audio scored %v", got)
	}
}

func TestCompareUninitialized(t *testing.T) {
	s := melody(18, 1, SampleRate)

	var nilCmp *Comparator
	if got := nilCmp.Compare(s, s); got != Uninitialized {
		t.Errorf("nil comparator = %v", got)
	}
	if got := (&Comparator{}).CompareBytes(nil, nil); got != Uninitialized {
		t.Errorf("zero comparator = %v", got)
	}
	if _, err := NewComparator(0); err == nil {
		t.Error("NewComparator(0) should fail")
	}
}

// A stereo 44.1 kHz tone, downmixed and resampled, still matches a template
// made the same way from a shorter take.
func TestCompareTriggerEndToEnd(t *testing.T) {
	c := newTestComparator(t)
	stereo := audio.Format{SampleRate: 44100, Channels: 2}

	template := audio.Prepare(audio.Buffer{
		Format: stereo,
		Data:   audio.SamplesToBytes(tone(1000, 44100, 2, 2*44100)),
	}, SampleRate, audio.LeftChannel)

	captured := audio.Prepare(audio.Buffer{
		Format: stereo,
		Data:   audio.SamplesToBytes(tone(1000, 44100, 2, 5*44100)),
	}, SampleRate, audio.LeftChannel)

	if got := c.Compare(captured, template); got < 0.95 {
		t.Errorf("trigger scored %v, want >= 0.95", got)
	}
}

func TestCompareFingerprints(t *testing.T) {
	full := melody(19, 6, SampleRate)
	a := Extract(full)
	part := Extract(full[2*SampleRate:])

	if got := CompareFingerprints(a, a); got != 1 {
		t.Errorf("self = %v, want 1", got)
	}
	ab, ba := CompareFingerprints(a, part), CompareFingerprints(part, a)
	if ab != ba {
		t.Errorf("asymmetric: %v vs %v", ab, ba)
	}
	if ab < 0.5 {
		t.Errorf("excerpt scored %v against its source", ab)
	}
	if got := CompareFingerprints(a, Fingerprint{0x09}); got != Uninitialized {
		t.Errorf("malformed = %v, want %v", got, Uninitialized)
	}
}
