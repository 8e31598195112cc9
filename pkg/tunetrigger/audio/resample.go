package audio

import "fmt"

// Uninitialized is the length Resample reports when the resampler was never
// created or has been closed.
const Uninitialized = -1

// Resampler converts interleaved 16-bit PCM between arbitrary integer rates
// with linear interpolation.
//
// The read position is an exact integer accumulator in units of 1/outRate
// input frames, advanced by inRate per output frame. The last input frame is
// carried between calls, so feeding a stream in pieces produces exactly the
// output of one call on the whole stream.
type Resampler struct {
	inRate   int64
	outRate  int64
	channels int

	pos   int64   // next output position relative to tail[0] (or the next input when tail is empty)
	tail  []int16 // unconsumed input frame from the previous call
	ready bool
}

func NewResampler(inRate, outRate, channels int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid resampler config: in=%d out=%d channels=%d", inRate, outRate, channels)
	}
	return &Resampler{
		inRate:   int64(inRate),
		outRate:  int64(outRate),
		channels: channels,
		ready:    true,
	}, nil
}

// Resample converts a chunk of little-endian PCM. It returns the converted
// bytes and their length, zero for empty or misaligned input, and
// Uninitialized when r is not usable.
func (r *Resampler) Resample(in []byte) ([]byte, int) {
	if r == nil || !r.ready {
		return nil, Uninitialized
	}
	if len(in) == 0 || len(in)%(2*r.channels) != 0 {
		return []byte{}, 0
	}
	out := SamplesToBytes(r.ResampleSamples(BytesToSamples(in)))
	return out, len(out)
}

// ResampleSamples is Resample on decoded samples.
func (r *Resampler) ResampleSamples(in []int16) []int16 {
	if r == nil || !r.ready || len(in) == 0 || len(in)%r.channels != 0 {
		return nil
	}

	ch := r.channels
	buf := in
	if len(r.tail) > 0 {
		buf = make([]int16, 0, len(r.tail)+len(in))
		buf = append(buf, r.tail...)
		buf = append(buf, in...)
	}
	frames := int64(len(buf) / ch)

	out := make([]int16, 0, (frames*r.outRate/r.inRate+1)*int64(ch))
	for {
		idx := r.pos / r.outRate
		if idx+1 >= frames {
			break
		}
		frac := r.pos % r.outRate
		a := buf[idx*int64(ch):]
		b := buf[(idx+1)*int64(ch):]
		for c := 0; c < ch; c++ {
			out = append(out, lerp(a[c], b[c], frac, r.outRate))
		}
		r.pos += r.inRate
	}

	next := r.pos / r.outRate
	if next >= frames {
		r.tail = r.tail[:0]
		r.pos -= frames * r.outRate
	} else {
		r.tail = append(r.tail[:0], buf[next*int64(ch):]...)
		r.pos -= next * r.outRate
	}
	return out
}

// Flush emits the frames that fall after the last input frame by holding
// its value, then resets the stream position. Resample followed by Flush
// yields ceil(N*outRate/inRate) frames for N input frames.
func (r *Resampler) Flush() []byte {
	return SamplesToBytes(r.FlushSamples())
}

func (r *Resampler) FlushSamples() []int16 {
	if r == nil || !r.ready || len(r.tail) == 0 {
		r.Reset()
		return nil
	}

	ch := r.channels
	last := r.tail[len(r.tail)-ch:]
	end := int64(len(r.tail)/ch) * r.outRate

	var out []int16
	for r.pos < end {
		out = append(out, last...)
		r.pos += r.inRate
	}
	r.Reset()
	return out
}

// Reset drops carried state so the next chunk starts a new stream.
func (r *Resampler) Reset() {
	if r == nil {
		return
	}
	r.pos = 0
	r.tail = r.tail[:0]
}

// Close releases the carried state. Later calls report Uninitialized.
func (r *Resampler) Close() {
	if r == nil {
		return
	}
	r.ready = false
	r.tail = nil
	r.pos = 0
}

// OutputFrames is the number of frames Resample+Flush produce for n input frames.
func (r *Resampler) OutputFrames(n int) int {
	if r == nil || !r.ready || n <= 0 {
		return 0
	}
	return int((int64(n)*r.outRate + r.inRate - 1) / r.inRate)
}

func lerp(a, b int16, frac, den int64) int16 {
	num := int64(a)*(den-frac) + int64(b)*frac
	if num >= 0 {
		return int16((num + den/2) / den)
	}
	return int16(-((-num + den/2) / den))
}

// ResampleBuffer converts a whole buffer to outRate in one pass.
func ResampleBuffer(buf Buffer, outRate int) (Buffer, error) {
	if buf.SampleRate == outRate {
		return Buffer{Format: buf.Format, Data: append([]byte(nil), buf.Data...)}, nil
	}

	r, err := NewResampler(buf.SampleRate, outRate, buf.Channels)
	if err != nil {
		return Buffer{}, err
	}
	defer r.Close()

	aligned := buf.Data[:len(buf.Data)-len(buf.Data)%buf.BytesPerFrame()]
	out, _ := r.Resample(aligned)
	out = append(out, r.Flush()...)

	return Buffer{Format: Format{SampleRate: outRate, Channels: buf.Channels}, Data: out}, nil
}

// Prepare folds buf to mono and converts it to rate, returning samples ready
// for fingerprinting or comparison. It returns nil when nothing usable remains.
func Prepare(buf Buffer, rate int, policy DownmixPolicy) []int16 {
	if !buf.Valid() || len(buf.Data) == 0 {
		return nil
	}
	mono := ToMono(buf, policy)
	out, err := ResampleBuffer(mono, rate)
	if err != nil || len(out.Data) == 0 {
		return nil
	}
	return out.Samples()
}
