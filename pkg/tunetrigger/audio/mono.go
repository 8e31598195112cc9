package audio

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// DownmixPolicy selects how multi-channel audio is folded into one channel.
type DownmixPolicy int

const (
	// LeftChannel keeps the first channel and drops the rest.
	LeftChannel DownmixPolicy = iota
	// AverageChannels takes the mean of all channels.
	AverageChannels
)

func (p DownmixPolicy) String() string {
	switch p {
	case LeftChannel:
		return "left"
	case AverageChannels:
		return "average"
	default:
		return "unknown"
	}
}

func ParseDownmixPolicy(s string) (DownmixPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return LeftChannel, nil
	case "average", "avg", "mean":
		return AverageChannels, nil
	}
	return LeftChannel, fmt.Errorf("unknown downmix policy %q", s)
}

// Downmix converts interleaved stereo PCM to mono. The result is half the
// input length rounded down to a whole frame.
func Downmix(stereo []byte, policy DownmixPolicy) []byte {
	frames := len(stereo) / 4
	out := make([]byte, frames*2)

	for i := 0; i < frames; i++ {
		in := stereo[i*4:]
		switch policy {
		case AverageChannels:
			l := int32(int16(binary.LittleEndian.Uint16(in)))
			r := int32(int16(binary.LittleEndian.Uint16(in[2:])))
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16((l+r)/2)))
		default:
			out[i*2] = in[0]
			out[i*2+1] = in[1]
		}
	}
	return out
}

// ToMono returns a mono copy of buf. Mono input is copied unchanged.
func ToMono(buf Buffer, policy DownmixPolicy) Buffer {
	mono := Buffer{Format: Format{SampleRate: buf.SampleRate, Channels: 1}}

	switch {
	case buf.Channels <= 1:
		mono.Data = append([]byte(nil), buf.Data[:len(buf.Data)&^1]...)
	case buf.Channels == 2:
		mono.Data = Downmix(buf.Data, policy)
	default:
		mono.Data = downmixN(buf.Data, buf.Channels, policy)
	}
	return mono
}

func downmixN(data []byte, channels int, policy DownmixPolicy) []byte {
	frameBytes := 2 * channels
	frames := len(data) / frameBytes
	out := make([]byte, frames*2)

	for i := 0; i < frames; i++ {
		in := data[i*frameBytes:]
		if policy != AverageChannels {
			out[i*2] = in[0]
			out[i*2+1] = in[1]
			continue
		}
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(int16(binary.LittleEndian.Uint16(in[c*2:])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sum/int32(channels))))
	}
	return out
}
