package fingerprint

const (
	MaxFreqBits  = 9
	MaxDeltaBits = 14
	FanOut       = 6
	MinDeltaMs   = 10
	MaxDeltaMs   = 15000
)

// FrameMs converts an STFT frame index to milliseconds from the start of
// the buffer.
func FrameMs(frame, sampleRate int) uint32 {
	if sampleRate <= 0 || frame < 0 {
		return 0
	}
	return uint32(int64(frame) * HopSize * 1000 / int64(sampleRate))
}

// createAddress packs anchor bin, target bin and their time delta into a
// 32-bit hash: anchor(9) | target(9) | deltaMs(14).
func createAddress(anchor, target Peak, sampleRate int) (uint32, bool) {
	if target.TimeIdx < anchor.TimeIdx {
		return 0, false
	}

	anchorFreqVal := uint32(anchor.FreqIdx)
	targetFreqVal := uint32(target.FreqIdx)
	deltaMs := FrameMs(target.TimeIdx, sampleRate) - FrameMs(anchor.TimeIdx, sampleRate)

	if deltaMs < MinDeltaMs || deltaMs > MaxDeltaMs {
		return 0, false
	}

	maxFreqMask := uint32((1 << MaxFreqBits) - 1)
	maxDeltaMask := uint32((1 << MaxDeltaBits) - 1)

	if anchorFreqVal > maxFreqMask || targetFreqVal > maxFreqMask {
		return 0, false
	}
	if deltaMs > maxDeltaMask {
		return 0, false
	}

	shiftTarget := MaxDeltaBits
	shiftAnchor := MaxDeltaBits + MaxFreqBits

	address := (anchorFreqVal << shiftAnchor) | (targetFreqVal << shiftTarget) | (deltaMs & maxDeltaMask)
	return address, true
}

// splitAddress reverses createAddress.
func splitAddress(addr uint32) (anchorBin, targetBin int, deltaMs uint32) {
	maxFreqMask := uint32((1 << MaxFreqBits) - 1)
	maxDeltaMask := uint32((1 << MaxDeltaBits) - 1)

	anchorBin = int((addr >> (MaxDeltaBits + MaxFreqBits)) & maxFreqMask)
	targetBin = int((addr >> MaxDeltaBits) & maxFreqMask)
	deltaMs = addr & maxDeltaMask
	return anchorBin, targetBin, deltaMs
}
