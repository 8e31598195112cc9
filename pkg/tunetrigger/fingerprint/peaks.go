package fingerprint

import (
	"math"
	"sort"
)

// MaxPeaksPerSecond caps how many peaks survive per second of audio.
const MaxPeaksPerSecond = 30

type Peak struct {
	TimeIdx int
	FreqIdx int
	Time    float64
	Freq    float64
	MagDB   float64
}

// ExtractPeaks picks the strongest bin of each logarithmic band per frame and
// keeps it when it stands out from the frame's band average and is a local
// maximum among its neighbours. Peaks come back ordered by time then bin.
func ExtractPeaks(spectrogram [][]float64, sampleRate int) []Peak {
	if len(spectrogram) == 0 || len(spectrogram[0]) == 0 {
		return nil
	}

	nFrames := len(spectrogram)
	nBins := len(spectrogram[0])

	freqRes := float64(sampleRate) / float64(WindowSize)
	frameTime := float64(HopSize) / float64(sampleRate)

	const (
		freqNeighbour = 3
		timeNeighbour = 1
		minDbAboveAvg = 3.0
		eps           = 1e-10
	)

	bands := [][]int{{0, min(10, nBins)}}
	for start := 10; start < nBins; start *= 2 {
		end := min(start*2, nBins)
		bands = append(bands, []int{start, end})
		if end == nBins {
			break
		}
	}

	peaks := make([]Peak, 0, nFrames*2)

	// For each frame, pick the strongest bin per band, then apply local checks
	for t := 0; t < nFrames; t++ {
		frame := spectrogram[t]

		bandMaxMag := make([]float64, 0, len(bands))
		bandMaxIdx := make([]int, 0, len(bands))
		for _, b := range bands {
			minBin := b[0]
			maxBin := b[1]
			if minBin >= nBins {
				bandMaxMag = append(bandMaxMag, 0)
				bandMaxIdx = append(bandMaxIdx, minBin)
				continue
			}
			if maxBin > nBins {
				maxBin = nBins
			}
			maxMag := 0.0
			maxIdx := minBin
			for i := minBin; i < maxBin; i++ {
				m := frame[i]
				if m > maxMag {
					maxMag = m
					maxIdx = i
				}
			}
			bandMaxMag = append(bandMaxMag, maxMag)
			bandMaxIdx = append(bandMaxIdx, maxIdx)
		}

		var sumDb float64
		for _, mag := range bandMaxMag {
			sumDb += 20.0 * math.Log10(mag+eps)
		}
		avgDb := sumDb / float64(len(bandMaxMag))

		for bi, mag := range bandMaxMag {
			if mag <= 0 {
				continue
			}
			bin := bandMaxIdx[bi]
			magDb := 20.0 * math.Log10(mag+eps)

			if magDb < avgDb+minDbAboveAvg {
				continue
			}

			isLocalMax := true
			for dt := -timeNeighbour; dt <= timeNeighbour; dt++ {
				tIdx := t + dt
				if tIdx < 0 || tIdx >= nFrames {
					continue
				}
				for df := -freqNeighbour; df <= freqNeighbour; df++ {
					fIdx := bin + df
					if fIdx < 0 || fIdx >= nBins {
						continue
					}
					if dt == 0 && df == 0 {
						continue
					}
					if spectrogram[tIdx][fIdx] > mag {
						isLocalMax = false
						break
					}
				}
				if !isLocalMax {
					break
				}
			}

			if !isLocalMax {
				continue
			}

			p := Peak{
				TimeIdx: t,
				FreqIdx: bin,
				Time:    float64(t) * frameTime,
				Freq:    float64(bin) * freqRes,
				MagDB:   magDb,
			}
			peaks = append(peaks, p)
		}
	}

	sortByTime(peaks)
	return peaks
}

// LimitDensity keeps at most perSecond of the strongest peaks in every
// one-second span of frames. Ties on magnitude go to the earlier, then
// lower, peak. The result is ordered by time then bin.
func LimitDensity(peaks []Peak, perSecond, sampleRate int) []Peak {
	if perSecond <= 0 || len(peaks) == 0 {
		return peaks
	}
	framesPerSecond := (sampleRate + HopSize - 1) / HopSize
	if framesPerSecond <= 0 {
		return peaks
	}

	kept := make([]Peak, 0, len(peaks))
	for start := 0; start < len(peaks); {
		second := peaks[start].TimeIdx / framesPerSecond
		end := start
		for end < len(peaks) && peaks[end].TimeIdx/framesPerSecond == second {
			end++
		}

		group := append([]Peak(nil), peaks[start:end]...)
		if len(group) > perSecond {
			sort.SliceStable(group, func(i, j int) bool {
				if group[i].MagDB != group[j].MagDB {
					return group[i].MagDB > group[j].MagDB
				}
				if group[i].TimeIdx != group[j].TimeIdx {
					return group[i].TimeIdx < group[j].TimeIdx
				}
				return group[i].FreqIdx < group[j].FreqIdx
			})
			group = group[:perSecond]
			sortByTime(group)
		}
		kept = append(kept, group...)
		start = end
	}
	return kept
}

func sortByTime(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		if peaks[i].TimeIdx == peaks[j].TimeIdx {
			return peaks[i].FreqIdx < peaks[j].FreqIdx
		}
		return peaks[i].TimeIdx < peaks[j].TimeIdx
	})
}
