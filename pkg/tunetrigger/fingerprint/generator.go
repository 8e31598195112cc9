package fingerprint

import (
	"sort"

	"github.com/himanishpuri/TuneTrigger/pkg/models"
)

// Landmark is one anchor/target pair: its hash and where the anchor sits.
type Landmark struct {
	Hash     uint32
	Frame    int    // STFT frame of the anchor
	AnchorMs uint32 // anchor offset in milliseconds
}

// GenerateLandmarks pairs every anchor with up to FanOut following peaks
// inside the [MinDeltaMs, MaxDeltaMs] window. peaks must be ordered by time.
func GenerateLandmarks(peaks []Peak, sampleRate int) []Landmark {
	landmarks := make([]Landmark, 0, len(peaks)*FanOut)
	for i := 0; i < len(peaks); i++ {
		anchor := peaks[i]
		paired := 0
		for j := i + 1; j < len(peaks) && paired < FanOut; j++ {
			addr, ok := createAddress(anchor, peaks[j], sampleRate)
			if !ok {
				continue
			}
			landmarks = append(landmarks, Landmark{
				Hash:     addr,
				Frame:    anchor.TimeIdx,
				AnchorMs: FrameMs(anchor.TimeIdx, sampleRate),
			})
			paired++
		}
	}
	return landmarks
}

// Couples indexes landmarks by hash for storage under tuneID.
func Couples(landmarks []Landmark, tuneID string) map[uint32][]models.Couple {
	fp := make(map[uint32][]models.Couple)
	for _, lm := range landmarks {
		fp[lm.Hash] = append(fp[lm.Hash], models.Couple{TuneID: tuneID, AnchorTimeMs: lm.AnchorMs})
	}
	return fp
}

// MergeCouples merges src into dst (appends couples for same hash keys).
func MergeCouples(dst, src map[uint32][]models.Couple) {
	for k, v := range src {
		dst[k] = append(dst[k], v...)
	}
}

// MatchLandmarks votes query landmarks against db and returns one match per
// tune at its best-aligned offset, strongest first.
func MatchLandmarks(query []Landmark, db map[uint32][]models.Couple) []models.Match {
	// votes[tuneID][offsetMs] = count
	votes := make(map[string]map[int32]int)

	for _, lm := range query {
		for _, cou := range db[lm.Hash] {
			// offset = dbAnchorTimeMs - queryAnchorTimeMs
			offset := int32(cou.AnchorTimeMs) - int32(lm.AnchorMs)
			m, ok := votes[cou.TuneID]
			if !ok {
				m = make(map[int32]int)
				votes[cou.TuneID] = m
			}
			m[offset]++
		}
	}

	matches := make([]models.Match, 0, len(votes))
	for tuneID, offsets := range votes {
		bestOffset := int32(0)
		bestCount := 0
		for off, cnt := range offsets {
			if cnt > bestCount || (cnt == bestCount && off < bestOffset) {
				bestCount = cnt
				bestOffset = off
			}
		}
		if bestCount > 0 {
			matches = append(matches, models.Match{TuneID: tuneID, OffsetMs: bestOffset, Count: bestCount})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Count != matches[j].Count {
			return matches[i].Count > matches[j].Count
		}
		return matches[i].TuneID < matches[j].TuneID
	})
	return matches
}
