package detect

import (
	"time"

	"github.com/himanishpuri/TuneTrigger/pkg/models"
)

// accept turns the top search candidate into a match result. It reports false
// when there are no candidates or the first one is incomplete or below
// minConfidence. Lower-ranked candidates are never considered.
func accept(candidates []models.Candidate, minConfidence float64, now time.Time) (models.MatchResult, bool) {
	if len(candidates) == 0 {
		return models.MatchResult{}, false
	}
	c := candidates[0]
	if c.ID == "" || c.Name == "" || c.Info == "" {
		return models.MatchResult{}, false
	}
	if c.MatchPercentage < minConfidence {
		return models.MatchResult{}, false
	}

	typ := models.MatchOpenPage
	if c.Type != "" {
		typ = models.ParseMatchType(c.Type)
	}

	return models.MatchResult{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Info:        c.Info,
		Type:        typ,
		Confidence:  c.MatchPercentage,
		Timestamp:   now,
	}, true
}
