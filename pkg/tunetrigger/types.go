package tunetrigger

import "github.com/himanishpuri/TuneTrigger/pkg/models"

// MatchResult is one tune found by the index, with its alignment and score.
type MatchResult struct {
	TuneID      string           // UUID of the matched tune
	Name        string           // Display name
	Description string           // Optional free text
	Info        string           // Action target
	Type        models.MatchType // Engagement type
	Score       int              // Number of aligned landmark hashes
	OffsetMs    int32            // Time offset in milliseconds
	Confidence  float64          // Match confidence as a percentage (0-100)
}

// Candidate converts the match to the search wire form.
func (m MatchResult) Candidate() models.Candidate {
	return models.Candidate{
		ID:              m.TuneID,
		Name:            m.Name,
		Description:     m.Description,
		Info:            m.Info,
		Type:            string(m.Type),
		MatchPercentage: m.Confidence,
	}
}

// TuneFile pairs a reference audio file with its metadata for bulk ingestion.
type TuneFile struct {
	Path string
	Meta models.TuneMeta
}
