package detect

import (
	"testing"
	"time"

	"github.com/himanishpuri/TuneTrigger/pkg/models"
)

func TestAccept(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 7, 0, 0, time.UTC)
	good := models.Candidate{ID: "1", Name: "Ad", Info: "http://x", MatchPercentage: 30}

	tests := []struct {
		name       string
		candidates []models.Candidate
		min        float64
		wantOK     bool
		wantType   models.MatchType
	}{
		{"no candidates", nil, 10, false, ""},
		{"accepted", []models.Candidate{good}, 10, true, models.MatchOpenPage},
		{"below minimum", []models.Candidate{{ID: "1", Name: "Ad", Info: "http://x", MatchPercentage: 5}}, 10, false, ""},
		{"at minimum", []models.Candidate{{ID: "1", Name: "Ad", Info: "http://x", MatchPercentage: 10}}, 10, true, models.MatchOpenPage},
		{"missing id", []models.Candidate{{Name: "Ad", Info: "http://x", MatchPercentage: 90}}, 10, false, ""},
		{"missing name", []models.Candidate{{ID: "1", Info: "http://x", MatchPercentage: 90}}, 10, false, ""},
		{"missing info", []models.Candidate{{ID: "1", Name: "Ad", MatchPercentage: 90}}, 10, false, ""},
		{"typed", []models.Candidate{{ID: "1", Name: "Ad", Info: "555", Type: "PHONE", MatchPercentage: 50}}, 10, true, models.MatchPhone},
		{"unknown type", []models.Candidate{{ID: "1", Name: "Ad", Info: "x", Type: "fax", MatchPercentage: 50}}, 10, true, models.MatchUnknown},
		{"only first considered", []models.Candidate{{ID: "", Name: "Ad", Info: "x", MatchPercentage: 90}, good}, 10, false, ""},
		{"unscored first", []models.Candidate{{ID: "bad", Name: "Top", Info: "http://a"}, {ID: "2", Name: "Second", Info: "http://b", MatchPercentage: 90}}, 10, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := accept(tt.candidates, tt.min, now)
			if ok != tt.wantOK {
				t.Fatalf("accept() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if res.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", res.Type, tt.wantType)
			}
			if !res.Timestamp.Equal(now) {
				t.Errorf("Timestamp = %v, want %v", res.Timestamp, now)
			}
			if res.DateString() != "2024-05-01T0907" {
				t.Errorf("DateString() = %q", res.DateString())
			}
		})
	}
}
