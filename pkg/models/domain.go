package models

import (
	"strings"
	"time"
)

// MatchType is the action a matched tune asks the listener to take.
type MatchType string

const (
	MatchUnknown  MatchType = "unknown"
	MatchOpenPage MatchType = "open_page"
	MatchSavePage MatchType = "save_page"
	MatchPhone    MatchType = "phone"
	MatchSMS      MatchType = "sms"
	MatchCoupon   MatchType = "coupon"
	MatchPoll     MatchType = "poll"
	MatchAPICall  MatchType = "api_call"
)

// ParseMatchType is case-insensitive; unrecognised values map to MatchUnknown.
func ParseMatchType(s string) MatchType {
	switch t := MatchType(strings.ToLower(strings.TrimSpace(s))); t {
	case MatchOpenPage, MatchSavePage, MatchPhone, MatchSMS, MatchCoupon, MatchPoll, MatchAPICall:
		return t
	}
	return MatchUnknown
}

// CanSave reports whether a match of this type may be kept in the listener's history.
func (t MatchType) CanSave() bool {
	return t == MatchOpenPage || t == MatchSavePage || t == MatchCoupon
}

// MatchDateLayout is the compact timestamp format attached to interest records.
const MatchDateLayout = "2006-01-02T1504"

// MatchResult is an accepted identification delivered to the application layer.
type MatchResult struct {
	ID          string    // Identifier assigned by the search index
	Name        string    // Display name
	Description string    // Optional free text
	Info        string    // Action target (URL, phone number, ...)
	Type        MatchType // What to do with Info
	Confidence  float64   // Match percentage reported by the index (0-100)
	Timestamp   time.Time // When the match was accepted
}

// DateString renders the timestamp as YYYY-MM-DDTHHMM.
func (m MatchResult) DateString() string {
	return m.Timestamp.Format(MatchDateLayout)
}

// Candidate is one entry of a search response before validation.
type Candidate struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Info            string  `json:"info"`
	Type            string  `json:"type,omitempty"`
	MatchPercentage float64 `json:"matchPercentage"`
}

// Tune is a reference recording registered in the local index.
type Tune struct {
	ID          string    // UUID
	Name        string    // Display name
	Description string    // Optional free text
	Info        string    // Action target
	Type        MatchType // Engagement type
	DurationMs  int       // Duration in milliseconds
	CreatedAt   time.Time
}

// TuneMeta is the caller-supplied metadata for a new tune.
type TuneMeta struct {
	Name        string
	Description string
	Info        string
	Type        MatchType
}

// HistoryEntry is a saved match.
type HistoryEntry struct {
	MatchID    string
	Name       string
	Info       string
	Type       MatchType
	Confidence float64
	HeardAt    time.Time
}

// Interest is a listener reaction recorded against a match.
type Interest struct {
	MatchID  string
	Kind     string // "heard" or "interested"
	Date     string // MatchDateLayout
	RecordAt time.Time
}
