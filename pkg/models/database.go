package models

// Couple is the stored value for a hash bucket entry.
// AnchorTimeMs is the time (in ms) of the anchor peak in the reference audio.
type Couple struct {
	TuneID       string // UUID of the tune
	AnchorTimeMs uint32
}

// Match represents a candidate match returned by the offset-voting matcher.
type Match struct {
	TuneID   string // UUID of the tune
	OffsetMs int32  // dbAnchorTimeMs - queryAnchorTimeMs
	Count    int
}
