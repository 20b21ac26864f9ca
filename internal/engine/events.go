package engine

// Tag classifies an output line. Consumers that parse logs key off the tag
// vocabulary; the wording after the tag is presentation only.
type Tag string

const (
	TagScanning  Tag = "Scanning"
	TagHashing   Tag = "Hashing"
	TagError     Tag = "Error"
	TagCancelled Tag = "Cancelled"
)

// Event is one item of the session's typed event stream.
// Variants: Output, Progress, Done. The stream ends with exactly one Done,
// after which the channel is closed.
type Event interface {
	isEvent()
}

// Output is a log line. Rendered by consumers as "[Tag] message".
// Scanning lines always precede Hashing lines, which precede the terminal
// outcome.
type Output struct {
	Tag     Tag
	Message string
}

// Progress reports the session's counters. Scanned never decreases over the
// stream and never exceeds Total. Consumers compute a percentage as
// Scanned*100/Total, skipping when Total is zero.
type Progress struct {
	Scanned int
	Total   int
}

// Done is the terminal event, delivered exactly once.
//
// Duplicates maps each digest to the paths sharing it (2+ members, anchor
// first) and is populated only when State is StateCompleted. A cancelled
// session carries a nil map; a failed session carries an empty non-nil map.
// An empty map on completion means "no duplicates found" - distinguish it
// from the other outcomes by State, not by map contents.
type Done struct {
	State      State
	Duplicates map[string][]string
}

func (Output) isEvent()   {}
func (Progress) isEvent() {}
func (Done) isEvent()     {}
