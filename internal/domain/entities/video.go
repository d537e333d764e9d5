package entities

// VideoInfo is a read-only projection of a catalog row. Within a level, video
// numbers are unique and form the lesson ordering.
type VideoInfo struct {
	RecordID    string // stable external key, used for lesson selection and message linking
	Title       string
	Description string
	Question    string
	URL         string
	Level       Level
	VideoNumber int

	// UnderstandingBenchmark is the optional expected understanding the
	// assessment is conditioned on. Empty when the catalog row has none.
	UnderstandingBenchmark string
}
