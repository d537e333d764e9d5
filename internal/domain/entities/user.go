package entities

// Level is a curriculum tier. Progression is monotonic except the initial
// placement jump from Entry.
type Level string

const (
	LevelEntry        Level = "Entry"
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// LevelOrder lists the known levels in curriculum progression order.
var LevelOrder = []Level{LevelEntry, LevelBeginner, LevelIntermediate, LevelAdvanced}

// State is a user's conversation state. The values are the exact strings
// persisted in the record store, so the backends stay interchangeable.
type State string

const (
	StatePlacementTest      State = "Placement Test"
	StateShowingVideo       State = "Showing Video"
	StateWaitingForResponse State = "Waiting for Response"
	StateChatMode           State = "Chat Mode"
	StateCourseOverview     State = "Course Overview"
)

// UserProgress is the persisted position of a user in the course. The record
// store owns it; the engine holds a transient copy and writes mutations back.
type UserProgress struct {
	RecordID    string // record store key
	UserID      int64  // Telegram user ID
	Level       Level
	VideoNumber int // 1-based within Level
	State       State
}
