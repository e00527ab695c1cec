package journal

import "time"

// Event types written by the decision engine.
const (
	EventSignal    = "signal"
	EventRejection = "rejection"
	EventPending   = "pending"
	EventConfirmed = "confirmed"
	EventPurged    = "purged"
	EventEntry     = "entry"
	EventExit      = "exit"
	EventError     = "error"
)

// Event represents a journaled event.
type Event struct {
	Time        time.Time
	Type        string
	Description string
	Data        map[string]any
}
