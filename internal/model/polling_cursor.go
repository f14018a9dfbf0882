package model

import "time"

// EventSyncerCursor is the name of the cursor row owned by the event syncer.
const EventSyncerCursor = "event_syncer"

// PollingCursor tracks the last fully processed block for a named syncer.
type PollingCursor struct {
	Name      string
	LastBlock uint64
	UpdatedAt time.Time
}

// InitialCursorBlock returns the cursor value used when no row exists yet.
func InitialCursorBlock(startBlock uint64) uint64 {
	if startBlock == 0 {
		return 0
	}
	return startBlock - 1
}
