package stream

import "time"

// Status is the generation status shown while an agent run is in flight.
// Exactly one of the types below is active.
type Status interface {
	statusName() string
}

// Idle means no run is in progress.
type Idle struct{}

// Generating means a run is streaming.
type Generating struct {
	TokenCount      int
	CurrentActivity string
	LastUpdate      time.Time
}

// Complete means the last run finished successfully.
type Complete struct {
	Result     string
	TokenCount int
}

// Failed means the last run ended in an error.
type Failed struct {
	Message string
	Details []string
}

func (Idle) statusName() string       { return "idle" }
func (Generating) statusName() string { return "generating" }
func (Complete) statusName() string   { return "complete" }
func (Failed) statusName() string     { return "error" }

// Name returns "idle", "generating", "complete" or "error".
func Name(s Status) string {
	if s == nil {
		return Idle{}.statusName()
	}
	return s.statusName()
}
