package domain

type PlaybackOutcome string

const (
	OutcomeStarted PlaybackOutcome = "started"
	OutcomeQueued  PlaybackOutcome = "queued"
)

// PlaybackResult tells the caller whether its request started streaming or
// waits in the queue, and at which zero-based position.
type PlaybackResult struct {
	Outcome  PlaybackOutcome
	Position int
	Request  *StreamRequest
}

type AdvanceOutcome string

const (
	AdvanceNext    AdvanceOutcome = "next"
	AdvanceStopped AdvanceOutcome = "stopped"
)

type AdvanceResult struct {
	Outcome AdvanceOutcome
	// Next is the request now streaming when Outcome is AdvanceNext.
	Next *StreamRequest
	// Dropped holds queued requests skipped because the transport refused them.
	Dropped int
}
