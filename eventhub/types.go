package eventhub

// RoundStartedEvent is emitted when the orchestrator opens a round.
type RoundStartedEvent struct {
	Round        uint64
	Contributors uint32
	Threshold    uint32
}

// RoundTimedOutEvent is emitted when a round's deadline passes before it reaches its threshold.
type RoundTimedOutEvent struct {
	Round     uint64
	Collected uint32
	Threshold uint32
}
