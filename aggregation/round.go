package aggregation

import (
	"fmt"
	"time"

	tpaggtypes "github.com/TopiaNetwork/aggregation/aggregation/types"
	"github.com/TopiaNetwork/aggregation/registry"
)

type RoundState byte

const (
	RoundState_Idle RoundState = iota
	RoundState_AwaitingSignatures
	RoundState_Finalized
	RoundState_TimedOut
	RoundState_Discarded
)

func (s RoundState) String() string {
	switch s {
	case RoundState_Idle:
		return "Idle"
	case RoundState_AwaitingSignatures:
		return "AwaitingSignatures"
	case RoundState_Finalized:
		return "Finalized"
	case RoundState_TimedOut:
		return "TimedOut"
	case RoundState_Discarded:
		return "Discarded"
	}
	return fmt.Sprintf("RoundState(%d)", s)
}

// round is fixed at creation: identifier, message, snapshot and so threshold never change.
type round struct {
	id          uint64
	message     []byte
	snapshot    *registry.Snapshot
	startedAt   time.Time
	deadline    time.Time
	state       RoundState
	collector   *signatureCollector
	certificate *tpaggtypes.Certificate
}

func newRound(id uint64, message []byte, snapshot *registry.Snapshot, startedAt time.Time, timeout time.Duration) *round {
	return &round{
		id:        id,
		message:   message,
		snapshot:  snapshot,
		startedAt: startedAt,
		deadline:  startedAt.Add(timeout),
		state:     RoundState_AwaitingSignatures,
		collector: newSignatureCollector(id, snapshot.Threshold()),
	}
}

func (r *round) threshold() uint32 {
	return r.snapshot.Threshold()
}

// nextRoundID is strictly greater than last and never behind the wall clock in seconds, so a
// restarted orchestrator does not reuse identifiers.
func nextRoundID(last uint64, now time.Time) uint64 {
	id := last + 1
	if sec := now.Unix(); sec > 0 && uint64(sec) > id {
		id = uint64(sec)
	}
	return id
}
