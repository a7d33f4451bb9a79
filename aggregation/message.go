package aggregation

import (
	"fmt"

	tpcmm "github.com/TopiaNetwork/aggregation/common"
)

type AggregationMessage_Type uint32

const (
	AggregationMessage_Unknown AggregationMessage_Type = iota
	AggregationMessage_SigningRequest
	AggregationMessage_PartialSignature
)

func (t AggregationMessage_Type) String() string {
	switch t {
	case AggregationMessage_SigningRequest:
		return "SigningRequest"
	case AggregationMessage_PartialSignature:
		return "PartialSignature"
	}
	return fmt.Sprintf("AggregationMessage_Type(%d)", uint32(t))
}

// AggregationMessage is the envelope every payload travels in.
type AggregationMessage struct {
	MsgType AggregationMessage_Type
	Data    []byte
}

// SigningRequest asks a contributor to sign a round. Message is informational: contributors
// derive the canonical message themselves and refuse a request whose Message differs.
type SigningRequest struct {
	Round   uint64
	Message []byte
}

type PartialSignatureReply struct {
	Round       uint64
	Contributor uint32
	Signature   []byte
}

// CanonicalMessage is namespace || big-endian(round). Binding the namespace keeps signatures from
// being replayed into another protocol; binding the round keeps them from being replayed into
// another round.
func CanonicalMessage(namespace []byte, round uint64) []byte {
	msg := make([]byte, 0, len(namespace)+8)
	msg = append(msg, namespace...)
	return append(msg, tpcmm.Uint64ToBytes(round)...)
}
