package message

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/TopiaNetwork/aggregation/codec"
	tplog "github.com/TopiaNetwork/aggregation/log"
)

type ValidationResult int

const (
	ValidationAccept = ValidationResult(0)
	ValidationReject = ValidationResult(1)
	ValidationIgnore = ValidationResult(2)
)

// PeerAdmission reports whether a transport peer belongs to the participant set.
type PeerAdmission func(id peer.ID) bool

type PubSubMessageValidator func(ctx context.Context, isLocal bool, msg *WireMessage) ValidationResult

// TopicValidator rejects messages whose origin is not an admitted participant or that do not
// decode. Accepted messages carry the decoded WireMessage in ValidatorData.
func TopicValidator(localPeer peer.ID, log tplog.Logger, admitted PeerAdmission, marshaler codec.Marshaler, validators ...PubSubMessageValidator) pubsub.ValidatorEx {
	return func(ctx context.Context, remotePeer peer.ID, rawMsg *pubsub.Message) pubsub.ValidationResult {
		isLocal := remotePeer == localPeer

		origin := rawMsg.GetFrom()
		if !isLocal && !admitted(origin) {
			log.Debugf("Reject pubsub msg from unadmitted origin %s via %s", origin.String(), remotePeer.String())
			return pubsub.ValidationReject
		}

		var wireMsg WireMessage
		if err := marshaler.Unmarshal(rawMsg.Data, &wireMsg); err != nil {
			log.Errorf("Invalid pubsub message from %s: %v", origin.String(), err)
			return pubsub.ValidationReject
		}

		result := pubsub.ValidationAccept
		for _, validator := range validators {
			switch res := validator(ctx, isLocal, &wireMsg); res {
			case ValidationReject:
				return pubsub.ValidationReject
			case ValidationIgnore:
				result = pubsub.ValidationIgnore
			}
		}

		if result == pubsub.ValidationAccept {
			rawMsg.ValidatorData = &wireMsg
		}

		return result
	}
}
