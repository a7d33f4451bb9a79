package aggregation

import (
	"context"

	"github.com/TopiaNetwork/aggregation/codec"
	tplog "github.com/TopiaNetwork/aggregation/log"
	"github.com/TopiaNetwork/aggregation/network"
)

type messageDeliverI interface {
	deliverSigningRequest(ctx context.Context, to []string, msg *SigningRequest) error

	deliverPartialSignature(ctx context.Context, to string, msg *PartialSignatureReply) error
}

type messageDeliver struct {
	log       tplog.Logger
	network   network.Network
	marshaler codec.Marshaler
}

func newMessageDeliver(log tplog.Logger, network network.Network, marshaler codec.Marshaler) *messageDeliver {
	return &messageDeliver{
		log:       log,
		network:   network,
		marshaler: marshaler,
	}
}

func (md *messageDeliver) envelope(msgType AggregationMessage_Type, msg interface{}) ([]byte, error) {
	data, err := md.marshaler.Marshal(msg)
	if err != nil {
		return nil, err
	}

	return md.marshaler.Marshal(&AggregationMessage{MsgType: msgType, Data: data})
}

func (md *messageDeliver) deliverSigningRequest(ctx context.Context, to []string, msg *SigningRequest) error {
	msgBytes, err := md.envelope(AggregationMessage_SigningRequest, msg)
	if err != nil {
		md.log.Errorf("SigningRequest marshal err: round=%d, err=%v", msg.Round, err)
		return err
	}

	if err = md.network.Broadcast(ctx, to, MOD_NAME, msgBytes); err != nil {
		md.log.Warnf("SigningRequest delivery incomplete: round=%d, err=%v", msg.Round, err)
		return err
	}

	return nil
}

func (md *messageDeliver) deliverPartialSignature(ctx context.Context, to string, msg *PartialSignatureReply) error {
	msgBytes, err := md.envelope(AggregationMessage_PartialSignature, msg)
	if err != nil {
		md.log.Errorf("PartialSignatureReply marshal err: round=%d, err=%v", msg.Round, err)
		return err
	}

	if err = md.network.Send(ctx, to, MOD_NAME, msgBytes); err != nil {
		md.log.Warnf("PartialSignatureReply delivery failed: round=%d, to=%s, err=%v", msg.Round, to, err)
		return err
	}

	return nil
}
