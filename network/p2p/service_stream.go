package p2p

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-msgio"

	tplog "github.com/TopiaNetwork/aggregation/log"
	logcomm "github.com/TopiaNetwork/aggregation/log/common"
	"github.com/TopiaNetwork/aggregation/metrics"
	"github.com/TopiaNetwork/aggregation/network/message"
	tpnetprotoc "github.com/TopiaNetwork/aggregation/network/protocol"
)

type P2PStreamService struct {
	ctx        context.Context
	log        tplog.Logger
	p2pService *P2PService
}

func NewP2PStreamService(ctx context.Context, log tplog.Logger, p2pService *P2PService) *P2PStreamService {
	return &P2PStreamService{
		ctx:        ctx,
		log:        tplog.CreateModuleLogger(logcomm.InfoLevel, "P2PStreamService", log),
		p2pService: p2pService,
	}
}

func (ps *P2PStreamService) handleIncomingStream(stream network.Stream) {
	remote := stream.Conn().RemotePeer()
	if !ps.p2pService.isAdmitted(remote) {
		metrics.P2PMessages.WithLabelValues("in", "unadmitted").Inc()
		ps.log.Debugf("Reset stream from unadmitted peer %s", remote.String())
		stream.Reset()
		return
	}

	ps.log.Debugf("Received stream ID=%s, protocol=%s remoteID=%s", stream.ID(), stream.Protocol(), remote.String())

	streamReader := NewStreamReader(stream, tpnetprotoc.ReadReqMinSpeed, tpnetprotoc.ReadHeaderWait, tpnetprotoc.ReadReqDeadline)
	reader := msgio.NewVarintReaderSize(streamReader, ps.p2pService.config.MaxMessageSize)

	for {
		select {
		case <-ps.ctx.Done():
			stream.Reset()
			return
		default:
		}

		frame, err := readFrame(reader, streamReader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				stream.Close()
				return
			}
			ps.log.Debugf("Failed to read from stream %s: %v, reset", stream.ID(), err)
			stream.Reset()
			return
		}

		if !ps.p2pService.allow(remote) {
			reader.ReleaseMsg(frame)
			metrics.P2PMessages.WithLabelValues("in", "rate_limited").Inc()
			continue
		}

		var wireMsg message.WireMessage
		err = ps.p2pService.marshaler.Unmarshal(frame, &wireMsg)
		reader.ReleaseMsg(frame)
		if err != nil {
			metrics.P2PMessages.WithLabelValues("in", "malformed").Inc()
			ps.log.Debugf("Malformed frame from %s: %v", remote.String(), err)
			continue
		}

		ps.p2pService.deliver(remote, &wireMsg)
	}
}

// send opens a short-lived stream to peerID and writes one frame.
func (ps *P2PStreamService) send(ctx context.Context, peerID peer.ID, wireMsg *message.WireMessage) error {
	frame, err := ps.p2pService.marshaler.Marshal(wireMsg)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, tpnetprotoc.DialTimeout)
	defer cancel()

	stream, err := ps.p2pService.host.NewStream(dialCtx, peerID, protocol.ID(tpnetprotoc.AsyncSendProtocolID))
	if err != nil {
		return fmt.Errorf("open stream to %s: %w", peerID.String(), err)
	}

	if err = writeFrame(ps.log, stream, frame); err != nil {
		stream.Reset()
		return fmt.Errorf("write stream %s: %w", stream.ID(), err)
	}

	return stream.Close()
}

// readFrame reads the next frame length first so the stream reader can size the body's budget.
func readFrame(reader msgio.ReadCloser, streamReader *StreamReader) ([]byte, error) {
	size, err := reader.NextMsgLen()
	if err != nil {
		return nil, err
	}

	streamReader.Expect(size)
	defer streamReader.Next()

	return reader.ReadMsg()
}

type writerDeadline interface {
	io.Writer
	SetWriteDeadline(time.Time) error
}

// writeFrame writes one varint-framed message. A stream that cannot take a deadline is still
// written to; the dial context and the remote's read budget bound it instead.
func writeFrame(log tplog.Logger, w writerDeadline, frame []byte) error {
	if err := w.SetWriteDeadline(deadline(tpnetprotoc.WriteReqDeadline)); err != nil {
		log.Debugf("Set write deadline err: %v", err)
	}

	return msgio.NewVarintWriter(w).WriteMsg(frame)
}
