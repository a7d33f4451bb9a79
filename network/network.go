package network

import (
	"context"
	"errors"

	"github.com/AsynkronIT/protoactor-go/actor"
)

var (
	ErrUnknownPeer   = errors.New("network: unknown peer")
	ErrNotStarted    = errors.New("network: not started")
	ErrMsgTooLarge   = errors.New("network: message exceeds maximum size")
	ErrUnknownModule = errors.New("network: no actor registered for module")
)

// Network delivers opaque payloads between registry identities. Inbound payloads reach the actor
// registered for their module as *message.NetworkMessage. Delivery is best-effort: Send returning
// nil does not mean the peer processed the message.
type Network interface {
	ID() string

	Send(ctx context.Context, to string, moduleName string, data []byte) error

	// Broadcast sends to every listed identity and reports the failures it saw; one unreachable
	// peer does not stop delivery to the rest.
	Broadcast(ctx context.Context, to []string, moduleName string, data []byte) error

	RegisterModule(moduleName string, pid *actor.PID)

	UnRegisterModule(moduleName string)

	Start(ctx context.Context) error

	Stop()
}
