package message

// NetworkMessage is what a registered module actor receives. FromPeerID is the registry identity
// the transport authenticated for the sender; it is never taken from the payload.
type NetworkMessage struct {
	FromPeerID string
	ModuleName string
	Data       []byte
}

// WireMessage is the framed unit on a stream. To is only set on broadcast topics so untargeted
// subscribers can skip a message.
type WireMessage struct {
	ModuleName string
	To         []string
	Data       []byte
}
