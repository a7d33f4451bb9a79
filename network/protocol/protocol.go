package protocol

import "time"

const (
	_  = iota
	kb = 1 << (10 * iota)
	mb
)

const (
	DefaultMaxMsgSize = mb
	WriteReqDeadline  = 5 * time.Second
	ReadReqDeadline   = 10 * time.Second
	ReadHeaderWait    = 2 * time.Second
	ReadReqMinSpeed   = 50 * kb
	DialTimeout       = 5 * time.Second
)

const (
	P2PProtocolPrefix   = "/aggregation"
	AsyncSendProtocolID = P2PProtocolPrefix + "/asyncsend/0.0.1"
)
