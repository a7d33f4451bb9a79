package p2p

import (
	"time"
)

type ReaderDeadline interface {
	Read([]byte) (int, error)
	SetReadDeadline(time.Time) error
}

// StreamReader enforces a read budget per frame. Until a frame's length is known the budget is
// headerWait; Expect then grants headerWait plus the time to receive that many bytes at minSpeed,
// capped at maxWait. Wall time spent inside Read is charged against the budget.
type StreamReader struct {
	rd ReaderDeadline

	waitPerByte time.Duration
	headerWait  time.Duration
	maxWait     time.Duration
	wait        time.Duration
}

func NewStreamReader(rd ReaderDeadline, minSpeed int64, headerWait time.Duration, maxWait time.Duration) *StreamReader {
	return &StreamReader{
		rd:          rd,
		waitPerByte: time.Second / time.Duration(minSpeed),
		headerWait:  headerWait,
		maxWait:     maxWait,
		wait:        headerWait,
	}
}

type errNoWait struct{}

func (err errNoWait) Error() string {
	return "wait time exceeded"
}
func (err errNoWait) Timeout() bool {
	return true
}

// Expect grants the budget for a frame body of size bytes.
func (sr *StreamReader) Expect(size int) {
	wait := sr.headerWait + time.Duration(size)*sr.waitPerByte
	if wait > sr.maxWait || wait < sr.headerWait {
		wait = sr.maxWait
	}
	sr.wait = wait
}

// Next re-arms the header budget after a frame has been consumed.
func (sr *StreamReader) Next() {
	sr.wait = sr.headerWait
}

func (sr *StreamReader) Read(buf []byte) (int, error) {
	if sr.wait <= 0 {
		return 0, errNoWait{}
	}

	start := time.Now()
	if err := sr.rd.SetReadDeadline(start.Add(sr.wait)); err != nil {
		return 0, err
	}

	n, err := sr.rd.Read(buf)
	sr.wait -= time.Since(start)

	if clearErr := sr.rd.SetReadDeadline(time.Time{}); err == nil {
		err = clearErr
	}
	return n, err
}
