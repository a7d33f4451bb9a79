package aggregation

import (
	"github.com/TopiaNetwork/aggregation/crypt/bn254"
)

// signatureCollector keeps the verified partial signatures of one round, at most one per
// contributor index. It is owned by the aggregation actor and needs no locking.
type signatureCollector struct {
	round     uint64
	threshold uint32
	partials  map[uint32]*bn254.PartialSignature
	order     []uint32
	late      map[uint32]*bn254.PartialSignature
}

func newSignatureCollector(round uint64, threshold uint32) *signatureCollector {
	return &signatureCollector{
		round:     round,
		threshold: threshold,
		partials:  make(map[uint32]*bn254.PartialSignature),
		late:      make(map[uint32]*bn254.PartialSignature),
	}
}

func (sc *signatureCollector) has(contributor uint32) bool {
	if _, ok := sc.partials[contributor]; ok {
		return true
	}
	_, ok := sc.late[contributor]
	return ok
}

// add records a verified partial and reports whether this addition made the collector reach its
// threshold. That happens at most once per collector.
func (sc *signatureCollector) add(contributor uint32, sig []byte) bool {
	if sc.has(contributor) {
		return false
	}

	sc.partials[contributor] = &bn254.PartialSignature{Round: sc.round, Contributor: contributor, Signature: sig}
	sc.order = append(sc.order, contributor)

	return uint32(len(sc.partials)) == sc.threshold
}

// addLate records a verified partial that arrived after finalization; it never counts toward the
// aggregate.
func (sc *signatureCollector) addLate(contributor uint32, sig []byte) bool {
	if sc.has(contributor) {
		return false
	}

	sc.late[contributor] = &bn254.PartialSignature{Round: sc.round, Contributor: contributor, Signature: sig}
	return true
}

func (sc *signatureCollector) count() uint32 {
	return uint32(len(sc.partials))
}

func (sc *signatureCollector) lateCount() uint32 {
	return uint32(len(sc.late))
}

// collected returns the recorded partials in arrival order.
func (sc *signatureCollector) collected() []*bn254.PartialSignature {
	out := make([]*bn254.PartialSignature, 0, len(sc.order))
	for _, idx := range sc.order {
		out = append(out, sc.partials[idx])
	}
	return out
}
