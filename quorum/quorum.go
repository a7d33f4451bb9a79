// Package quorum computes the threshold of contributors a round needs before it can finalize.
package quorum

import "errors"

var ErrInsufficientParticipants = errors.New("quorum: at least one participant required")

// MaxFaults is the largest f with 3f+1 <= n.
func MaxFaults(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return (n - 1) / 3
}

// Quorum returns t = n - f. Any two sets of size t drawn from n participants share at least f+1
// members, so at least one honest one.
func Quorum(n uint32) (uint32, error) {
	if n == 0 {
		return 0, ErrInsufficientParticipants
	}

	return n - MaxFaults(n), nil
}
