package quorum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuorum(t *testing.T) {
	cases := []struct {
		n, f, t uint32
	}{
		{1, 0, 1},
		{2, 0, 2},
		{3, 0, 3},
		{4, 1, 3},
		{5, 1, 4},
		{7, 2, 5},
		{10, 3, 7},
		{100, 33, 67},
	}
	for _, c := range cases {
		got, err := Quorum(c.n)
		require.NoError(t, err)
		assert.Equal(t, c.t, got, "n=%d", c.n)
		assert.Equal(t, c.f, MaxFaults(c.n), "n=%d", c.n)
	}
}

func TestQuorumZero(t *testing.T) {
	_, err := Quorum(0)
	assert.ErrorIs(t, err, ErrInsufficientParticipants)
	assert.Equal(t, uint32(0), MaxFaults(0))
}

func TestQuorumIntersectionHasHonestMember(t *testing.T) {
	for _, n := range []uint32{1, 4, 7, 10, 100} {
		q, err := Quorum(n)
		require.NoError(t, err)
		f := MaxFaults(n)

		assert.GreaterOrEqual(t, int64(2*q)-int64(n), int64(f+1), "n=%d", n)
		assert.LessOrEqual(t, q, n)
	}
}
