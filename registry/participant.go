package registry

import (
	"fmt"

	"github.com/TopiaNetwork/aggregation/crypt/bn254"
)

// Participant is one member of the validator set. ID is the hex encoding of the BN254 public key
// and is what the transport reports as the authenticated sender.
type Participant struct {
	ID        string
	PublicKey *bn254.PublicKey
	Address   string
}

func NewParticipant(pub *bn254.PublicKey, address string) *Participant {
	return &Participant{
		ID:        pub.String(),
		PublicKey: pub,
		Address:   address,
	}
}

// ParticipantFromSeed declares a well-known identity by its derivation seed.
func ParticipantFromSeed(seed uint64, address string) (*Participant, error) {
	_, pub, err := bn254.DeriveKey(seed)
	if err != nil {
		return nil, fmt.Errorf("participant seed %d: %w", seed, err)
	}

	return NewParticipant(pub, address), nil
}

func ParticipantFromHex(pubHex string, address string) (*Participant, error) {
	pub, err := bn254.PublicKeyFromHex(pubHex)
	if err != nil {
		return nil, err
	}

	return NewParticipant(pub, address), nil
}
