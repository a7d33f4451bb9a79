package common

import (
	"fmt"

	p2pCrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	tpcmm "github.com/TopiaNetwork/aggregation/common"
)

var hostKeyDomain = []byte("aggregation-host-key")

// HostKeyFromSecret derives the node's ed25519 transport key from its signing secret, so a node
// keeps the same peer ID across restarts without a second key file.
func HostKeyFromSecret(secret []byte) (p2pCrypto.PrivKey, error) {
	material := tpcmm.NewBlake2bHasher(32, hostKeyDomain).Compute(secret)

	priv, _, err := p2pCrypto.GenerateEd25519Key(tpcmm.NewSeedRandReader(material))
	if err != nil {
		return nil, err
	}

	return priv, nil
}

func PeerIDFromSecret(secret []byte) (peer.ID, error) {
	priv, err := HostKeyFromSecret(secret)
	if err != nil {
		return "", err
	}

	return peer.IDFromPrivateKey(priv)
}

// CompleteAddress appends /p2p/<id> to addr unless it already names a peer.
func CompleteAddress(addr string, id peer.ID) (string, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return "", fmt.Errorf("invalid address %s: %w", addr, err)
	}

	if _, err := ma.ValueForProtocol(multiaddr.P_P2P); err == nil {
		return addr, nil
	}

	p2pPart, err := multiaddr.NewMultiaddr("/p2p/" + id.String())
	if err != nil {
		return "", err
	}

	return ma.Encapsulate(p2pPart).String(), nil
}
