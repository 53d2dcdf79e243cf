package peers

import (
	"github.com/at2-network/at2-node/src/common"
	"github.com/at2-network/at2-node/src/crypto/keys"
)

// Peer is a participant in the broadcast network. It is identified by a
// public key and reachable at a network address.
type Peer struct {
	NetAddr   string
	PubKeyHex string
	Moniker   string

	id uint32
}

// NewPeer instantiates a Peer from a hex-encoded public key and a network
// address.
func NewPeer(pubKeyHex, netAddr, moniker string) *Peer {
	return &Peer{
		PubKeyHex: pubKeyHex,
		NetAddr:   netAddr,
		Moniker:   moniker,
	}
}

// ID returns a stable uint32 identifier derived from the peer's public key.
func (p *Peer) ID() uint32 {
	if p.id == 0 {
		pubKeyBytes, err := p.PubKeyBytes()
		if err != nil {
			return 0
		}
		p.id = keys.PublicKeyID(pubKeyBytes)
	}
	return p.id
}

// PubKeyBytes returns the peer's public key as raw bytes.
func (p *Peer) PubKeyBytes() ([]byte, error) {
	return common.DecodeFromString(p.PubKeyHex)
}
