package peers

import (
	"sort"
	"sync"
)

// PubKeyPeers indexes peers by public key hex.
type PubKeyPeers map[string]*Peer

// IDPeers indexes peers by uint32 ID.
type IDPeers map[uint32]*Peer

// Peers is a thread-safe set of Peer, with indices by public key and by ID.
// The Sorted slice has a canonical order (ascending ID), identical on every
// node that loads the same peer set.
type Peers struct {
	sync.RWMutex
	Sorted   []*Peer
	ByPubKey PubKeyPeers
	ByID     IDPeers
}

// NewPeers instantiates an empty Peers set.
func NewPeers() *Peers {
	return &Peers{
		ByPubKey: make(PubKeyPeers),
		ByID:     make(IDPeers),
	}
}

// NewPeersFromSlice instantiates a Peers set from a slice of Peer.
func NewPeersFromSlice(source []*Peer) *Peers {
	peers := NewPeers()

	for _, peer := range source {
		peers.addPeerRaw(peer)
	}

	peers.internalSort()

	return peers
}

// addPeerRaw adds a peer without sorting the set. Not protected by the mutex.
func (p *Peers) addPeerRaw(peer *Peer) {
	p.ByPubKey[peer.PubKeyHex] = peer
	p.ByID[peer.ID()] = peer
}

// AddPeer adds a peer and re-sorts the set.
func (p *Peers) AddPeer(peer *Peer) {
	p.Lock()
	defer p.Unlock()

	p.addPeerRaw(peer)

	p.internalSort()
}

func (p *Peers) internalSort() {
	res := []*Peer{}

	for _, peer := range p.ByPubKey {
		res = append(res, peer)
	}

	sort.Sort(ByID(res))

	p.Sorted = res
}

// ToPeerSlice returns the canonically sorted slice of peers.
func (p *Peers) ToPeerSlice() []*Peer {
	p.RLock()
	defer p.RUnlock()

	return p.Sorted
}

// ToIDSlice returns the sorted peer IDs.
func (p *Peers) ToIDSlice() []uint32 {
	p.RLock()
	defer p.RUnlock()

	res := []uint32{}

	for _, peer := range p.Sorted {
		res = append(res, peer.ID())
	}

	return res
}

// Len returns the number of peers in the set.
func (p *Peers) Len() int {
	p.RLock()
	defer p.RUnlock()

	return len(p.ByPubKey)
}

// ByID implements sort.Interface for a slice of Peer based on ID.
type ByID []*Peer

func (a ByID) Len() int      { return len(a) }
func (a ByID) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a ByID) Less(i, j int) bool {
	return a[i].ID() < a[j].ID()
}
