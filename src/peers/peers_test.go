package peers

import (
	"fmt"
	"reflect"
	"sort"
	"testing"

	"github.com/at2-network/at2-node/src/crypto/keys"
)

func newTestPeers(t *testing.T, n int) []*Peer {
	res := []*Peer{}
	for i := 0; i < n; i++ {
		key, err := keys.GenerateKey()
		if err != nil {
			t.Fatal(err)
		}
		peer := NewPeer(
			keys.PublicKeyHex(&key.PublicKey),
			fmt.Sprintf("addr%d", i),
			fmt.Sprintf("peer%d", i),
		)
		res = append(res, peer)
	}
	return res
}

func TestNewPeersFromSlice(t *testing.T) {
	source := newTestPeers(t, 3)

	peerSet := NewPeersFromSlice(source)

	if l := peerSet.Len(); l != 3 {
		t.Fatalf("peer set should have 3 peers, not %d", l)
	}

	for _, peer := range source {
		if _, ok := peerSet.ByPubKey[peer.PubKeyHex]; !ok {
			t.Fatalf("peer %s should be indexed by public key", peer.Moniker)
		}
		if _, ok := peerSet.ByID[peer.ID()]; !ok {
			t.Fatalf("peer %s should be indexed by ID", peer.Moniker)
		}
	}

	// The sorted slice is in ascending ID order, the same on every node.
	ids := peerSet.ToIDSlice()
	if !sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }) {
		t.Fatalf("peer IDs should be sorted: %v", ids)
	}
}

func TestAddPeer(t *testing.T) {
	source := newTestPeers(t, 3)

	peerSet := NewPeersFromSlice(source[:2])
	peerSet.AddPeer(source[2])

	if l := peerSet.Len(); l != 3 {
		t.Fatalf("peer set should have 3 peers, not %d", l)
	}

	ids := peerSet.ToIDSlice()
	if !sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }) {
		t.Fatalf("peer IDs should be sorted after AddPeer: %v", ids)
	}
}

func TestJSONPeers(t *testing.T) {
	dir := t.TempDir()

	store := NewJSONPeers(dir)

	// Reading an empty store should return an error.
	if _, err := store.Peers(); err == nil {
		t.Fatal("reading an uninitialized peer store should fail")
	}

	source := newTestPeers(t, 3)
	if err := store.SetPeers(source); err != nil {
		t.Fatal(err)
	}

	peerSet, err := store.Peers()
	if err != nil {
		t.Fatal(err)
	}

	if l := peerSet.Len(); l != 3 {
		t.Fatalf("peer set should have 3 peers, not %d", l)
	}

	for _, peer := range source {
		loaded, ok := peerSet.ByPubKey[peer.PubKeyHex]
		if !ok {
			t.Fatalf("peer %s should survive the roundtrip", peer.Moniker)
		}
		if loaded.NetAddr != peer.NetAddr || loaded.Moniker != peer.Moniker {
			t.Fatalf("loaded peer %+v should equal %+v", loaded, peer)
		}
	}

	want := NewPeersFromSlice(source).ToIDSlice()
	if !reflect.DeepEqual(peerSet.ToIDSlice(), want) {
		t.Fatalf("loaded peer order %v should equal %v", peerSet.ToIDSlice(), want)
	}
}
