package at2

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/at2-network/at2-node/src/config"
	"github.com/at2-network/at2-node/src/crypto/keys"
	"github.com/at2-network/at2-node/src/peers"
)

func testEngineConfig(t *testing.T) *config.Config {
	conf := config.NewTestConfig(t)
	conf.DataDir = t.TempDir()
	conf.BindAddr = "127.0.0.1:0"
	conf.NoService = true
	return conf
}

// writeTestPeers generates a key for this node, stores it under the datadir,
// and writes a peers.json containing this node plus one remote peer.
func writeTestPeers(t *testing.T, conf *config.Config) string {
	key, err := Keygen(conf.Keyfile())
	if err != nil {
		t.Fatal(err)
	}

	otherKey, err := keys.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	self := keys.PublicKeyHex(&key.PublicKey)

	peerStore := peers.NewJSONPeers(conf.DataDir)
	err = peerStore.SetPeers([]*peers.Peer{
		peers.NewPeer(self, "127.0.0.1:11000", "self"),
		peers.NewPeer(keys.PublicKeyHex(&otherKey.PublicKey), "127.0.0.1:11001", "other"),
	})
	if err != nil {
		t.Fatal(err)
	}

	return self
}

func TestInit(t *testing.T) {
	conf := testEngineConfig(t)
	self := writeTestPeers(t, conf)

	genesis := map[string]uint64{
		self: 1000,
	}
	buf, err := json.Marshal(genesis)
	if err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(conf.GenesisFile(), buf, 0644); err != nil {
		t.Fatal(err)
	}

	engine := NewAT2(conf)
	if err := engine.Init(); err != nil {
		t.Fatal(err)
	}
	defer engine.Transport.Close()

	if engine.Node == nil {
		t.Fatal("Init should build the node")
	}
	if engine.Service != nil {
		t.Fatal("NoService should disable the API service")
	}
	if l := engine.Peers.Len(); l != 2 {
		t.Fatalf("2 peers expected, not %d", l)
	}

	if b := engine.Ledger.Balance(self); b != 1000 {
		t.Fatalf("genesis balance should be 1000, not %d", b)
	}
	if s := engine.Ledger.TotalSupply(); s != 1000 {
		t.Fatalf("total supply should be 1000, not %d", s)
	}
}

func TestInitWithoutGenesis(t *testing.T) {
	conf := testEngineConfig(t)
	self := writeTestPeers(t, conf)

	engine := NewAT2(conf)
	if err := engine.Init(); err != nil {
		t.Fatal(err)
	}
	defer engine.Transport.Close()

	// No genesis file means every account starts empty.
	if b := engine.Ledger.Balance(self); b != 0 {
		t.Fatalf("balance should be 0, not %d", b)
	}
}

func TestInitRequiresPeers(t *testing.T) {
	conf := testEngineConfig(t)

	engine := NewAT2(conf)
	if err := engine.Init(); err == nil {
		t.Fatal("Init should fail without a peers.json")
	}
}

func TestInitRequiresSelfInPeers(t *testing.T) {
	conf := testEngineConfig(t)

	// peers.json names two peers, neither of which is this node.
	key1, err := keys.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	key2, err := keys.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	peerStore := peers.NewJSONPeers(conf.DataDir)
	err = peerStore.SetPeers([]*peers.Peer{
		peers.NewPeer(keys.PublicKeyHex(&key1.PublicKey), "127.0.0.1:11000", "peer1"),
		peers.NewPeer(keys.PublicKeyHex(&key2.PublicKey), "127.0.0.1:11001", "peer2"),
	})
	if err != nil {
		t.Fatal(err)
	}

	engine := NewAT2(conf)
	if err := engine.Init(); err == nil {
		t.Fatal("Init should fail when this node is not in peers.json")
	}
}

func TestKeygen(t *testing.T) {
	keyfile := filepath.Join(t.TempDir(), "priv_key")

	key, err := Keygen(keyfile)
	if err != nil {
		t.Fatal(err)
	}
	if key == nil {
		t.Fatal("Keygen should return the generated key")
	}

	// A second keygen must not overwrite the existing key.
	if _, err := Keygen(keyfile); err == nil {
		t.Fatal("Keygen should refuse to overwrite an existing key")
	}

	loaded, err := keys.NewSimpleKeyfile(keyfile).ReadKey()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.D.Cmp(key.D) != 0 {
		t.Fatal("the stored key should equal the generated one")
	}
}
