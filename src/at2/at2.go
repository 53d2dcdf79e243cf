package at2

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/at2-network/at2-node/src/config"
	"github.com/at2-network/at2-node/src/crypto/keys"
	"github.com/at2-network/at2-node/src/ledger"
	"github.com/at2-network/at2-node/src/net"
	"github.com/at2-network/at2-node/src/node"
	"github.com/at2-network/at2-node/src/peers"
	"github.com/at2-network/at2-node/src/recent"
	"github.com/at2-network/at2-node/src/service"
	"github.com/sirupsen/logrus"
)

// AT2 is the top-level engine binding together the configuration, transport,
// peer set, ledger, cache, delivery-pipeline node, and API service.
type AT2 struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Peers     *peers.Peers
	Ledger    *ledger.Ledger
	Cache     *recent.Cache
	Service   *service.Service
}

// NewAT2 instantiates an engine with a config; call Init before Run.
func NewAT2(config *config.Config) *AT2 {
	return &AT2{
		Config: config,
	}
}

func (a *AT2) initPeers() error {
	peerStore := peers.NewJSONPeers(a.Config.DataDir)

	participants, err := peerStore.Peers()
	if err != nil {
		return err
	}

	if participants.Len() < 2 {
		return fmt.Errorf("peers.json should define at least two peers")
	}

	a.Peers = participants

	return nil
}

func (a *AT2) initKey() error {
	if a.Config.Key == nil {
		keyfile := keys.NewSimpleKeyfile(a.Config.Keyfile())

		privKey, err := keyfile.ReadKey()
		if err != nil {
			a.Config.Logger().Warn("Cannot read private key from file", err)

			privKey, err = Keygen(a.Config.Keyfile())
			if err != nil {
				a.Config.Logger().Error("Cannot generate a new private key", err)
				return err
			}

			a.Config.Logger().Info("Created a new key: ", keys.PublicKeyHex(&privKey.PublicKey))
		}

		a.Config.Key = privKey
	}
	return nil
}

func (a *AT2) initLedger() error {
	a.Ledger = ledger.NewLedger()

	cache, err := recent.NewCache(a.Config.CacheSize)
	if err != nil {
		return err
	}
	a.Cache = cache

	return a.seedGenesis()
}

// seedGenesis loads initial balances from genesis.json into the ledger. Every
// node in the network must be seeded with the same file to start from the
// same state; a missing file just means all accounts start empty.
func (a *AT2) seedGenesis() error {
	buf, err := ioutil.ReadFile(a.Config.GenesisFile())
	if err != nil {
		if os.IsNotExist(err) {
			a.Config.Logger().Debug("No genesis file, starting with an empty ledger")
			return nil
		}
		return err
	}

	balances := map[string]uint64{}
	if err := json.Unmarshal(buf, &balances); err != nil {
		return fmt.Errorf("parse genesis file: %v", err)
	}

	for identity, balance := range balances {
		a.Ledger.Seed(identity, balance)
	}

	a.Config.Logger().WithField("accounts", len(balances)).Debug("Seeded genesis balances")

	return nil
}

func (a *AT2) initTransport() error {
	transport, err := net.NewTCPTransport(
		a.Config.BindAddr,
		a.Config.AdvertiseAddr,
		a.Config.MaxPool,
		a.Config.TCPTimeout,
		a.Config.Logger(),
	)
	if err != nil {
		return err
	}

	a.Transport = transport

	return nil
}

func (a *AT2) initNode() error {
	validator := node.NewValidator(a.Config.Key, a.Config.Moniker)

	if _, ok := a.Peers.ByPubKey[validator.PublicKeyHex()]; !ok {
		return fmt.Errorf("cannot find self pubkey in peers.json")
	}

	a.Config.Logger().WithFields(logrus.Fields{
		"participants": a.Peers.Len(),
		"id":           validator.ID(),
	}).Debug("PARTICIPANTS")

	a.Node = node.NewNode(
		a.Config,
		validator,
		a.Peers,
		a.Ledger,
		a.Cache,
		a.Transport,
	)

	return nil
}

func (a *AT2) initService() error {
	if !a.Config.NoService {
		a.Service = service.NewService(a.Config.ServiceAddr, a.Node, a.Config.Logger())
	}
	return nil
}

// Init instantiates and connects all the engine's components.
func (a *AT2) Init() error {
	if err := a.initPeers(); err != nil {
		return err
	}

	if err := a.initKey(); err != nil {
		return err
	}

	if err := a.initLedger(); err != nil {
		return err
	}

	if err := a.initTransport(); err != nil {
		return err
	}

	if err := a.initNode(); err != nil {
		return err
	}

	if err := a.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the transport listener, the API service, bootstraps connectivity
// to the peer set, and blocks in the node's delivery loop.
func (a *AT2) Run() error {
	go a.Transport.Listen()

	if a.Service != nil {
		go a.Service.Serve()
	}

	if err := a.Node.Init(); err != nil {
		return err
	}

	a.Node.Run()

	return nil
}

// Keygen generates a new private key under keyfile, unless one already lives
// there.
func Keygen(keyfile string) (*ecdsa.PrivateKey, error) {
	simpleKeyfile := keys.NewSimpleKeyfile(keyfile)

	if _, err := simpleKeyfile.ReadKey(); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", keyfile)
	}

	privKey, err := keys.GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := simpleKeyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
