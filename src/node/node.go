package node

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/at2-network/at2-node/src/config"
	"github.com/at2-network/at2-node/src/ledger"
	"github.com/at2-network/at2-node/src/net"
	"github.com/at2-network/at2-node/src/peers"
	"github.com/at2-network/at2-node/src/recent"
	"github.com/at2-network/at2-node/src/transfer"
	"github.com/sirupsen/logrus"
)

// Node is the delivery pipeline: it owns the account ledger, the
// recent-transaction cache, and the broadcast voting core, and couples them to
// the transport. Submitted payloads are disseminated to the peer set; payloads
// whose broadcast completes are applied to the ledger and recorded in the
// cache by a single delivery loop.
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	validator *Validator

	peers  *peers.Peers
	others []*peers.Peer

	trans net.Transport
	netCh <-chan net.RPC

	broadcaster *transfer.Broadcaster

	ledger *ledger.Ledger
	cache  *recent.Cache

	shutdownCh chan struct{}

	start     time.Time
	delivered uint64
	rejected  uint64
}

// NewNode instantiates a Node. The peer set must contain the validator
// itself; echo and ready thresholds are the full peer-set size.
func NewNode(
	conf *config.Config,
	validator *Validator,
	peerSet *peers.Peers,
	ldgr *ledger.Ledger,
	cache *recent.Cache,
	trans net.Transport,
) *Node {

	logger := conf.Logger().WithField("this_id", validator.ID())

	others := []*peers.Peer{}
	for _, p := range peerSet.ToPeerSlice() {
		if p.PubKeyHex != validator.PublicKeyHex() {
			others = append(others, p)
		}
	}

	node := &Node{
		conf:        conf,
		logger:      logger,
		validator:   validator,
		peers:       peerSet,
		others:      others,
		trans:       trans,
		netCh:       trans.Consumer(),
		broadcaster: transfer.NewBroadcaster(validator.ID(), peerSet.Len(), peerSet.Len(), logger),
		ledger:      ldgr,
		cache:       cache,
		shutdownCh:  make(chan struct{}),
	}

	return node
}

// Init bootstraps connectivity: it pings every other peer with a bounded
// capped-exponential backoff. A peer that stays unreachable is logged and
// skipped; the node runs with partial connectivity rather than aborting.
func (n *Node) Init() error {
	if _, ok := n.peers.ByPubKey[n.validator.PublicKeyHex()]; !ok {
		return fmt.Errorf("validator %s not in peer set", n.validator.PublicKeyHex())
	}

	for _, p := range n.others {
		peer := p
		err := n.retryRPC(n.conf.BootstrapRetries, func() error {
			resp := net.PingResponse{}
			return n.trans.Ping(peer.NetAddr, &net.PingRequest{FromID: n.validator.ID()}, &resp)
		})
		if err != nil {
			n.logger.WithFields(logrus.Fields{
				"peer":  peer.NetAddr,
				"error": err,
			}).Warn("Peer unreachable during bootstrap")
			continue
		}
		n.logger.WithField("peer", peer.NetAddr).Debug("Peer connected")
	}

	return nil
}

// Run starts the RPC dispatch routine and runs the delivery loop. It blocks
// until the delivery channel is closed by Shutdown.
func (n *Node) Run() {
	n.start = time.Now()

	go n.doBackgroundWork()

	n.deliveryLoop()
}

// RunAsync calls Run in a separate routine.
func (n *Node) RunAsync() {
	go n.Run()
}

// doBackgroundWork dispatches incoming RPCs until shutdown.
func (n *Node) doBackgroundWork() {
	for {
		select {
		case rpc := <-n.netCh:
			n.goFunc(func() {
				n.processRPC(rpc)
			})
		case <-n.shutdownCh:
			return
		}
	}
}

// deliveryLoop applies quorum-agreed batches, in the order received, to the
// ledger and the cache. A rejected payload is logged and skipped; there is no
// retry and no rollback. The loop's sole termination condition is the closure
// of the delivery channel.
func (n *Node) deliveryLoop() {
	for batch := range n.broadcaster.DeliverCh() {
		n.logger.WithField("batch_size", len(batch)).Debug("Processing delivered batch")

		for _, p := range batch {
			if err := n.ledger.Transfer(p.Sender, p.Sequence, p.Recipient, p.Amount); err != nil {
				n.logger.WithFields(logrus.Fields{
					"sender":   p.Sender,
					"sequence": p.Sequence,
					"error":    err,
				}).Warn("Rejected transfer")
				atomic.AddUint64(&n.rejected, 1)
				continue
			}

			atomic.AddUint64(&n.delivered, 1)

			// The cache is not transactionally coupled to the ledger: if this
			// fails, the ledger effect is retained and the entry is lost.
			if err := n.cache.Put(p.Sender, p.Recipient, p.Amount); err != nil {
				n.logger.WithFields(logrus.Fields{
					"sender":   p.Sender,
					"sequence": p.Sequence,
					"error":    err,
				}).Warn("Recording recent transaction")
			}
		}
	}

	n.logger.Debug("Delivery channel closed")
}

// Broadcast submits a fully formed, signed payload for dissemination. It
// returns once the payload is locally accepted; it does not wait for quorum
// delivery, and the submitter gets no signal about economic validity.
func (n *Node) Broadcast(p *transfer.Payload) error {
	if n.getState() == Shutdown {
		return fmt.Errorf("node is shutdown")
	}

	first, err := n.broadcaster.ReceiveGossip(p)
	if err != nil {
		return fmt.Errorf("submit payload: %v", err)
	}

	if first {
		hash, err := p.Hash()
		if err != nil {
			return err
		}
		n.relayGossip(p)
		n.castEcho(hash)
	}

	return nil
}

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.GossipRequest:
		n.processGossipRequest(rpc, cmd)
	case *net.EchoRequest:
		n.processEchoRequest(rpc, cmd)
	case *net.ReadyRequest:
		n.processReadyRequest(rpc, cmd)
	case *net.PingRequest:
		rpc.Respond(&net.PingResponse{FromID: n.validator.ID(), Success: true}, nil)
	default:
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

func (n *Node) processGossipRequest(rpc net.RPC, cmd *net.GossipRequest) {
	n.logger.WithFields(logrus.Fields{
		"from_id":  cmd.FromID,
		"sender":   cmd.Payload.Sender,
		"sequence": cmd.Payload.Sequence,
	}).Debug("Process GossipRequest")

	first, err := n.broadcaster.ReceiveGossip(cmd.Payload)
	if err != nil {
		n.logger.WithField("error", err).Warn("Rejecting gossiped payload")
		rpc.Respond(&net.GossipResponse{FromID: n.validator.ID(), Success: false}, err)
		return
	}

	rpc.Respond(&net.GossipResponse{FromID: n.validator.ID(), Success: true}, nil)

	if first {
		hash, err := cmd.Payload.Hash()
		if err != nil {
			n.logger.WithField("error", err).Error("Hashing gossiped payload")
			return
		}
		n.relayGossip(cmd.Payload)
		n.castEcho(hash)
	}
}

func (n *Node) processEchoRequest(rpc net.RPC, cmd *net.EchoRequest) {
	n.logger.WithFields(logrus.Fields{
		"from_id": cmd.FromID,
		"hash":    cmd.Hash,
	}).Debug("Process EchoRequest")

	if n.broadcaster.ReceiveEcho(cmd.Hash, cmd.FromID) {
		n.castReady(cmd.Hash)
	}

	rpc.Respond(&net.EchoResponse{FromID: n.validator.ID(), Success: true}, nil)
}

func (n *Node) processReadyRequest(rpc net.RPC, cmd *net.ReadyRequest) {
	n.logger.WithFields(logrus.Fields{
		"from_id": cmd.FromID,
		"hash":    cmd.Hash,
	}).Debug("Process ReadyRequest")

	n.broadcaster.ReceiveReady(cmd.Hash, cmd.FromID)

	rpc.Respond(&net.ReadyResponse{FromID: n.validator.ID(), Success: true}, nil)
}

// relayGossip forwards a newly seen payload to the whole peer set.
func (n *Node) relayGossip(p *transfer.Payload) {
	n.sendToOthers("gossip", func(target string) error {
		resp := net.GossipResponse{}
		return n.trans.Gossip(target, &net.GossipRequest{
			FromID:  n.validator.ID(),
			Payload: p,
		}, &resp)
	})
}

// castEcho records our own echo vote and sends it to the peer set.
func (n *Node) castEcho(hash string) {
	if n.broadcaster.ReceiveEcho(hash, n.validator.ID()) {
		n.castReady(hash)
	}

	n.sendToOthers("echo", func(target string) error {
		resp := net.EchoResponse{}
		return n.trans.Echo(target, &net.EchoRequest{
			FromID: n.validator.ID(),
			Hash:   hash,
		}, &resp)
	})
}

// castReady records our own ready vote and sends it to the peer set.
func (n *Node) castReady(hash string) {
	n.broadcaster.ReceiveReady(hash, n.validator.ID())

	n.sendToOthers("ready", func(target string) error {
		resp := net.ReadyResponse{}
		return n.trans.Ready(target, &net.ReadyRequest{
			FromID: n.validator.ID(),
			Hash:   hash,
		}, &resp)
	})
}

// sendToOthers sends an RPC to every other peer, each in its own routine,
// with a bounded retry. Votes are idempotent so retries are harmless. Plain
// goroutines, not goFunc: a vote send must never be dropped by the routine
// limit, or a unanimous quorum can never complete.
func (n *Node) sendToOthers(kind string, send func(target string) error) {
	for _, p := range n.others {
		peer := p
		go func() {
			if err := n.retryRPC(n.conf.SendRetries, func() error {
				return send(peer.NetAddr)
			}); err != nil {
				n.logger.WithFields(logrus.Fields{
					"kind":  kind,
					"peer":  peer.NetAddr,
					"error": err,
				}).Warn("Sending to peer")
			}
		}()
	}
}

// retryRPC runs fn up to attempts times, sleeping with capped exponential
// backoff between failures. The bounded policy is deliberate: an unreachable
// peer degrades connectivity but never wedges the node in an endless retry.
func (n *Node) retryRPC(attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	backoff := n.conf.RetryBackoff

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(backoff):
		case <-n.shutdownCh:
			return err
		}

		backoff *= 2
		if backoff > config.MaxRetryBackoff {
			backoff = config.MaxRetryBackoff
		}
	}

	return err
}

// Shutdown closes the broadcaster's delivery channel, which terminates the
// delivery loop, then stops the RPC dispatcher and the transport.
func (n *Node) Shutdown() {
	if n.getState() == Shutdown {
		return
	}

	n.logger.Debug("Shutdown")
	n.setState(Shutdown)

	n.broadcaster.Shutdown()
	close(n.shutdownCh)
	n.trans.Close()

	n.waitRoutines()
}

// Balance returns the ledger balance of an identity, 0 if unknown.
func (n *Node) Balance(identity string) uint64 {
	return n.ledger.Balance(identity)
}

// LastSequence returns the last applied sequence of an identity, 0 if unknown.
func (n *Node) LastSequence(identity string) uint64 {
	return n.ledger.LastSequence(identity)
}

// RecentTransactions returns the retained recent transactions, oldest first.
func (n *Node) RecentTransactions() []*recent.Entry {
	return n.cache.GetAll()
}

// Peers returns the node's peer set.
func (n *Node) Peers() *peers.Peers {
	return n.peers
}

// Moniker returns the node's friendly name.
func (n *Node) Moniker() string {
	return n.validator.Moniker
}

// GetStats returns operational counters for the stats endpoint.
func (n *Node) GetStats() map[string]string {
	uptime := time.Duration(0)
	if !n.start.IsZero() {
		uptime = time.Since(n.start)
	}

	return map[string]string{
		"moniker":       n.validator.Moniker,
		"state":         n.getState().String(),
		"num_peers":     fmt.Sprint(n.peers.Len()),
		"delivered_txs": fmt.Sprint(atomic.LoadUint64(&n.delivered)),
		"rejected_txs":  fmt.Sprint(atomic.LoadUint64(&n.rejected)),
		"uptime":        uptime.String(),
	}
}
