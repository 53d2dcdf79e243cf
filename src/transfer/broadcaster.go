package transfer

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// deliverChSize is the buffer of the delivery channel. The delivery loop is
// the only consumer and keeps draining until the channel is closed, so the
// buffer only smooths bursts.
const deliverChSize = 1024

// payloadState tracks the broadcast progress of a single payload.
type payloadState struct {
	payload   *Payload
	echoes    map[uint32]bool
	readies   map[uint32]bool
	readySent bool
	delivered bool
}

// Broadcaster is the voting core of the reliable-broadcast layer. It is pure
// protocol state: the node feeds it received gossip, echo, and ready messages,
// and it reports which messages to send in response. Payloads whose votes have
// completed are released through the per-sender Sequencer onto the delivery
// channel.
//
// A payload's signature is verified once, on first receipt, before any vote is
// cast for it; the delivery pipeline downstream can therefore trust every
// delivered payload.
//
// Echo and ready thresholds are counts of distinct voters, including this
// node. With both thresholds equal to the full peer-set size, every correct
// node must acknowledge a payload before any node applies it.
type Broadcaster struct {
	sync.Mutex

	selfID         uint32
	echoThreshold  int
	readyThreshold int

	states    map[string]*payloadState
	sequencer *Sequencer

	deliverCh chan []*Payload
	shutdown  bool

	logger *logrus.Entry
}

// NewBroadcaster instantiates a Broadcaster for a node identified by selfID.
func NewBroadcaster(selfID uint32, echoThreshold int, readyThreshold int, logger *logrus.Entry) *Broadcaster {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Broadcaster{
		selfID:         selfID,
		echoThreshold:  echoThreshold,
		readyThreshold: readyThreshold,
		states:         make(map[string]*payloadState),
		sequencer:      NewSequencer(),
		deliverCh:      make(chan []*Payload, deliverChSize),
		logger:         logger,
	}
}

// DeliverCh returns the channel on which quorum-agreed batches are delivered,
// in per-sender FIFO order. The channel is closed by Shutdown; that closure is
// the delivery loop's sole termination signal.
func (b *Broadcaster) DeliverCh() <-chan []*Payload {
	return b.deliverCh
}

func (b *Broadcaster) getState(hash string) *payloadState {
	state, ok := b.states[hash]
	if !ok {
		state = &payloadState{
			echoes:  make(map[uint32]bool),
			readies: make(map[uint32]bool),
		}
		b.states[hash] = state
	}
	return state
}

// ReceiveGossip records a disseminated payload. It returns true if the payload
// is new to this node, in which case the caller must relay the gossip and cast
// an echo vote. A payload with an invalid signature is rejected with an error
// and never voted on.
func (b *Broadcaster) ReceiveGossip(p *Payload) (bool, error) {
	ok, err := p.Verify()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("invalid signature on payload from %.10s...", p.Sender)
	}

	hash, err := p.Hash()
	if err != nil {
		return false, err
	}

	b.Lock()
	defer b.Unlock()

	state := b.getState(hash)
	if state.payload != nil {
		return false, nil
	}
	state.payload = p

	// The ready quorum can complete before the payload itself arrives here.
	if !state.delivered && len(state.readies) >= b.readyThreshold {
		b.deliverLocked(state)
	}

	return true, nil
}

// ReceiveEcho records an echo vote from a peer. It returns true when the echo
// quorum is reached for the first time, in which case the caller must cast a
// ready vote.
func (b *Broadcaster) ReceiveEcho(hash string, from uint32) bool {
	b.Lock()
	defer b.Unlock()

	state := b.getState(hash)
	state.echoes[from] = true

	if !state.readySent && len(state.echoes) >= b.echoThreshold {
		state.readySent = true
		return true
	}

	return false
}

// ReceiveReady records a ready vote from a peer. When the ready quorum is
// reached and the payload is known, the payload is released through the
// sequencer onto the delivery channel.
func (b *Broadcaster) ReceiveReady(hash string, from uint32) {
	b.Lock()
	defer b.Unlock()

	state := b.getState(hash)
	state.readies[from] = true

	if state.delivered || state.payload == nil {
		return
	}

	if len(state.readies) >= b.readyThreshold {
		b.deliverLocked(state)
	}
}

// deliverLocked marks the payload delivered and emits the in-order run
// released by the sequencer. Called with the lock held; the delivery channel
// is buffered and drained until closed, so the send cannot block for long.
func (b *Broadcaster) deliverLocked(state *payloadState) {
	state.delivered = true

	batch := b.sequencer.Add(state.payload)

	if len(batch) == 0 {
		b.logger.WithFields(logrus.Fields{
			"sender":   state.payload.Sender,
			"sequence": state.payload.Sequence,
		}).Debug("Holding payload for missing predecessor")
		return
	}

	if b.shutdown {
		return
	}

	b.deliverCh <- batch
}

// Shutdown permanently closes the delivery channel.
func (b *Broadcaster) Shutdown() {
	b.Lock()
	defer b.Unlock()

	if !b.shutdown {
		b.shutdown = true
		close(b.deliverCh)
	}
}
