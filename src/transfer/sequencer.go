package transfer

// Sequencer reorders payloads into per-sender FIFO order before they reach the
// delivery pipeline. The broadcast votes establish that a payload is safe to
// deliver, but payloads from the same sender can complete their votes out of
// order; the ledger's gapless sequence check requires them released in order.
//
// A payload with sequence s is held until s-1 from the same sender has been
// released. Payloads at or below the last released sequence are duplicates and
// are dropped, which makes at-least-once redelivery from the network harmless.
//
// Sequencer is not synchronized; it is owned by a Broadcaster and called under
// its lock.
type Sequencer struct {
	next    map[string]uint64
	pending map[string]map[uint64]*Payload
}

// NewSequencer instantiates an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{
		next:    make(map[string]uint64),
		pending: make(map[string]map[uint64]*Payload),
	}
}

// Add offers a payload and returns the run of payloads from the same sender
// that are now in order, possibly empty.
func (s *Sequencer) Add(p *Payload) []*Payload {
	next, ok := s.next[p.Sender]
	if !ok {
		next = 1
	}

	if p.Sequence < next {
		// duplicate or replay
		return nil
	}

	senderPending, ok := s.pending[p.Sender]
	if !ok {
		senderPending = make(map[uint64]*Payload)
		s.pending[p.Sender] = senderPending
	}
	senderPending[p.Sequence] = p

	run := []*Payload{}
	for {
		queued, ok := senderPending[next]
		if !ok {
			break
		}
		run = append(run, queued)
		delete(senderPending, next)
		next++
	}

	s.next[p.Sender] = next

	return run
}

// Pending returns the number of payloads held back for a sender, waiting for a
// missing predecessor.
func (s *Sequencer) Pending(sender string) int {
	return len(s.pending[sender])
}
