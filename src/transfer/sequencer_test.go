package transfer

import (
	"testing"
)

func seqPayload(sender string, sequence uint64) *Payload {
	return &Payload{
		Sender:   sender,
		Sequence: sequence,
	}
}

func TestSequencerInOrder(t *testing.T) {
	s := NewSequencer()

	run := s.Add(seqPayload("alice", 1))
	if len(run) != 1 || run[0].Sequence != 1 {
		t.Fatalf("sequence 1 should be released immediately, got %v", run)
	}

	run = s.Add(seqPayload("alice", 2))
	if len(run) != 1 || run[0].Sequence != 2 {
		t.Fatalf("sequence 2 should be released immediately, got %v", run)
	}
}

func TestSequencerHoldsGaps(t *testing.T) {
	s := NewSequencer()

	if run := s.Add(seqPayload("alice", 3)); len(run) != 0 {
		t.Fatalf("sequence 3 should be held, got %v", run)
	}
	if run := s.Add(seqPayload("alice", 2)); len(run) != 0 {
		t.Fatalf("sequence 2 should be held, got %v", run)
	}
	if p := s.Pending("alice"); p != 2 {
		t.Fatalf("2 payloads should be pending, not %d", p)
	}

	// Filling the gap releases the whole run in order.
	run := s.Add(seqPayload("alice", 1))
	if len(run) != 3 {
		t.Fatalf("3 payloads should be released, not %d", len(run))
	}
	for i, p := range run {
		if p.Sequence != uint64(i+1) {
			t.Fatalf("run[%d] should have sequence %d, not %d", i, i+1, p.Sequence)
		}
	}
	if p := s.Pending("alice"); p != 0 {
		t.Fatalf("nothing should be pending, not %d", p)
	}
}

func TestSequencerDropsDuplicates(t *testing.T) {
	s := NewSequencer()

	if run := s.Add(seqPayload("alice", 1)); len(run) != 1 {
		t.Fatalf("sequence 1 should be released, got %v", run)
	}

	if run := s.Add(seqPayload("alice", 1)); len(run) != 0 {
		t.Fatalf("redelivered sequence 1 should be dropped, got %v", run)
	}
	if p := s.Pending("alice"); p != 0 {
		t.Fatalf("duplicates should not be held, pending is %d", p)
	}
}

func TestSequencerIndependentSenders(t *testing.T) {
	s := NewSequencer()

	if run := s.Add(seqPayload("alice", 2)); len(run) != 0 {
		t.Fatalf("alice sequence 2 should be held, got %v", run)
	}

	// Another sender's run is unaffected by alice's gap.
	run := s.Add(seqPayload("bob", 1))
	if len(run) != 1 || run[0].Sender != "bob" {
		t.Fatalf("bob sequence 1 should be released, got %v", run)
	}
}
