package net

import (
	"github.com/at2-network/at2-node/src/transfer"
)

// GossipRequest disseminates a signed transfer payload. Every node relays a
// payload it has not seen before to the whole peer set.
type GossipRequest struct {
	FromID  uint32
	Payload *transfer.Payload
}

// GossipResponse acknowledges local acceptance of a gossiped payload. Success
// is false when the payload was rejected, eg. for a bad signature.
type GossipResponse struct {
	FromID  uint32
	Success bool
}

// EchoRequest is an echo vote: the sender has seen the payload identified by
// Hash and vouches for it.
type EchoRequest struct {
	FromID uint32
	Hash   string
}

// EchoResponse acknowledges an echo vote.
type EchoResponse struct {
	FromID  uint32
	Success bool
}

// ReadyRequest is a ready vote: the sender has collected an echo quorum for
// the payload identified by Hash.
type ReadyRequest struct {
	FromID uint32
	Hash   string
}

// ReadyResponse acknowledges a ready vote.
type ReadyResponse struct {
	FromID  uint32
	Success bool
}

// PingRequest probes connectivity to a peer during bootstrap.
type PingRequest struct {
	FromID uint32
}

// PingResponse acknowledges a ping.
type PingResponse struct {
	FromID  uint32
	Success bool
}
