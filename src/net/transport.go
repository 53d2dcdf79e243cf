package net

// Transport provides an interface for network transports to allow a node to
// communicate with other nodes.
type Transport interface {

	// Listen starts the transport listening.
	Listen()

	// Consumer returns a channel that can be used to consume and respond to
	// RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address.
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us.
	AdvertiseAddr() string

	// Gossip, Echo, Ready, and Ping send the appropriate RPC to the target
	// node.

	Gossip(target string, args *GossipRequest, resp *GossipResponse) error

	Echo(target string, args *EchoRequest, resp *EchoResponse) error

	Ready(target string, args *ReadyRequest, resp *ReadyResponse) error

	Ping(target string, args *PingRequest, resp *PingResponse) error

	// Close permanently closes a transport, stopping any associated goroutines
	// and freeing other resources.
	Close() error
}
