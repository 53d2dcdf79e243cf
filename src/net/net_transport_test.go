package net

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/at2-network/at2-node/src/common"
	"github.com/at2-network/at2-node/src/transfer"
)

var errTransportTest = errors.New("gossip refused")

func testPayload() *transfer.Payload {
	return &transfer.Payload{
		Sender:    "0XAA",
		Sequence:  1,
		Recipient: "0XBB",
		Amount:    30,
		Signature: "r|s",
	}
}

func TestNetworkTransportGossip(t *testing.T) {
	trans1, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatal(err)
	}
	defer trans1.Close()
	go trans1.Listen()

	args := &GossipRequest{
		FromID:  1,
		Payload: testPayload(),
	}
	expected := &GossipResponse{
		FromID:  2,
		Success: true,
	}

	go func() {
		rpc := <-trans1.Consumer()

		req, ok := rpc.Command.(*GossipRequest)
		if !ok {
			t.Errorf("command should be a GossipRequest, not %#v", rpc.Command)
			return
		}
		if !reflect.DeepEqual(req, args) {
			t.Errorf("request should be %#v, not %#v", args, req)
			return
		}

		rpc.Respond(expected, nil)
	}()

	trans2, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatal(err)
	}
	defer trans2.Close()

	var resp GossipResponse
	if err := trans2.Gossip(trans1.LocalAddr(), args, &resp); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(&resp, expected) {
		t.Fatalf("response should be %#v, not %#v", expected, &resp)
	}
}

func TestNetworkTransportVotes(t *testing.T) {
	trans1, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatal(err)
	}
	defer trans1.Close()
	go trans1.Listen()

	// The consumer answers echo and ready votes, then a ping.
	go func() {
		for i := 0; i < 3; i++ {
			rpc := <-trans1.Consumer()
			switch cmd := rpc.Command.(type) {
			case *EchoRequest:
				if cmd.Hash != "0XCAFE" {
					t.Errorf("unexpected echo hash %s", cmd.Hash)
				}
				rpc.Respond(&EchoResponse{FromID: 2, Success: true}, nil)
			case *ReadyRequest:
				if cmd.Hash != "0XCAFE" {
					t.Errorf("unexpected ready hash %s", cmd.Hash)
				}
				rpc.Respond(&ReadyResponse{FromID: 2, Success: true}, nil)
			case *PingRequest:
				rpc.Respond(&PingResponse{FromID: 2, Success: true}, nil)
			default:
				t.Errorf("unexpected command %#v", rpc.Command)
			}
		}
	}()

	trans2, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatal(err)
	}
	defer trans2.Close()

	var echoResp EchoResponse
	if err := trans2.Echo(trans1.LocalAddr(), &EchoRequest{FromID: 1, Hash: "0XCAFE"}, &echoResp); err != nil {
		t.Fatal(err)
	}
	if !echoResp.Success || echoResp.FromID != 2 {
		t.Fatalf("unexpected echo response %#v", echoResp)
	}

	var readyResp ReadyResponse
	if err := trans2.Ready(trans1.LocalAddr(), &ReadyRequest{FromID: 1, Hash: "0XCAFE"}, &readyResp); err != nil {
		t.Fatal(err)
	}
	if !readyResp.Success {
		t.Fatalf("unexpected ready response %#v", readyResp)
	}

	var pingResp PingResponse
	if err := trans2.Ping(trans1.LocalAddr(), &PingRequest{FromID: 1}, &pingResp); err != nil {
		t.Fatal(err)
	}
	if !pingResp.Success {
		t.Fatalf("unexpected ping response %#v", pingResp)
	}
}

func TestNetworkTransportResponseError(t *testing.T) {
	trans1, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatal(err)
	}
	defer trans1.Close()
	go trans1.Listen()

	go func() {
		rpc := <-trans1.Consumer()
		rpc.Respond(&GossipResponse{FromID: 2, Success: false}, errTransportTest)
	}()

	trans2, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatal(err)
	}
	defer trans2.Close()

	var resp GossipResponse
	err = trans2.Gossip(trans1.LocalAddr(), &GossipRequest{FromID: 1, Payload: testPayload()}, &resp)
	if err == nil || err.Error() != errTransportTest.Error() {
		t.Fatalf("the consumer error should be surfaced, got %v", err)
	}
}

func TestInmemTransport(t *testing.T) {
	addr1, trans1 := NewInmemTransport("")
	defer trans1.Close()
	addr2, trans2 := NewInmemTransport("")
	defer trans2.Close()

	trans1.Connect(addr2, trans2)
	trans2.Connect(addr1, trans1)

	args := &GossipRequest{
		FromID:  1,
		Payload: testPayload(),
	}

	go func() {
		rpc := <-trans2.Consumer()
		req, ok := rpc.Command.(*GossipRequest)
		if !ok || !reflect.DeepEqual(req, args) {
			t.Errorf("unexpected command %#v", rpc.Command)
		}
		rpc.Respond(&GossipResponse{FromID: 2, Success: true}, nil)
	}()

	var resp GossipResponse
	if err := trans1.Gossip(addr2, args, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.FromID != 2 {
		t.Fatalf("unexpected response %#v", resp)
	}

	// Sending to a disconnected peer fails immediately.
	trans1.Disconnect(addr2)
	if err := trans1.Gossip(addr2, args, &resp); err == nil {
		t.Fatal("sending to a disconnected peer should fail")
	}
}
