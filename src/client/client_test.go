package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/at2-network/at2-node/src/crypto/keys"
	"github.com/at2-network/at2-node/src/service"
	"github.com/at2-network/at2-node/src/transfer"
)

func TestSendAsset(t *testing.T) {
	key, err := keys.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	recipientKey, err := keys.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	recipient := keys.PublicKeyHex(&recipientKey.PublicKey)

	var received service.SendAssetRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/sendasset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(struct{}{})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient(server.URL)

	if err := c.SendAsset(key, 1, recipient, 30); err != nil {
		t.Fatal(err)
	}

	if received.Sender != keys.PublicKeyHex(&key.PublicKey) {
		t.Fatalf("unexpected sender %s", received.Sender)
	}
	if received.Sequence != 1 || received.Recipient != recipient || received.Amount != 30 {
		t.Fatalf("unexpected request %+v", received)
	}

	// The submitted payload must carry a valid signature.
	p := transfer.Payload{
		Sender:    received.Sender,
		Sequence:  received.Sequence,
		Recipient: received.Recipient,
		Amount:    received.Amount,
		Signature: received.Signature,
	}
	ok, err := p.Verify()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("the client should sign the payload it submits")
	}
}

func TestSendAssetErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broadcast failed", http.StatusInternalServerError)
	}))
	defer server.Close()

	key, err := keys.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	c := NewClient(server.URL)
	if err := c.SendAsset(key, 1, keys.PublicKeyHex(&key.PublicKey), 1); err == nil {
		t.Fatal("a non-200 reply should surface as an error")
	}
}

func TestReadQueries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/balance/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(service.BalanceResponse{Amount: 70})
	})
	mux.HandleFunc("/lastsequence/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(service.LastSequenceResponse{Sequence: 3})
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]service.ProcessedTransaction{
			{Timestamp: "2020-01-01T00:00:00Z", Sender: "a", Recipient: "b", Amount: 5},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient(server.URL)

	balance, err := c.GetBalance("0X00")
	if err != nil {
		t.Fatal(err)
	}
	if balance != 70 {
		t.Fatalf("balance should be 70, not %d", balance)
	}

	lastSeq, err := c.GetLastSequence("0X00")
	if err != nil {
		t.Fatal(err)
	}
	if lastSeq != 3 {
		t.Fatalf("last sequence should be 3, not %d", lastSeq)
	}

	transactions, err := c.GetLatestTransactions()
	if err != nil {
		t.Fatal(err)
	}
	if len(transactions) != 1 || transactions[0].Amount != 5 {
		t.Fatalf("unexpected transactions %+v", transactions)
	}
}

func TestNewClientAddress(t *testing.T) {
	c := NewClient("127.0.0.1:8000")
	if c.baseURL != "http://127.0.0.1:8000" {
		t.Fatalf("a bare host:port should gain an http scheme, got %s", c.baseURL)
	}

	c = NewClient("http://127.0.0.1:8000")
	if c.baseURL != "http://127.0.0.1:8000" {
		t.Fatalf("a full URL should be kept, got %s", c.baseURL)
	}
}
