package client

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/at2-network/at2-node/src/service"
	"github.com/at2-network/at2-node/src/transfer"
)

// Client talks to a node's HTTP API. It signs transfers locally with the
// user's private key; the sequence counter is owned by the caller and must be
// increased by one for each new transfer.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient instantiates a Client for the node API at the given address
// (host:port or full URL).
func NewClient(address string) *Client {
	baseURL := address
	if u, err := url.Parse(address); err != nil || u.Scheme == "" {
		baseURL = "http://" + address
	}

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendAsset signs and submits a transfer of amount to recipient. The reply
// only acknowledges submission; apply status is observable through the read
// queries.
func (c *Client) SendAsset(key *ecdsa.PrivateKey, sequence uint64, recipient string, amount uint64) error {
	payload := transfer.Payload{
		Sequence:  sequence,
		Recipient: recipient,
		Amount:    amount,
	}

	if err := payload.Sign(key); err != nil {
		return fmt.Errorf("sign payload: %v", err)
	}

	req := service.SendAssetRequest{
		Sender:    payload.Sender,
		Sequence:  payload.Sequence,
		Recipient: payload.Recipient,
		Amount:    payload.Amount,
		Signature: payload.Signature,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := c.http.Post(c.baseURL+"/sendasset", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendasset: unexpected status %s", resp.Status)
	}

	return nil
}

// GetBalance returns the balance of an account, 0 if unknown.
func (c *Client) GetBalance(identity string) (uint64, error) {
	var reply service.BalanceResponse
	if err := c.get("/balance/"+identity, &reply); err != nil {
		return 0, err
	}
	return reply.Amount, nil
}

// GetLastSequence returns the last applied sequence of an account, 0 if
// unknown.
func (c *Client) GetLastSequence(identity string) (uint64, error) {
	var reply service.LastSequenceResponse
	if err := c.get("/lastsequence/"+identity, &reply); err != nil {
		return 0, err
	}
	return reply.Sequence, nil
}

// GetLatestTransactions returns the node's retained recent transactions,
// oldest first.
func (c *Client) GetLatestTransactions() ([]service.ProcessedTransaction, error) {
	var reply []service.ProcessedTransaction
	if err := c.get("/transactions", &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) get(path string, reply interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", path, resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(reply)
}
