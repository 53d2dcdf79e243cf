package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/at2-network/at2-node/src/common"
	"github.com/at2-network/at2-node/src/crypto/keys"
	"github.com/at2-network/at2-node/src/node"
	"github.com/at2-network/at2-node/src/transfer"
	"github.com/sirupsen/logrus"
)

// SendAssetRequest is the wire form of a transfer submission. Sender and
// Recipient are hex-encoded public keys; the Signature covers (sequence,
// recipient, amount) under the sender's key and is produced by the client.
// The gateway never re-derives or verifies it.
type SendAssetRequest struct {
	Sender    string `json:"sender"`
	Sequence  uint64 `json:"sequence"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Signature string `json:"signature"`
}

// BalanceResponse is the reply to a balance query.
type BalanceResponse struct {
	Amount uint64 `json:"amount"`
}

// LastSequenceResponse is the reply to a last-sequence query.
type LastSequenceResponse struct {
	Sequence uint64 `json:"sequence"`
}

// ProcessedTransaction is one applied transfer, as reported by the
// transactions endpoint.
type ProcessedTransaction struct {
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
}

// Service is the HTTP API gateway serving submissions and read queries
// against a node.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// NewService instantiates a Service and registers its handlers.
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering AT2 API handlers")
	s.mux.HandleFunc("/sendasset", s.makeHandler(s.SendAsset))
	s.mux.HandleFunc("/balance/", s.makeHandler(s.GetBalance))
	s.mux.HandleFunc("/lastsequence/", s.makeHandler(s.GetLastSequence))
	s.mux.HandleFunc("/transactions", s.makeHandler(s.GetLatestTransactions))
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving AT2 API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// SendAsset submits a signed transfer for broadcast. The 200 reply means
// "submitted", not "applied": economic validation happens asynchronously at
// delivery time, on every node.
func (s *Service) SendAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SendAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.WithError(err).Error("Parsing SendAsset request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payload := transfer.Payload{
		Sender:    req.Sender,
		Sequence:  req.Sequence,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Signature: req.Signature,
	}

	if err := validatePayload(&payload); err != nil {
		s.logger.WithError(err).Error("Validating SendAsset request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.node.Broadcast(&payload); err != nil {
		s.logger.WithError(err).Error("Broadcasting payload")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(struct{}{})
}

// validatePayload checks that the request fields parse; it performs no
// signature verification, which is the broadcast layer's responsibility.
func validatePayload(p *transfer.Payload) error {
	for _, identity := range []string{p.Sender, p.Recipient} {
		raw, err := common.DecodeFromString(identity)
		if err != nil {
			return fmt.Errorf("decode identity: %v", err)
		}
		if keys.ToPublicKey(raw) == nil {
			return fmt.Errorf("identity %s is not a public key", identity)
		}
	}

	if _, _, err := keys.DecodeSignature(p.Signature); err != nil {
		return err
	}

	return nil
}

// GetBalance returns the balance of the account identified by the trailing
// path parameter, 0 if unknown.
func (s *Service) GetBalance(w http.ResponseWriter, r *http.Request) {
	param := strings.TrimPrefix(r.URL.Path, "/balance/")

	if _, err := common.DecodeFromString(param); err != nil {
		s.logger.WithError(err).Errorf("Parsing account parameter %s", param)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(BalanceResponse{Amount: s.node.Balance(param)})
}

// GetLastSequence returns the last applied sequence of the account identified
// by the trailing path parameter, 0 if unknown.
func (s *Service) GetLastSequence(w http.ResponseWriter, r *http.Request) {
	param := strings.TrimPrefix(r.URL.Path, "/lastsequence/")

	if _, err := common.DecodeFromString(param); err != nil {
		s.logger.WithError(err).Errorf("Parsing account parameter %s", param)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(LastSequenceResponse{Sequence: s.node.LastSequence(param)})
}

// GetLatestTransactions returns the retained recent transactions, oldest
// first.
func (s *Service) GetLatestTransactions(w http.ResponseWriter, r *http.Request) {
	entries := s.node.RecentTransactions()

	transactions := make([]ProcessedTransaction, 0, len(entries))
	for _, entry := range entries {
		transactions = append(transactions, ProcessedTransaction{
			Timestamp: entry.Timestamp.Format(time.RFC3339),
			Sender:    entry.Sender,
			Recipient: entry.Recipient,
			Amount:    entry.Amount,
		})
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(transactions)
}

// GetStats returns operational counters.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}
