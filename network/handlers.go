package network

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/luca-patrignani/blockvote/authority"
	"github.com/luca-patrignani/blockvote/ledger"
	"github.com/luca-patrignani/blockvote/wallet"
)

type message struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, message{Message: fmt.Sprintf(format, args...)})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("BlockVote Node is Running Successfully!"))
}

func (s *Server) handleChain(w http.ResponseWriter, _ *http.Request) {
	chain := s.ledger.Chain()
	writeJSON(w, http.StatusOK, ledger.ChainResponse{Chain: chain, Length: len(chain)})
}

func (s *Server) handleVerify(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.VerifyIntegrity())
}

type mineResponse struct {
	Message      string               `json:"message"`
	Index        int                  `json:"index"`
	Transactions []ledger.Transaction `json:"transactions"`
	Proof        int64                `json:"proof"`
	PreviousHash string               `json:"previous_hash"`
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	block, err := s.ledger.Mine(r.Context(), s.minerID)
	switch {
	case errors.Is(err, ledger.ErrStaleBlock):
		writeMessage(w, http.StatusConflict, "Chain advanced while mining, try again")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeMessage(w, http.StatusServiceUnavailable, "Mining interrupted")
		return
	case err != nil:
		writeMessage(w, http.StatusInternalServerError, "%v", err)
		return
	}
	s.metrics.blocksMined.Inc()
	s.logger.Info("block forged", "index", block.Index, "transactions", len(block.Transactions))
	writeJSON(w, http.StatusOK, mineResponse{
		Message:      "New Block Forged",
		Index:        block.Index,
		Transactions: block.Transactions,
		Proof:        block.Proof,
		PreviousHash: block.PreviousHash,
	})
}

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Sender == "" || req.Recipient == "" || req.Amount == nil {
		writeMessage(w, http.StatusBadRequest, "Missing values")
		return
	}
	if *req.Amount <= 0 {
		s.metrics.transactions.WithLabelValues("rejected").Inc()
		writeMessage(w, http.StatusBadRequest, "Amount must be positive")
		return
	}
	sig, err := hex.DecodeString(req.Signature)
	if err != nil {
		s.metrics.transactions.WithLabelValues("rejected").Inc()
		writeMessage(w, http.StatusBadRequest, "%s", ledger.ErrInvalidSignature)
		return
	}

	index, isNew, err := s.ledger.NewTransaction(req.Sender, req.Recipient, *req.Amount, sig, []byte(req.PublicKey), req.ElectionID)
	switch {
	case ledger.IsValidation(err), errors.Is(err, wallet.ErrMalformedKey):
		s.metrics.transactions.WithLabelValues("rejected").Inc()
		writeMessage(w, http.StatusBadRequest, "%s", err)
		return
	case err != nil:
		writeMessage(w, http.StatusInternalServerError, "%v", err)
		return
	case !isNew:
		s.metrics.transactions.WithLabelValues("duplicate").Inc()
		writeMessage(w, http.StatusOK, "Transaction already exists in pending pool")
		return
	}
	s.metrics.transactions.WithLabelValues("accepted").Inc()
	s.relay(req)
	writeMessage(w, http.StatusCreated, "Transaction will be added to Block %d", index)
}

func (s *Server) handlePending(w http.ResponseWriter, _ *http.Request) {
	pending := s.ledger.Mempool()
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": pending,
		"count":        len(pending),
	})
}

func (s *Server) handleRegisterNodes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nodes []string `json:"nodes"`
	}
	if err := decodeBody(w, r, &req); err != nil || len(req.Nodes) == 0 {
		writeMessage(w, http.StatusBadRequest, "Error: Please supply a valid list of nodes")
		return
	}
	for _, node := range req.Nodes {
		if err := s.ledger.RegisterNode(node); err != nil {
			writeMessage(w, http.StatusBadRequest, "%s: %q", err, node)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     "New nodes have been added",
		"total_nodes": s.ledger.Nodes(),
	})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	replaced, err := s.ledger.ResolveConflicts(r.Context())
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if replaced {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":   "Our chain was replaced",
			"new_chain": s.ledger.Chain(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Our chain is authoritative",
		"chain":   s.ledger.Chain(),
	})
}

func (s *Server) handleCountVotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"results": s.ledger.CountVotes()})
}

type windowRequest struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

func (s *Server) handleSetWindow(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := decodeBody(w, r, &req); err != nil || req.Start == nil || req.End == nil {
		writeMessage(w, http.StatusBadRequest, "Missing values")
		return
	}
	if *req.End < *req.Start {
		writeMessage(w, http.StatusBadRequest, "Election end is before its start")
		return
	}
	s.ledger.SetElectionWindow(ledger.FromUnixSeconds(*req.Start), ledger.FromUnixSeconds(*req.End))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Election window set",
		"start":   *req.Start,
		"end":     *req.End,
	})
}

func (s *Server) handleClearWindow(w http.ResponseWriter, _ *http.Request) {
	s.ledger.ClearElectionWindow()
	writeMessage(w, http.StatusOK, "Election window cleared")
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Stats())
}

func (s *Server) handleAdminKey(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": string(s.authority.PublicKey())})
}

type signRequest struct {
	VoterID     string          `json:"voter_id"`
	BlindedHash json.RawMessage `json:"blinded_hash"`
}

// parseBigInt accepts a decimal integer either as a JSON number or string.
func parseBigInt(raw json.RawMessage) (*big.Int, bool) {
	raw = bytes.Trim(bytes.TrimSpace(raw), `"`)
	if len(raw) == 0 {
		return nil, false
	}
	return new(big.Int).SetString(string(raw), 10)
}

func (s *Server) handleAdminSign(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := decodeBody(w, r, &req); err != nil || req.VoterID == "" || len(req.BlindedHash) == 0 {
		writeMessage(w, http.StatusBadRequest, "Missing values")
		return
	}
	blinded, ok := parseBigInt(req.BlindedHash)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Invalid blinded hash format")
		return
	}
	sig, err := s.authority.Sign(req.VoterID, blinded)
	switch {
	case errors.Is(err, authority.ErrAlreadySigned):
		writeMessage(w, http.StatusForbidden, "%s", err)
		return
	case errors.Is(err, wallet.ErrBlindRange):
		writeMessage(w, http.StatusBadRequest, "Invalid blinded hash format")
		return
	case err != nil:
		writeMessage(w, http.StatusInternalServerError, "%v", err)
		return
	}
	s.logger.Info("blind signature issued", "voter", req.VoterID)
	writeJSON(w, http.StatusCreated, map[string]*big.Int{"blind_signature": sig})
}
