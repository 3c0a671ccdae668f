package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/provotum/node/log"
	"github.com/provotum/node/mempool"
	"github.com/provotum/node/params"
	"github.com/provotum/node/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

type submitBallotRequest struct {
	Ciphertext     hexutil.Bytes `json:"ciphertext"`
	Proof          hexutil.Bytes `json:"proof"`
	VoterSignature hexutil.Bytes `json:"voter_signature"`
}

type submitBallotResponse struct {
	Hash string `json:"hash"`
}

type chainLengthResponse struct {
	Length      uint64 `json:"length"`
	GenesisHash string `json:"genesis_hash"`
}

type blockResponse struct {
	Header    *types.Header    `json:"header"`
	Hash      string           `json:"hash"`
	Signature hexutil.Bytes    `json:"signature"`
	Ballots   []ballotResponse `json:"ballots"`
}

type ballotResponse struct {
	Hash       string        `json:"hash"`
	Ciphertext hexutil.Bytes `json:"ciphertext"`
	Proof      hexutil.Bytes `json:"proof"`
}

type tallyResponse struct {
	TotalVotes uint64        `json:"total_votes"`
	Ciphertext hexutil.Bytes `json:"ciphertext"`
}

type statusResponse struct {
	Version        string `json:"version"`
	Head           string `json:"head"`
	Height         uint64 `json:"height"`
	PendingBallots int    `json:"pending_ballots"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Service) handleSubmitBallot(w http.ResponseWriter, r *http.Request) {
	var req submitBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ballot := types.NewBallot(req.Ciphertext, req.Proof, req.VoterSignature)
	if err := s.pool.Add(ballot); err != nil {
		switch {
		case errors.Is(err, mempool.ErrKnownBallot):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, mempool.ErrPoolFull):
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			writeError(w, http.StatusUnprocessableEntity, err)
		}
		return
	}
	writeJSON(w, http.StatusAccepted, submitBallotResponse{Hash: ballot.Hash().String()})
}

func (s *Service) handleChainLength(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, chainLengthResponse{
		Length:      s.chain.Length(),
		GenesisHash: s.chain.GenesisHash().String(),
	})
}

func (s *Service) handleBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	block := s.chain.GetBlockByNumber(height)
	if block == nil {
		writeError(w, http.StatusNotFound, errors.New("block not found"))
		return
	}

	ballots := make([]ballotResponse, 0, len(block.Ballots()))
	for _, ballot := range block.Ballots() {
		ballots = append(ballots, ballotResponse{
			Hash:       ballot.Hash().String(),
			Ciphertext: ballot.Ciphertext,
			Proof:      ballot.Proof,
		})
	}
	writeJSON(w, http.StatusOK, blockResponse{
		Header:    block.Header(),
		Hash:      block.Hash().String(),
		Signature: block.Signature(),
		Ballots:   ballots,
	})
}

func (s *Service) handleTally(w http.ResponseWriter, r *http.Request) {
	tally := s.chain.Tally()
	writeJSON(w, http.StatusOK, tallyResponse{
		TotalVotes: tally.TotalVotes,
		Ciphertext: tally.Ciphertext,
	})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	head := s.chain.CurrentBlock()
	writeJSON(w, http.StatusOK, statusResponse{
		Version:        params.ClientVersion,
		Head:           head.Hash().String(),
		Height:         head.Number(),
		PendingBallots: s.pool.Len(),
	})
}
