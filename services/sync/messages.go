// Copyright © 2018 Kowala SEZC <info@kowala.tech>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sync

import (
	"errors"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"

	"github.com/provotum/node/crypto"
	"github.com/provotum/node/types"
)

// Message codes of the sync protocol.
const (
	MsgPing uint64 = iota
	MsgPong
	MsgChainLengthQuery
	MsgChainLengthReply
	MsgChainPullRequest
	MsgChainPullReply
	MsgBlockAnnounce
	MsgBallotAnnounce
)

var errInvalidMsgCode = errors.New("invalid message code")

// Envelope frames every sync protocol message. From carries the sender's
// genesis sealer address and is empty for observer nodes; receivers use it
// to bind sealer addresses to network identities.
type Envelope struct {
	Code    uint64
	ID      string
	From    string
	Payload []byte
}

// NewEnvelope wraps an RLP encodable body into a fresh envelope.
func NewEnvelope(code uint64, from string, body interface{}) (*Envelope, error) {
	payload, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, err
	}
	return &Envelope{Code: code, ID: uuid.New().String(), From: from, Payload: payload}, nil
}

// Reply wraps a body into an envelope reusing the request's exchange ID.
func (e *Envelope) Reply(code uint64, from string, body interface{}) (*Envelope, error) {
	payload, err := rlp.EncodeToBytes(body)
	if err != nil {
		return nil, err
	}
	return &Envelope{Code: code, ID: e.ID, From: from, Payload: payload}, nil
}

// Decode unmarshals the envelope payload into the given body.
func (e *Envelope) Decode(body interface{}) error {
	return rlp.DecodeBytes(e.Payload, body)
}

// WriteEnvelope writes one length-delimited envelope to the stream.
func WriteEnvelope(w io.Writer, e *Envelope) error {
	return rlp.Encode(w, e)
}

// ReadEnvelope reads one envelope from the stream.
func ReadEnvelope(r io.Reader) (*Envelope, error) {
	e := new(Envelope)
	if err := rlp.Decode(r, e); err != nil {
		return nil, err
	}
	if e.Code > MsgBallotAnnounce {
		return nil, errInvalidMsgCode
	}
	return e, nil
}

// Ping carries no data beyond the envelope itself.
type Ping struct{}

// Pong answers a ping.
type Pong struct{}

// ChainLengthQuery asks a peer for its canonical chain length.
type ChainLengthQuery struct{}

// ChainLengthReply reports the peer's chain length and identity.
type ChainLengthReply struct {
	Length      uint64
	GenesisHash crypto.Hash
}

// ChainPullRequest asks for the peer's complete canonical chain.
type ChainPullRequest struct{}

// ChainPullReply carries the complete chain, genesis first.
type ChainPullReply struct {
	Blocks types.Blocks
}

// BlockAnnounce carries one freshly minted block over gossip.
type BlockAnnounce struct {
	Block *types.Block
}

// BallotAnnounce carries one submitted ballot over gossip.
type BallotAnnounce struct {
	Ballot *types.Ballot
}
