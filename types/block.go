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

package types

import (
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/provotum/node/common"
	"github.com/provotum/node/crypto"
)

// EmptyBallotHash is the ballot root of a block without ballots.
var EmptyBallotHash = crypto.RLPHash(Ballots{})

// Header represents a block header.
type Header struct {
	// basic info
	Number            uint64      `json:"number"`
	PreviousBlockHash crypto.Hash `json:"previousBlockHash"`
	Extra             []byte      `json:"extraData"`

	// consensus
	Time     uint64 `json:"timestamp"`
	Proposer string `json:"proposer"` // sealer network address as listed in the genesis configuration

	// block data
	BallotHash crypto.Hash `json:"ballotsRoot"`
}

// Hash returns the hash of the header, which is the SHA-256 digest of its
// RLP encoding.
func (h *Header) Hash() crypto.Hash {
	return crypto.RLPHash(h)
}

// CopyHeader creates a deep copy of a block header to prevent side effects
// from modifying a header variable.
func CopyHeader(h *Header) *Header {
	cpy := *h
	if len(h.Extra) > 0 {
		cpy.Extra = make([]byte, len(h.Extra))
		copy(cpy.Extra, h.Extra)
	}
	return &cpy
}

// Block represents the network unit: a sealed batch of encrypted ballots.
type Block struct {
	header    *Header
	ballots   Ballots
	signature []byte

	// caches
	hash atomic.Value
	size atomic.Value
}

// "external" block encoding used for the canonical RLP representation. The
// signature is part of the encoding; the seal hash is derived from the
// header alone.
type extblock struct {
	Header    *Header
	Ballots   Ballots
	Signature []byte
}

// NewBlock creates a new block. The value of BallotHash in the given header
// is ignored and set to the value derived from the given ballots.
func NewBlock(header *Header, ballots Ballots) *Block {
	block := &Block{header: CopyHeader(header)}

	if len(ballots) == 0 {
		block.header.BallotHash = EmptyBallotHash
	} else {
		block.header.BallotHash = crypto.RLPHash(ballots)
		block.ballots = make(Ballots, len(ballots))
		copy(block.ballots, ballots)
	}

	return block
}

// EncodeRLP implements rlp.Encoder.
func (b *Block) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, extblock{
		Header:    b.header,
		Ballots:   b.ballots,
		Signature: b.signature,
	})
}

// DecodeRLP implements rlp.Decoder.
func (b *Block) DecodeRLP(s *rlp.Stream) error {
	var eb extblock
	_, size, _ := s.Kind()
	if err := s.Decode(&eb); err != nil {
		return err
	}
	b.header, b.ballots, b.signature = eb.Header, eb.Ballots, eb.Signature
	b.size.Store(common.StorageSize(rlp.ListSize(size)))
	return nil
}

// WithSignature returns a copy of the block carrying the given seal
// signature.
func (b *Block) WithSignature(sig []byte) *Block {
	return &Block{
		header:    CopyHeader(b.header),
		ballots:   b.ballots,
		signature: common.CopyBytes(sig),
	}
}

// Hash returns the SHA-256 digest of the block's canonical encoding,
// signature included. The hash is computed on the first call and cached
// thereafter.
func (b *Block) Hash() crypto.Hash {
	if hash := b.hash.Load(); hash != nil {
		return hash.(crypto.Hash)
	}
	v := crypto.RLPHash(extblock{Header: b.header, Ballots: b.ballots, Signature: b.signature})
	b.hash.Store(v)
	return v
}

// SealHash returns the digest the proposer signs: the canonical encoding of
// the block excluding the signature itself. The ballots are covered through
// the header's BallotHash.
func (b *Block) SealHash() crypto.Hash {
	return b.header.Hash()
}

// Size returns the true RLP encoded storage size of the block, either by
// encoding and returning it, or returning a previously cached value.
func (b *Block) Size() common.StorageSize {
	if size := b.size.Load(); size != nil {
		return size.(common.StorageSize)
	}
	c := common.WriteCounter(0)
	rlp.Encode(&c, b)
	b.size.Store(common.StorageSize(c))
	return common.StorageSize(c)
}

// Header returns a deep copy of the block header.
func (b *Block) Header() *Header { return CopyHeader(b.header) }

// Ballots returns the block's ballots.
func (b *Block) Ballots() Ballots { return b.ballots }

// Ballot returns a ballot for a given hash if the ballot is present in the
// block.
func (b *Block) Ballot(hash crypto.Hash) *Ballot {
	for _, ballot := range b.ballots {
		if ballot.Hash() == hash {
			return ballot
		}
	}
	return nil
}

// Signature returns the proposer's seal signature over the block.
func (b *Block) Signature() []byte { return common.CopyBytes(b.signature) }

// Number returns the block height, 0 being the genesis block.
func (b *Block) Number() uint64 { return b.header.Number }

// PreviousBlockHash returns the block hash of the previous chain block.
func (b *Block) PreviousBlockHash() crypto.Hash { return b.header.PreviousBlockHash }

// Time returns the block timestamp in unix seconds.
func (b *Block) Time() uint64 { return b.header.Time }

// Proposer returns the sealer responsible for minting the block.
func (b *Block) Proposer() string { return b.header.Proposer }

// Extra returns extra information present in the block.
func (b *Block) Extra() []byte { return common.CopyBytes(b.header.Extra) }

// Blocks is a slice of blocks.
type Blocks []*Block
