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
	"crypto/ecdsa"
	"errors"
	"sync/atomic"

	"github.com/provotum/node/crypto"
)

var (
	// ErrMissingVoterSignature signals a ballot without a voter signature.
	ErrMissingVoterSignature = errors.New("ballot is missing the voter signature")

	// ErrInvalidVoterSignature signals a voter signature that does not
	// verify against the ballot contents.
	ErrInvalidVoterSignature = errors.New("invalid voter signature")
)

// Ballot is a single encrypted vote: the ciphertext under the election's
// homomorphic key plus the zero-knowledge well-formedness proof. Both are
// opaque to the consensus layer.
type Ballot struct {
	Ciphertext     []byte `json:"ciphertext"`
	Proof          []byte `json:"proof"`
	VoterSignature []byte `json:"voterSignature"`

	// caches
	hash atomic.Value
}

// NewBallot assembles a ballot from its wire components.
func NewBallot(ciphertext, proof, voterSignature []byte) *Ballot {
	return &Ballot{Ciphertext: ciphertext, Proof: proof, VoterSignature: voterSignature}
}

// ballotdata is the voter-signed portion of a ballot.
type ballotdata struct {
	Ciphertext []byte
	Proof      []byte
}

// Hash returns the digest of the ballot contents, the voter signature
// excluded, so a re-signed duplicate still dedupes to the same ballot.
// Used for mempool and chain level deduplication.
func (b *Ballot) Hash() crypto.Hash {
	if hash := b.hash.Load(); hash != nil {
		return hash.(crypto.Hash)
	}
	v := crypto.RLPHash(ballotdata{b.Ciphertext, b.Proof})
	b.hash.Store(v)
	return v
}

// SigningHash returns the digest covered by the voter signature.
func (b *Ballot) SigningHash() crypto.Hash {
	return crypto.RLPHash(ballotdata{b.Ciphertext, b.Proof})
}

// SignBallot signs the ballot contents with the voter's key.
func SignBallot(b *Ballot, prv *ecdsa.PrivateKey) (*Ballot, error) {
	sig, err := crypto.Sign(b.SigningHash(), prv)
	if err != nil {
		return nil, err
	}
	return &Ballot{Ciphertext: b.Ciphertext, Proof: b.Proof, VoterSignature: sig}, nil
}

// VerifyVoterSignature checks that the ballot carries a well formed
// signature over its contents. Voter eligibility is enforced by the
// election registrar, outside the consensus layer: here a signature is
// acceptable if it recovers to some public key.
func (b *Ballot) VerifyVoterSignature() error {
	if len(b.VoterSignature) == 0 {
		return ErrMissingVoterSignature
	}
	if _, err := crypto.SigToPub(b.SigningHash(), b.VoterSignature); err != nil {
		return ErrInvalidVoterSignature
	}
	return nil
}

// Ballots is a slice of ballots.
type Ballots []*Ballot
