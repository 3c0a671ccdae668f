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

package clique

import (
	"fmt"

	"github.com/provotum/node/crypto"
	"github.com/provotum/node/crypto/homomorphic"
	"github.com/provotum/node/crypto/signer"
	"github.com/provotum/node/types"
)

// Validator checks candidate blocks against the chain tip and the clique
// rules. Validation is pure: it never mutates state, so it may run outside
// the chain store's critical section.
type Validator struct {
	sched   *Scheduler
	signer  signer.Signer
	ballots homomorphic.BallotVerifier
}

// NewValidator wires the validator with its rule sources.
func NewValidator(sched *Scheduler, signer signer.Signer, ballots homomorphic.BallotVerifier) *Validator {
	return &Validator{sched: sched, signer: signer, ballots: ballots}
}

// Scheduler exposes the validator's schedule, shared with the minting loop.
func (v *Validator) Scheduler() *Scheduler { return v.sched }

// Validate checks the candidate block against the current chain tip and
// the signers of the signer_limit most recent blocks. Checks run in order
// and short-circuit on the first failure.
func (v *Validator) Validate(candidate, tip *types.Block, recent []string) error {
	if candidate.Number() != tip.Number()+1 {
		return ErrInvalidHeight
	}
	if candidate.PreviousBlockHash() != tip.Hash() {
		return ErrUnknownAncestor
	}
	proposer := candidate.Proposer()
	if !v.sched.IsAuthorized(proposer) {
		return ErrUnauthorizedSigner
	}
	if !v.sched.IsEligible(proposer, recent) {
		return ErrRecentlySigned
	}
	if err := v.signer.VerifySeal(candidate); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSeal, err)
	}
	return v.validateBallots(candidate)
}

// validateBallots checks the ballot root and every single ballot. A block
// containing even one invalid ballot is rejected wholesale, which keeps the
// tally's correctness argument simple: every accumulated ballot has been
// individually verified.
func (v *Validator) validateBallots(block *types.Block) error {
	ballots := block.Ballots()
	want := types.EmptyBallotHash
	if len(ballots) > 0 {
		want = crypto.RLPHash(ballots)
	}
	if block.Header().BallotHash != want {
		return ErrBallotHashMismatch
	}
	for i, ballot := range ballots {
		if err := ballot.VerifyVoterSignature(); err != nil {
			return fmt.Errorf("%w #%d: %v", ErrInvalidBallot, i, err)
		}
		if !v.ballots.VerifyBallot(ballot.Ciphertext, ballot.Proof) {
			return fmt.Errorf("%w #%d: well-formedness proof rejected", ErrInvalidBallot, i)
		}
	}
	return nil
}

// ValidateChain revalidates a complete chain from its genesis. The first
// block must carry the expected genesis hash; every following block must
// validate against its predecessor under the rolling cooldown window.
func (v *Validator) ValidateChain(blocks types.Blocks, genesisHash crypto.Hash) error {
	if len(blocks) == 0 {
		return fmt.Errorf("%w: empty chain", ErrGenesisMismatch)
	}
	if blocks[0].Hash() != genesisHash {
		return ErrGenesisMismatch
	}

	limit := v.sched.SignerLimit()
	var recent []string
	for i := 1; i < len(blocks); i++ {
		if err := v.Validate(blocks[i], blocks[i-1], recent); err != nil {
			return fmt.Errorf("block #%d: %w", blocks[i].Number(), err)
		}
		if limit > 0 {
			recent = append(recent, blocks[i].Proposer())
			if len(recent) > limit {
				recent = recent[1:]
			}
		}
	}
	return nil
}
