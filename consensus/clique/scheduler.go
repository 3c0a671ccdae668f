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

// Package clique implements the turn-based proof-of-authority rules of the
// voting chain: a fixed sealer set rotates block minting duty, and a sealer
// that minted must wait out signer_limit blocks before minting again.
package clique

import "github.com/provotum/node/genesis"

// Scheduler decides whose turn it is to mint. Rotation order is advisory
// (it keeps block timing predictable); the cooldown is the hard safety
// invariant and is enforced by the Validator.
type Scheduler struct {
	sealers     []string
	signerLimit int
}

// NewScheduler derives the schedule from the genesis configuration.
func NewScheduler(gen *genesis.Genesis) *Scheduler {
	sealers := make([]string, len(gen.Sealer))
	copy(sealers, gen.Sealer)
	return &Scheduler{sealers: sealers, signerLimit: gen.CooldownLimit()}
}

// SignerLimit returns the cooldown window in blocks.
func (s *Scheduler) SignerLimit() int { return s.signerLimit }

// IsAuthorized reports whether the address belongs to the sealer set.
func (s *Scheduler) IsAuthorized(sealer string) bool {
	for _, addr := range s.sealers {
		if addr == sealer {
			return true
		}
	}
	return false
}

// InTurn returns the sealer whose turn it is to mint the block at the
// given height: round-robin over the genesis sealer list.
func (s *Scheduler) InTurn(height uint64) string {
	return s.sealers[height%uint64(len(s.sealers))]
}

// IsEligible reports whether the sealer may mint now, given the signers of
// the signer_limit most recent blocks. A sealer among them is still in its
// cooldown window.
func (s *Scheduler) IsEligible(sealer string, recent []string) bool {
	for _, signed := range recent {
		if signed == sealer {
			return false
		}
	}
	return true
}

// IsCoLeader reports whether the sealer sits in the co-leader window for
// the given height: the signer_limit rotation slots right after the
// in-turn sealer. Co-leaders mint after a wiggle delay if the in-turn
// block fails to appear.
func (s *Scheduler) IsCoLeader(sealer string, height uint64) bool {
	n := uint64(len(s.sealers))
	inTurn := height % n
	for offset := uint64(1); offset <= uint64(s.signerLimit); offset++ {
		if s.sealers[(inTurn+offset)%n] == sealer {
			return true
		}
	}
	return false
}
