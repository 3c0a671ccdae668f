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

package chain

import (
	"github.com/provotum/node/common"
	"github.com/provotum/node/crypto/homomorphic"
	"github.com/provotum/node/types"
)

// RunningTally is the homomorphic accumulation of every ballot on the
// canonical chain. The ciphertext stays encrypted; only a key holder can
// open it after the vote closes.
type RunningTally struct {
	TotalVotes uint64 `json:"total_votes"`
	Ciphertext []byte `json:"ciphertext"`
}

// Copy returns an independent copy of the tally.
func (t RunningTally) Copy() RunningTally {
	return RunningTally{TotalVotes: t.TotalVotes, Ciphertext: common.CopyBytes(t.Ciphertext)}
}

// Aggregator folds ballots into a running tally under an additively
// homomorphic scheme. An empty ciphertext is the neutral element, so nodes
// without key material can still aggregate.
type Aggregator struct {
	adder homomorphic.Adder
}

// NewAggregator returns an aggregator over the given scheme.
func NewAggregator(adder homomorphic.Adder) *Aggregator {
	return &Aggregator{adder: adder}
}

// Fold accumulates the block's ballots into the tally, in block order.
func (a *Aggregator) Fold(tally RunningTally, ballots types.Ballots) (RunningTally, error) {
	for _, ballot := range ballots {
		sum, err := a.adder.Add(tally.Ciphertext, ballot.Ciphertext)
		if err != nil {
			return tally, err
		}
		tally.Ciphertext = sum
		tally.TotalVotes++
	}
	return tally, nil
}

// Replay recomputes the tally from scratch over a complete chain. Used
// after a wholesale chain replacement and on startup.
func (a *Aggregator) Replay(blocks types.Blocks) (RunningTally, error) {
	var tally RunningTally
	var err error
	for _, block := range blocks {
		tally, err = a.Fold(tally, block.Ballots())
		if err != nil {
			return RunningTally{}, err
		}
	}
	return tally, nil
}
