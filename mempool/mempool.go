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

// Package mempool buffers verified ballots awaiting inclusion in a block.
package mempool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/provotum/node/crypto"
	"github.com/provotum/node/crypto/homomorphic"
	"github.com/provotum/node/log"
	"github.com/provotum/node/types"
)

const (
	// seenCacheLimit bounds the dedupe memory for ballots that already
	// left the pool (included in a block or gossiped away).
	seenCacheLimit = 4096

	// DefaultCapacity bounds the number of pending ballots.
	DefaultCapacity = 8192
)

var (
	// ErrKnownBallot is returned when the ballot is already pending or was
	// recently processed.
	ErrKnownBallot = errors.New("ballot already known")

	// ErrInvalidBallot is returned when the ballot fails verification.
	ErrInvalidBallot = errors.New("invalid ballot")

	// ErrPoolFull is returned when the pool is at capacity.
	ErrPoolFull = errors.New("ballot pool is full")
)

// NewBallotEvent is posted when a verified ballot enters the pool.
type NewBallotEvent struct {
	Ballot *types.Ballot
}

// Pool holds verified pending ballots in arrival order. Every ballot is
// verified on the way in, so consumers may include pool contents in a block
// without re-checking.
type Pool struct {
	mu       sync.RWMutex
	verifier homomorphic.BallotVerifier

	pending  types.Ballots
	index    map[crypto.Hash]*types.Ballot
	seen     *lru.Cache // hash -> struct{}
	capacity int

	scope      event.SubscriptionScope
	ballotFeed event.Feed
}

// New returns an empty pool backed by the given ballot verifier.
func New(verifier homomorphic.BallotVerifier, capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	seen, _ := lru.New(seenCacheLimit)
	return &Pool{
		verifier: verifier,
		index:    make(map[crypto.Hash]*types.Ballot),
		seen:     seen,
		capacity: capacity,
	}
}

// Add verifies the ballot and queues it. Duplicates are detected by the
// ballot content hash, so a re-signed copy of a known ballot is still a
// duplicate.
func (p *Pool) Add(ballot *types.Ballot) error {
	hash := ballot.Hash()

	p.mu.Lock()
	if _, ok := p.index[hash]; ok {
		p.mu.Unlock()
		return ErrKnownBallot
	}
	if p.seen.Contains(hash) {
		p.mu.Unlock()
		return ErrKnownBallot
	}
	if len(p.pending) >= p.capacity {
		p.mu.Unlock()
		return ErrPoolFull
	}
	p.mu.Unlock()

	// verification runs outside the lock.
	if err := ballot.VerifyVoterSignature(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBallot, err)
	}
	if !p.verifier.VerifyBallot(ballot.Ciphertext, ballot.Proof) {
		return fmt.Errorf("%w: well-formedness proof rejected", ErrInvalidBallot)
	}

	p.mu.Lock()
	if _, ok := p.index[hash]; ok || p.seen.Contains(hash) {
		p.mu.Unlock()
		return ErrKnownBallot
	}
	if len(p.pending) >= p.capacity {
		p.mu.Unlock()
		return ErrPoolFull
	}
	p.pending = append(p.pending, ballot)
	p.index[hash] = ballot
	p.mu.Unlock()

	log.Debug("Queued ballot", zap.String("hash", hash.String()))
	p.ballotFeed.Send(NewBallotEvent{Ballot: ballot})
	return nil
}

// Pending returns up to max pending ballots in arrival order without
// removing them. max <= 0 returns all.
func (p *Pool) Pending(max int) types.Ballots {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := len(p.pending)
	if max > 0 && max < n {
		n = max
	}
	out := make(types.Ballots, n)
	copy(out, p.pending[:n])
	return out
}

// Remove drops the given ballots from the pool, typically after they were
// included in an accepted block. Removed hashes move to the seen cache.
func (p *Pool) Remove(ballots types.Ballots) {
	if len(ballots) == 0 {
		return
	}
	drop := make(map[crypto.Hash]struct{}, len(ballots))
	for _, ballot := range ballots {
		drop[ballot.Hash()] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.pending[:0]
	for _, ballot := range p.pending {
		hash := ballot.Hash()
		if _, ok := drop[hash]; ok {
			delete(p.index, hash)
			p.seen.Add(hash, struct{}{})
			continue
		}
		kept = append(kept, ballot)
	}
	p.pending = kept
}

// Reset drops every pending ballot whose hash appears in the given chain.
// Used after a wholesale chain replacement.
func (p *Pool) Reset(blocks types.Blocks) {
	for _, block := range blocks {
		p.Remove(block.Ballots())
	}
}

// Has reports whether the ballot is pending or recently seen.
func (p *Pool) Has(hash crypto.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.index[hash]; ok {
		return true
	}
	return p.seen.Contains(hash)
}

// Len returns the number of pending ballots.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pending)
}

// SubscribeNewBallot registers a subscription for ballots entering the pool.
func (p *Pool) SubscribeNewBallot(ch chan<- NewBallotEvent) event.Subscription {
	return p.scope.Track(p.ballotFeed.Subscribe(ch))
}

// Stop tears down the event subscriptions.
func (p *Pool) Stop() {
	p.scope.Close()
}
