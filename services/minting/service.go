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

// Package minting runs the sealer's block production loop. Every block
// period the in-turn sealer drains pending ballots into a block; co-leaders
// step in after a wiggle delay when the in-turn block fails to appear.
package minting

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/provotum/node/chain"
	"github.com/provotum/node/common"
	"github.com/provotum/node/consensus/clique"
	"github.com/provotum/node/crypto/signer"
	"github.com/provotum/node/genesis"
	"github.com/provotum/node/log"
	"github.com/provotum/node/mempool"
	"github.com/provotum/node/p2p"
	"github.com/provotum/node/types"
)

// wiggleTime is the per-slot delay unit a co-leader waits before stepping
// in for an absent in-turn sealer.
const wiggleTime = 500 * time.Millisecond

var errNotSealer = errors.New("minting requires a sealer identity and key")

// Broadcaster announces freshly minted blocks to the network.
type Broadcaster interface {
	BroadcastBlock(*types.Block) error
}

// Service is the block production loop.
type Service struct {
	cfg   Config
	gen   *genesis.Genesis
	sched *clique.Scheduler
	chain *chain.Store
	pool  *mempool.Pool

	signer      signer.Signer
	broadcaster Broadcaster

	mu      sync.Mutex
	minting bool

	quit chan struct{}
	wg   sync.WaitGroup
}

// New returns a minting service for the given sealer identity.
func New(cfg Config, gen *genesis.Genesis, sched *clique.Scheduler, chainStore *chain.Store, pool *mempool.Pool, blockSigner signer.Signer, broadcaster Broadcaster) (*Service, error) {
	if cfg.SealerAddress == "" || cfg.PrivateKey == nil {
		return nil, errNotSealer
	}
	if !gen.IsSealer(cfg.SealerAddress) {
		return nil, errNotSealer
	}
	if cfg.MaxBallotsPerBlock <= 0 {
		cfg.MaxBallotsPerBlock = DefaultMaxBallotsPerBlock
	}
	return &Service{
		cfg:         cfg,
		gen:         gen,
		sched:       sched,
		chain:       chainStore,
		pool:        pool,
		signer:      blockSigner,
		broadcaster: broadcaster,
		quit:        make(chan struct{}),
	}, nil
}

// Start launches the minting loop.
func (m *Service) Start(host *p2p.Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.minting {
		return nil
	}
	m.minting = true

	m.wg.Add(1)
	go m.loop()

	log.Info("Minting started", zap.String("sealer", m.cfg.SealerAddress), zap.Duration("period", m.gen.BlockPeriod()))
	return nil
}

// Stop terminates the minting loop.
func (m *Service) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.minting {
		return nil
	}
	m.minting = false
	close(m.quit)
	m.wg.Wait()
	log.Info("Minting stopped")
	return nil
}

// loop schedules one minting attempt per block period, restarting the slot
// timer whenever the head moves so follower sealers stay aligned with the
// minter's cadence.
func (m *Service) loop() {
	defer m.wg.Done()

	events := make(chan chain.NewHeadEvent, 16)
	sub := m.chain.SubscribeNewHead(events)
	defer sub.Unsubscribe()

	timer := time.NewTimer(m.gen.BlockPeriod())
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			m.tryMint(events)
			timer.Reset(m.gen.BlockPeriod())
		case <-events:
			timer.Reset(m.gen.BlockPeriod())
		case <-sub.Err():
			return
		case <-m.quit:
			return
		}
	}
}

// tryMint mints the next block if this sealer is entitled to: immediately
// when in turn, after a randomized wiggle when acting as co-leader for an
// absent in-turn sealer. A head event at the target height aborts the
// co-leader attempt.
func (m *Service) tryMint(events chan chain.NewHeadEvent) {
	head := m.chain.CurrentBlock()
	height := head.Number() + 1

	if !m.sched.IsEligible(m.cfg.SealerAddress, m.chain.RecentSigners()) {
		log.Debug("Still in cooldown window", zap.Uint64("height", height))
		return
	}

	if m.sched.InTurn(height) != m.cfg.SealerAddress {
		if !m.sched.IsCoLeader(m.cfg.SealerAddress, height) {
			return
		}
		if !m.waitWiggle(events, height) {
			return
		}
	}

	m.mint(head, height)
}

// waitWiggle holds the co-leader back for a randomized delay. It reports
// whether the slot is still open afterwards; a head event at or past the
// target height means another sealer delivered.
func (m *Service) waitWiggle(events chan chain.NewHeadEvent, height uint64) bool {
	wiggle := time.Duration(rand.Int63n(int64(m.sched.SignerLimit())+1)+1) * wiggleTime
	log.Debug("Out of turn, waiting wiggle before stepping in", zap.Uint64("height", height), zap.Duration("wiggle", wiggle))

	wait := time.NewTimer(wiggle)
	defer wait.Stop()
	for {
		select {
		case ev := <-events:
			if ev.Block.Number() >= height {
				return false
			}
		case <-wait.C:
			return true
		case <-m.quit:
			return false
		}
	}
}

// mint assembles, seals, appends and announces the block at the given
// height on top of head.
func (m *Service) mint(head *types.Block, height uint64) {
	start := time.Now()
	ballots := m.pool.Pending(m.cfg.MaxBallotsPerBlock)

	block := types.NewBlock(&types.Header{
		Number:            height,
		PreviousBlockHash: head.Hash(),
		Time:              uint64(time.Now().Unix()),
		Proposer:          m.cfg.SealerAddress,
	}, ballots)

	sealed, err := m.signer.SignBlock(block, m.cfg.PrivateKey)
	if err != nil {
		log.Error("Failed to seal block", zap.Uint64("height", height), zap.Error(err))
		return
	}

	if err := m.chain.Append(sealed); err != nil {
		// losing the race against an announced block is part of normal
		// co-leader operation.
		log.Warn("Minted block not appended", zap.Uint64("height", height), zap.Error(err))
		return
	}
	m.pool.Remove(ballots)

	log.Info("Minted block", zap.Uint64("height", height), zap.String("hash", sealed.Hash().String()),
		zap.Int("ballots", len(ballots)), zap.Stringer("elapsed", common.PrettyDuration(time.Since(start))))
	if err := m.broadcaster.BroadcastBlock(sealed); err != nil {
		log.Error("Failed to announce minted block", zap.Uint64("height", height), zap.Error(err))
	}
}
