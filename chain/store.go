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

// Package chain manages the canonical ballot chain: appends at the tip,
// wholesale replacement by longer peer chains, and the running encrypted
// tally derived from the canonical blocks.
package chain

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/event"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/provotum/node/chain/rawdb"
	"github.com/provotum/node/consensus/clique"
	"github.com/provotum/node/crypto"
	"github.com/provotum/node/database"
	"github.com/provotum/node/genesis"
	"github.com/provotum/node/log"
	"github.com/provotum/node/types"
)

const (
	blockCacheLimit = 256
	badBlockLimit   = 10

	// chainVersion forces a resync when the storage layout changes.
	chainVersion = 1
)

// Store represents the canonical chain given a database with a genesis
// block. There is no reorg machinery: a competing chain wins only by being
// strictly longer, and then it replaces the local chain wholesale.
type Store struct {
	mu sync.RWMutex // single writer lock for chain mutations.

	db        database.Database
	validator *clique.Validator
	agg       *Aggregator

	genesisBlock *types.Block
	currentBlock atomic.Value // *types.Block, current head of the chain.
	length       uint64       // number of blocks, genesis included.

	tally RunningTally

	scope       event.SubscriptionScope
	headFeed    event.Feed
	replaceFeed event.Feed

	blockCache *lru.Cache // hash -> *types.Block
	badBlocks  *lru.Cache // hash -> *types.Block, rejected candidates.
}

// New opens the chain store. An empty database is initialised from the
// genesis configuration; a populated one is loaded and revalidated in full.
// Revalidation failure means the database is corrupted and the node must
// not come up.
func New(db database.Database, gen *genesis.Genesis, validator *clique.Validator, agg *Aggregator) (*Store, error) {
	blockCache, _ := lru.New(blockCacheLimit)
	badBlocks, _ := lru.New(badBlockLimit)

	s := &Store{
		db:           db,
		validator:    validator,
		agg:          agg,
		genesisBlock: gen.ToBlock(),
		blockCache:   blockCache,
		badBlocks:    badBlocks,
	}

	stored := rawdb.ReadGenesisHash(db)
	if stored == (crypto.Hash{}) {
		if err := s.reset(); err != nil {
			return nil, err
		}
		log.Info("Initialised new chain", zap.String("genesis", s.genesisBlock.Hash().String()))
		return s, nil
	}
	if stored != s.genesisBlock.Hash() {
		return nil, fmt.Errorf("%w: database %s, configuration %s", ErrGenesisMismatch, stored, s.genesisBlock.Hash())
	}
	if err := s.loadState(); err != nil {
		return nil, err
	}
	log.Info("Loaded local chain", zap.Uint64("blocks", s.length), zap.String("head", s.CurrentBlock().Hash().String()))
	return s, nil
}

// reset writes the genesis block as the sole canonical block.
func (s *Store) reset() error {
	batch := s.db.NewBatch()
	rawdb.WriteDatabaseVersion(batch, chainVersion)
	rawdb.WriteGenesisHash(batch, s.genesisBlock.Hash())
	rawdb.WriteBlock(batch, s.genesisBlock)
	rawdb.WriteCanonicalHash(batch, s.genesisBlock.Hash(), 0)
	rawdb.WriteHeadBlockHash(batch, s.genesisBlock.Hash())
	rawdb.WriteChainLength(batch, 1)
	if err := batch.Write(); err != nil {
		return err
	}
	s.currentBlock.Store(s.genesisBlock)
	s.length = 1
	s.tally = RunningTally{}
	return nil
}

// loadState restores and revalidates the persisted chain. Any hole or rule
// violation in the stored data surfaces as ErrCorruptDatabase.
func (s *Store) loadState() error {
	length := rawdb.ReadChainLength(s.db)
	if length == 0 {
		return fmt.Errorf("%w: head present but chain length missing", ErrCorruptDatabase)
	}

	blocks := make(types.Blocks, 0, length)
	for number := uint64(0); number < length; number++ {
		hash := rawdb.ReadCanonicalHash(s.db, number)
		if hash == (crypto.Hash{}) {
			return fmt.Errorf("%w: missing canonical mapping for block #%d", ErrCorruptDatabase, number)
		}
		block := rawdb.ReadBlock(s.db, hash)
		if block == nil {
			return fmt.Errorf("%w: missing body for block #%d (%s)", ErrCorruptDatabase, number, hash)
		}
		blocks = append(blocks, block)
	}
	if err := s.validator.ValidateChain(blocks, s.genesisBlock.Hash()); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptDatabase, err)
	}
	head := rawdb.ReadHeadBlockHash(s.db)
	if head != blocks[length-1].Hash() {
		return fmt.Errorf("%w: head hash does not match last canonical block", ErrCorruptDatabase)
	}

	tally, err := s.agg.Replay(blocks)
	if err != nil {
		return fmt.Errorf("%w: tally replay failed: %v", ErrCorruptDatabase, err)
	}

	s.currentBlock.Store(blocks[length-1])
	s.length = length
	s.tally = tally
	return nil
}

// Genesis returns the genesis block of the chain.
func (s *Store) Genesis() *types.Block { return s.genesisBlock }

// GenesisHash returns the chain's identity hash.
func (s *Store) GenesisHash() crypto.Hash { return s.genesisBlock.Hash() }

// CurrentBlock returns the current head block of the canonical chain.
func (s *Store) CurrentBlock() *types.Block {
	return s.currentBlock.Load().(*types.Block)
}

// Length returns the number of blocks in the chain, genesis included.
func (s *Store) Length() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.length
}

// Tally returns a copy of the running encrypted tally.
func (s *Store) Tally() RunningTally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tally.Copy()
}

// GetBlockByHash retrieves a block from the database by hash, caching it
// if found.
func (s *Store) GetBlockByHash(hash crypto.Hash) *types.Block {
	if block, ok := s.blockCache.Get(hash); ok {
		return block.(*types.Block)
	}
	block := rawdb.ReadBlock(s.db, hash)
	if block == nil {
		return nil
	}
	s.blockCache.Add(hash, block)
	return block
}

// GetBlockByNumber retrieves a canonical block by height.
func (s *Store) GetBlockByNumber(number uint64) *types.Block {
	hash := rawdb.ReadCanonicalHash(s.db, number)
	if hash == (crypto.Hash{}) {
		return nil
	}
	return s.GetBlockByHash(hash)
}

// HasBlock reports whether the block is known to the store.
func (s *Store) HasBlock(hash crypto.Hash) bool {
	if s.blockCache.Contains(hash) {
		return true
	}
	return rawdb.ReadBlock(s.db, hash) != nil
}

// Blocks returns the canonical blocks in [from, to), capped at the chain
// length. Used to serve chain pulls. The read lock is held across the whole
// walk so a concurrent replacement can never serve a chain mid-swap.
func (s *Store) Blocks(from, to uint64) types.Blocks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks(from, to)
}

// FullChain returns every canonical block, genesis first.
func (s *Store) FullChain() types.Blocks {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks(0, s.length)
}

func (s *Store) blocks(from, to uint64) types.Blocks {
	if to > s.length {
		to = s.length
	}
	if from >= to {
		return nil
	}
	blocks := make(types.Blocks, 0, to-from)
	for number := from; number < to; number++ {
		block := s.GetBlockByNumber(number)
		if block == nil {
			log.Error("Canonical block missing from database", zap.Uint64("number", number))
			return nil
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// RecentSigners returns the proposers of the signer_limit most recent
// blocks, oldest first. The genesis block carries no proposer and never
// counts towards the cooldown.
func (s *Store) RecentSigners() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentSigners()
}

func (s *Store) recentSigners() []string {
	limit := s.validator.Scheduler().SignerLimit()
	if limit == 0 {
		return nil
	}
	signers := make([]string, 0, limit)
	block := s.CurrentBlock()
	for block.Number() > 0 && len(signers) < limit {
		signers = append(signers, block.Proposer())
		block = s.GetBlockByHash(block.PreviousBlockHash())
		if block == nil {
			break
		}
	}
	// reverse to oldest first
	for i, j := 0, len(signers)-1; i < j; i, j = i+1, j-1 {
		signers[i], signers[j] = signers[j], signers[i]
	}
	return signers
}

// Append validates the block against the current head and makes it the new
// head. Appending the current head again is a no-op signalled by
// ErrKnownBlock; a different block at an occupied height loses to the block
// that arrived first.
func (s *Store) Append(block *types.Block) error {
	s.mu.Lock()

	head := s.CurrentBlock()
	if block.Hash() == head.Hash() {
		s.mu.Unlock()
		return ErrKnownBlock
	}
	if block.Number() <= head.Number() {
		known := rawdb.ReadCanonicalHash(s.db, block.Number()) == block.Hash()
		s.mu.Unlock()
		if known {
			return ErrKnownBlock
		}
		return ErrHeightOccupied
	}

	if err := s.validator.Validate(block, head, s.recentSigners()); err != nil {
		s.mu.Unlock()
		s.reportBadBlock(block, err)
		return err
	}

	tally, err := s.agg.Fold(s.tally, block.Ballots())
	if err != nil {
		s.mu.Unlock()
		return err
	}

	batch := s.db.NewBatch()
	rawdb.WriteBlock(batch, block)
	rawdb.WriteCanonicalHash(batch, block.Hash(), block.Number())
	rawdb.WriteHeadBlockHash(batch, block.Hash())
	rawdb.WriteChainLength(batch, s.length+1)
	if err := batch.Write(); err != nil {
		s.mu.Unlock()
		return err
	}

	s.blockCache.Add(block.Hash(), block)
	s.currentBlock.Store(block)
	s.length++
	s.tally = tally
	s.mu.Unlock()

	log.Info("Appended block", zap.Uint64("number", block.Number()), zap.String("hash", block.Hash().String()), zap.String("proposer", block.Proposer()), zap.Int("ballots", len(block.Ballots())))
	s.headFeed.Send(NewHeadEvent{Block: block})
	return nil
}

// ReplaceIfLonger swaps the local chain for the candidate chain if the
// candidate is strictly longer, shares the genesis block, and revalidates
// in full. The tally is recomputed by replaying the new chain; nothing from
// the replaced chain survives. Equal length keeps the local chain.
func (s *Store) ReplaceIfLonger(blocks types.Blocks) error {
	s.mu.Lock()

	if uint64(len(blocks)) <= s.length {
		s.mu.Unlock()
		return ErrChainTooShort
	}
	if err := s.validator.ValidateChain(blocks, s.genesisBlock.Hash()); err != nil {
		s.mu.Unlock()
		if len(blocks) > 0 {
			s.reportBadBlock(blocks[len(blocks)-1], err)
		}
		return err
	}

	tally, err := s.agg.Replay(blocks)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	oldHead := s.CurrentBlock()
	newHead := blocks[len(blocks)-1]

	batch := s.db.NewBatch()
	for _, block := range blocks {
		rawdb.WriteBlock(batch, block)
		rawdb.WriteCanonicalHash(batch, block.Hash(), block.Number())
		if batch.ValueSize() >= database.IdealBatchSize {
			if err := batch.Write(); err != nil {
				s.mu.Unlock()
				return err
			}
			batch.Reset()
		}
	}
	rawdb.WriteHeadBlockHash(batch, newHead.Hash())
	rawdb.WriteChainLength(batch, uint64(len(blocks)))
	if err := batch.Write(); err != nil {
		s.mu.Unlock()
		return err
	}

	s.blockCache.Purge()
	s.currentBlock.Store(newHead)
	s.length = uint64(len(blocks))
	s.tally = tally
	s.mu.Unlock()

	log.Info("Replaced local chain", zap.Uint64("oldLength", oldHead.Number()+1), zap.Uint64("newLength", uint64(len(blocks))), zap.String("head", newHead.Hash().String()))
	s.replaceFeed.Send(ChainReplacedEvent{OldHead: oldHead, NewHead: newHead})
	s.headFeed.Send(NewHeadEvent{Block: newHead})
	return nil
}

// SubscribeNewHead registers a subscription for new head events.
func (s *Store) SubscribeNewHead(ch chan<- NewHeadEvent) event.Subscription {
	return s.scope.Track(s.headFeed.Subscribe(ch))
}

// SubscribeChainReplaced registers a subscription for chain replacements.
func (s *Store) SubscribeChainReplaced(ch chan<- ChainReplacedEvent) event.Subscription {
	return s.scope.Track(s.replaceFeed.Subscribe(ch))
}

// Stop tears down the event subscriptions. The database is owned by the
// node and closed there.
func (s *Store) Stop() {
	s.scope.Close()
	log.Info("Chain store stopped")
}

// BadBlocks returns the latest blocks rejected by validation.
func (s *Store) BadBlocks() types.Blocks {
	blocks := make(types.Blocks, 0, s.badBlocks.Len())
	for _, hash := range s.badBlocks.Keys() {
		if block, ok := s.badBlocks.Get(hash); ok {
			blocks = append(blocks, block.(*types.Block))
		}
	}
	return blocks
}

func (s *Store) reportBadBlock(block *types.Block, err error) {
	s.badBlocks.Add(block.Hash(), block)
	log.Error(fmt.Sprintf(`
########## BAD BLOCK #########

Number: %v
Hash: %s
Proposer: %s

Error: %v

Header: %s
##############################
`, block.Number(), block.Hash(), block.Proposer(), err, spew.Sdump(block.Header())))
}
