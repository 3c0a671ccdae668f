package chain

import (
	"crypto/ecdsa"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provotum/node/consensus/clique"
	"github.com/provotum/node/crypto"
	"github.com/provotum/node/crypto/homomorphic"
	"github.com/provotum/node/crypto/signer"
	"github.com/provotum/node/database"
	"github.com/provotum/node/genesis"
	"github.com/provotum/node/types"
)

func testGenesis() *genesis.Genesis {
	return &genesis.Genesis{
		Version: "1.0",
		Clique:  genesis.CliqueConfig{BlockPeriod: 1, SignerLimit: 2},
		Sealer:  []string{"a:1", "b:1", "c:1"},
	}
}

func newTestStore(t *testing.T, db database.Database) (*Store, *genesis.Genesis) {
	gen := testGenesis()
	validator := clique.NewValidator(clique.NewScheduler(gen), signer.NewUnsafeSigner(), homomorphic.AcceptAll)
	store, err := New(db, gen, validator, NewAggregator(homomorphic.NopAdder{}))
	require.NoError(t, err)
	return store, gen
}

func sealerKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func mintBlock(t *testing.T, parent *types.Block, proposer string, key *ecdsa.PrivateKey, time uint64, ballots types.Ballots) *types.Block {
	block := types.NewBlock(&types.Header{
		Number:            parent.Number() + 1,
		PreviousBlockHash: parent.Hash(),
		Time:              time,
		Proposer:          proposer,
	}, ballots)
	sealed, err := signer.NewUnsafeSigner().SignBlock(block, key)
	require.NoError(t, err)
	return sealed
}

// mintChain builds a valid chain on top of the genesis block, one block per
// proposer, with timestamps starting at base.
func mintChain(t *testing.T, gen *genesis.Genesis, key *ecdsa.PrivateKey, base uint64, proposers ...string) types.Blocks {
	blocks := types.Blocks{gen.ToBlock()}
	for i, proposer := range proposers {
		blocks = append(blocks, mintBlock(t, blocks[len(blocks)-1], proposer, key, base+uint64(i), nil))
	}
	return blocks
}

func TestNewInitialisesEmptyDatabase(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())

	assert.Equal(t, uint64(1), store.Length())
	assert.Equal(t, gen.ToBlock().Hash(), store.CurrentBlock().Hash())
	assert.Equal(t, gen.ToBlock().Hash(), store.GenesisHash())
	assert.Empty(t, store.RecentSigners())
}

func TestAppendAdvancesHead(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	b1 := mintBlock(t, gen.ToBlock(), "b:1", key, 100, nil)
	require.NoError(t, store.Append(b1))
	b2 := mintBlock(t, b1, "c:1", key, 101, nil)
	require.NoError(t, store.Append(b2))

	assert.Equal(t, uint64(3), store.Length())
	assert.Equal(t, b2.Hash(), store.CurrentBlock().Hash())
	assert.Equal(t, []string{"b:1", "c:1"}, store.RecentSigners())
	assert.Equal(t, b1.Hash(), store.GetBlockByNumber(1).Hash())
	assert.True(t, store.HasBlock(b1.Hash()))
}

func TestAppendKnownBlockIsNoOp(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	b1 := mintBlock(t, gen.ToBlock(), "b:1", key, 100, nil)
	require.NoError(t, store.Append(b1))

	assert.ErrorIs(t, store.Append(b1), ErrKnownBlock)
	assert.Equal(t, uint64(2), store.Length())
}

func TestAppendFirstSeenWinsAtOccupiedHeight(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	winner := mintBlock(t, gen.ToBlock(), "b:1", key, 100, nil)
	require.NoError(t, store.Append(winner))

	loser := mintBlock(t, gen.ToBlock(), "c:1", key, 100, nil)
	assert.ErrorIs(t, store.Append(loser), ErrHeightOccupied)
	assert.Equal(t, winner.Hash(), store.CurrentBlock().Hash())
}

func TestAppendEnforcesCooldown(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	b1 := mintBlock(t, gen.ToBlock(), "b:1", key, 100, nil)
	require.NoError(t, store.Append(b1))

	again := mintBlock(t, b1, "b:1", key, 101, nil)
	assert.ErrorIs(t, store.Append(again), clique.ErrRecentlySigned)
	assert.Len(t, store.BadBlocks(), 1)
}

func TestReopenPersistedChain(t *testing.T) {
	db := database.NewMemDatabase()
	store, gen := newTestStore(t, db)
	key := sealerKey(t)

	b1 := mintBlock(t, gen.ToBlock(), "b:1", key, 100, nil)
	require.NoError(t, store.Append(b1))
	b2 := mintBlock(t, b1, "c:1", key, 101, nil)
	require.NoError(t, store.Append(b2))

	reopened, _ := newTestStore(t, db)
	assert.Equal(t, uint64(3), reopened.Length())
	assert.Equal(t, b2.Hash(), reopened.CurrentBlock().Hash())
	assert.Equal(t, []string{"b:1", "c:1"}, reopened.RecentSigners())
}

func TestReopenDetectsCorruption(t *testing.T) {
	db := database.NewMemDatabase()
	store, gen := newTestStore(t, db)
	key := sealerKey(t)

	b1 := mintBlock(t, gen.ToBlock(), "b:1", key, 100, nil)
	require.NoError(t, store.Append(b1))

	// wipe the block body while the canonical mapping survives.
	require.NoError(t, db.Delete(append([]byte("b"), b1.Hash().Bytes()...)))

	validator := clique.NewValidator(clique.NewScheduler(gen), signer.NewUnsafeSigner(), homomorphic.AcceptAll)
	_, err := New(db, gen, validator, NewAggregator(homomorphic.NopAdder{}))
	assert.ErrorIs(t, err, ErrCorruptDatabase)
}

func TestReplaceIfLonger(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	local := mintChain(t, gen, key, 100, "b:1", "c:1")
	require.NoError(t, store.Append(local[1]))
	require.NoError(t, store.Append(local[2]))

	// a competing chain with different timestamps, strictly longer.
	competing := mintChain(t, gen, key, 200, "b:1", "c:1", "a:1", "b:1")
	require.NoError(t, store.ReplaceIfLonger(competing))

	assert.Equal(t, uint64(5), store.Length())
	assert.Equal(t, competing[4].Hash(), store.CurrentBlock().Hash())
	// nothing of the replaced chain survives in the canonical mapping.
	assert.Equal(t, competing[1].Hash(), store.GetBlockByNumber(1).Hash())
	assert.Equal(t, []string{"a:1", "b:1"}, store.RecentSigners())
}

func TestReplaceRejectsEqualLength(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	local := mintChain(t, gen, key, 100, "b:1", "c:1")
	require.NoError(t, store.Append(local[1]))
	require.NoError(t, store.Append(local[2]))

	competing := mintChain(t, gen, key, 200, "b:1", "c:1")
	assert.ErrorIs(t, store.ReplaceIfLonger(competing), ErrChainTooShort)
	assert.Equal(t, local[2].Hash(), store.CurrentBlock().Hash())
}

func TestReplaceRejectsInvalidChain(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	// cooldown violation in the middle of the competing chain.
	g := gen.ToBlock()
	b1 := mintBlock(t, g, "b:1", key, 200, nil)
	b2 := mintBlock(t, b1, "b:1", key, 201, nil)
	b3 := mintBlock(t, b2, "c:1", key, 202, nil)

	err := store.ReplaceIfLonger(types.Blocks{g, b1, b2, b3})
	assert.ErrorIs(t, err, clique.ErrRecentlySigned)
	assert.Equal(t, g.Hash(), store.CurrentBlock().Hash())
	assert.Equal(t, uint64(1), store.Length())
}

func TestReplaceRejectsForeignGenesis(t *testing.T) {
	store, _ := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	other := &genesis.Genesis{
		Version: "1.0",
		Clique:  genesis.CliqueConfig{BlockPeriod: 1, SignerLimit: 2},
		Sealer:  []string{"x:1", "y:1", "z:1"},
	}
	foreign := types.Blocks{other.ToBlock()}
	foreign = append(foreign, mintBlock(t, foreign[0], "x:1", key, 100, nil))
	foreign = append(foreign, mintBlock(t, foreign[1], "y:1", key, 101, nil))

	assert.ErrorIs(t, store.ReplaceIfLonger(foreign), clique.ErrGenesisMismatch)
}

func TestTallyCountsBallotsAcrossReplace(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	voter, err := crypto.GenerateKey()
	require.NoError(t, err)
	ballot := func(b byte) *types.Ballot {
		signed, err := types.SignBallot(types.NewBallot([]byte{b}, nil, nil), voter)
		require.NoError(t, err)
		return signed
	}

	b1 := mintBlock(t, gen.ToBlock(), "b:1", key, 100, types.Ballots{ballot(1), ballot(2)})
	require.NoError(t, store.Append(b1))
	assert.Equal(t, uint64(2), store.Tally().TotalVotes)

	// the replacement chain carries a different ballot set; the tally is
	// recomputed from scratch, nothing carries over.
	g := gen.ToBlock()
	c1 := mintBlock(t, g, "b:1", key, 200, types.Ballots{ballot(3)})
	c2 := mintBlock(t, c1, "c:1", key, 201, nil)
	require.NoError(t, store.ReplaceIfLonger(types.Blocks{g, c1, c2}))

	assert.Equal(t, uint64(1), store.Tally().TotalVotes)
}

func TestFullChainNeverServedMidSwap(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	// progressively longer competing chains, each replacing the previous
	// one wholesale.
	proposers := []string{"b:1", "c:1", "a:1", "b:1", "c:1", "a:1"}
	chains := make([]types.Blocks, 0, len(proposers))
	for i := 1; i <= len(proposers); i++ {
		chains = append(chains, mintChain(t, gen, key, uint64(1000*i), proposers[:i]...))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, c := range chains {
			assert.NoError(t, store.ReplaceIfLonger(c))
		}
	}()

	// every snapshot served during the swaps must be internally linked;
	// a torn mix of old- and new-chain blocks breaks the parent hashes.
	for alive := true; alive; {
		select {
		case <-done:
			alive = false
		default:
		}
		got := store.FullChain()
		require.NotEmpty(t, got)
		for i := 1; i < len(got); i++ {
			require.Equal(t, got[i-1].Hash(), got[i].PreviousBlockHash(), "torn chain served at height %d", i)
		}
	}
}

func TestHeadEvents(t *testing.T) {
	store, gen := newTestStore(t, database.NewMemDatabase())
	key := sealerKey(t)

	events := make(chan NewHeadEvent, 4)
	sub := store.SubscribeNewHead(events)
	defer sub.Unsubscribe()

	b1 := mintBlock(t, gen.ToBlock(), "b:1", key, 100, nil)
	require.NoError(t, store.Append(b1))

	ev := <-events
	assert.Equal(t, b1.Hash(), ev.Block.Hash())
}
