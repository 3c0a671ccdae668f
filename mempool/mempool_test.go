package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provotum/node/crypto"
	"github.com/provotum/node/crypto/homomorphic"
	"github.com/provotum/node/types"
)

func signedBallot(t *testing.T, ciphertext []byte) *types.Ballot {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	ballot, err := types.SignBallot(types.NewBallot(ciphertext, nil, nil), key)
	require.NoError(t, err)
	return ballot
}

func TestAddAndPending(t *testing.T) {
	pool := New(homomorphic.AcceptAll, 0)

	first := signedBallot(t, []byte{0x01})
	second := signedBallot(t, []byte{0x02})
	require.NoError(t, pool.Add(first))
	require.NoError(t, pool.Add(second))

	assert.Equal(t, 2, pool.Len())
	// arrival order is preserved
	pending := pool.Pending(0)
	require.Len(t, pending, 2)
	assert.Equal(t, first.Hash(), pending[0].Hash())
	assert.Equal(t, second.Hash(), pending[1].Hash())

	assert.Len(t, pool.Pending(1), 1)
}

func TestAddRejectsDuplicates(t *testing.T) {
	pool := New(homomorphic.AcceptAll, 0)

	ballot := signedBallot(t, []byte{0x01})
	require.NoError(t, pool.Add(ballot))
	assert.ErrorIs(t, pool.Add(ballot), ErrKnownBallot)

	// same vote re-signed by a different key is still a duplicate.
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	resigned, err := types.SignBallot(types.NewBallot([]byte{0x01}, nil, nil), key)
	require.NoError(t, err)
	assert.ErrorIs(t, pool.Add(resigned), ErrKnownBallot)

	assert.Equal(t, 1, pool.Len())
}

func TestAddRejectsUnsignedBallot(t *testing.T) {
	pool := New(homomorphic.AcceptAll, 0)
	assert.ErrorIs(t, pool.Add(types.NewBallot([]byte{0x01}, nil, nil)), ErrInvalidBallot)
}

func TestAddRejectsFailedProof(t *testing.T) {
	rejectAll := homomorphic.VerifierFunc(func(ciphertext, proof []byte) bool { return false })
	pool := New(rejectAll, 0)
	assert.ErrorIs(t, pool.Add(signedBallot(t, []byte{0x01})), ErrInvalidBallot)
}

func TestAddRejectsWhenFull(t *testing.T) {
	pool := New(homomorphic.AcceptAll, 1)
	require.NoError(t, pool.Add(signedBallot(t, []byte{0x01})))
	assert.ErrorIs(t, pool.Add(signedBallot(t, []byte{0x02})), ErrPoolFull)
}

func TestRemoveMovesBallotsToSeen(t *testing.T) {
	pool := New(homomorphic.AcceptAll, 0)

	included := signedBallot(t, []byte{0x01})
	pending := signedBallot(t, []byte{0x02})
	require.NoError(t, pool.Add(included))
	require.NoError(t, pool.Add(pending))

	pool.Remove(types.Ballots{included})

	assert.Equal(t, 1, pool.Len())
	assert.True(t, pool.Has(included.Hash()))
	assert.True(t, pool.Has(pending.Hash()))

	// an included ballot gossiped again must not re-enter the pool.
	assert.ErrorIs(t, pool.Add(included), ErrKnownBallot)
}

func TestResetDropsChainBallots(t *testing.T) {
	pool := New(homomorphic.AcceptAll, 0)

	onChain := signedBallot(t, []byte{0x01})
	pending := signedBallot(t, []byte{0x02})
	require.NoError(t, pool.Add(onChain))
	require.NoError(t, pool.Add(pending))

	block := types.NewBlock(&types.Header{Number: 1, Proposer: "a:1"}, types.Ballots{onChain})
	pool.Reset(types.Blocks{block})

	require.Equal(t, 1, pool.Len())
	assert.Equal(t, pending.Hash(), pool.Pending(0)[0].Hash())
}

func TestNewBallotEvents(t *testing.T) {
	pool := New(homomorphic.AcceptAll, 0)

	events := make(chan NewBallotEvent, 1)
	sub := pool.SubscribeNewBallot(events)
	defer sub.Unsubscribe()

	ballot := signedBallot(t, []byte{0x01})
	require.NoError(t, pool.Add(ballot))

	ev := <-events
	assert.Equal(t, ballot.Hash(), ev.Ballot.Hash())
}
