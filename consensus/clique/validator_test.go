package clique

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provotum/node/crypto"
	"github.com/provotum/node/crypto/homomorphic"
	"github.com/provotum/node/crypto/signer"
	"github.com/provotum/node/genesis"
	"github.com/provotum/node/types"
)

func newTestValidator(t *testing.T, sealers []string, limit uint64) (*Validator, *genesis.Genesis) {
	gen := testGenesis(sealers, limit)
	require.NoError(t, gen.Validate())
	return NewValidator(NewScheduler(gen), signer.NewUnsafeSigner(), homomorphic.AcceptAll), gen
}

func mintBlock(t *testing.T, parent *types.Block, proposer string, key *ecdsa.PrivateKey, ballots types.Ballots) *types.Block {
	block := types.NewBlock(&types.Header{
		Number:            parent.Number() + 1,
		PreviousBlockHash: parent.Hash(),
		Time:              parent.Time() + 1,
		Proposer:          proposer,
	}, ballots)
	sealed, err := signer.NewUnsafeSigner().SignBlock(block, key)
	require.NoError(t, err)
	return sealed
}

func signedBallot(t *testing.T, ciphertext []byte) *types.Ballot {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	ballot, err := types.SignBallot(types.NewBallot(ciphertext, nil, nil), key)
	require.NoError(t, err)
	return ballot
}

func TestValidateAcceptsWellFormedBlock(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)
	key, _ := crypto.GenerateKey()

	tip := gen.ToBlock()
	block := mintBlock(t, tip, "b:1", key, types.Ballots{signedBallot(t, []byte{0x01})})

	assert.NoError(t, v.Validate(block, tip, nil))
}

func TestValidateRejectsWrongHeight(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)
	key, _ := crypto.GenerateKey()

	tip := gen.ToBlock()
	block1 := mintBlock(t, tip, "b:1", key, nil)
	block2 := mintBlock(t, block1, "c:1", key, nil)

	// block2 skips a height relative to the genesis tip.
	assert.ErrorIs(t, v.Validate(block2, tip, nil), ErrInvalidHeight)
}

func TestValidateRejectsUnknownAncestor(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)
	key, _ := crypto.GenerateKey()

	tip := gen.ToBlock()
	orphan := types.NewBlock(&types.Header{
		Number:            1,
		PreviousBlockHash: crypto.SHA256([]byte("elsewhere")),
		Proposer:          "b:1",
	}, nil)
	sealed, err := signer.NewUnsafeSigner().SignBlock(orphan, key)
	require.NoError(t, err)

	assert.ErrorIs(t, v.Validate(sealed, tip, nil), ErrUnknownAncestor)
}

func TestValidateRejectsUnauthorizedSigner(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)
	key, _ := crypto.GenerateKey()

	tip := gen.ToBlock()
	block := mintBlock(t, tip, "intruder:1", key, nil)

	assert.ErrorIs(t, v.Validate(block, tip, nil), ErrUnauthorizedSigner)
}

func TestValidateRejectsRecentlySigned(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)
	key, _ := crypto.GenerateKey()

	tip := gen.ToBlock()
	block := mintBlock(t, tip, "b:1", key, nil)

	assert.ErrorIs(t, v.Validate(block, tip, []string{"a:1", "b:1"}), ErrRecentlySigned)
}

func TestValidateRejectsMissingSeal(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)

	tip := gen.ToBlock()
	unsealed := types.NewBlock(&types.Header{
		Number:            1,
		PreviousBlockHash: tip.Hash(),
		Proposer:          "b:1",
	}, nil)

	assert.ErrorIs(t, v.Validate(unsealed, tip, nil), ErrInvalidSeal)
}

func TestValidateRejectsUnsignedBallot(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)
	key, _ := crypto.GenerateKey()

	tip := gen.ToBlock()
	block := mintBlock(t, tip, "b:1", key, types.Ballots{types.NewBallot([]byte{0x01}, nil, nil)})

	assert.ErrorIs(t, v.Validate(block, tip, nil), ErrInvalidBallot)
}

func TestValidateRejectsTamperedBallots(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)
	key, _ := crypto.GenerateKey()

	tip := gen.ToBlock()
	block := mintBlock(t, tip, "b:1", key, types.Ballots{signedBallot(t, []byte{0x01})})

	// re-encode the block with an extra ballot the header does not cover.
	var raw struct {
		Header    *types.Header
		Ballots   types.Ballots
		Signature []byte
	}
	data, err := rlp.EncodeToBytes(block)
	require.NoError(t, err)
	require.NoError(t, rlp.DecodeBytes(data, &raw))
	raw.Ballots = append(raw.Ballots, signedBallot(t, []byte{0x02}))

	data, err = rlp.EncodeToBytes(&raw)
	require.NoError(t, err)
	tampered := new(types.Block)
	require.NoError(t, rlp.DecodeBytes(data, tampered))

	assert.ErrorIs(t, v.Validate(tampered, tip, nil), ErrBallotHashMismatch)
}

func TestValidateChain(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)
	key, _ := crypto.GenerateKey()

	g := gen.ToBlock()
	b1 := mintBlock(t, g, "b:1", key, nil)
	b2 := mintBlock(t, b1, "c:1", key, nil)
	b3 := mintBlock(t, b2, "a:1", key, nil)

	assert.NoError(t, v.ValidateChain(types.Blocks{g, b1, b2, b3}, g.Hash()))
}

func TestValidateChainEnforcesCooldown(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)
	key, _ := crypto.GenerateKey()

	g := gen.ToBlock()
	b1 := mintBlock(t, g, "b:1", key, nil)
	b2 := mintBlock(t, b1, "b:1", key, nil)

	assert.ErrorIs(t, v.ValidateChain(types.Blocks{g, b1, b2}, g.Hash()), ErrRecentlySigned)
}

func TestValidateChainRejectsForeignGenesis(t *testing.T) {
	v, gen := newTestValidator(t, []string{"a:1", "b:1", "c:1"}, 2)

	other := testGenesis([]string{"x:1", "y:1", "z:1"}, 2)
	assert.ErrorIs(t, v.ValidateChain(types.Blocks{other.ToBlock()}, gen.ToBlock().Hash()), ErrGenesisMismatch)
	assert.ErrorIs(t, v.ValidateChain(nil, gen.ToBlock().Hash()), ErrGenesisMismatch)
}
