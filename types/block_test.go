package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provotum/node/crypto"
)

func testHeader() *Header {
	return &Header{
		Number:            7,
		PreviousBlockHash: crypto.SHA256([]byte("parent")),
		Time:              1530000000,
		Proposer:          "10.0.0.1:32000",
	}
}

func TestNewBlockDerivesBallotHash(t *testing.T) {
	empty := NewBlock(testHeader(), nil)
	assert.Equal(t, EmptyBallotHash, empty.Header().BallotHash)

	ballots := Ballots{NewBallot([]byte{0x01}, []byte{0x02}, nil)}
	full := NewBlock(testHeader(), ballots)
	assert.Equal(t, crypto.RLPHash(ballots), full.Header().BallotHash)
	assert.NotEqual(t, empty.Header().BallotHash, full.Header().BallotHash)
}

func TestBlockEncodingRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	ballot, err := SignBallot(NewBallot([]byte{0x0a}, []byte{0x0b}, nil), key)
	require.NoError(t, err)

	sig, err := crypto.Sign(crypto.SHA256([]byte("seal")), key)
	require.NoError(t, err)
	block := NewBlock(testHeader(), Ballots{ballot}).WithSignature(sig)

	data, err := rlp.EncodeToBytes(block)
	require.NoError(t, err)

	decoded := new(Block)
	require.NoError(t, rlp.DecodeBytes(data, decoded))

	assert.Equal(t, block.Hash(), decoded.Hash())
	assert.Equal(t, block.Number(), decoded.Number())
	assert.Equal(t, block.Proposer(), decoded.Proposer())
	assert.Equal(t, block.Signature(), decoded.Signature())
	require.Len(t, decoded.Ballots(), 1)
	assert.Equal(t, ballot.Hash(), decoded.Ballots()[0].Hash())
}

func TestSealHashExcludesSignature(t *testing.T) {
	block := NewBlock(testHeader(), nil)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.Sign(block.SealHash(), key)
	require.NoError(t, err)
	sealed := block.WithSignature(sig)

	// sealing changes the block hash but not the signed digest.
	assert.Equal(t, block.SealHash(), sealed.SealHash())
	assert.NotEqual(t, block.Hash(), sealed.Hash())
}

func TestBlockHashIsStable(t *testing.T) {
	a := NewBlock(testHeader(), nil)
	b := NewBlock(testHeader(), nil)
	assert.Equal(t, a.Hash(), b.Hash())

	changed := testHeader()
	changed.Number++
	assert.NotEqual(t, a.Hash(), NewBlock(changed, nil).Hash())
}

func TestBallotLookup(t *testing.T) {
	first := NewBallot([]byte{0x01}, nil, nil)
	second := NewBallot([]byte{0x02}, nil, nil)
	block := NewBlock(testHeader(), Ballots{first, second})

	assert.Equal(t, first.Hash(), block.Ballot(first.Hash()).Hash())
	assert.Nil(t, block.Ballot(crypto.SHA256([]byte("absent"))))
}
