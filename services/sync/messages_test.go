package sync

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provotum/node/crypto"
	"github.com/provotum/node/genesis"
	"github.com/provotum/node/types"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(MsgChainLengthQuery, "10.0.0.1:32000", &ChainLengthQuery{})
	require.NoError(t, err)
	require.NotEmpty(t, env.ID)

	var buf bytes.Buffer
	require.NoError(t, WriteEnvelope(&buf, env))

	decoded, err := ReadEnvelope(&buf)
	require.NoError(t, err)
	assert.Equal(t, env.Code, decoded.Code)
	assert.Equal(t, env.ID, decoded.ID)
	assert.Equal(t, env.From, decoded.From)
}

func TestEnvelopeStreamCarriesMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	for _, code := range []uint64{MsgPing, MsgChainLengthQuery, MsgChainPullRequest} {
		env, err := NewEnvelope(code, "", &Ping{})
		require.NoError(t, err)
		require.NoError(t, WriteEnvelope(&buf, env))
	}

	for _, want := range []uint64{MsgPing, MsgChainLengthQuery, MsgChainPullRequest} {
		env, err := ReadEnvelope(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, env.Code)
	}
}

func TestReadEnvelopeRejectsUnknownCode(t *testing.T) {
	env, err := NewEnvelope(MsgBallotAnnounce+1, "", &Ping{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteEnvelope(&buf, env))

	_, err = ReadEnvelope(&buf)
	assert.Equal(t, errInvalidMsgCode, err)
}

func TestReplyKeepsExchangeID(t *testing.T) {
	req, err := NewEnvelope(MsgChainLengthQuery, "10.0.0.1:32000", &ChainLengthQuery{})
	require.NoError(t, err)

	reply, err := req.Reply(MsgChainLengthReply, "10.0.0.2:32000", &ChainLengthReply{Length: 9})
	require.NoError(t, err)
	assert.Equal(t, req.ID, reply.ID)
	assert.Equal(t, "10.0.0.2:32000", reply.From)

	var body ChainLengthReply
	require.NoError(t, reply.Decode(&body))
	assert.Equal(t, uint64(9), body.Length)
}

func TestChainPullReplyRoundTrip(t *testing.T) {
	gen := &genesis.Genesis{
		Version: "1.0",
		Clique:  genesis.CliqueConfig{BlockPeriod: 1, SignerLimit: 2},
		Sealer:  []string{"a:1", "b:1", "c:1"},
	}
	g := gen.ToBlock()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.Sign(crypto.SHA256([]byte("seal")), key)
	require.NoError(t, err)
	b1 := types.NewBlock(&types.Header{
		Number:            1,
		PreviousBlockHash: g.Hash(),
		Proposer:          "b:1",
	}, nil).WithSignature(sig)

	env, err := NewEnvelope(MsgChainPullReply, "b:1", &ChainPullReply{Blocks: types.Blocks{g, b1}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteEnvelope(&buf, env))
	decoded, err := ReadEnvelope(&buf)
	require.NoError(t, err)

	var reply ChainPullReply
	require.NoError(t, decoded.Decode(&reply))
	require.Len(t, reply.Blocks, 2)
	assert.Equal(t, g.Hash(), reply.Blocks[0].Hash())
	assert.Equal(t, b1.Hash(), reply.Blocks[1].Hash())
}
