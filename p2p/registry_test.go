package p2p

import (
	"testing"
	"time"

	peer "github.com/libp2p/go-libp2p-peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAndLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Track("10.0.0.1:32000")

	_, ok := reg.Lookup("10.0.0.1:32000")
	assert.False(t, ok)

	reg.Bind("10.0.0.1:32000", peer.ID("peer-a"))
	id, ok := reg.Lookup("10.0.0.1:32000")
	require.True(t, ok)
	assert.Equal(t, peer.ID("peer-a"), id)

	// traffic from a new network identity rebinds the sealer.
	reg.Bind("10.0.0.1:32000", peer.ID("peer-b"))
	id, _ = reg.Lookup("10.0.0.1:32000")
	assert.Equal(t, peer.ID("peer-b"), id)
}

func TestBindUntrackedAddress(t *testing.T) {
	reg := NewRegistry()
	reg.Bind("10.0.0.2:32000", peer.ID("peer-a"))

	id, ok := reg.Lookup("10.0.0.2:32000")
	require.True(t, ok)
	assert.Equal(t, peer.ID("peer-a"), id)
}

func TestFailureBackoff(t *testing.T) {
	reg := NewRegistry()
	reg.Bind("10.0.0.1:32000", peer.ID("peer-a"))

	require.Len(t, reg.Due(), 1)

	reg.MarkFailure("10.0.0.1:32000")
	assert.Empty(t, reg.Due())

	sealers := reg.Sealers()
	require.Len(t, sealers, 1)
	assert.Equal(t, 1, sealers[0].FailureCount)
	first := sealers[0].NextRetry

	reg.MarkFailure("10.0.0.1:32000")
	sealers = reg.Sealers()
	assert.Equal(t, 2, sealers[0].FailureCount)
	// backoff doubles per consecutive failure
	assert.True(t, sealers[0].NextRetry.After(first))

	reg.MarkSuccess("10.0.0.1:32000")
	sealers = reg.Sealers()
	assert.Zero(t, sealers[0].FailureCount)
	assert.True(t, sealers[0].NextRetry.IsZero())
	assert.Len(t, reg.Due(), 1)
}

func TestBackoffIsCapped(t *testing.T) {
	reg := NewRegistry()
	reg.Bind("10.0.0.1:32000", peer.ID("peer-a"))

	for i := 0; i < 64; i++ {
		reg.MarkFailure("10.0.0.1:32000")
	}
	sealers := reg.Sealers()
	require.Len(t, sealers, 1)
	assert.True(t, sealers[0].NextRetry.Before(time.Now().Add(3*time.Minute)))
}

func TestDueSkipsUnboundSealers(t *testing.T) {
	reg := NewRegistry()
	reg.Track("10.0.0.1:32000")
	reg.Track("10.0.0.2:32000")
	reg.Bind("10.0.0.2:32000", peer.ID("peer-b"))

	due := reg.Due()
	require.Len(t, due, 1)
	assert.Equal(t, "10.0.0.2:32000", due[0].Address)
}
