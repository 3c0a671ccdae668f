package clique

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/provotum/node/genesis"
)

func testGenesis(sealers []string, limit uint64) *genesis.Genesis {
	return &genesis.Genesis{
		Version: "1.0",
		Clique:  genesis.CliqueConfig{BlockPeriod: 1, SignerLimit: limit},
		Sealer:  sealers,
	}
}

func TestInTurnRotation(t *testing.T) {
	sched := NewScheduler(testGenesis([]string{"a:1", "b:1", "c:1"}, 1))

	assert.Equal(t, "b:1", sched.InTurn(1))
	assert.Equal(t, "c:1", sched.InTurn(2))
	assert.Equal(t, "a:1", sched.InTurn(3))
	// wraps around the sealer list
	assert.Equal(t, "b:1", sched.InTurn(4))
	assert.Equal(t, "a:1", sched.InTurn(6))
}

func TestIsAuthorized(t *testing.T) {
	sched := NewScheduler(testGenesis([]string{"a:1", "b:1"}, 1))

	assert.True(t, sched.IsAuthorized("a:1"))
	assert.True(t, sched.IsAuthorized("b:1"))
	assert.False(t, sched.IsAuthorized("d:1"))
	assert.False(t, sched.IsAuthorized(""))
}

func TestEligibilityCooldown(t *testing.T) {
	sched := NewScheduler(testGenesis([]string{"a:1", "b:1", "c:1"}, 2))

	assert.True(t, sched.IsEligible("a:1", nil))
	assert.False(t, sched.IsEligible("a:1", []string{"a:1", "b:1"}))
	assert.False(t, sched.IsEligible("b:1", []string{"a:1", "b:1"}))
	assert.True(t, sched.IsEligible("c:1", []string{"a:1", "b:1"}))
}

func TestSingleSealerHasNoCooldown(t *testing.T) {
	sched := NewScheduler(testGenesis([]string{"solo:1"}, 1))

	assert.Equal(t, 0, sched.SignerLimit())
	assert.True(t, sched.IsEligible("solo:1", nil))
	assert.Equal(t, "solo:1", sched.InTurn(42))
}

func TestCoLeaderWindow(t *testing.T) {
	// height 3 -> in-turn a (3 % 3 == 0); co-leaders are the next
	// signer_limit rotation slots: b and c.
	sched := NewScheduler(testGenesis([]string{"a:1", "b:1", "c:1"}, 2))

	assert.False(t, sched.IsCoLeader("a:1", 3))
	assert.True(t, sched.IsCoLeader("b:1", 3))
	assert.True(t, sched.IsCoLeader("c:1", 3))
}

func TestCoLeaderWindowWrapsAround(t *testing.T) {
	// height 2 -> in-turn c (last slot); the window wraps to a and b.
	sched := NewScheduler(testGenesis([]string{"a:1", "b:1", "c:1"}, 2))

	assert.True(t, sched.IsCoLeader("a:1", 2))
	assert.True(t, sched.IsCoLeader("b:1", 2))
	assert.False(t, sched.IsCoLeader("c:1", 2))
}
