package minting

import "crypto/ecdsa"

// DefaultMaxBallotsPerBlock bounds block size on busy election days.
const DefaultMaxBallotsPerBlock = 512

// Config holds the minting service options.
type Config struct {
	// SealerAddress is this node's genesis sealer identity.
	SealerAddress string

	// PrivateKey seals minted blocks.
	PrivateKey *ecdsa.PrivateKey

	// MaxBallotsPerBlock caps how many pending ballots one block drains.
	MaxBallotsPerBlock int
}
