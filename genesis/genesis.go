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

package genesis

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/provotum/node/crypto"
	"github.com/provotum/node/types"
)

var (
	// ErrGenesisUnavailable is thrown if the genesis has not been provided.
	// There is no default genesis: the sealer set is the trust anchor of
	// the whole network and the operator must supply it explicitly.
	ErrGenesisUnavailable = errors.New("genesis not available")

	errMissingVersion    = errors.New("version parameter must be specified")
	errInvalidPeriod     = errors.New("clique block period must be greater than zero")
	errNoSealers         = errors.New("there must be at least a single sealer")
	errDuplicateSealer   = errors.New("duplicate sealer address")
	errInvalidLimit      = errors.New("signer limit must be at least one")
	errUnmintableNetwork = errors.New("signer limit must be smaller than the number of sealers")
	errUnknownKeyOwner   = errors.New("sealer key registered for an address outside the sealer set")
)

// CliqueConfig holds the clique specific consensus values.
type CliqueConfig struct {
	// BlockPeriod is the target spacing between blocks, in seconds.
	BlockPeriod uint64 `json:"block_period"`

	// SignerLimit is the number of blocks a sealer must wait out after
	// minting before it may mint again.
	SignerLimit uint64 `json:"signer_limit"`
}

// Genesis defines the initial conditions of a voting chain. Its canonical
// encoding hash is the chain identity: nodes configured with differing
// genesis documents never interoperate, by design.
type Genesis struct {
	Version string       `json:"version"`
	Clique  CliqueConfig `json:"clique"`

	// Sealer lists the authorized minting nodes by network address
	// (host:port). The list order fixes the round-robin rotation.
	Sealer []string `json:"sealer"`

	// SealerKeys optionally registers a compressed secp256k1 public key
	// (hex) per sealer address. With keys registered, block seals are
	// verified against them; without, the network runs in unsafe dev mode.
	SealerKeys map[string]string `json:"sealer_keys,omitempty"`

	// PublicKey optionally carries the election's Paillier public modulus
	// (hex) used to fold the running tally.
	PublicKey string `json:"public_key,omitempty"`
}

// extgenesis is the canonical encoding of the genesis document. Maps have
// no deterministic RLP form, so the sealer keys are flattened into a sorted
// "address=key" list.
type extgenesis struct {
	Version     string
	BlockPeriod uint64
	SignerLimit uint64
	Sealer      []string
	SealerKeys  []string
	PublicKey   string
}

// Load reads and validates a genesis document from the given JSON file.
func Load(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenesisUnavailable, err)
	}
	gen := new(Genesis)
	if err := json.Unmarshal(raw, gen); err != nil {
		return nil, fmt.Errorf("malformed genesis configuration %s: %v", path, err)
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return gen, nil
}

// Validate checks the genesis document for the invariants every node relies
// on. A node must refuse to start on an invalid genesis.
func (gen *Genesis) Validate() error {
	if len(gen.Version) == 0 {
		return errMissingVersion
	}
	if gen.Clique.BlockPeriod == 0 {
		return errInvalidPeriod
	}
	if len(gen.Sealer) == 0 {
		return errNoSealers
	}
	seen := make(map[string]bool, len(gen.Sealer))
	for _, addr := range gen.Sealer {
		if seen[addr] {
			return fmt.Errorf("%w: %s", errDuplicateSealer, addr)
		}
		seen[addr] = true
	}
	if gen.Clique.SignerLimit == 0 {
		return errInvalidLimit
	}
	// With signer_limit >= len(sealer) every height violates the cooldown
	// and the chain can never advance. Single sealer dev chains are exempt:
	// the cooldown is disabled there.
	if len(gen.Sealer) > 1 && gen.Clique.SignerLimit >= uint64(len(gen.Sealer)) {
		return errUnmintableNetwork
	}
	for addr := range gen.SealerKeys {
		if !seen[addr] {
			return fmt.Errorf("%w: %s", errUnknownKeyOwner, addr)
		}
	}
	return nil
}

// Hash returns the chain identity: the SHA-256 digest of the canonical
// encoding of the genesis document.
func (gen *Genesis) Hash() crypto.Hash {
	keys := make([]string, 0, len(gen.SealerKeys))
	for addr, key := range gen.SealerKeys {
		keys = append(keys, addr+"="+key)
	}
	sort.Strings(keys)

	return crypto.RLPHash(&extgenesis{
		Version:     gen.Version,
		BlockPeriod: gen.Clique.BlockPeriod,
		SignerLimit: gen.Clique.SignerLimit,
		Sealer:      gen.Sealer,
		SealerKeys:  keys,
		PublicKey:   gen.PublicKey,
	})
}

// ToBlock converts the genesis into the chain's first block. The block is
// deterministic: every node with the same genesis document derives the same
// genesis block hash. It carries the configuration hash as extra data and
// requires no seal, being the trust anchor distributed out-of-band.
func (gen *Genesis) ToBlock() *types.Block {
	identity := gen.Hash()
	head := &types.Header{
		Number:            0,
		PreviousBlockHash: crypto.Hash{},
		Time:              0,
		Proposer:          "",
		Extra:             identity.Bytes(),
	}
	return types.NewBlock(head, nil)
}

// BlockPeriod returns the block period as a duration.
func (gen *Genesis) BlockPeriod() time.Duration {
	return time.Duration(gen.Clique.BlockPeriod) * time.Second
}

// CooldownLimit returns the effective cooldown window in blocks. Single
// sealer chains run without a cooldown.
func (gen *Genesis) CooldownLimit() int {
	if len(gen.Sealer) == 1 {
		return 0
	}
	return int(gen.Clique.SignerLimit)
}

// IsSealer reports whether the given network address belongs to the
// authority set.
func (gen *Genesis) IsSealer(addr string) bool {
	return gen.SealerIndex(addr) >= 0
}

// SealerIndex returns the position of the given address in the rotation,
// or -1 if the address is not a sealer.
func (gen *Genesis) SealerIndex(addr string) int {
	for i, sealer := range gen.Sealer {
		if sealer == addr {
			return i
		}
	}
	return -1
}

// SealerPublicKeys decodes the registered sealer keys. An empty map with no
// error means the network runs without seal verification keys.
func (gen *Genesis) SealerPublicKeys() (map[string]*ecdsa.PublicKey, error) {
	keys := make(map[string]*ecdsa.PublicKey, len(gen.SealerKeys))
	for addr, hexKey := range gen.SealerKeys {
		pub, err := crypto.HexToPubKey(hexKey)
		if err != nil {
			return nil, fmt.Errorf("malformed sealer key for %s: %v", addr, err)
		}
		keys[addr] = pub
	}
	return keys, nil
}
