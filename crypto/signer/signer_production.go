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

package signer

import (
	"crypto/ecdsa"

	"github.com/provotum/node/crypto"
	"github.com/provotum/node/types"
)

// ProductionSigner verifies seals against the sealer public keys registered
// in the genesis configuration. A block sealed by anyone other than the key
// holder of its claimed proposer is rejected.
type ProductionSigner struct {
	keys map[string]*ecdsa.PublicKey // sealer network address -> public key
}

// NewProductionSigner builds a signer from the registered sealer keys.
func NewProductionSigner(keys map[string]*ecdsa.PublicKey) *ProductionSigner {
	cpy := make(map[string]*ecdsa.PublicKey, len(keys))
	for addr, key := range keys {
		cpy[addr] = key
	}
	return &ProductionSigner{keys: cpy}
}

// SignBlock returns a copy of the block sealed with the given key.
func (s *ProductionSigner) SignBlock(block *types.Block, prv *ecdsa.PrivateKey) (*types.Block, error) {
	sig, err := crypto.Sign(block.SealHash(), prv)
	if err != nil {
		return nil, err
	}
	return block.WithSignature(sig), nil
}

// VerifySeal checks the block's seal signature against the registered key
// of its proposer.
func (s *ProductionSigner) VerifySeal(block *types.Block) error {
	sig := block.Signature()
	if len(sig) == 0 {
		return ErrMissingSignature
	}
	pub, ok := s.keys[block.Proposer()]
	if !ok {
		return ErrUnknownSealer
	}
	if !crypto.VerifySignature(pub, block.SealHash(), sig) {
		return ErrSealMismatch
	}
	return nil
}
