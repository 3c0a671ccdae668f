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

// UnsafeSigner only checks that a seal is structurally valid: present and
// recoverable to some public key. Meant for dev networks whose genesis
// configuration registers no sealer keys.
type UnsafeSigner struct{}

// NewUnsafeSigner returns a structural-only signer.
func NewUnsafeSigner() UnsafeSigner { return UnsafeSigner{} }

// SignBlock returns a copy of the block sealed with the given key.
func (UnsafeSigner) SignBlock(block *types.Block, prv *ecdsa.PrivateKey) (*types.Block, error) {
	sig, err := crypto.Sign(block.SealHash(), prv)
	if err != nil {
		return nil, err
	}
	return block.WithSignature(sig), nil
}

// VerifySeal checks the block carries a recoverable seal signature.
func (UnsafeSigner) VerifySeal(block *types.Block) error {
	sig := block.Signature()
	if len(sig) == 0 {
		return ErrMissingSignature
	}
	if _, err := crypto.SigToPub(block.SealHash(), sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
