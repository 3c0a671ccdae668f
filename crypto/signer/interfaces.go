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

	"github.com/provotum/node/types"
)

// Signer seals blocks on behalf of the local sealer and authenticates the
// seals of remote blocks.
type Signer interface {
	// SignBlock returns a copy of the block sealed with the given key.
	SignBlock(block *types.Block, prv *ecdsa.PrivateKey) (*types.Block, error)

	// VerifySeal checks the block's seal signature against its proposer.
	// The genesis block carries no seal and is never passed here.
	VerifySeal(block *types.Block) error
}
