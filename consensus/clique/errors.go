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

package clique

import "errors"

var (
	// ErrInvalidHeight is returned when a candidate block does not sit
	// exactly one height above the chain tip.
	ErrInvalidHeight = errors.New("block height does not extend the chain tip")

	// ErrUnknownAncestor is returned when a candidate block references a
	// previous block hash other than the chain tip's.
	ErrUnknownAncestor = errors.New("previous block hash does not match the chain tip")

	// ErrUnauthorizedSigner is returned if a block's proposer is not part
	// of the genesis sealer set.
	ErrUnauthorizedSigner = errors.New("unauthorized sealer")

	// ErrRecentlySigned is returned if a block's proposer already minted
	// one of the signer_limit most recent blocks.
	ErrRecentlySigned = errors.New("sealer minted recently and is in cooldown")

	// ErrInvalidSeal is returned if the block's seal signature does not
	// verify against its proposer.
	ErrInvalidSeal = errors.New("invalid block seal")

	// ErrBallotHashMismatch is returned if the header's ballot root does
	// not match the ballots carried by the block body.
	ErrBallotHashMismatch = errors.New("ballot root mismatch")

	// ErrInvalidBallot is returned if any ballot in the block fails its
	// well-formedness proof or voter signature. One bad ballot rejects the
	// whole block; no partial acceptance.
	ErrInvalidBallot = errors.New("invalid ballot")

	// ErrGenesisMismatch is returned when a candidate chain is rooted in a
	// different genesis configuration. Such a peer is permanently
	// incompatible, not merely behind.
	ErrGenesisMismatch = errors.New("genesis configuration hash mismatch")
)
