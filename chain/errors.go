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

package chain

import "errors"

var (
	// ErrKnownBlock is returned when the appended block is already the
	// chain head. Duplicate announcements are expected and harmless.
	ErrKnownBlock = errors.New("block already known")

	// ErrHeightOccupied is returned when a different block already holds
	// the candidate's height. The chain keeps the first block it accepted.
	ErrHeightOccupied = errors.New("height already occupied")

	// ErrChainTooShort is returned when a replacement chain does not
	// strictly exceed the local chain length.
	ErrChainTooShort = errors.New("replacement chain not longer than local chain")

	// ErrGenesisMismatch is returned when a replacement chain or the
	// persisted database is rooted in a different genesis block.
	ErrGenesisMismatch = errors.New("genesis block mismatch")

	// ErrCorruptDatabase is returned when the persisted chain fails
	// revalidation on startup. Operator intervention is required.
	ErrCorruptDatabase = errors.New("chain database corrupted")
)
