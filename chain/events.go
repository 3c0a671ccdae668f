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

import "github.com/provotum/node/types"

// NewHeadEvent is posted when a block is appended to the chain, locally
// minted or received from a peer.
type NewHeadEvent struct {
	Block *types.Block
}

// ChainReplacedEvent is posted when the local chain was replaced wholesale
// by a longer peer chain.
type ChainReplacedEvent struct {
	OldHead *types.Block
	NewHead *types.Block
}
