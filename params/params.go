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

// Package params holds protocol wide constants.
package params

import "time"

const (
	// ClientVersion is reported in status responses.
	ClientVersion = "provotum/0.2.0"

	// SyncProtocolID is the libp2p stream protocol for direct sync
	// exchanges (ping, chain length query, chain pull).
	SyncProtocolID = "/provotum/sync/1.0.0"

	// BlockTopic is the gossip topic for freshly minted blocks.
	BlockTopic = "provotum/blocks"

	// BallotTopic is the gossip topic for submitted ballots.
	BallotTopic = "provotum/ballots"
)

const (
	// BootstrapTimeout bounds the whole initial catch-up: length queries
	// plus the chain pull. On expiry the node proceeds with its local
	// chain.
	BootstrapTimeout = 30 * time.Second

	// RequestTimeout bounds a single request/response exchange with one
	// peer.
	RequestTimeout = 10 * time.Second

	// HeartbeatInterval is the idle interval between pings to known
	// sealers.
	HeartbeatInterval = 15 * time.Second

	// RetryBackoffBase is the initial retry delay for an unreachable
	// sealer; doubled per consecutive failure up to RetryBackoffMax.
	RetryBackoffBase = 2 * time.Second
	RetryBackoffMax  = 2 * time.Minute
)
