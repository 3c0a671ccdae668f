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

package p2p

import (
	"sync"
	"time"

	peer "github.com/libp2p/go-libp2p-peer"

	"github.com/provotum/node/params"
)

// SealerInfo tracks the liveness of one fellow sealer. Sealers are named
// by the host:port identity registered in genesis; the network identity is
// learned from the From field of signed traffic, since a libp2p peer ID is
// not derivable from a socket address.
type SealerInfo struct {
	Address      string
	ID           peer.ID
	LastSeen     time.Time
	FailureCount int
	NextRetry    time.Time
}

// Bound reports whether the sealer's network identity is known yet.
func (s *SealerInfo) Bound() bool { return s.ID != "" }

// Registry is the address book mapping genesis sealer identities to libp2p
// peers, with exponential backoff for unreachable sealers.
type Registry struct {
	mu      sync.RWMutex
	sealers map[string]*SealerInfo
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sealers: make(map[string]*SealerInfo)}
}

// Track registers a sealer address so liveness is tracked even before its
// peer identity is known.
func (r *Registry) Track(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sealers[address]; !ok {
		r.sealers[address] = &SealerInfo{Address: address}
	}
}

// Bind records that traffic claiming the given sealer address arrived from
// the given peer. Later messages rebind, so a sealer coming back under a
// new network identity heals automatically.
func (r *Registry) Bind(address string, id peer.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sealers[address]
	if !ok {
		info = &SealerInfo{Address: address}
		r.sealers[address] = info
	}
	info.ID = id
	info.LastSeen = time.Now()
	info.FailureCount = 0
	info.NextRetry = time.Time{}
}

// Lookup returns the peer bound to the sealer address.
func (r *Registry) Lookup(address string) (peer.ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.sealers[address]
	if !ok || !info.Bound() {
		return "", false
	}
	return info.ID, true
}

// MarkSuccess resets the sealer's failure state after a completed exchange.
func (r *Registry) MarkSuccess(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.sealers[address]; ok {
		info.LastSeen = time.Now()
		info.FailureCount = 0
		info.NextRetry = time.Time{}
	}
}

// MarkFailure records a failed exchange and schedules the next retry with
// exponential backoff.
func (r *Registry) MarkFailure(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sealers[address]
	if !ok {
		return
	}
	info.FailureCount++
	backoff := params.RetryBackoffBase << uint(info.FailureCount-1)
	if backoff > params.RetryBackoffMax || backoff <= 0 {
		backoff = params.RetryBackoffMax
	}
	info.NextRetry = time.Now().Add(backoff)
}

// Due returns the bound sealers whose retry window has passed, ready for
// an exchange attempt.
func (r *Registry) Due() []SealerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now()
	due := make([]SealerInfo, 0, len(r.sealers))
	for _, info := range r.sealers {
		if info.Bound() && !info.NextRetry.After(now) {
			due = append(due, *info)
		}
	}
	return due
}

// Sealers returns a snapshot of every tracked sealer.
func (r *Registry) Sealers() []SealerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SealerInfo, 0, len(r.sealers))
	for _, info := range r.sealers {
		out = append(out, *info)
	}
	return out
}
