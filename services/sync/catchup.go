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

package sync

import (
	"context"
	"errors"
	"time"

	peer "github.com/libp2p/go-libp2p-peer"
	"go.uber.org/zap"

	"github.com/provotum/node/chain"
	"github.com/provotum/node/log"
	"github.com/provotum/node/params"
)

// syncLoop runs the catch-up procedure whenever one is scheduled, plus a
// periodic heartbeat to every reachable sealer. Catch-up triggers coalesce:
// falling behind during a catch-up schedules exactly one more round.
func (s *Service) syncLoop() {
	defer s.wg.Done()

	heartbeat := time.NewTicker(params.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-s.catchupCh:
			s.catchUp()
		case <-heartbeat.C:
			s.pingSealers()
			if s.cfg.Pull {
				s.triggerCatchup()
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// syncPeer is one catch-up candidate. The address is set for genesis
// sealers so exchange outcomes feed their liveness state; plain connected
// peers carry no address and no backoff bookkeeping.
type syncPeer struct {
	id      peer.ID
	address string
}

// catchUp queries reachable peers for their chain length and pulls the
// longest offered chain if it beats the local one. The whole procedure is
// bounded by a single timeout; on expiry the node proceeds with whatever
// chain it has. A lone first sealer therefore comes up on its own.
func (s *Service) catchUp() {
	ctx, cancel := context.WithTimeout(s.ctx, params.BootstrapTimeout)
	defer cancel()

	var (
		bestPeer   *syncPeer
		bestLength = s.chain.Length()
	)
	for _, p := range s.syncPeers() {
		length, err := s.queryLength(ctx, p.id)
		s.finishExchange(p, err)
		if err != nil {
			log.Debug("Chain length query failed", zap.String("peer", p.id.Pretty()), zap.Error(err))
			continue
		}
		if length > bestLength {
			p := p
			bestPeer, bestLength = &p, length
		}
	}
	if bestPeer == nil {
		log.Info("Local chain is up to date", zap.Uint64("blocks", s.chain.Length()))
		return
	}

	log.Info("Pulling longer chain", zap.String("peer", bestPeer.id.Pretty()), zap.Uint64("local", s.chain.Length()), zap.Uint64("remote", bestLength))
	err := s.pullChain(ctx, bestPeer.id)
	s.finishExchange(*bestPeer, err)
	if err != nil {
		log.Warn("Chain pull failed", zap.String("peer", bestPeer.id.Pretty()), zap.Error(err))
	}
}

// finishExchange feeds the outcome of one exchange into the sealer's
// liveness state: failures push the sealer into exponential backoff,
// successes reset it.
func (s *Service) finishExchange(p syncPeer, err error) {
	if p.address == "" {
		return
	}
	if err != nil {
		s.host.Registry().MarkFailure(p.address)
		return
	}
	s.host.Registry().MarkSuccess(p.address)
}

// syncPeers returns the peers worth querying: every sealer with a known
// network identity, plus every currently connected peer. An observer node
// has no sealer bindings of its own and relies on the latter.
func (s *Service) syncPeers() []syncPeer {
	seen := make(map[peer.ID]struct{})
	var peers []syncPeer

	for _, info := range s.host.Registry().Due() {
		if _, ok := seen[info.ID]; !ok {
			seen[info.ID] = struct{}{}
			peers = append(peers, syncPeer{id: info.ID, address: info.Address})
		}
	}
	if s.host.Host == nil {
		// no transport before Start.
		return peers
	}
	for _, id := range s.host.Network().Peers() {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			peers = append(peers, syncPeer{id: id})
		}
	}
	return peers
}

// queryLength asks one peer for its chain length, rejecting peers on a
// different genesis.
func (s *Service) queryLength(ctx context.Context, id peer.ID) (uint64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, params.RequestTimeout)
	defer cancel()

	env, err := s.request(reqCtx, id, MsgChainLengthQuery, &ChainLengthQuery{})
	if err != nil {
		return 0, err
	}
	if env.Code != MsgChainLengthReply {
		return 0, errInvalidMsgCode
	}
	var reply ChainLengthReply
	if err := env.Decode(&reply); err != nil {
		return 0, err
	}
	if reply.GenesisHash != s.chain.GenesisHash() {
		return 0, chain.ErrGenesisMismatch
	}
	return reply.Length, nil
}

// pullChain fetches the peer's complete chain and hands it to the store
// for wholesale replacement. The store revalidates everything; a peer
// serving a bogus chain costs us bandwidth, never correctness.
func (s *Service) pullChain(ctx context.Context, id peer.ID) error {
	env, err := s.request(ctx, id, MsgChainPullRequest, &ChainPullRequest{})
	if err != nil {
		return err
	}
	if env.Code != MsgChainPullReply {
		return errInvalidMsgCode
	}
	var reply ChainPullReply
	if err := env.Decode(&reply); err != nil {
		return err
	}

	err = s.chain.ReplaceIfLonger(reply.Blocks)
	switch {
	case err == nil:
		s.pool.Reset(reply.Blocks)
		log.Info("Chain replaced", zap.Uint64("blocks", uint64(len(reply.Blocks))))
		return nil
	case errors.Is(err, chain.ErrChainTooShort):
		// raced with local progress, the local chain caught up meanwhile.
		return nil
	default:
		return err
	}
}

// pingSealers keeps sealer liveness fresh. Failures back the sealer off
// exponentially so a downed peer is not hammered.
func (s *Service) pingSealers() {
	for _, info := range s.host.Registry().Due() {
		info := info
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			ctx, cancel := context.WithTimeout(s.ctx, params.RequestTimeout)
			defer cancel()

			env, err := s.request(ctx, info.ID, MsgPing, &Ping{})
			if err != nil || env.Code != MsgPong {
				s.host.Registry().MarkFailure(info.Address)
				return
			}
			s.host.Registry().MarkSuccess(info.Address)
		}()
	}
}
