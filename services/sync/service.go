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

// Package sync keeps the local chain converged with the sealer network:
// gossip import of blocks and ballots, direct chain pulls when the node
// falls behind, and sealer liveness tracking.
package sync

import (
	"context"
	"errors"
	gosync "sync"

	"github.com/ethereum/go-ethereum/rlp"
	net "github.com/libp2p/go-libp2p-net"
	peer "github.com/libp2p/go-libp2p-peer"
	protocol "github.com/libp2p/go-libp2p-protocol"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"go.uber.org/zap"

	"github.com/provotum/node/chain"
	"github.com/provotum/node/consensus/clique"
	"github.com/provotum/node/genesis"
	"github.com/provotum/node/log"
	"github.com/provotum/node/mempool"
	"github.com/provotum/node/p2p"
	"github.com/provotum/node/params"
	"github.com/provotum/node/types"
)

// Config holds the sync service options.
type Config struct {
	// SealerAddress is this node's genesis sealer identity. Empty for
	// observer nodes.
	SealerAddress string

	// Pull switches the node to periodic chain pulls on top of the
	// announcement driven imports. Useful behind lossy gossip links.
	Pull bool
}

// Service wires the chain store and the ballot pool into the p2p layer.
type Service struct {
	cfg   Config
	gen   *genesis.Genesis
	chain *chain.Store
	pool  *mempool.Pool

	host *p2p.Host

	blockSub  *pubsub.Subscription
	ballotSub *pubsub.Subscription

	ctx    context.Context
	cancel context.CancelFunc

	catchupCh chan struct{}
	wg        gosync.WaitGroup
}

// New returns a sync service over the given chain and pool.
func New(cfg Config, gen *genesis.Genesis, chainStore *chain.Store, pool *mempool.Pool) *Service {
	return &Service{
		cfg:       cfg,
		gen:       gen,
		chain:     chainStore,
		pool:      pool,
		catchupCh: make(chan struct{}, 1),
	}
}

// Start registers the stream handler, joins the gossip topics and launches
// the processing loops. The initial catch-up runs in the background so a
// lone first sealer is not blocked by unreachable peers.
func (s *Service) Start(host *p2p.Host) error {
	s.host = host
	s.ctx, s.cancel = context.WithCancel(context.Background())

	host.SetStreamHandler(protocol.ID(params.SyncProtocolID), s.handleStream)

	for _, addr := range s.gen.Sealer {
		if addr != s.cfg.SealerAddress {
			host.Registry().Track(addr)
		}
	}

	blockSub, err := host.PubSub.Subscribe(params.BlockTopic)
	if err != nil {
		return err
	}
	s.blockSub = blockSub

	ballotSub, err := host.PubSub.Subscribe(params.BallotTopic)
	if err != nil {
		return err
	}
	s.ballotSub = ballotSub

	s.wg.Add(4)
	go s.blockLoop()
	go s.ballotLoop()
	go s.ballotGossipLoop()
	go s.syncLoop()

	s.triggerCatchup()
	return nil
}

// Stop tears down the loops. The p2p host itself is owned by the node.
func (s *Service) Stop() error {
	s.cancel()
	s.blockSub.Cancel()
	s.ballotSub.Cancel()
	s.wg.Wait()
	log.Info("Sync service stopped")
	return nil
}

// BroadcastBlock publishes a locally minted block on the gossip topic.
func (s *Service) BroadcastBlock(block *types.Block) error {
	env, err := NewEnvelope(MsgBlockAnnounce, s.cfg.SealerAddress, &BlockAnnounce{Block: block})
	if err != nil {
		return err
	}
	data, err := rlp.EncodeToBytes(env)
	if err != nil {
		return err
	}
	return s.host.PubSub.Publish(params.BlockTopic, data)
}

// BroadcastBallot publishes a ballot on the gossip topic.
func (s *Service) BroadcastBallot(ballot *types.Ballot) error {
	env, err := NewEnvelope(MsgBallotAnnounce, s.cfg.SealerAddress, &BallotAnnounce{Ballot: ballot})
	if err != nil {
		return err
	}
	data, err := rlp.EncodeToBytes(env)
	if err != nil {
		return err
	}
	return s.host.PubSub.Publish(params.BallotTopic, data)
}

func (s *Service) triggerCatchup() {
	select {
	case s.catchupCh <- struct{}{}:
	default:
	}
}

// blockLoop imports announced blocks off the gossip topic.
func (s *Service) blockLoop() {
	defer s.wg.Done()
	for {
		msg, err := s.blockSub.Next(s.ctx)
		if err != nil {
			return
		}
		if msg.GetFrom() == s.host.ID() {
			continue
		}
		env := new(Envelope)
		if err := rlp.DecodeBytes(msg.Data, env); err != nil {
			log.Debug("Dropping malformed block announce", zap.Error(err))
			continue
		}
		s.bind(env.From, msg.GetFrom())

		var announce BlockAnnounce
		if err := env.Decode(&announce); err != nil || announce.Block == nil {
			log.Debug("Dropping malformed block announce payload", zap.Error(err))
			continue
		}
		s.importBlock(announce.Block)
	}
}

// importBlock appends an announced block at the tip. A block too far ahead
// or extending a fork means the announcer holds a chain at least as long as
// ours plus one, which schedules a chain pull; anything else invalid is
// dropped.
func (s *Service) importBlock(block *types.Block) {
	err := s.chain.Append(block)
	switch {
	case err == nil:
		s.pool.Remove(block.Ballots())
	case errors.Is(err, chain.ErrKnownBlock):
		// duplicate announce, nothing to do.
	case errors.Is(err, chain.ErrHeightOccupied):
		log.Debug("Ignoring competing block at occupied height", zap.Uint64("number", block.Number()))
	case errors.Is(err, clique.ErrUnknownAncestor):
		log.Info("Received block extending a forked chain, scheduling catch-up", zap.Uint64("number", block.Number()), zap.Uint64("local", s.chain.CurrentBlock().Number()))
		s.triggerCatchup()
	case block.Number() > s.chain.CurrentBlock().Number()+1:
		log.Info("Received block ahead of local chain, scheduling catch-up", zap.Uint64("number", block.Number()), zap.Uint64("local", s.chain.CurrentBlock().Number()))
		s.triggerCatchup()
	default:
		log.Warn("Rejected announced block", zap.Uint64("number", block.Number()), zap.Error(err))
	}
}

// ballotLoop feeds announced ballots into the pool.
func (s *Service) ballotLoop() {
	defer s.wg.Done()
	for {
		msg, err := s.ballotSub.Next(s.ctx)
		if err != nil {
			return
		}
		if msg.GetFrom() == s.host.ID() {
			continue
		}
		env := new(Envelope)
		if err := rlp.DecodeBytes(msg.Data, env); err != nil {
			continue
		}
		s.bind(env.From, msg.GetFrom())

		var announce BallotAnnounce
		if err := env.Decode(&announce); err != nil || announce.Ballot == nil {
			continue
		}
		if err := s.pool.Add(announce.Ballot); err != nil && !errors.Is(err, mempool.ErrKnownBallot) {
			log.Debug("Rejected announced ballot", zap.Error(err))
		}
	}
}

// ballotGossipLoop republishes ballots that entered the pool locally, e.g.
// through the RPC surface.
func (s *Service) ballotGossipLoop() {
	defer s.wg.Done()

	events := make(chan mempool.NewBallotEvent, 64)
	sub := s.pool.SubscribeNewBallot(events)
	defer sub.Unsubscribe()

	for {
		select {
		case ev := <-events:
			if err := s.BroadcastBallot(ev.Ballot); err != nil {
				log.Debug("Ballot broadcast failed", zap.Error(err))
			}
		case <-sub.Err():
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) bind(address string, id peer.ID) {
	if address == "" || address == s.cfg.SealerAddress {
		return
	}
	if s.gen.IsSealer(address) {
		s.host.Registry().Bind(address, id)
	}
}

// handleStream serves the request/response side of the sync protocol. One
// stream carries any number of exchanges.
func (s *Service) handleStream(stream net.Stream) {
	defer stream.Close()
	remote := stream.Conn().RemotePeer()

	for {
		env, err := ReadEnvelope(stream)
		if err != nil {
			return
		}
		s.bind(env.From, remote)

		switch env.Code {
		case MsgPing:
			s.reply(stream, env, MsgPong, &Pong{})

		case MsgChainLengthQuery:
			s.reply(stream, env, MsgChainLengthReply, &ChainLengthReply{
				Length:      s.chain.Length(),
				GenesisHash: s.chain.GenesisHash(),
			})

		case MsgChainPullRequest:
			s.reply(stream, env, MsgChainPullReply, &ChainPullReply{Blocks: s.chain.FullChain()})

		default:
			log.Debug("Ignoring unexpected sync message", zap.Uint64("code", env.Code))
		}
	}
}

func (s *Service) reply(stream net.Stream, req *Envelope, code uint64, body interface{}) {
	env, err := req.Reply(code, s.cfg.SealerAddress, body)
	if err != nil {
		log.Error("Failed to encode reply", zap.Uint64("code", code), zap.Error(err))
		return
	}
	if err := WriteEnvelope(stream, env); err != nil {
		log.Debug("Failed to write reply", zap.Uint64("code", code), zap.Error(err))
	}
}

// request performs one request/response exchange on a fresh stream.
func (s *Service) request(ctx context.Context, id peer.ID, code uint64, body interface{}) (*Envelope, error) {
	env, err := NewEnvelope(code, s.cfg.SealerAddress, body)
	if err != nil {
		return nil, err
	}

	stream, err := s.host.NewStream(ctx, id, protocol.ID(params.SyncProtocolID))
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		stream.SetDeadline(deadline)
	}
	if err := WriteEnvelope(stream, env); err != nil {
		return nil, err
	}
	return ReadEnvelope(stream)
}
