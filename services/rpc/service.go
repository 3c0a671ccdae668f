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

// Package rpc exposes the node's HTTP surface: ballot submission and
// read-only chain inspection.
package rpc

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/provotum/node/chain"
	"github.com/provotum/node/log"
	"github.com/provotum/node/mempool"
	"github.com/provotum/node/p2p"
)

// Config holds the RPC server options.
type Config struct {
	// ListenAddr is the HTTP bind address, e.g. ":8545". Empty disables
	// the server.
	ListenAddr string
}

// Service serves the HTTP API.
type Service struct {
	cfg   Config
	chain *chain.Store
	pool  *mempool.Pool

	server *http.Server
}

// New returns an RPC service over the given chain and pool.
func New(cfg Config, chainStore *chain.Store, pool *mempool.Pool) *Service {
	return &Service{cfg: cfg, chain: chainStore, pool: pool}
}

// Start binds the HTTP listener.
func (s *Service) Start(host *p2p.Host) error {
	if s.cfg.ListenAddr == "" {
		return nil
	}

	router := mux.NewRouter()
	router.HandleFunc("/ballots", s.handleSubmitBallot).Methods(http.MethodPost)
	router.HandleFunc("/chain/length", s.handleChainLength).Methods(http.MethodGet)
	router.HandleFunc("/chain/blocks/{height:[0-9]+}", s.handleBlock).Methods(http.MethodGet)
	router.HandleFunc("/chain/tally", s.handleTally).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info("RPC server listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("RPC server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the HTTP listener down, letting inflight requests finish.
func (s *Service) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
