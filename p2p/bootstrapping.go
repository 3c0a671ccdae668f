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
	"context"
	"errors"
	"fmt"
	"sync"

	libp2p_host "github.com/libp2p/go-libp2p-host"
	pstore "github.com/libp2p/go-libp2p-peerstore"
	"go.uber.org/zap"

	"github.com/provotum/node/log"
)

var errNoBootstrapPeers = errors.New("not enough bootstrap peers")

// bootstrapConnect dials the configured bootstrap nodes. Dials run
// concurrently: one hanging peer must not burn the shared context for the
// rest. The attempt fails only when every single dial failed.
func bootstrapConnect(ctx context.Context, host libp2p_host.Host, peers []pstore.PeerInfo) error {
	if len(peers) == 0 {
		return errNoBootstrapPeers
	}

	log.Info("Connecting to bootstrap nodes", zap.Int("count", len(peers)))

	errs := make(chan error, len(peers))
	var wg sync.WaitGroup
	for _, p := range peers {
		wg.Add(1)
		go func(p pstore.PeerInfo) {
			defer wg.Done()

			host.Peerstore().AddAddrs(p.ID, p.Addrs, pstore.PermanentAddrTTL)
			if err := host.Connect(ctx, p); err != nil {
				log.Warn("Bootstrap dial failed", zap.String("peer", p.ID.Pretty()), zap.Error(err))
				errs <- err
				return
			}
			log.Info("Bootstrapped with peer", zap.String("peer", p.ID.Pretty()))
		}(p)
	}
	wg.Wait()
	close(errs)

	count := 0
	var err error
	for err = range errs {
		count++
	}
	if count == len(peers) {
		return fmt.Errorf("all %d bootstrap dials failed: %v", len(peers), err)
	}
	return nil
}
