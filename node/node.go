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

// Package node assembles the p2p host and the registered services into one
// runnable unit.
package node

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/provotum/node/log"
	"github.com/provotum/node/p2p"
)

var (
	errNodeRunning = errors.New("node already running")
	errNodeStopped = errors.New("node not started")
	errDatadirUsed = errors.New("datadir already used by another process")
	errDuplicate   = errors.New("duplicate service")
)

// Node is a container for blockchain services.
type Node struct {
	nodeMu sync.RWMutex
	cfg    Config

	hostCfg p2p.Config
	host    *p2p.Host

	serviceFuncs []ServiceConstructor     // Service constructors (in dependency order)
	services     map[reflect.Type]Service // Currently running services

	dirLock *flock.Flock // prevents concurrent use of instance directory

	doneCh chan struct{}
}

// New creates a node container ready for service registration.
func New(cfg Config, hostCfg p2p.Config) *Node {
	return &Node{
		cfg:     cfg,
		hostCfg: hostCfg,
	}
}

// Register injects a new service into the node's lifecycle. Constructors
// run in registration order when the node starts.
func (n *Node) Register(constructor ServiceConstructor) error {
	n.nodeMu.Lock()
	defer n.nodeMu.Unlock()

	if n.IsRunning() {
		return errNodeRunning
	}
	n.serviceFuncs = append(n.serviceFuncs, constructor)
	return nil
}

// Start initiates the node operations/services.
func (n *Node) Start() error {
	n.nodeMu.Lock()
	defer n.nodeMu.Unlock()

	if n.IsRunning() {
		return errNodeRunning
	}

	if err := n.openDataDir(); err != nil {
		return err
	}

	host := p2p.NewHost(n.hostCfg)
	if err := host.Start(); err != nil {
		n.closeDataDir()
		return err
	}

	ctx := &ServiceContext{
		cfg:      &n.cfg,
		services: make(map[reflect.Type]Service),
	}
	services := make(map[reflect.Type]Service)
	var order []reflect.Type
	for _, constructor := range n.serviceFuncs {
		service, err := constructor(ctx)
		if err != nil {
			host.Stop()
			n.closeDataDir()
			return err
		}
		kind := reflect.TypeOf(service)
		if _, exists := services[kind]; exists {
			host.Stop()
			n.closeDataDir()
			return errDuplicate
		}
		services[kind] = service
		ctx.services[kind] = service
		order = append(order, kind)
	}

	// Services start in registration order so dependents come up after the
	// services they were wired against.
	var started []reflect.Type
	for _, kind := range order {
		service := services[kind]
		if err := service.Start(host); err != nil {
			for _, k := range started {
				services[k].Stop()
			}
			host.Stop()
			n.closeDataDir()
			return err
		}
		started = append(started, kind)
	}

	n.host = host
	n.services = services
	n.doneCh = make(chan struct{})

	log.Info("Node started", zap.String("instance", n.cfg.name()))
	return nil
}

// Stop terminates the running services and the p2p host.
func (n *Node) Stop() error {
	n.nodeMu.Lock()
	defer n.nodeMu.Unlock()

	if !n.IsRunning() {
		return errNodeStopped
	}

	var failure error
	for kind, service := range n.services {
		if err := service.Stop(); err != nil {
			log.Error("Failed to stop service", zap.String("service", kind.String()), zap.Error(err))
			failure = err
		}
	}
	if err := n.host.Stop(); err != nil {
		failure = err
	}

	n.services = nil
	n.host = nil
	n.closeDataDir()
	close(n.doneCh)

	log.Info("Node stopped")
	return failure
}

// Wait blocks until the node is stopped.
func (n *Node) Wait() {
	n.nodeMu.RLock()
	if !n.IsRunning() {
		n.nodeMu.RUnlock()
		return
	}
	doneCh := n.doneCh
	n.nodeMu.RUnlock()

	<-doneCh
}

// Service retrieves a currently running service of a specific type.
func (n *Node) Service(service interface{}) error {
	n.nodeMu.RLock()
	defer n.nodeMu.RUnlock()

	if !n.IsRunning() {
		return errNodeStopped
	}
	element := reflect.ValueOf(service).Elem()
	if running, ok := n.services[element.Type()]; ok {
		element.Set(reflect.ValueOf(running))
		return nil
	}
	return errServiceUnknown
}

// Host returns the running p2p host.
func (n *Node) Host() *p2p.Host {
	n.nodeMu.RLock()
	defer n.nodeMu.RUnlock()
	return n.host
}

// IsRunning reports whether the node is running or not.
func (n *Node) IsRunning() bool {
	return n.host != nil
}

func (n *Node) openDataDir() error {
	if n.cfg.DataDir == "" {
		return nil // ephemeral
	}

	dir := n.cfg.InstanceDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	// Lock the instance directory to prevent concurrent use by another instance as well as
	// accidental use of the instance directory as a database.
	lock := flock.New(filepath.Join(dir, "LOCK"))
	locked, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !locked {
		return errDatadirUsed
	}
	n.dirLock = lock
	return nil
}

func (n *Node) closeDataDir() {
	if n.dirLock != nil {
		n.dirLock.Unlock()
		n.dirLock = nil
	}
}
