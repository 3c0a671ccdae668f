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

package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"

	libp2pcrypto "github.com/libp2p/go-libp2p-crypto"
	pstore "github.com/libp2p/go-libp2p-peerstore"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/provotum/node/chain"
	"github.com/provotum/node/consensus/clique"
	"github.com/provotum/node/crypto"
	"github.com/provotum/node/crypto/homomorphic"
	"github.com/provotum/node/crypto/signer"
	"github.com/provotum/node/database"
	"github.com/provotum/node/genesis"
	"github.com/provotum/node/log"
	"github.com/provotum/node/mempool"
	"github.com/provotum/node/node"
	"github.com/provotum/node/p2p"
	"github.com/provotum/node/services/minting"
	"github.com/provotum/node/services/rpc"
	syncsvc "github.com/provotum/node/services/sync"
)

var (
	// cfgFile represents the config file path.
	cfgFile string

	// verbosity sets the verbosity level.
	verbosity string

	// dataDir is the data directory for the databases.
	dataDir string

	// genesisFile is the genesis configuration path.
	genesisFile string

	// nodeKey is the p2p host key file.
	nodeKey string

	// sealerAddress is this node's sealer identity from the genesis
	// configuration. Empty runs the node as an observer.
	sealerAddress string

	// sealerKeyFile holds the secp256k1 key used to seal blocks.
	sealerKeyFile string

	// isBootstrappingNode node performs bootstrapping operations.
	isBootstrappingNode bool

	// bootstrappingNodes contains the initial list of bootstrapping nodes.
	bootstrappingNodes = make([]string, 0)

	// listenPort represents the port used for incoming connections.
	listenPort int

	// listenIP represents the ip used for incoming connections.
	listenIP string

	// rpcAddr is the HTTP API bind address; empty disables the API.
	rpcAddr string

	// maxBlockBallots caps ballots per minted block.
	maxBlockBallots int

	// pullMode periodically pulls peer chains on top of gossip imports.
	pullMode bool

	// unsafeDev skips seal verification against registered sealer keys.
	unsafeDev bool
)

const rootCmdLongDesc = `Runs a permissioned proof-of-authority node that records encrypted
ballots on a replicated chain. Sealers registered in the genesis
configuration take turns minting blocks; every node keeps a running
homomorphic tally of the recorded ballots.`

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "provotum",
	Short: "Proof-of-authority voting chain node",
	Long:  rootCmdLongDesc,
	Args:  cobra.NoArgs,
	RunE:  runNode,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.provotum.yaml)")
	rootCmd.Flags().StringVar(&verbosity, "verbosity", "info", "sets the logger verbosity level ('debug', 'info', 'warn' ,'error', 'dpanic', 'panic', 'fatal'")
	rootCmd.Flags().StringVar(&dataDir, "datadir", "", "data directory for the databases")
	rootCmd.Flags().StringVar(&genesisFile, "genesis", "", "path of the genesis configuration file")
	rootCmd.Flags().StringVar(&nodeKey, "identity", "", "path of the p2p host key file")
	rootCmd.Flags().StringVar(&sealerAddress, "sealer", "", "this node's sealer address from the genesis configuration")
	rootCmd.Flags().StringVar(&sealerKeyFile, "sealerkey", "", "path of the secp256k1 key used to seal blocks")
	rootCmd.Flags().BoolVar(&isBootstrappingNode, "bootnode", false, "node provides initial configuration information to newly joining nodes so that they may successfully join the overlay network")
	rootCmd.Flags().StringSliceVar(&bootstrappingNodes, "bootnodes", nil, "multiaddrs of the bootstrap nodes")
	rootCmd.Flags().IntVarP(&listenPort, "port", "p", 32000, "port for incoming connections")
	rootCmd.Flags().StringVar(&listenIP, "ip", "0.0.0.0", "ip used for incoming connections")
	rootCmd.Flags().StringVar(&rpcAddr, "rpcaddr", ":8545", "HTTP API bind address (empty disables the API)")
	rootCmd.Flags().IntVar(&maxBlockBallots, "maxblockballots", minting.DefaultMaxBallotsPerBlock, "maximum ballots per minted block")
	rootCmd.Flags().BoolVar(&pullMode, "pull", false, "periodically pull peer chains on top of gossip imports")
	rootCmd.Flags().BoolVar(&unsafeDev, "unsafe-dev", false, "accept structurally valid seals without registered sealer keys")

	rootCmd.MarkFlagRequired("genesis")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".provotum" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".provotum")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	if err := log.SetVerbosity(verbosity); err != nil {
		return err
	}

	stack, store, db := makeNode()
	startNode(stack)
	stack.Wait()
	store.Stop()
	return db.Close()
}

func makeNode() (*node.Node, *chain.Store, database.Database) {
	gen := loadGenesis()

	nodeCfg := node.Config{DataDir: dataDir}
	hostCfg := makeHostConfig()

	db := openDatabase(nodeCfg)

	sched := clique.NewScheduler(gen)
	blockSigner := makeSigner(gen)
	adder, verifier := makeScheme(gen)

	validator := clique.NewValidator(sched, blockSigner, verifier)
	store, err := chain.New(db, gen, validator, chain.NewAggregator(adder))
	if err != nil {
		log.Fatal("Failed to open the chain store", zap.Error(err))
	}
	pool := mempool.New(verifier, 0)

	stack := node.New(nodeCfg, hostCfg)

	syncService := syncsvc.New(syncsvc.Config{SealerAddress: sealerAddress, Pull: pullMode}, gen, store, pool)
	if err := stack.Register(func(ctx *node.ServiceContext) (node.Service, error) {
		return syncService, nil
	}); err != nil {
		log.Fatal("Failed to register the sync service", zap.Error(err))
	}

	if sealerAddress != "" {
		registerMintingService(stack, gen, sched, store, pool, blockSigner, syncService)
	}

	if err := stack.Register(func(ctx *node.ServiceContext) (node.Service, error) {
		return rpc.New(rpc.Config{ListenAddr: rpcAddr}, store, pool), nil
	}); err != nil {
		log.Fatal("Failed to register the rpc service", zap.Error(err))
	}

	return stack, store, db
}

func registerMintingService(stack *node.Node, gen *genesis.Genesis, sched *clique.Scheduler, store *chain.Store, pool *mempool.Pool, blockSigner signer.Signer, broadcaster minting.Broadcaster) {
	if sealerKeyFile == "" {
		log.Fatal("Sealing requires --sealerkey")
	}
	key, err := crypto.LoadECDSA(sealerKeyFile)
	if err != nil {
		log.Fatal("Failed to load the sealer key", zap.Error(err))
	}

	if err := stack.Register(func(ctx *node.ServiceContext) (node.Service, error) {
		return minting.New(minting.Config{
			SealerAddress:      sealerAddress,
			PrivateKey:         key,
			MaxBallotsPerBlock: maxBlockBallots,
		}, gen, sched, store, pool, blockSigner, broadcaster)
	}); err != nil {
		log.Fatal("Failed to register the minting service", zap.Error(err))
	}
}

func loadGenesis() *genesis.Genesis {
	if genesisFile == "" {
		log.Fatal("The genesis configuration is mandatory, use --genesis")
	}
	gen, err := genesis.Load(genesisFile)
	if err != nil {
		log.Fatal("Failed to load the genesis configuration", zap.Error(err))
	}
	if err := gen.Validate(); err != nil {
		log.Fatal("Invalid genesis configuration", zap.Error(err))
	}
	if sealerAddress != "" && !gen.IsSealer(sealerAddress) {
		log.Fatal("Sealer address is not registered in the genesis configuration", zap.String("sealer", sealerAddress))
	}
	return gen
}

func openDatabase(cfg node.Config) database.Database {
	if cfg.DataDir == "" {
		log.Warn("No data directory, running with an in-memory chain")
		return database.NewMemDatabase()
	}
	db, err := database.NewLDBDatabase(cfg.ResolvePath("chaindata"), 128, 1024)
	if err != nil {
		log.Fatal("Failed to open the chain database", zap.Error(err))
	}
	return db
}

// makeSigner picks the seal verification mode: production nodes verify
// seals against the sealer keys registered in genesis, dev networks without
// registered keys accept any structurally valid seal.
func makeSigner(gen *genesis.Genesis) signer.Signer {
	if unsafeDev || len(gen.SealerKeys) == 0 {
		if !unsafeDev {
			log.Warn("Genesis registers no sealer keys, seals are only checked structurally")
		}
		return signer.NewUnsafeSigner()
	}
	keys, err := gen.SealerPublicKeys()
	if err != nil {
		log.Fatal("Invalid sealer keys in the genesis configuration", zap.Error(err))
	}
	return signer.NewProductionSigner(keys)
}

// makeScheme derives the tally scheme from the election public key in the
// genesis configuration.
func makeScheme(gen *genesis.Genesis) (homomorphic.Adder, homomorphic.BallotVerifier) {
	if gen.PublicKey == "" {
		log.Warn("Genesis carries no election public key, ballots are counted without a ciphertext tally")
		return homomorphic.NopAdder{}, homomorphic.AcceptAll
	}
	scheme, err := homomorphic.NewPaillierVerifier(gen.PublicKey)
	if err != nil {
		log.Fatal("Invalid election public key in the genesis configuration", zap.Error(err))
	}
	return scheme, scheme
}

func makeHostConfig() p2p.Config {
	cfg := p2p.DefaultConfig
	cfg.IsBootstrappingNode = isBootstrappingNode
	cfg.ListenAddr = fmt.Sprintf("/ip4/%v/tcp/%v", listenIP, listenPort)

	setBootstrappingNodes(&cfg)

	if nodeKey == "" {
		privKey, _, err := libp2pcrypto.GenerateKeyPair(libp2pcrypto.RSA, 2048)
		if err != nil {
			log.Fatal("Failed to generate the host key", zap.Error(err))
		}
		cfg.PrivateKey = &privKey
	} else {
		raw, err := ioutil.ReadFile(nodeKey)
		if err != nil {
			log.Fatal("Failed to read the host key file", zap.Error(err))
		}
		privKey, err := libp2pcrypto.UnmarshalPrivateKey(raw)
		if err != nil {
			log.Fatal("Failed to parse the host key file", zap.Error(err))
		}
		cfg.PrivateKey = &privKey
	}

	return cfg
}

// setBootstrappingNodes creates a list of bootstrap nodes from the command line
// flags.
func setBootstrappingNodes(cfg *p2p.Config) {
	cfg.BootstrappingNodes = make([]pstore.PeerInfo, 0, len(bootstrappingNodes))
	for _, url := range bootstrappingNodes {
		peerInfo, err := p2p.ParseURL(url)
		if err != nil {
			log.Error("Invalid Bootstrap url", zap.String("url", url), zap.Error(err))
			continue
		}
		cfg.BootstrappingNodes = append(cfg.BootstrappingNodes, *peerInfo)
	}
}

func startNode(stack *node.Node) {
	log.Info("Starting Node")
	if err := stack.Start(); err != nil {
		log.Fatal("Error starting protocol stack", zap.Error(err))
	}
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		<-sigCh
		log.Info("Got interrupt, shutting down...")
		go stack.Stop()
		for i := 10; i > 0; i-- {
			<-sigCh
			if i > 1 {
				log.Info("Already shutting down, interrupt more to panic.", zap.Int("times", i-1))
			}
		}
	}()
}
