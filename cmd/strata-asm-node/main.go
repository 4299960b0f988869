// Copyright 2025 Strata Contributors
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcutil"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/strata-rollup/strata-asm/pkg/asm"
	"github.com/strata-rollup/strata-asm/pkg/btcrpc"
	"github.com/strata-rollup/strata-asm/pkg/chainworker"
	"github.com/strata-rollup/strata-asm/pkg/chainworker/elclient"
	"github.com/strata-rollup/strata-asm/pkg/checkpoint"
	"github.com/strata-rollup/strata-asm/pkg/checkpoint/nativevk"
	"github.com/strata-rollup/strata-asm/pkg/kvstore"
	"github.com/strata-rollup/strata-asm/pkg/l1chain"
	"github.com/strata-rollup/strata-asm/pkg/l1reader"
	"github.com/strata-rollup/strata-asm/pkg/proofgraph"
	"github.com/strata-rollup/strata-asm/pkg/prooftask"
	"github.com/strata-rollup/strata-asm/pkg/prooftask/pqstore"
	"github.com/strata-rollup/strata-asm/pkg/rollupcfg"
	"github.com/strata-rollup/strata-asm/pkg/slotrng"
	"github.com/strata-rollup/strata-asm/pkg/subprotocol"
	"github.com/strata-rollup/strata-asm/pkg/subprotocol/bridge"
	"github.com/strata-rollup/strata-asm/pkg/subprotocol/core"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		processConfigPath = flag.String("process-config", "config.yaml", "path to the process config YAML file")
		rollupParamsPath  = flag.String("rollup-params", "", "path to the rollup params JSON file (overrides the process config's own path)")
	)
	flag.Parse()

	log.Printf("starting strata-asm-node")

	pcfg, err := rollupcfg.LoadProcessConfig(*processConfigPath)
	if err != nil {
		log.Fatalf("load process config: %v", err)
	}
	paramsPath := pcfg.RollupParamsPath
	if *rollupParamsPath != "" {
		paramsPath = *rollupParamsPath
	}
	params, err := rollupcfg.LoadRollupParams(paramsPath)
	if err != nil {
		log.Fatalf("load rollup params: %v", err)
	}
	if err := params.CheckWellFormed(); err != nil {
		log.Fatalf("rollup params failed well-formedness check: %v", err)
	}
	log.Printf("loaded rollup params for %q (core id %d, bridge id %d)", params.RollupName, params.CoreSubprotocolID, params.BridgeSubprotocolID)

	netParams := &chaincfg.TestNet3Params
	if pcfg.Environment == "mainnet" {
		netParams = &chaincfg.MainNetParams
	}
	bridgeAddr, err := btcutil.DecodeAddress(params.BridgeTaprootAddress, netParams)
	if err != nil {
		log.Fatalf("decode bridge taproot address: %v", err)
	}
	bridgePkScript, err := txscript.PayToAddrScript(bridgeAddr)
	if err != nil {
		log.Fatalf("build bridge pkscript: %v", err)
	}

	nativeBackend := nativevk.New()
	if err := nativeBackend.Initialize(); err != nil {
		log.Fatalf("initialize native checkpoint backend: %v", err)
	}
	backends := checkpoint.BackendSet{Native: nativeBackend}

	coreSub := core.New(params.CoreSubprotocolID, params, backends)
	bridgeSub := bridge.New(params.BridgeSubprotocolID, params, bridgePkScript)
	registry, err := subprotocol.NewRegistry(coreSub, bridgeSub)
	if err != nil {
		log.Fatalf("build subprotocol registry: %v", err)
	}

	filterCfg := l1chain.NewFilterConfigFromParams(params, bridgePkScript)

	genesisHash, err := chainhash.NewHashFromStr(pcfg.L1.GenesisBlockHash)
	if err != nil {
		log.Fatalf("parse genesis block hash: %v", err)
	}
	genesisBlock := slotrng.L1BlockCommitment{Height: params.GenesisL1Height, BlkID: [32]byte(*genesisHash)}
	state := asm.Genesis(registry, genesisBlock, pcfg.L1.GenesisBits)
	log.Printf("anchor state machine initialized at genesis height %d", genesisBlock.Height)

	dataDir := pcfg.Storage.KVPath
	if dataDir == "" {
		dataDir = "./data/strata-asm"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("create storage dir: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	proofDB, closeProofDB := openProofDatabase(pcfg, dataDir)
	defer closeProofDB()

	outputStore, err := kvstore.Open("chain-outputs", dataDir)
	if err != nil {
		log.Fatalf("open chain output store: %v", err)
	}
	defer outputStore.Close()

	l1Client := btcrpc.New(pcfg.L1.RPCURL, pcfg.L1.RPCUser, pcfg.L1.RPCPass)
	readerCfg := l1reader.Config{
		MaxReorgDepth: params.L1ReorgSafeDepth,
		PollInterval:  pcfg.L1.PollInterval.Std(),
		EventBuffer:   256,
		RetryBase:     pcfg.L1.RetryBaseDelay.Std(),
		RetryRatio:    1.5,
		RetryMaxTries: pcfg.L1.RetryMaxAttempts,
	}
	reader := l1reader.New(readerCfg, l1Client, genesisBlock.Height, genesisBlock.BlkID, log.New(log.Writer(), "[l1reader] ", log.LstdFlags))

	schedulerCfg := prooftask.Config{
		WorkersPerHost: map[proofgraph.Host]int{},
		LoopInterval:   pcfg.Scheduler.LoopInterval.Std(),
	}
	for host, n := range pcfg.Scheduler.WorkersPerHost {
		schedulerCfg.WorkersPerHost[proofgraph.Host(host)] = n
	}
	// No Prover backends are registered here: proof generation runs in a
	// separate prover fleet reached over its own transport, out of scope
	// for this process. The manager still tracks and serves dependency
	// graphs for whichever external prover submits receipts into proofDB.
	scheduler := prooftask.NewManager(schedulerCfg, proofDB, map[proofgraph.Host]prooftask.Prover{}, log.New(log.Writer(), "[prooftask] ", log.LstdFlags))

	// The chain worker's execution engine, block source, and state
	// transition function are all injected: execution-environment
	// integration is the concern of a separate EL-facing process. Wiring
	// chainworker.Worker here establishes the fork-choice coupling point a
	// real deployment's EL adapter and block source plug into.
	blockStore := newKVOutputStore(outputStore)
	engine, closeEngine := newExecEngine(ctx, pcfg)
	defer closeEngine()
	worker := chainworker.New(noBlockSource{}, blockStore, rejectAllStf, engine, slotrng.L2BlockCommitment{})

	if pcfg.Metrics.Enabled {
		startMetricsServer(pcfg.Metrics.Addr)
	}

	if err := reader.Start(ctx); err != nil {
		log.Fatalf("start l1 reader: %v", err)
	}
	go scheduler.Run(ctx)
	go worker.Run(ctx)
	go runASMLoop(ctx, reader, registry, filterCfg, &state)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down strata-asm-node")
	cancel()
	reader.Stop()
	log.Printf("strata-asm-node stopped")
}

func openProofDatabase(pcfg *rollupcfg.ProcessConfig, dataDir string) (prooftask.ProofDatabase, func()) {
	if pcfg.Storage.Backend == rollupcfg.StorageBackendPostgres {
		store, err := pqstore.Open(pcfg.Storage.PostgresDSN, 8)
		if err != nil {
			log.Fatalf("open postgres proof database: %v", err)
		}
		return store, func() { _ = store.Close() }
	}
	db, err := dbm.NewDB("proof-receipts", dbm.GoLevelDBBackend, dataDir)
	if err != nil {
		log.Fatalf("open proof receipt database: %v", err)
	}
	return prooftask.NewKVProofDatabase(db), func() { _ = db.Close() }
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
}

// runASMLoop folds every l1reader.Event into the Anchor State Machine,
// logging rejections rather than treating them as fatal: a rejected block
// leaves state unchanged and the reader continues from its own tracked tip.
func runASMLoop(ctx context.Context, reader *l1reader.Reader, registry *subprotocol.Registry, filterCfg *l1chain.FilterConfig, state *asm.AnchorState) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-reader.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case l1reader.EventBlockData:
				next, _, err := asm.Apply(*state, ev.Block, registry, filterCfg, nil)
				if err != nil {
					log.Printf("block at height %d rejected: %v", ev.Height, err)
					continue
				}
				*state = next
				log.Printf("applied block at height %d, tip now %x", ev.Height, state.Chain.Tip.BlkID)
			case l1reader.EventRevertTo:
				log.Printf("l1 reorg: reverted to height %d; ASM state must be replayed from a persisted snapshot at or before this height", ev.Height)
			case l1reader.EventDeepReorg:
				log.Printf("l1 deep reorg below tracked depth at height %d: operator intervention required", ev.Height)
			}
		}
	}
}

// kvOutputStore adapts a kvstore.Store into chainworker.OutputStore with
// JSON-encoded values, keyed by block id.
type kvOutputStore struct {
	kv *kvstore.Store
}

func newKVOutputStore(kv *kvstore.Store) *kvOutputStore { return &kvOutputStore{kv: kv} }

func (s *kvOutputStore) Get(blkid [32]byte) (chainworker.BlockOutput, bool, error) {
	raw, err := s.kv.Get(blkid[:])
	if err != nil {
		return chainworker.BlockOutput{}, false, fmt.Errorf("kvOutputStore: get: %w", err)
	}
	if raw == nil {
		return chainworker.BlockOutput{}, false, nil
	}
	var out chainworker.BlockOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return chainworker.BlockOutput{}, false, fmt.Errorf("kvOutputStore: decode: %w", err)
	}
	return out, true, nil
}

func (s *kvOutputStore) Put(out chainworker.BlockOutput) error {
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("kvOutputStore: encode: %w", err)
	}
	if err := s.kv.Set(out.Commitment.BlkID[:], raw); err != nil {
		return fmt.Errorf("kvOutputStore: set: %w", err)
	}
	return nil
}

// noBlockSource is a placeholder for the execution-layer block/bundle
// source a real deployment wires in; this process establishes the chain
// worker's coupling point without owning that concern.
type noBlockSource struct{}

func (noBlockSource) FetchBundle(_ context.Context, _ slotrng.L2BlockCommitment) (chainworker.BlockBundle, bool, error) {
	return chainworker.BlockBundle{}, false, nil
}

// newExecEngine dials the configured Engine API endpoint if one is set,
// otherwise falls back to a no-op controller. A deployment without an EL
// endpoint configured still runs the ASM/L1 ingestion side of this process;
// it just never advances any execution client's fork choice.
func newExecEngine(ctx context.Context, pcfg *rollupcfg.ProcessConfig) (chainworker.ExecEngineController, func()) {
	if pcfg.EL.EngineURL == "" {
		log.Printf("no EL engine_url configured; fork-choice updates will be no-ops")
		return noopEngine{}, func() {}
	}
	client, err := elclient.Dial(ctx, pcfg.EL.EngineURL)
	if err != nil {
		log.Fatalf("dial execution engine at %s: %v", pcfg.EL.EngineURL, err)
	}
	log.Printf("connected to execution engine at %s", pcfg.EL.EngineURL)
	return client, client.Close
}

type noopEngine struct{}

func (noopEngine) UpdateSafeBlock(_ context.Context, _ [32]byte) error      { return nil }
func (noopEngine) UpdateFinalizedBlock(_ context.Context, _ [32]byte) error { return nil }

func rejectAllStf(_ chainworker.BlockOutput, _ chainworker.BlockBundle) (chainworker.BlockOutput, error) {
	return chainworker.BlockOutput{}, fmt.Errorf("strata-asm-node: no execution-layer state transition function configured")
}
