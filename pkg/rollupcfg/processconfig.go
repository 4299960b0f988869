// Copyright 2025 Strata Contributors
//
// Process-level configuration: everything that is NOT part of the
// consensus-critical RollupParams (network endpoints, worker pool sizes,
// storage backend selection, log/metrics settings). Loaded from YAML with
// ${VAR} environment substitution.
package rollupcfg

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it can be written as "15s"/"5m" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// StorageBackend selects which concrete store backs the proof/chain
// databases.
type StorageBackend string

const (
	StorageBackendKV       StorageBackend = "kv"       // cometbft-db backed
	StorageBackendPostgres StorageBackend = "postgres" // lib/pq backed
)

// ProcessConfig is the ambient configuration for a strata-asm-node process.
type ProcessConfig struct {
	Environment string `yaml:"environment"`

	RollupParamsPath string `yaml:"rollup_params_path"`

	L1 L1Settings `yaml:"l1"`
	EL ELSettings  `yaml:"el"`

	Storage StorageSettings `yaml:"storage"`

	Scheduler SchedulerSettings `yaml:"scheduler"`

	Metrics MetricsSettings `yaml:"metrics"`
}

type L1Settings struct {
	RPCURL        string   `yaml:"rpc_url"`
	RPCUser       string   `yaml:"rpc_user"`
	RPCPass       string   `yaml:"rpc_pass"`
	PollInterval  Duration `yaml:"poll_interval"`
	RetryBaseDelay  Duration `yaml:"retry_base_delay"`
	RetryMaxAttempts int     `yaml:"retry_max_attempts"`

	// GenesisBlockHash and GenesisBits seed the ASM's starting
	// HeaderVerificationState; they describe the L1 block at
	// RollupParams.GenesisL1Height, not a consensus-critical parameter
	// itself, so they live in process config rather than RollupParams.
	GenesisBlockHash string `yaml:"genesis_block_hash"`
	GenesisBits      uint32 `yaml:"genesis_bits"`
}

type ELSettings struct {
	EngineURL string `yaml:"engine_url"`
	ChainID   int64  `yaml:"chain_id"`
}

type StorageSettings struct {
	Backend    StorageBackend `yaml:"backend"`
	KVPath     string         `yaml:"kv_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

type SchedulerSettings struct {
	LoopInterval    Duration         `yaml:"loop_interval"`
	WorkersPerHost  map[string]int   `yaml:"workers_per_host"`
}

type MetricsSettings struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

// LoadProcessConfig reads and parses a YAML process config file,
// substituting ${VAR} environment references before unmarshaling.
func LoadProcessConfig(path string) (*ProcessConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read process config %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg ProcessConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse process config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *ProcessConfig) applyDefaults() {
	if c.L1.PollInterval == 0 {
		c.L1.PollInterval = Duration(10 * time.Second)
	}
	if c.L1.RetryBaseDelay == 0 {
		c.L1.RetryBaseDelay = Duration(1500 * time.Millisecond)
	}
	if c.L1.RetryMaxAttempts == 0 {
		c.L1.RetryMaxAttempts = 5
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendKV
	}
	if c.Scheduler.LoopInterval == 0 {
		c.Scheduler.LoopInterval = Duration(2 * time.Second)
	}
	if c.Scheduler.WorkersPerHost == nil {
		c.Scheduler.WorkersPerHost = map[string]int{"default": 2}
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9464"
	}
}
