package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the CLI configuration.
type Config struct {
	// DataPath is the directory of the pebble ledger.
	DataPath string

	// KeyPath is the path to the Ed25519 private key file.
	KeyPath string

	// PrivateKey is the caller's Ed25519 key; its public key is the caller address.
	PrivateKey ed25519.PrivateKey

	// LogLevel is the minimum level written to stderr.
	LogLevel string

	// MetricsFile receives the operation metrics in text format on exit.
	MetricsFile string

	// ProposalDeposit is taken from proposers and returned on cancel or close.
	ProposalDeposit uint64

	// StrictQuorum counts only current owners' approvals at execution.
	StrictQuorum bool

	// ProgramGasLimit bounds one WASM program invocation.
	ProgramGasLimit uint64

	// Programs maps program names to WASM files loaded at startup.
	Programs map[string]string

	// Args are the command and its arguments.
	Args []string
}

// fileConfig is the TOML layout of the -config file.
type fileConfig struct {
	Data            string            `toml:"data"`
	Key             string            `toml:"key"`
	LogLevel        string            `toml:"log_level"`
	MetricsFile     string            `toml:"metrics_file"`
	ProposalDeposit uint64            `toml:"proposal_deposit"`
	StrictQuorum    bool              `toml:"strict_quorum"`
	ProgramGasLimit uint64            `toml:"program_gas_limit"`
	Programs        map[string]string `toml:"programs"`
}

// defaultConfig returns the configuration used when nothing is set.
func defaultConfig() *Config {
	return &Config{
		DataPath:        "./data",
		KeyPath:         "./vaultgate.key",
		LogLevel:        "info",
		ProgramGasLimit: 1_000_000,
		Programs:        map[string]string{},
	}
}

// parseFlags parses command-line flags into Config. Values from the
// -config file apply first; flags given explicitly override them.
func parseFlags(args []string) (*Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("vaultgate", flag.ContinueOnError)
	configPath := fs.String("config", "", "TOML config file")
	fs.StringVar(&cfg.DataPath, "data", cfg.DataPath, "Data directory path")
	fs.StringVar(&cfg.KeyPath, "key", cfg.KeyPath, "Ed25519 private key path (generates new if missing)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", "", "Write metrics in text format to this file on exit")
	fs.Uint64Var(&cfg.ProposalDeposit, "deposit", 0, "Deposit taken from each proposer")
	fs.BoolVar(&cfg.StrictQuorum, "strict-quorum", false, "Count only current owners' approvals")
	fs.Uint64Var(&cfg.ProgramGasLimit, "gas", cfg.ProgramGasLimit, "Gas limit per WASM program call")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

		if err := loadConfigFile(*configPath, cfg, set); err != nil {
			return nil, err
		}
	}

	cfg.Args = fs.Args()

	return cfg, nil
}

// loadConfigFile applies the TOML file at path to cfg, skipping keys whose
// flag was set on the command line.
func loadConfigFile(path string, cfg *Config, flagSet map[string]bool) error {
	var raw fileConfig

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s:\n%w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config key %q in %s", undecoded[0].String(), path)
	}

	apply := func(key, flagName string, fn func()) {
		if meta.IsDefined(key) && !flagSet[flagName] {
			fn()
		}
	}

	apply("data", "data", func() { cfg.DataPath = strings.TrimSpace(raw.Data) })
	apply("key", "key", func() { cfg.KeyPath = strings.TrimSpace(raw.Key) })
	apply("log_level", "log-level", func() { cfg.LogLevel = raw.LogLevel })
	apply("metrics_file", "metrics-file", func() { cfg.MetricsFile = raw.MetricsFile })
	apply("proposal_deposit", "deposit", func() { cfg.ProposalDeposit = raw.ProposalDeposit })
	apply("strict_quorum", "strict-quorum", func() { cfg.StrictQuorum = raw.StrictQuorum })
	apply("program_gas_limit", "gas", func() { cfg.ProgramGasLimit = raw.ProgramGasLimit })

	for name, file := range raw.Programs {
		cfg.Programs[name] = file
	}

	return nil
}

// usage prints the command summary and flags.
func usage(fs *flag.FlagSet) {
	out := fs.Output()

	fmt.Fprintln(out, "usage: vaultgate [flags] <command> [args]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "commands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-10s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "flags:")
	fs.PrintDefaults()
}

// loadOrGenerateKey loads the private key from file or generates a new one.
func loadOrGenerateKey(keyPath string) (ed25519.PrivateKey, error) {
	if keyPath == "" {
		return generateNewKey()
	}

	data, err := os.ReadFile(keyPath)
	if os.IsNotExist(err) {
		return generateAndSaveKey(keyPath)
	}

	if err != nil {
		return nil, fmt.Errorf("read key file:\n%w", err)
	}

	if len(data) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(data), ed25519.PrivateKeySize)
	}

	return ed25519.PrivateKey(data), nil
}

// generateNewKey creates a new Ed25519 private key.
func generateNewKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return priv, nil
}

// generateAndSaveKey creates a new key and saves it to the given path.
func generateAndSaveKey(path string) (ed25519.PrivateKey, error) {
	priv, err := generateNewKey()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, priv, 0600); err != nil {
		return nil, fmt.Errorf("save key to %s:\n%w", path, err)
	}

	return priv, nil
}

// parseExpiry turns a duration ("90m") or RFC 3339 time into an absolute time.
// An empty string means no expiry.
func parseExpiry(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(d), nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q: want a duration or RFC 3339 time", s)
	}

	return t, nil
}
